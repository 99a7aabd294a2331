package treesitter

import "testing"

var sample = []string{
	"int main(int param_1)",
	"",
	"{",
	"  int var_A;",
	"  ",
	"  var_A = param_1 + 0x10; // bump",
	"  puts(\"done\");",
	"  return var_A;",
	"}",
}

func hasKind(spans []HighlightSpan, col int, kind string) bool {
	for _, s := range spans {
		if s.StartCol <= col && col < s.EndCol && s.Kind == kind {
			return true
		}
	}
	return false
}

func TestEngineHighlights(t *testing.T) {
	e := New()
	defer e.Close()

	if !e.ParseSync("A", sample) {
		t.Fatalf("ParseSync failed")
	}
	spans := e.Highlights("A", 0, len(sample)-1)
	if !hasKind(spans[0], 0, "type") {
		t.Fatalf("line 0 spans = %+v, want type at 0", spans[0])
	}
	if !hasKind(spans[0], 4, "function") {
		t.Fatalf("line 0 spans = %+v, want function at 4", spans[0])
	}
	if !hasKind(spans[5], 20, "number") {
		t.Fatalf("line 5 spans = %+v, want number at 20", spans[5])
	}
	if !hasKind(spans[5], 26, "comment") {
		t.Fatalf("line 5 spans = %+v, want comment at 26", spans[5])
	}
	if !hasKind(spans[6], 8, "string") {
		t.Fatalf("line 6 spans = %+v, want string at 8", spans[6])
	}
	if !hasKind(spans[7], 2, "keyword") {
		t.Fatalf("line 7 spans = %+v, want keyword at 2", spans[7])
	}
	if kind := e.KindAt("A", 7, 10); kind != "identifier" {
		t.Fatalf("KindAt = %q, want identifier", kind)
	}
}

func TestEngineForget(t *testing.T) {
	e := New()
	defer e.Close()

	e.ParseSync("A", sample)
	e.ParseSync("B", sample[:1])
	e.Forget("A")
	if spans := e.Highlights("A", 0, 5); spans != nil {
		t.Fatalf("forgotten document still highlighted: %+v", spans)
	}
	if spans := e.Highlights("B", 0, 0); len(spans[0]) == 0 {
		t.Fatalf("document B lost its highlights")
	}
	if spans := e.Highlights("B", 3, 1); spans != nil {
		t.Fatalf("inverted range returned %+v", spans)
	}
}
