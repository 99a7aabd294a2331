package title

import "testing"

func TestAllocateSequence(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 26; i++ {
		want := string(rune('A' + i))
		if got := r.Allocate(); got != want {
			t.Fatalf("allocation %d = %q, want %q", i, got, want)
		}
	}
	for _, want := range []string{"AA", "BA", "CA"} {
		if got := r.Allocate(); got != want {
			t.Fatalf("Allocate = %q, want %q", got, want)
		}
	}
}

func TestSuccessorCarry(t *testing.T) {
	cases := map[string]string{
		"A":  "B",
		"Z":  "AA",
		"ZA": "AB",
		"ZZ": "AAA",
		"MZ": "NZ",
	}
	for in, want := range cases {
		if got := string(successor([]byte(in))); got != want {
			t.Fatalf("successor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReleaseReusesSmallest(t *testing.T) {
	r := NewRegistry()
	a := r.Allocate()
	b := r.Allocate()
	if a != "A" || b != "B" {
		t.Fatalf("titles = %q, %q, want A, B", a, b)
	}
	if !r.Release("A") {
		t.Fatalf("Release(A) = false, want true")
	}
	if got := r.Allocate(); got != "A" {
		t.Fatalf("Allocate after release = %q, want %q", got, "A")
	}
	if got := r.Allocate(); got != "C" {
		t.Fatalf("Allocate = %q, want %q", got, "C")
	}
}

func TestReleaseUnknown(t *testing.T) {
	r := NewRegistry()
	if r.Release("A") {
		t.Fatalf("Release of unallocated title = true, want false")
	}
	r.Allocate()
	if !r.Release("A") || r.Release("A") {
		t.Fatalf("title released more than once")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}

func TestAllocateInjective(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		got := r.Allocate()
		if seen[got] {
			t.Fatalf("title %q allocated twice", got)
		}
		seen[got] = true
		if i%7 == 3 {
			r.Release(got)
			delete(seen, got)
		}
	}
	if r.Len() != len(seen) {
		t.Fatalf("Len = %d, want %d", r.Len(), len(seen))
	}
}
