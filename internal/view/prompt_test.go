package view

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/qdecomp/internal/config"
)

func newTestPrompt(t *testing.T, events ...tcell.Event) (*Prompt, tcell.SimulationScreen) {
	t.Helper()
	s := newScreen(t, 40, 5)
	p := NewPrompt(s, config.Default())
	queue := events
	p.poll = func() tcell.Event {
		if len(queue) == 0 {
			return nil
		}
		ev := queue[0]
		queue = queue[1:]
		return ev
	}
	return p, s
}

func typed(text string) []tcell.Event {
	var out []tcell.Event
	for _, r := range text {
		out = append(out, tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}
	return out
}

func key(k tcell.Key) tcell.Event {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func events(groups ...[]tcell.Event) []tcell.Event {
	var out []tcell.Event
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func TestPromptAccept(t *testing.T) {
	p, s := newTestPrompt(t, events(
		typed("abc"),
		[]tcell.Event{key(tcell.KeyBackspace2)},
		typed("d"),
		[]tcell.Event{key(tcell.KeyEnter)},
	)...)
	got, ok := p.AskString("Please enter item name", "")
	if !ok || got != "abd" {
		t.Fatalf("AskString = %q, %v; want abd, true", got, ok)
	}
	if line := rowText(s, 4); !strings.HasPrefix(line, "Please enter item name: abd") {
		t.Fatalf("prompt line = %q", line)
	}
}

func TestPromptCancel(t *testing.T) {
	p, _ := newTestPrompt(t, events(typed("xyz"), []tcell.Event{key(tcell.KeyEscape)})...)
	if got, ok := p.AskString("Name", "old"); ok || got != "" {
		t.Fatalf("AskString = %q, %v; want cancelled", got, ok)
	}
}

func TestPromptClosedScreenCancels(t *testing.T) {
	p, _ := newTestPrompt(t, typed("a")...)
	if _, ok := p.AskAddress("Jump to address"); ok {
		t.Fatalf("prompt accepted without enter")
	}
}

func TestPromptInitialTextEditing(t *testing.T) {
	p, _ := newTestPrompt(t, events(
		[]tcell.Event{key(tcell.KeyHome)},
		typed("x"),
		[]tcell.Event{key(tcell.KeyEnd), key(tcell.KeyLeft)},
		typed("_"),
		[]tcell.Event{key(tcell.KeyEnter)},
	)...)
	got, ok := p.AskString("Please enter item name", "iStack_14")
	if !ok || got != "xiStack_1_4" {
		t.Fatalf("AskString = %q, %v", got, ok)
	}
}

func TestPromptCompletion(t *testing.T) {
	p, _ := newTestPrompt(t, events(
		typed("ma"),
		[]tcell.Event{key(tcell.KeyTab), key(tcell.KeyTab), key(tcell.KeyEnter)},
	)...)
	var asked string
	p.SetCompleter(func(text string) []string {
		asked = text
		return []string{"main", "malloc"}
	})
	got, ok := p.AskAddress("Jump to address")
	if !ok || got != "malloc" {
		t.Fatalf("AskAddress = %q, %v; want malloc", got, ok)
	}
	if asked != "ma" {
		t.Fatalf("completer asked %q, want ma", asked)
	}
}

func TestPromptStringIgnoresCompletion(t *testing.T) {
	p, _ := newTestPrompt(t, events(typed("x"), []tcell.Event{key(tcell.KeyTab), key(tcell.KeyEnter)})...)
	p.SetCompleter(func(string) []string { return []string{"main"} })
	if got, ok := p.AskString("Name", ""); !ok || got != "x" {
		t.Fatalf("AskString = %q, %v; want x", got, ok)
	}
}

func TestPromptRedraw(t *testing.T) {
	p, _ := newTestPrompt(t, key(tcell.KeyEnter))
	calls := 0
	p.SetRedraw(func() { calls++ })
	p.AskString("Name", "")
	if calls == 0 {
		t.Fatalf("redraw not called")
	}
}
