package history

import (
	"testing"

	"github.com/kobzarvs/qdecomp/internal/host"
)

func TestPushSkipsDuplicateTop(t *testing.T) {
	h := New(0x1000)
	if h.Push(0x1000) {
		t.Fatalf("Push of top = true, want false")
	}
	if !h.Push(0x2000) {
		t.Fatalf("Push(0x2000) = false, want true")
	}
	for i := 0; i < 5; i++ {
		if h.Push(0x2000) {
			t.Fatalf("repeated Push grew the history")
		}
	}
	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}
	if !h.Push(0x1000) {
		t.Fatalf("Push(0x1000) after 0x2000 = false, want true")
	}
	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
}

func TestPopOrClose(t *testing.T) {
	h := New(0x1000)
	h.Push(0x2000)
	h.Push(0x3000)

	prev, ok := h.Previous()
	if !ok || prev != 0x2000 {
		t.Fatalf("Previous = %v, %v, want 0x2000, true", prev, ok)
	}
	addr, ok := h.PopOrClose()
	if !ok || addr != 0x2000 {
		t.Fatalf("PopOrClose = %v, %v, want 0x2000, true", addr, ok)
	}
	addr, ok = h.PopOrClose()
	if !ok || addr != 0x1000 {
		t.Fatalf("PopOrClose = %v, %v, want 0x1000, true", addr, ok)
	}
	for i := 0; i < 3; i++ {
		addr, ok = h.PopOrClose()
		if ok || addr != host.BadAddress {
			t.Fatalf("PopOrClose on single entry = %v, %v, want close", addr, ok)
		}
		if h.Len() != 1 || h.Top() != 0x1000 {
			t.Fatalf("history changed on close: %v", h.Addresses())
		}
	}
}

func TestAddressesIsCopy(t *testing.T) {
	h := New(0x10)
	h.Push(0x20)
	got := h.Addresses()
	got[0] = 0x99
	if h.Addresses()[0] != 0x10 {
		t.Fatalf("Addresses exposed internal slice")
	}
}
