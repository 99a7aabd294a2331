package history

import "github.com/kobzarvs/qdecomp/internal/host"

// History is the back-stack of function addresses visited in one view.
// It is never empty.
type History struct {
	addrs []host.Address
}

func New(addr host.Address) *History {
	return &History{addrs: []host.Address{addr}}
}

// Push appends addr unless it is already on top. It reports whether the
// history changed.
func (h *History) Push(addr host.Address) bool {
	if h.Top() == addr {
		return false
	}
	h.addrs = append(h.addrs, addr)
	return true
}

// PopOrClose drops the top entry and returns the new top. With a single
// entry left it returns ok == false and leaves the history untouched: the
// owning view must be closed instead.
func (h *History) PopOrClose() (host.Address, bool) {
	if len(h.addrs) <= 1 {
		return host.BadAddress, false
	}
	h.addrs = h.addrs[:len(h.addrs)-1]
	return h.Top(), true
}

// Previous returns the address PopOrClose would return, without popping.
func (h *History) Previous() (host.Address, bool) {
	if len(h.addrs) <= 1 {
		return host.BadAddress, false
	}
	return h.addrs[len(h.addrs)-2], true
}

func (h *History) Top() host.Address {
	return h.addrs[len(h.addrs)-1]
}

func (h *History) Len() int {
	return len(h.addrs)
}

// Addresses returns a copy of the history, oldest first.
func (h *History) Addresses() []host.Address {
	return append([]host.Address(nil), h.addrs...)
}
