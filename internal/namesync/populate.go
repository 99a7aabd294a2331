package namesync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
)

// StackMarker introduces the frame offset in a decompiler-native name.
const StackMarker = "Stack"

// Store is the part of the database the name table reads and writes.
type Store interface {
	host.Frames
	host.Associations
}

// ParseStackOffset extracts the numeric suffix following StackMarker (and an
// optional underscore). The suffix follows C strtoul base 0 rules: 0x for
// hex, a leading 0 for octal, decimal otherwise.
func ParseStackOffset(native string) (uint64, bool) {
	idx := strings.Index(native, StackMarker)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimPrefix(native[idx+len(StackMarker):], "_")
	return parseCUint(rest)
}

func parseCUint(s string) (uint64, bool) {
	base := 10
	digits := s
	switch {
	case len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') && digitValue(s[2]) < 16:
		base = 16
		digits = s[2:]
	case len(s) > 0 && s[0] == '0':
		base = 8
	}
	n := 0
	for n < len(digits) && digitValue(digits[n]) < base {
		n++
	}
	if n == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(digits[:n], base, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return 99
	}
}

// PlaceholderName is the name given to a frame member created for a stack
// variable the database did not know about.
func PlaceholderName(fn host.Function, stackOff uint64) string {
	return fmt.Sprintf("var_%X", uint32(int64(stackOff)-fn.FrameRegs))
}

// Populate builds the name table for a freshly decompiled tree, renaming
// the tree to the names already recorded in the database. Parameters are
// mapped first, then the declarations at the top of the body.
func Populate(tree *ast.Function, fn host.Function, store Store) *Table {
	p := &populator{tree: tree, fn: fn, store: store, table: NewTable(), log: logger.Func(fn.Start)}
	for _, decl := range tree.Prototype.Params {
		p.mapDecl(decl)
	}
	for _, decl := range tree.LeadingDecls() {
		p.mapDecl(decl)
	}
	return p.table
}

type populator struct {
	tree  *ast.Function
	fn    host.Function
	store Store
	table *Table
	log   logger.Fields
}

func (p *populator) mapDecl(decl *ast.VarDecl) {
	native := decl.Name
	stackOff, ok := ParseStackOffset(native)
	if !ok {
		e := &Entry{Native: native, Display: native, Storage: StorageRegister}
		if name, ok := p.store.Association(p.fn.Start, native); ok && name != "" {
			e.Persisted = true
			p.adopt(e, name)
			return
		}
		p.record(e)
		return
	}

	off := p.fn.RetAddrOffset - int64(stackOff)
	e := &Entry{Native: native, Display: native, Storage: StorageStack, Offset: off, Persisted: true}
	if name, ok := p.store.FrameMember(p.fn.Start, off); ok {
		p.adopt(e, name)
		return
	}
	candidate := PlaceholderName(p.fn, stackOff)
	if err := p.store.AddFrameMember(p.fn.Start, off, candidate, 1); err != nil {
		p.log.Debug("frame member not created", "offset", off, "name", candidate, "error", err)
		e.Persisted = false
		p.record(e)
		return
	}
	p.adopt(e, candidate)
}

// adopt renames the tree to a persisted name. A name that is already
// displayed or already appears in the tree would merge two identities, so
// the entry keeps its native name instead.
func (p *populator) adopt(e *Entry, name string) {
	if name == e.Native {
		p.record(e)
		return
	}
	if p.table.Has(name) || p.tree.Occurrences(name) > 0 {
		p.log.Warn("persisted name collides, keeping native name", "native", e.Native, "name", name)
		p.record(e)
		return
	}
	p.tree.Rename(e.Native, name)
	e.Display = name
	p.record(e)
}

func (p *populator) record(e *Entry) {
	if !p.table.add(e) {
		p.log.Warn("duplicate local name", "name", e.Display)
	}
}
