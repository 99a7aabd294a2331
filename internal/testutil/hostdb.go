// Package testutil provides in-memory fakes of the host database, the
// decompiler and the prompter for package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/host"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

type frameKey struct {
	fn  host.Address
	off int64
}

type assocKey struct {
	fn  host.Address
	key string
}

type Segment struct {
	Start, End host.Address
	Name       string
	Extern     bool
	ReadOnly   bool
}

// DB is an in-memory host.Database.
type DB struct {
	Globals   map[string]host.Address
	Locals    map[host.Address]map[string]host.Address
	Funcs     map[host.Address]host.Function
	Members   map[frameKey]string
	Assocs    map[assocKey]string
	Segments  []Segment
	Screen    host.Address
	FailAdd   bool
	FailFrame bool
	FailAssoc bool
	FailName  bool
}

func NewDB() *DB {
	return &DB{
		Globals: make(map[string]host.Address),
		Locals:  make(map[host.Address]map[string]host.Address),
		Funcs:   make(map[host.Address]host.Function),
		Members: make(map[frameKey]string),
		Assocs:  make(map[assocKey]string),
		Screen:  host.BadAddress,
	}
}

// AddFunction registers fn and its name in the global namespace.
func (d *DB) AddFunction(fn host.Function) {
	d.Funcs[fn.Start] = fn
	if fn.Name != "" {
		d.Globals[fn.Name] = fn.Start
	}
}

func (d *DB) SetMember(fn host.Address, off int64, name string) {
	d.Members[frameKey{fn, off}] = name
}

func (d *DB) Member(fn host.Address, off int64) (string, bool) {
	name, ok := d.Members[frameKey{fn, off}]
	return name, ok
}

func (d *DB) NameAddress(scope host.Address, name string) (host.Address, bool) {
	if scope != host.BadAddress {
		if addr, ok := d.Locals[scope][name]; ok {
			return addr, true
		}
	}
	addr, ok := d.Globals[name]
	return addr, ok
}

func (d *DB) NameAt(addr host.Address) (string, bool) {
	for name, a := range d.Globals {
		if a == addr {
			return name, true
		}
	}
	return "", false
}

func (d *DB) SetName(addr host.Address, name string) error {
	if d.FailName {
		return ErrInjected
	}
	if other, ok := d.Globals[name]; ok && other != addr {
		return fmt.Errorf("name %q already used at %s", name, other)
	}
	for n, a := range d.Globals {
		if a == addr {
			delete(d.Globals, n)
		}
	}
	d.Globals[name] = addr
	if fn, ok := d.Funcs[addr]; ok {
		fn.Name = name
		d.Funcs[addr] = fn
	}
	return nil
}

func (d *DB) FunctionAt(addr host.Address) (host.Function, bool) {
	for _, fn := range d.Funcs {
		if fn.Contains(addr) {
			return fn, true
		}
	}
	return host.Function{}, false
}

func (d *DB) IsFunctionStart(addr host.Address) bool {
	_, ok := d.Funcs[addr]
	return ok
}

func (d *DB) FrameMember(fn host.Address, off int64) (string, bool) {
	return d.Member(fn, off)
}

func (d *DB) AddFrameMember(fn host.Address, off int64, name string, size int) error {
	if d.FailAdd {
		return ErrInjected
	}
	k := frameKey{fn, off}
	if _, ok := d.Members[k]; ok {
		return fmt.Errorf("member at %d already exists", off)
	}
	d.Members[k] = name
	return nil
}

func (d *DB) RenameFrameMember(fn host.Address, off int64, name string) error {
	if d.FailFrame {
		return ErrInjected
	}
	k := frameKey{fn, off}
	if _, ok := d.Members[k]; !ok {
		return fmt.Errorf("no member at %d", off)
	}
	d.Members[k] = name
	return nil
}

func (d *DB) Association(fn host.Address, key string) (string, bool) {
	v, ok := d.Assocs[assocKey{fn, key}]
	return v, ok
}

func (d *DB) SetAssociation(fn host.Address, key, value string) error {
	if d.FailAssoc {
		return ErrInjected
	}
	d.Assocs[assocKey{fn, key}] = value
	return nil
}

func (d *DB) segment(addr host.Address) (Segment, bool) {
	for _, s := range d.Segments {
		if addr >= s.Start && addr < s.End {
			return s, true
		}
	}
	return Segment{}, false
}

func (d *DB) IsExtern(addr host.Address) bool {
	s, ok := d.segment(addr)
	return ok && s.Extern
}

func (d *DB) IsReadOnly(addr host.Address) bool {
	s, ok := d.segment(addr)
	return ok && s.ReadOnly
}

func (d *DB) ScreenAddress() host.Address {
	return d.Screen
}

func (d *DB) SetScreenAddress(addr host.Address) error {
	d.Screen = addr
	return nil
}

func (d *DB) FunctionNames() []string {
	var out []string
	for _, fn := range d.Funcs {
		if fn.Name != "" {
			out = append(out, fn.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Decompiler returns trees built by a per-function constructor so every
// call yields a fresh tree.
type Decompiler struct {
	Trees map[host.Address]func() *ast.Function
	Fail  map[host.Address]bool
	Calls []host.Address
}

func NewDecompiler() *Decompiler {
	return &Decompiler{
		Trees: make(map[host.Address]func() *ast.Function),
		Fail:  make(map[host.Address]bool),
	}
}

func (d *Decompiler) Decompile(ctx context.Context, fn host.Function) (*ast.Function, error) {
	d.Calls = append(d.Calls, fn.Start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Fail[fn.Start] {
		return nil, ErrInjected
	}
	build, ok := d.Trees[fn.Start]
	if !ok {
		return nil, fmt.Errorf("no tree for %s", fn.Start)
	}
	return build(), nil
}

// Prompter answers prompts from a queue. An empty queue cancels.
type Prompter struct {
	Answers []string
	Labels  []string
}

func (p *Prompter) next(label string) (string, bool) {
	p.Labels = append(p.Labels, label)
	if len(p.Answers) == 0 {
		return "", false
	}
	ans := p.Answers[0]
	p.Answers = p.Answers[1:]
	return ans, true
}

func (p *Prompter) AskString(label, initial string) (string, bool) {
	return p.next(label)
}

func (p *Prompter) AskAddress(label string) (string, bool) {
	return p.next(label)
}

// Lines joins rendered lines for comparisons in failure messages.
func Lines(lines []string) string {
	return strings.Join(lines, "\n")
}

// States is a map-backed state store.
type States map[string]string

func (s States) State(key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

func (s States) SetState(key, value string) error {
	s[key] = value
	return nil
}
