package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/history"
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
	"github.com/kobzarvs/qdecomp/internal/namesync"
	"github.com/kobzarvs/qdecomp/internal/title"
)

var (
	ErrNotFound   = errors.New("session not found")
	ErrNoFunction = errors.New("no function at address")
)

// ID is the opaque handle of a live session.
type ID uuid.UUID

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Decompiler produces a syntax tree for a function.
type Decompiler interface {
	Decompile(ctx context.Context, fn host.Function) (*ast.Function, error)
}

// Database is the part of the host database sessions need.
type Database interface {
	host.Functions
	namesync.Store
}

// Session is the state behind one open view.
type Session struct {
	id      ID
	title   string
	fn      host.Function
	tree    *ast.Function
	names   *namesync.Table
	history *history.History
	lines   []string
	dirty   bool
}

func (s *Session) ID() ID                    { return s.id }
func (s *Session) Title() string             { return s.title }
func (s *Session) Function() host.Function   { return s.fn }
func (s *Session) Tree() *ast.Function       { return s.tree }
func (s *Session) Names() *namesync.Table    { return s.names }
func (s *Session) History() *history.History { return s.history }
func (s *Session) Dirty() bool               { return s.dirty }

// MarkDirty schedules a full re-render.
func (s *Session) MarkDirty() {
	s.dirty = true
}

// Render returns the rendered text, regenerating it from the tree when the
// session is dirty.
func (s *Session) Render() []string {
	if s.dirty || s.lines == nil {
		s.lines = s.tree.Render()
		s.dirty = false
	}
	return s.lines
}

func (s *Session) replace(fn host.Function, tree *ast.Function, names *namesync.Table) {
	s.fn = fn
	s.tree = tree
	s.names = names
	s.dirty = true
}

// Store owns every live session and the titles they hold.
type Store struct {
	mu       sync.RWMutex
	db       Database
	dec      Decompiler
	titles   *title.Registry
	sessions map[ID]*Session
	order    []ID
}

func NewStore(db Database, dec Decompiler) *Store {
	return &Store{
		db:       db,
		dec:      dec,
		titles:   title.NewRegistry(),
		sessions: make(map[ID]*Session),
	}
}

// decompile resolves the function containing addr, decompiles it and
// populates its name table.
func (st *Store) decompile(ctx context.Context, addr host.Address) (host.Function, *ast.Function, *namesync.Table, error) {
	fn, ok := st.db.FunctionAt(addr)
	if !ok {
		return host.Function{}, nil, nil, fmt.Errorf("%w: %s", ErrNoFunction, addr)
	}
	tree, err := st.dec.Decompile(ctx, fn)
	if err != nil {
		return host.Function{}, nil, nil, fmt.Errorf("decompile %s: %w", fn.Start, err)
	}
	names := namesync.Populate(tree, fn, st.db)
	return fn, tree, names, nil
}

// Open decompiles the function containing addr into a new session. Nothing
// is allocated when decompilation fails.
func (st *Store) Open(ctx context.Context, addr host.Address) (*Session, error) {
	fn, tree, names, err := st.decompile(ctx, addr)
	if err != nil {
		logger.Debug("open failed", "addr", addr.String(), "error", err)
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	sess := &Session{
		id:      ID(uuid.New()),
		title:   st.titles.Allocate(),
		history: history.New(fn.Start),
	}
	sess.replace(fn, tree, names)
	st.sessions[sess.id] = sess
	st.order = append(st.order, sess.id)
	logger.Session(sess.id, sess.title).Info("session opened", "func", fn.Start.String())
	return sess, nil
}

// Get dereferences a session handle.
func (st *Store) Get(id ID) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Drill decompiles the function containing addr into the session and
// pushes it on the session's history. It reports false without doing any
// work when that function is already displayed. A failed decompilation
// leaves the session untouched.
func (st *Store) Drill(ctx context.Context, id ID, addr host.Address) (bool, error) {
	sess, err := st.Get(id)
	if err != nil {
		return false, err
	}
	if fn, ok := st.db.FunctionAt(addr); ok && fn.Start == sess.history.Top() {
		return false, nil
	}
	fn, tree, names, err := st.decompile(ctx, addr)
	if err != nil {
		logger.Session(id, sess.title).Debug("drill failed", "addr", addr.String(), "error", err)
		return false, err
	}
	sess.replace(fn, tree, names)
	sess.history.Push(fn.Start)
	return true, nil
}

// Back returns the session to the previous address of its history. When
// the history holds a single entry the session is closed and closed is
// true. A failed decompilation leaves session and history untouched.
func (st *Store) Back(ctx context.Context, id ID) (closed bool, err error) {
	sess, err := st.Get(id)
	if err != nil {
		return false, err
	}
	prev, ok := sess.history.Previous()
	if !ok {
		return true, st.Close(id)
	}
	fn, tree, names, err := st.decompile(ctx, prev)
	if err != nil {
		logger.Session(id, sess.title).Debug("back failed", "addr", prev.String(), "error", err)
		return false, err
	}
	sess.replace(fn, tree, names)
	sess.history.PopOrClose()
	return false, nil
}

// Close destroys a session and releases its title.
func (st *Store) Close(id ID) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(st.sessions, id)
	for i, other := range st.order {
		if other == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	st.titles.Release(sess.title)
	logger.Session(id, sess.title).Info("session closed")
	return nil
}

// Sessions returns the live sessions in the order they were opened.
func (st *Store) Sessions() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.sessions[id])
	}
	return out
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Titles exposes the registry for inspection.
func (st *Store) Titles() *title.Registry {
	return st.titles
}
