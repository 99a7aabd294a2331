package session

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/kobzarvs/qdecomp/internal/host"
)

const stateKey = "views"

// ViewState stores the cursor and scroll position of one function's view
type ViewState struct {
	CursorRow int `json:"cursor_row"`
	CursorCol int `json:"cursor_col"`
	ScrollY   int `json:"scroll_y"`
	ScrollX   int `json:"scroll_x"`
}

// snapshot is the persisted form of all view states
type snapshot struct {
	Views      map[string]ViewState `json:"views"` // keyed by function start
	LastOpened host.Address         `json:"last_opened"`
	LastSaved  time.Time            `json:"last_saved"`
}

// StateStore is a key/value store that outlives the program, normally the
// analysis database's state table.
type StateStore interface {
	State(key string) (string, bool, error)
	SetState(key, value string) error
}

// Manager handles view state persistence
type Manager struct {
	mu    sync.RWMutex
	snap  snapshot
	store StateStore
	dirty bool
}

// NewManager loads previously saved view states from store
func NewManager(store StateStore) *Manager {
	m := &Manager{
		snap:  snapshot{Views: make(map[string]ViewState), LastOpened: host.BadAddress},
		store: store,
	}
	m.load()
	return m
}

func viewKey(fn host.Address) string {
	return strconv.FormatUint(uint64(fn), 16)
}

func (m *Manager) load() {
	data, ok, err := m.store.State(stateKey)
	if err != nil || !ok {
		return // Nothing saved yet, start fresh
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return
	}
	if snap.Views == nil {
		snap.Views = make(map[string]ViewState)
	}
	m.snap = snap
}

// Save persists the view states
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	m.snap.LastSaved = time.Now()
	data, err := json.Marshal(m.snap)
	if err != nil {
		return err
	}
	if err := m.store.SetState(stateKey, string(data)); err != nil {
		return err
	}

	m.dirty = false
	return nil
}

// ViewState returns the saved state for a function
func (m *Manager) ViewState(fn host.Address) (ViewState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.snap.Views[viewKey(fn)]
	return state, ok
}

// SetViewState updates the state for a function and remembers it as the
// last one shown
func (m *Manager) SetViewState(fn host.Address, state ViewState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Views[viewKey(fn)] = state
	m.snap.LastOpened = fn
	m.dirty = true
}

// LastOpened returns the function shown most recently
func (m *Manager) LastOpened() (host.Address, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.LastOpened, m.snap.LastOpened != host.BadAddress
}
