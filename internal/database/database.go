// Package database stores the analysis database in SQLite. A DB wraps a
// single connection and must be used from one goroutine.
package database

import (
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
)

var ErrNotFound = errors.New("not found")

// Segment permission bits
const (
	PermExec  = 1
	PermWrite = 2
	PermRead  = 4
)

// globalScope is how host.BadAddress is stored in the scope column.
const globalScope = -1

const screenKey = "screen"

type DB struct {
	conn *sqlite.Conn
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := createTables(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func createTables(conn *sqlite.Conn) error {
	ddl := `
CREATE TABLE IF NOT EXISTS functions (
    start_ea INTEGER PRIMARY KEY,
    end_ea INTEGER NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    frame_regs INTEGER NOT NULL DEFAULT 0,
    retaddr_off INTEGER NOT NULL DEFAULT 0,
    flags INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS names (
    addr INTEGER NOT NULL,
    scope INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (scope, name)
);

CREATE TABLE IF NOT EXISTS frame_members (
    func INTEGER NOT NULL,
    off INTEGER NOT NULL,
    name TEXT NOT NULL,
    size INTEGER NOT NULL,
    PRIMARY KEY (func, off),
    UNIQUE (func, name)
);

CREATE TABLE IF NOT EXISTS segments (
    start_ea INTEGER PRIMARY KEY,
    end_ea INTEGER NOT NULL,
    name TEXT NOT NULL,
    perm INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS associations (
    func INTEGER NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (func, key)
);

CREATE TABLE IF NOT EXISTS state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_names_addr ON names(addr, scope);
`
	return sqlitex.ExecuteScript(conn, ddl, nil)
}

// queryRow runs query and hands the first row to scan. It reports whether
// a row was found.
func (d *DB) queryRow(query string, args []any, scan func(stmt *sqlite.Stmt)) (bool, error) {
	found := false
	err := sqlitex.Execute(d.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if !found {
				found = true
				scan(stmt)
			}
			return nil
		},
	})
	return found, err
}

func (d *DB) exec(query string, args ...any) error {
	return sqlitex.Execute(d.conn, query, &sqlitex.ExecOptions{Args: args})
}

func scope(addr host.Address) int64 {
	if addr == host.BadAddress {
		return globalScope
	}
	return int64(addr)
}

func (d *DB) NameAddress(scopeAddr host.Address, name string) (host.Address, bool) {
	var addr int64
	if scopeAddr != host.BadAddress {
		found, err := d.queryRow(`SELECT addr FROM names WHERE scope = ? AND name = ?`,
			[]any{scope(scopeAddr), name}, func(stmt *sqlite.Stmt) { addr = stmt.ColumnInt64(0) })
		if err != nil {
			logger.Error("name lookup failed", "name", name, "error", err)
			return host.BadAddress, false
		}
		if found {
			return host.Address(addr), true
		}
	}
	found, err := d.queryRow(`SELECT addr FROM names WHERE scope = ? AND name = ?`,
		[]any{int64(globalScope), name}, func(stmt *sqlite.Stmt) { addr = stmt.ColumnInt64(0) })
	if err != nil {
		logger.Error("name lookup failed", "name", name, "error", err)
		return host.BadAddress, false
	}
	if !found {
		return host.BadAddress, false
	}
	return host.Address(addr), true
}

func (d *DB) NameAt(addr host.Address) (string, bool) {
	var name string
	found, err := d.queryRow(`SELECT name FROM names WHERE addr = ? AND scope = ? ORDER BY name LIMIT 1`,
		[]any{int64(addr), int64(globalScope)}, func(stmt *sqlite.Stmt) { name = stmt.ColumnText(0) })
	if err != nil {
		logger.Error("name lookup failed", "addr", addr.String(), "error", err)
		return "", false
	}
	return name, found
}

// SetName gives addr the global name, replacing any name it had.
func (d *DB) SetName(addr host.Address, name string) (err error) {
	defer sqlitex.Save(d.conn)(&err)

	if other, ok := d.NameAddress(host.BadAddress, name); ok && other != addr {
		return fmt.Errorf("name %q already used at %s", name, other)
	}
	if err := d.exec(`DELETE FROM names WHERE addr = ? AND scope = ?`, int64(addr), int64(globalScope)); err != nil {
		return err
	}
	if err := d.exec(`INSERT INTO names (addr, scope, name) VALUES (?, ?, ?)`, int64(addr), int64(globalScope), name); err != nil {
		return err
	}
	return d.exec(`UPDATE functions SET name = ? WHERE start_ea = ?`, name, int64(addr))
}

// SetLocalName adds a name visible only inside the function at fn.
func (d *DB) SetLocalName(fn, addr host.Address, name string) error {
	return d.exec(`INSERT OR REPLACE INTO names (addr, scope, name) VALUES (?, ?, ?)`, int64(addr), int64(fn), name)
}

func scanFunction(stmt *sqlite.Stmt) host.Function {
	return host.Function{
		Start:         host.Address(stmt.ColumnInt64(0)),
		End:           host.Address(stmt.ColumnInt64(1)),
		Name:          stmt.ColumnText(2),
		FrameRegs:     stmt.ColumnInt64(3),
		RetAddrOffset: stmt.ColumnInt64(4),
		Flags:         uint32(stmt.ColumnInt64(5)),
	}
}

const functionColumns = `start_ea, end_ea, name, frame_regs, retaddr_off, flags`

func (d *DB) FunctionAt(addr host.Address) (host.Function, bool) {
	var fn host.Function
	found, err := d.queryRow(`SELECT `+functionColumns+` FROM functions
WHERE start_ea <= ? AND ? < end_ea ORDER BY start_ea DESC LIMIT 1`,
		[]any{int64(addr), int64(addr)}, func(stmt *sqlite.Stmt) { fn = scanFunction(stmt) })
	if err != nil {
		logger.Error("function lookup failed", "addr", addr.String(), "error", err)
		return host.Function{}, false
	}
	return fn, found
}

func (d *DB) IsFunctionStart(addr host.Address) bool {
	found, err := d.queryRow(`SELECT 1 FROM functions WHERE start_ea = ?`, []any{int64(addr)}, func(*sqlite.Stmt) {})
	return err == nil && found
}

// AddFunction inserts or replaces fn and registers its global name.
func (d *DB) AddFunction(fn host.Function) error {
	err := d.exec(`INSERT OR REPLACE INTO functions (`+functionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(fn.Start), int64(fn.End), fn.Name, fn.FrameRegs, fn.RetAddrOffset, int64(fn.Flags))
	if err != nil {
		return fmt.Errorf("add function %s: %w", fn.Start, err)
	}
	if fn.Name == "" {
		return nil
	}
	return d.SetName(fn.Start, fn.Name)
}

func (d *DB) FunctionNames() []string {
	var names []string
	err := sqlitex.Execute(d.conn, `SELECT name FROM functions WHERE name != '' ORDER BY name`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			names = append(names, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		logger.Error("list functions failed", "error", err)
	}
	return names
}

func (d *DB) FrameMember(fn host.Address, off int64) (string, bool) {
	var name string
	found, err := d.queryRow(`SELECT name FROM frame_members WHERE func = ? AND off = ?`,
		[]any{int64(fn), off}, func(stmt *sqlite.Stmt) { name = stmt.ColumnText(0) })
	if err != nil {
		logger.Func(fn).Error("frame member lookup failed", "offset", off, "error", err)
		return "", false
	}
	return name, found
}

// AddFrameMember fails when the offset is already covered by a member or
// the name is taken within the frame.
func (d *DB) AddFrameMember(fn host.Address, off int64, name string, size int) error {
	if size <= 0 {
		return fmt.Errorf("member size %d", size)
	}
	var overlap bool
	_, err := d.queryRow(`SELECT 1 FROM frame_members WHERE func = ? AND off < ? AND ? < off + size`,
		[]any{int64(fn), off + int64(size), off}, func(*sqlite.Stmt) { overlap = true })
	if err != nil {
		return err
	}
	if overlap {
		return fmt.Errorf("frame offset %d of %s already in use", off, fn)
	}
	if err := d.exec(`INSERT INTO frame_members (func, off, name, size) VALUES (?, ?, ?, ?)`,
		int64(fn), off, name, int64(size)); err != nil {
		return fmt.Errorf("add frame member %q: %w", name, err)
	}
	return nil
}

func (d *DB) RenameFrameMember(fn host.Address, off int64, name string) error {
	if err := d.exec(`UPDATE frame_members SET name = ? WHERE func = ? AND off = ?`, name, int64(fn), off); err != nil {
		return fmt.Errorf("rename frame member at %d: %w", off, err)
	}
	if d.conn.Changes() == 0 {
		return fmt.Errorf("frame member at %d of %s: %w", off, fn, ErrNotFound)
	}
	return nil
}

func (d *DB) Association(fn host.Address, key string) (string, bool) {
	var value string
	found, err := d.queryRow(`SELECT value FROM associations WHERE func = ? AND key = ?`,
		[]any{int64(fn), key}, func(stmt *sqlite.Stmt) { value = stmt.ColumnText(0) })
	if err != nil {
		logger.Func(fn).Error("association lookup failed", "key", key, "error", err)
		return "", false
	}
	return value, found
}

func (d *DB) SetAssociation(fn host.Address, key, value string) error {
	return d.exec(`INSERT OR REPLACE INTO associations (func, key, value) VALUES (?, ?, ?)`, int64(fn), key, value)
}

// Segment is a named address range with permission bits.
type Segment struct {
	Start host.Address
	End   host.Address
	Name  string
	Perm  int
}

func (d *DB) AddSegment(seg Segment) error {
	return d.exec(`INSERT OR REPLACE INTO segments (start_ea, end_ea, name, perm) VALUES (?, ?, ?, ?)`,
		int64(seg.Start), int64(seg.End), seg.Name, int64(seg.Perm))
}

func (d *DB) segmentAt(addr host.Address) (Segment, bool) {
	var seg Segment
	found, err := d.queryRow(`SELECT start_ea, end_ea, name, perm FROM segments
WHERE start_ea <= ? AND ? < end_ea ORDER BY start_ea DESC LIMIT 1`,
		[]any{int64(addr), int64(addr)}, func(stmt *sqlite.Stmt) {
			seg = Segment{
				Start: host.Address(stmt.ColumnInt64(0)),
				End:   host.Address(stmt.ColumnInt64(1)),
				Name:  stmt.ColumnText(2),
				Perm:  int(stmt.ColumnInt64(3)),
			}
		})
	if err != nil {
		logger.Error("segment lookup failed", "addr", addr.String(), "error", err)
		return Segment{}, false
	}
	return seg, found
}

func (d *DB) IsExtern(addr host.Address) bool {
	seg, ok := d.segmentAt(addr)
	return ok && seg.Name == "extern"
}

func (d *DB) IsReadOnly(addr host.Address) bool {
	seg, ok := d.segmentAt(addr)
	return ok && seg.ReadOnly()
}

// ReadOnly reports whether the segment lacks write permission or has a
// name that conventionally marks read-only data.
func (s Segment) ReadOnly() bool {
	if s.Perm&PermWrite == 0 {
		return true
	}
	for _, marker := range []string{"got", "rodata", "rdata", "idata"} {
		if idx := strings.Index(s.Name, marker); idx >= 0 && idx <= 1 {
			return true
		}
	}
	return strings.Contains(s.Name, "rel.ro")
}

func (d *DB) State(key string) (string, bool, error) {
	var value string
	found, err := d.queryRow(`SELECT value FROM state WHERE key = ?`, []any{key},
		func(stmt *sqlite.Stmt) { value = stmt.ColumnText(0) })
	return value, found, err
}

func (d *DB) SetState(key, value string) error {
	return d.exec(`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value)
}

func (d *DB) ScreenAddress() host.Address {
	value, ok, err := d.State(screenKey)
	if err != nil || !ok {
		return host.BadAddress
	}
	addr, err := host.ParseAddress(value)
	if err != nil {
		return host.BadAddress
	}
	return addr
}

func (d *DB) SetScreenAddress(addr host.Address) error {
	return d.SetState(screenKey, addr.String())
}
