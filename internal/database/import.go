package database

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
)

// Project is the TOML description a database can be seeded from.
type Project struct {
	Functions []ProjectFunction `toml:"function"`
	Names     []ProjectName     `toml:"name"`
	Segments  []ProjectSegment  `toml:"segment"`
	Members   []ProjectMember   `toml:"member"`
}

type ProjectFunction struct {
	Start         uint64 `toml:"start"`
	End           uint64 `toml:"end"`
	Name          string `toml:"name"`
	FrameRegs     int64  `toml:"frame-regs"`
	RetAddrOffset int64  `toml:"retaddr-offset"`
	Library       bool   `toml:"library"`
	Thunk         bool   `toml:"thunk"`
}

type ProjectName struct {
	Addr  uint64 `toml:"addr"`
	Name  string `toml:"name"`
	Scope uint64 `toml:"scope"` // function start, 0 for global
}

type ProjectSegment struct {
	Start uint64 `toml:"start"`
	End   uint64 `toml:"end"`
	Name  string `toml:"name"`
	Perm  string `toml:"perm"` // e.g. "r-x"
}

type ProjectMember struct {
	Function uint64 `toml:"function"`
	Offset   int64  `toml:"offset"`
	Name     string `toml:"name"`
	Size     int    `toml:"size"`
}

// Summary counts what an import wrote.
type Summary struct {
	Functions int
	Names     int
	Segments  int
	Members   int
}

func LoadProject(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, err
	}
	var p Project
	if _, err := toml.Decode(string(data), &p); err != nil {
		return Project{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

// Import writes a project into the database in one transaction.
func (d *DB) Import(p Project) (sum Summary, err error) {
	endFn, err := sqlitex.ImmediateTransaction(d.conn)
	if err != nil {
		return Summary{}, fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	for _, seg := range p.Segments {
		perm, err := ParsePerm(seg.Perm)
		if err != nil {
			return sum, fmt.Errorf("segment %s: %w", seg.Name, err)
		}
		if err := d.AddSegment(Segment{Start: host.Address(seg.Start), End: host.Address(seg.End), Name: seg.Name, Perm: perm}); err != nil {
			return sum, fmt.Errorf("segment %s: %w", seg.Name, err)
		}
		sum.Segments++
	}
	for _, pf := range p.Functions {
		if pf.End <= pf.Start {
			return sum, fmt.Errorf("function %s: end 0x%x before start 0x%x", pf.Name, pf.End, pf.Start)
		}
		fn := host.Function{
			Start:         host.Address(pf.Start),
			End:           host.Address(pf.End),
			Name:          pf.Name,
			FrameRegs:     pf.FrameRegs,
			RetAddrOffset: pf.RetAddrOffset,
		}
		if pf.Library {
			fn.Flags |= host.FuncLib
		}
		if pf.Thunk {
			fn.Flags |= host.FuncThunk
		}
		if err := d.AddFunction(fn); err != nil {
			return sum, err
		}
		sum.Functions++
	}
	for _, n := range p.Names {
		if n.Scope != 0 {
			err = d.SetLocalName(host.Address(n.Scope), host.Address(n.Addr), n.Name)
		} else {
			err = d.SetName(host.Address(n.Addr), n.Name)
		}
		if err != nil {
			return sum, fmt.Errorf("name %s: %w", n.Name, err)
		}
		sum.Names++
	}
	for _, m := range p.Members {
		size := m.Size
		if size == 0 {
			size = 1
		}
		if err := d.AddFrameMember(host.Address(m.Function), m.Offset, m.Name, size); err != nil {
			return sum, fmt.Errorf("member %s: %w", m.Name, err)
		}
		sum.Members++
	}
	logger.Info("project imported", "functions", sum.Functions, "names", sum.Names, "segments", sum.Segments, "members", sum.Members)
	return sum, nil
}

// ParsePerm reads permissions written as any combination of r, w, x and -.
func ParsePerm(s string) (int, error) {
	perm := 0
	for _, c := range s {
		switch c {
		case 'r':
			perm |= PermRead
		case 'w':
			perm |= PermWrite
		case 'x':
			perm |= PermExec
		case '-':
		default:
			return 0, fmt.Errorf("bad permission %q", s)
		}
	}
	return perm, nil
}
