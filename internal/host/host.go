package host

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Address is a location in the analysed program.
type Address uint64

// BadAddress marks an unresolved address.
const BadAddress Address = math.MaxUint64

func (a Address) String() string {
	if a == BadAddress {
		return "BADADDR"
	}
	return fmt.Sprintf("0x%x", uint64(a))
}

// ParseAddress reads an address the way the jump prompt accepts it: hex,
// with or without a 0x prefix.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "BADADDR" {
		return BadAddress, nil
	}
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return BadAddress, fmt.Errorf("bad address %q", s)
	}
	return Address(v), nil
}

// Function flags
const (
	FuncLib   uint32 = 1 << 0
	FuncThunk uint32 = 1 << 1
)

// Function describes the bounds and frame layout of one function.
type Function struct {
	Start Address
	End   Address
	Name  string
	// FrameRegs is the size of the saved-register area between locals and
	// the return address.
	FrameRegs int64
	// RetAddrOffset is the frame offset of the return address. Decompiler
	// stack offsets are measured backwards from it.
	RetAddrOffset int64
	Flags         uint32
}

// Contains reports whether addr falls inside [Start, End).
func (f Function) Contains(addr Address) bool {
	return addr >= f.Start && addr < f.End
}

// RenameOutcome is the result of the host's generic rename facility.
type RenameOutcome int

const (
	// RenameUnresolved means the old name is not associated with a symbol.
	RenameUnresolved RenameOutcome = iota - 1
	// RenameDuplicate means the new name is already in use.
	RenameDuplicate
	// RenameUnchanged means the prompt was cancelled or left unchanged.
	RenameUnchanged
	// Renamed means the symbol now carries the new name.
	Renamed
	// RenameFailed means the host refused the new name.
	RenameFailed
)

func (o RenameOutcome) String() string {
	switch o {
	case RenameUnresolved:
		return "unresolved"
	case RenameDuplicate:
		return "duplicate"
	case RenameUnchanged:
		return "unchanged"
	case Renamed:
		return "renamed"
	case RenameFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Names resolves symbols. A scope of BadAddress means the global namespace;
// any other scope also resolves names local to that function.
type Names interface {
	NameAddress(scope Address, name string) (Address, bool)
	NameAt(addr Address) (string, bool)
	SetName(addr Address, name string) error
}

// Functions looks up function boundaries.
type Functions interface {
	FunctionAt(addr Address) (Function, bool)
	IsFunctionStart(addr Address) bool
}

// Frames manages stack frame members by frame offset.
type Frames interface {
	FrameMember(fn Address, off int64) (string, bool)
	AddFrameMember(fn Address, off int64, name string, size int) error
	RenameFrameMember(fn Address, off int64, name string) error
}

// Associations is a per-function keyed string store.
type Associations interface {
	Association(fn Address, key string) (string, bool)
	SetAssociation(fn Address, key, value string) error
}

// Segments classifies regions of the program.
type Segments interface {
	IsExtern(addr Address) bool
	IsReadOnly(addr Address) bool
}

// Cursor is the host's notion of the current screen address.
type Cursor interface {
	ScreenAddress() Address
	SetScreenAddress(addr Address) error
}

// Database is everything the workbench consumes from the analysis database.
type Database interface {
	Names
	Functions
	Frames
	Associations
	Segments
	Cursor
	// FunctionNames lists the names of all known functions.
	FunctionNames() []string
}

// Prompter asks the user for input. Returning ok == false means cancelled.
type Prompter interface {
	AskString(label, initial string) (string, bool)
	AskAddress(label string) (string, bool)
}
