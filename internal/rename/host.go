package rename

import (
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
)

// HostRenamer renames database symbols the way the host's own rename
// command does: resolve, prompt, refuse duplicates, store.
type HostRenamer struct {
	Names  host.Names
	Prompt host.Prompter
}

// Rename resolves from in scope, then globally. The new name is a duplicate
// when it already resolves in scope or globally, or when taken says so.
func (r HostRenamer) Rename(scope host.Address, from string, taken func(name string) bool) (host.RenameOutcome, string) {
	addr, ok := r.Names.NameAddress(scope, from)
	if !ok {
		return host.RenameUnresolved, ""
	}
	to, ok := r.Prompt.AskString(promptLabel, from)
	if !ok || to == "" || to == from {
		return host.RenameUnchanged, ""
	}
	if _, ok := r.Names.NameAddress(scope, to); ok {
		return host.RenameDuplicate, to
	}
	if taken != nil && taken(to) {
		return host.RenameDuplicate, to
	}
	if err := r.Names.SetName(addr, to); err != nil {
		logger.Warn("set name failed", "addr", addr.String(), "name", to, "error", err)
		return host.RenameFailed, to
	}
	return host.Renamed, to
}
