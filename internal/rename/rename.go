package rename

import (
	"fmt"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
	"github.com/kobzarvs/qdecomp/internal/namesync"
	"github.com/kobzarvs/qdecomp/internal/session"
)

const promptLabel = "Please enter item name"

// Database is the part of the host database renames touch.
type Database interface {
	host.Names
	host.Frames
	host.Associations
}

// Renamer is the host's generic rename facility for symbols that are not
// tracked locals. It prompts on its own and returns the new name when the
// outcome is host.Renamed. A new name for which taken reports true is a
// duplicate.
type Renamer interface {
	Rename(scope host.Address, from string, taken func(name string) bool) (host.RenameOutcome, string)
}

// Orchestrator renames identifiers in a session and keeps the database,
// name table and tree in step.
type Orchestrator struct {
	db      Database
	prompt  host.Prompter
	generic Renamer
}

func NewOrchestrator(db Database, prompt host.Prompter, generic Renamer) *Orchestrator {
	return &Orchestrator{db: db, prompt: prompt, generic: generic}
}

// Rename renames the identifier token in sess. Every outcome other than
// OutcomeRenamed leaves the session, its table and the database untouched.
// A successful rename marks the session dirty.
func (o *Orchestrator) Rename(sess *session.Session, token string) Result {
	res := Result{From: token}
	if ast.IsReserved(token) {
		res.Outcome, res.Reason = OutcomeRejected, ReasonReserved
		return res
	}
	if entry, ok := sess.Names().Lookup(token); ok {
		return o.renameLocal(sess, entry, res)
	}
	return o.renameGlobal(sess, res)
}

func (o *Orchestrator) renameLocal(sess *session.Session, entry *namesync.Entry, res Result) Result {
	to, ok := o.prompt.AskString(promptLabel, entry.Display)
	if !ok || to == "" || to == entry.Display {
		res.Outcome = OutcomeUnchanged
		return res
	}
	res.To = to
	if reason := o.validate(sess, to); reason != ReasonNone {
		logger.Debug("rename rejected", "from", res.From, "to", to, "reason", reason.String())
		res.Outcome, res.Reason = OutcomeRejected, reason
		return res
	}

	fn := sess.Function()
	if err := o.persist(fn, entry, to); err != nil {
		logger.Func(fn.Start).Warn("rename not persisted", "from", res.From, "to", to, "error", err)
		res.Outcome, res.Err = OutcomePersistFailed, err
		return res
	}
	entry.Persisted = true
	if err := sess.Names().Rekey(entry.Display, to); err != nil {
		// validate ruled this out
		logger.Error("rekey after persist", "error", err)
	}
	sess.Tree().Rename(res.From, to)
	sess.MarkDirty()
	res.Outcome = OutcomeRenamed
	return res
}

func (o *Orchestrator) validate(sess *session.Session, to string) Reason {
	switch {
	case ast.IsReserved(to):
		return ReasonReserved
	case !isIdentifier(to):
		return ReasonInvalid
	case sess.Names().Has(to):
		return ReasonLocalInUse
	}
	if _, ok := o.db.NameAddress(sess.Function().Start, to); ok {
		return ReasonGlobalInUse
	}
	if sess.Tree().Occurrences(to) > 0 {
		return ReasonLocalInUse
	}
	return ReasonNone
}

// persist stores the new display name. Stack entries rename their frame
// member; an entry whose placeholder was never created has none, so the
// rename fails. Register entries are associations keyed by their native
// name.
func (o *Orchestrator) persist(fn host.Function, entry *namesync.Entry, to string) error {
	switch entry.Storage {
	case namesync.StorageStack:
		if err := o.db.RenameFrameMember(fn.Start, entry.Offset, to); err != nil {
			return fmt.Errorf("rename frame member at %d: %w", entry.Offset, err)
		}
		return nil
	default:
		if err := o.db.SetAssociation(fn.Start, entry.Native, to); err != nil {
			return fmt.Errorf("associate %s: %w", entry.Native, err)
		}
		return nil
	}
}

func (o *Orchestrator) renameGlobal(sess *session.Session, res Result) Result {
	taken := func(name string) bool { return localTaken(sess, name) }
	outcome, to := o.generic.Rename(sess.Function().Start, res.From, taken)
	res.To = to
	switch outcome {
	case host.Renamed:
		sess.Tree().Rename(res.From, to)
		sess.MarkDirty()
		res.Outcome = OutcomeRenamed
	case host.RenameUnresolved:
		res.Outcome, res.Reason = OutcomeRejected, ReasonUnresolved
	case host.RenameDuplicate:
		res.Outcome, res.Reason = OutcomeRejected, ReasonGlobalInUse
		if localTaken(sess, to) {
			res.Reason = ReasonLocalInUse
		}
	case host.RenameFailed:
		res.Outcome, res.Err = OutcomePersistFailed, fmt.Errorf("host refused %q", to)
	default:
		res.Outcome = OutcomeUnchanged
	}
	logger.Debug("generic rename", "from", res.From, "to", to, "outcome", outcome.String())
	return res
}

// localTaken reports whether name is a display name of sess or already
// appears in its tree. A global renamed onto it would merge two identities.
func localTaken(sess *session.Session, name string) bool {
	return sess.Names().Has(name) || sess.Tree().Occurrences(name) > 0
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}
