// Package workbench turns terminal events into session operations: it
// resolves the word under the cursor or pointer and dispatches keymap
// commands to navigation and rename.
package workbench

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/config"
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
	"github.com/kobzarvs/qdecomp/internal/rename"
	"github.com/kobzarvs/qdecomp/internal/session"
	"github.com/kobzarvs/qdecomp/internal/view"
)

// Commands bound in the view keymap. Anything else is tried as a cursor
// motion.
const (
	CmdJump     = "jump"
	CmdRename   = "rename"
	CmdSetType  = "set_type"
	CmdComment  = "comment"
	CmdBack     = "back"
	CmdNavigate = "navigate"
	CmdOpen     = "open"
	CmdNextView = "next_view"
	CmdPrevView = "prev_view"
	CmdQuit     = "quit"
)

const jumpLabel = "Jump address"

// Renamer renames the identifier token in a session.
type Renamer interface {
	Rename(sess *session.Session, token string) rename.Result
}

// Deps are the collaborators a Workbench drives.
type Deps struct {
	DB        host.Database
	Store     *session.Store
	Renamer   Renamer
	Prompt    host.Prompter
	Highlight view.Highlighter
	// States is optional; without it views always open at the top.
	States *session.Manager
}

type point struct{ x, y int }

// pane is one open view and the session it shows.
type pane struct {
	id   session.ID
	fn   host.Address
	view *view.View
}

type Workbench struct {
	cfg     config.Config
	db      host.Database
	store   *session.Store
	renamer Renamer
	prompt  host.Prompter
	hl      view.Highlighter
	states  *session.Manager
	keymap  map[string]string

	panes  []*pane
	active int
	empty  *view.View
	quit   bool

	now        func() time.Time
	buttonDown bool
	lastPress  time.Time
	lastCell   point
}

func New(cfg config.Config, deps Deps) *Workbench {
	keymap := make(map[string]string, len(cfg.Keymap.View))
	for k, v := range cfg.Keymap.View {
		keymap[k] = v
	}
	w := &Workbench{
		cfg:     cfg,
		db:      deps.DB,
		store:   deps.Store,
		renamer: deps.Renamer,
		prompt:  deps.Prompt,
		hl:      deps.Highlight,
		states:  deps.States,
		keymap:  keymap,
		now:     time.Now,
	}
	w.empty = view.New("", cfg, nil)
	w.empty.SetLines([]string{
		"No decompiled views are open.",
		"",
		w.describe(CmdOpen) + " decompiles the function at the current address.",
		w.describe(CmdJump) + " jumps to an address or name.",
		w.describe(CmdQuit) + " quits.",
	})
	return w
}

// describe names the key bound to cmd.
func (w *Workbench) describe(cmd string) string {
	var keys []string
	for k, v := range w.keymap {
		if v == cmd {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return cmd
	}
	sort.Strings(keys)
	return strings.ToUpper(keys[0][:1]) + keys[0][1:]
}

// Quit reports whether the quit command was given.
func (w *Workbench) Quit() bool { return w.quit }

// Len returns the number of open views.
func (w *Workbench) Len() int { return len(w.panes) }

func (w *Workbench) activePane() *pane {
	if len(w.panes) == 0 {
		return nil
	}
	return w.panes[w.active]
}

// ActiveView returns the focused view, or nil when none is open.
func (w *Workbench) ActiveView() *view.View {
	if p := w.activePane(); p != nil {
		return p.view
	}
	return nil
}

// ActiveSession returns the session behind the focused view.
func (w *Workbench) ActiveSession() (*session.Session, bool) {
	p := w.activePane()
	if p == nil {
		return nil, false
	}
	sess, err := w.store.Get(p.id)
	if err != nil {
		return nil, false
	}
	return sess, true
}

// Message returns the text on the prompt line.
func (w *Workbench) Message() string {
	if v := w.ActiveView(); v != nil {
		return v.Message()
	}
	return w.empty.Message()
}

func (w *Workbench) SetMessage(msg string) {
	if v := w.ActiveView(); v != nil {
		v.SetMessage(msg)
		return
	}
	w.empty.SetMessage(msg)
}

// Open decompiles the function containing addr into a new view and focuses
// it.
func (w *Workbench) Open(ctx context.Context, addr host.Address) error {
	sess, err := w.store.Open(ctx, addr)
	if err != nil {
		w.SetMessage(fmt.Sprintf("cannot decompile at %s: %v", addr, err))
		return err
	}
	p := &pane{id: sess.ID(), view: view.New(sess.ID().String(), w.cfg, w.hl)}
	w.panes = append(w.panes, p)
	w.active = len(w.panes) - 1
	w.display(p, sess)
	return nil
}

// OpenTarget opens a view for text read as a name or a hex address.
func (w *Workbench) OpenTarget(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	addr, ok := w.resolve(text)
	if !ok {
		w.SetMessage(w.unknown(text))
		return fmt.Errorf("unknown name %q", text)
	}
	return w.Open(ctx, addr)
}

// display shows the session's current function in p, restoring the cursor
// saved for that function.
func (w *Workbench) display(p *pane, sess *session.Session) {
	fn := sess.Function()
	p.fn = fn.Start
	p.view.SetTitle(sess.Title(), w.functionName(fn))
	p.view.SetLines(sess.Render())
	if w.states != nil {
		if st, ok := w.states.ViewState(fn.Start); ok {
			p.view.SetCursor(st.CursorRow, st.CursorCol)
			p.view.SetScroll(st.ScrollY, st.ScrollX)
			return
		}
	}
	p.view.SetCursor(0, 0)
	p.view.SetScroll(0, 0)
}

func (w *Workbench) functionName(fn host.Function) string {
	if name, ok := w.db.NameAt(fn.Start); ok {
		return name
	}
	return fn.Name
}

func (w *Workbench) remember(p *pane) {
	if w.states == nil {
		return
	}
	cur := p.view.Cursor()
	scrollY, scrollX := p.view.Scroll()
	w.states.SetViewState(p.fn, session.ViewState{
		CursorRow: cur.Row,
		CursorCol: cur.Col,
		ScrollY:   scrollY,
		ScrollX:   scrollX,
	})
}

// SaveState records the position of every open view, the focused one last.
func (w *Workbench) SaveState() {
	for i, p := range w.panes {
		if i != w.active {
			w.remember(p)
		}
	}
	if p := w.activePane(); p != nil {
		w.remember(p)
	}
}

func (w *Workbench) closePane(p *pane) {
	for i, other := range w.panes {
		if other != p {
			continue
		}
		w.panes = append(w.panes[:i], w.panes[i+1:]...)
		if w.active >= len(w.panes) {
			w.active = len(w.panes) - 1
		}
		if w.active < 0 {
			w.active = 0
		}
		break
	}
	if f, ok := w.hl.(interface{ Forget(key string) }); ok {
		f.Forget(p.view.Key())
	}
}

// HandleKey dispatches a key through the view keymap. It reports whether
// the key was consumed.
func (w *Workbench) HandleKey(ctx context.Context, ev *tcell.EventKey) bool {
	key := view.KeyString(ev)
	cmd, ok := w.keymap[key]
	if !ok {
		logger.Debug("unbound key", "key", key)
		return false
	}
	w.SetMessage("")
	return w.Dispatch(ctx, cmd)
}

// Dispatch runs one keymap command against the focused view.
func (w *Workbench) Dispatch(ctx context.Context, cmd string) bool {
	switch cmd {
	case CmdJump:
		return w.jump(ctx)
	case CmdRename:
		return w.rename()
	case CmdSetType, CmdComment:
		return w.stub(cmd)
	case CmdBack:
		return w.back(ctx)
	case CmdNavigate:
		p := w.activePane()
		if p == nil {
			return false
		}
		cur := p.view.Cursor()
		word, ok := WordAt(p.view.Line(cur.Row), cur.Col)
		if !ok {
			return false
		}
		return w.navigate(ctx, p, word)
	case CmdOpen:
		_ = w.Open(ctx, w.db.ScreenAddress())
		return true
	case CmdNextView:
		return w.cycle(1)
	case CmdPrevView:
		return w.cycle(-1)
	case CmdQuit:
		w.quit = true
		return true
	}
	if p := w.activePane(); p != nil {
		return p.view.HandleAction(cmd)
	}
	return false
}

func (w *Workbench) cycle(step int) bool {
	if len(w.panes) < 2 {
		return len(w.panes) == 1
	}
	w.active = (w.active + step + len(w.panes)) % len(w.panes)
	return true
}

// stub consumes commands that exist but do nothing yet.
func (w *Workbench) stub(cmd string) bool {
	p := w.activePane()
	if p == nil {
		return false
	}
	cur := p.view.Cursor()
	word, _ := WordAt(p.view.Line(cur.Row), cur.Col)
	logger.Debug("command not implemented", "command", cmd, "row", cur.Row, "word", word)
	return true
}

func (w *Workbench) jump(ctx context.Context) bool {
	text, ok := w.prompt.AskAddress(jumpLabel)
	if !ok {
		return true
	}
	text = strings.TrimSpace(text)
	addr, ok := w.resolve(text)
	if !ok {
		w.SetMessage(w.unknown(text))
		return true
	}
	fn, ok := w.db.FunctionAt(addr)
	if !ok {
		w.SetMessage(fmt.Sprintf("%s is not inside a function", addr))
		return true
	}
	p := w.activePane()
	if p == nil {
		_ = w.Open(ctx, fn.Start)
		return true
	}
	w.drill(ctx, p, fn.Start)
	return true
}

// resolve reads jump input as a name first, then as a hex address.
func (w *Workbench) resolve(text string) (host.Address, bool) {
	if text == "" {
		return host.BadAddress, false
	}
	if addr, ok := w.db.NameAddress(host.BadAddress, text); ok {
		return addr, true
	}
	addr, err := host.ParseAddress(text)
	if err != nil || addr == host.BadAddress {
		return host.BadAddress, false
	}
	return addr, true
}

func (w *Workbench) drill(ctx context.Context, p *pane, addr host.Address) {
	w.remember(p)
	moved, err := w.store.Drill(ctx, p.id, addr)
	if err != nil {
		logger.Warn("drill failed", "addr", addr.String(), "error", err)
		w.SetMessage(fmt.Sprintf("cannot decompile at %s: %v", addr, err))
		return
	}
	if !moved {
		return
	}
	sess, err := w.store.Get(p.id)
	if err != nil {
		return
	}
	w.display(p, sess)
}

// navigate follows word: function starts drill into the view, any other
// named address moves the database cursor.
func (w *Workbench) navigate(ctx context.Context, p *pane, word string) bool {
	addr, ok := w.db.NameAddress(host.BadAddress, word)
	if !ok {
		if w.suggestible(p, word) {
			w.SetMessage(w.unknown(word))
		}
		return false
	}
	if w.db.IsFunctionStart(addr) && !w.db.IsExtern(addr) {
		w.drill(ctx, p, addr)
		return true
	}
	if err := w.db.SetScreenAddress(addr); err != nil {
		logger.Warn("set screen address failed", "addr", addr.String(), "error", err)
		w.SetMessage(fmt.Sprintf("cannot jump to %s: %v", word, err))
		return true
	}
	w.SetMessage(fmt.Sprintf("%s is at %s", word, addr))
	return true
}

// suggestible excludes words that are never global names: locals of the
// session, keywords and numbers.
func (w *Workbench) suggestible(p *pane, word string) bool {
	if ast.IsReserved(word) || (word[0] >= '0' && word[0] <= '9') {
		return false
	}
	sess, err := w.store.Get(p.id)
	if err != nil {
		return false
	}
	if sess.Names().Has(word) {
		return false
	}
	for _, param := range sess.Tree().Prototype.Params {
		if param.Name == word {
			return false
		}
	}
	return true
}

func (w *Workbench) unknown(word string) string {
	if best := w.Suggest(word); best != "" {
		return fmt.Sprintf("unknown name %s, did you mean %s?", word, best)
	}
	return fmt.Sprintf("unknown name %s", word)
}

// Complete ranks function names that fuzzily contain text.
func (w *Workbench) Complete(text string) []string {
	ranks := fuzzy.RankFindNormalizedFold(strings.TrimSpace(text), w.db.FunctionNames())
	sort.Stable(ranks)
	out := make([]string, len(ranks))
	for i, rank := range ranks {
		out[i] = rank.Target
	}
	return out
}

// Suggest returns the function name closest to word, or "".
func (w *Workbench) Suggest(word string) string {
	if matches := w.Complete(word); len(matches) > 0 {
		return matches[0]
	}
	best := ""
	bestDistance := len(word)/2 + 1
	for _, name := range w.db.FunctionNames() {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(word), strings.ToLower(name)); d < bestDistance {
			best, bestDistance = name, d
		}
	}
	return best
}

func (w *Workbench) rename() bool {
	p := w.activePane()
	if p == nil {
		return false
	}
	cur := p.view.Cursor()
	word, ok := WordAt(p.view.Line(cur.Row), cur.Col)
	if !ok {
		return true
	}
	sess, err := w.store.Get(p.id)
	if err != nil {
		return false
	}
	res := w.renamer.Rename(sess, word)
	logger.Debug("rename", "from", res.From, "to", res.To, "outcome", res.Outcome.String(), "reason", res.Reason.String())
	if sess.Dirty() {
		p.view.SetTitle(sess.Title(), w.functionName(sess.Function()))
		p.view.SetLines(sess.Render())
	}
	if msg := res.Message(); msg != "" {
		p.view.SetMessage(msg)
	}
	return true
}

func (w *Workbench) back(ctx context.Context) bool {
	p := w.activePane()
	if p == nil {
		return false
	}
	w.remember(p)
	closed, err := w.store.Back(ctx, p.id)
	if err != nil {
		logger.Warn("back failed", "error", err)
		p.view.SetMessage(fmt.Sprintf("cannot go back: %v", err))
		return true
	}
	if closed {
		w.closePane(p)
		return true
	}
	sess, err := w.store.Get(p.id)
	if err != nil {
		return true
	}
	w.display(p, sess)
	return true
}

// HandleMouse scrolls on the wheel, moves the cursor on a primary press
// and navigates on a double click.
func (w *Workbench) HandleMouse(ctx context.Context, ev *tcell.EventMouse) bool {
	p := w.activePane()
	if p == nil {
		return false
	}
	buttons := ev.Buttons()
	switch {
	case buttons&tcell.WheelUp != 0:
		p.view.ScrollBy(-3)
		return true
	case buttons&tcell.WheelDown != 0:
		p.view.ScrollBy(3)
		return true
	}
	pressed := buttons&tcell.Button1 != 0
	wasDown := w.buttonDown
	w.buttonDown = pressed
	if !pressed || wasDown {
		return false
	}
	x, y := ev.Position()
	pos, ok := p.view.CellAt(x, y)
	if !ok {
		return false
	}
	p.view.Click(x, y)

	now := w.now()
	cell := point{x, y}
	double := !w.lastPress.IsZero() && cell == w.lastCell && now.Sub(w.lastPress) <= w.cfg.View.DoubleClick()
	w.lastCell = cell
	w.lastPress = now
	if !double {
		return true
	}
	w.lastPress = time.Time{}
	if word, ok := WordAt(p.view.Line(pos.Row), pos.Col); ok {
		w.navigate(ctx, p, word)
	}
	return true
}

// Render draws the focused view, marking the word under its cursor.
func (w *Workbench) Render(s tcell.Screen) {
	p := w.activePane()
	if p == nil {
		w.empty.Render(s)
		return
	}
	cur := p.view.Cursor()
	word, _ := WordAt(p.view.Line(cur.Row), cur.Col)
	p.view.SetMarkedWord(word)
	p.view.Render(s)
}
