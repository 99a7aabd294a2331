package workbench

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/config"
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/rename"
	"github.com/kobzarvs/qdecomp/internal/session"
	"github.com/kobzarvs/qdecomp/internal/testutil"
	"github.com/kobzarvs/qdecomp/internal/view"
)

var (
	fnMain = host.Function{Start: 0x1000, End: 0x1100, Name: "main", FrameRegs: 4, RetAddrOffset: 0x20}
	fnWork = host.Function{Start: 0x2000, End: 0x2100, Name: "work", FrameRegs: 4, RetAddrOffset: 0x20}
	fnTypo = host.Function{Start: 0x3000, End: 0x3100, Name: "typo", FrameRegs: 4, RetAddrOffset: 0x20}
	fnPuts = host.Function{Start: 0x5000, End: 0x5008, Name: "puts"}
)

type fixture struct {
	db     *testutil.DB
	dec    *testutil.Decompiler
	prompt *testutil.Prompter
	store  *session.Store
	states testutil.States
	wb     *Workbench
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB()
	dec := testutil.NewDecompiler()
	for _, fn := range []host.Function{fnMain, fnWork, fnTypo, fnPuts} {
		db.AddFunction(fn)
	}
	db.Segments = []testutil.Segment{{Start: 0x5000, End: 0x5100, Name: "extern", Extern: true}}
	db.Globals["printf"] = 0x7000
	dec.Trees[fnMain.Start] = func() *ast.Function { return testutil.LocalsTree("main") }
	dec.Trees[fnWork.Start] = func() *ast.Function { return testutil.CallerTree("work", "main") }
	dec.Trees[fnTypo.Start] = func() *ast.Function { return testutil.CallerTree("typo", "mian") }
	prompt := &testutil.Prompter{}
	store := session.NewStore(db, dec)
	states := testutil.States{}
	f := &fixture{db: db, dec: dec, prompt: prompt, store: store, states: states}
	f.wb = New(config.Default(), Deps{
		DB:      db,
		Store:   store,
		Renamer: rename.NewOrchestrator(db, prompt, rename.HostRenamer{Names: db, Prompt: prompt}),
		Prompt:  prompt,
		States:  session.NewManager(states),
	})
	f.clock = time.Unix(1000, 0)
	f.wb.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) open(t *testing.T, addr host.Address) *view.View {
	t.Helper()
	if err := f.wb.Open(context.Background(), addr); err != nil {
		t.Fatalf("open %s: %v", addr, err)
	}
	return f.wb.ActiveView()
}

func (f *fixture) key(k tcell.Key, r rune) bool {
	return f.wb.HandleKey(context.Background(), tcell.NewEventKey(k, r, tcell.ModNone))
}

func (f *fixture) press(x, y int) bool {
	ctx := context.Background()
	consumed := f.wb.HandleMouse(ctx, tcell.NewEventMouse(x, y, tcell.Button1, tcell.ModNone))
	f.wb.HandleMouse(ctx, tcell.NewEventMouse(x, y, tcell.ButtonNone, tcell.ModNone))
	return consumed
}

func TestWordAt(t *testing.T) {
	line := "  iVar1 = main();"
	cases := []struct {
		col  int
		want string
		ok   bool
	}{
		{2, "iVar1", true},
		{6, "iVar1", true},
		{11, "main", true},
		{7, "", false},
		{14, "", false},
		{-1, "", false},
		{len(line), "", false},
	}
	for _, tc := range cases {
		got, ok := WordAt(line, tc.col)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("WordAt(%d) = %q, %v; want %q, %v", tc.col, got, ok, tc.want, tc.ok)
		}
	}
	if got, _ := WordAt("a_b9+x", 3); got != "a_b9" {
		t.Fatalf("WordAt = %q, want a_b9", got)
	}
}

func TestOpenAtScreenAddress(t *testing.T) {
	f := newFixture(t)
	f.db.Screen = fnWork.Start + 8
	if !f.key(tcell.KeyF3, 0) {
		t.Fatalf("f3 not consumed")
	}
	v := f.wb.ActiveView()
	if v == nil {
		t.Fatalf("no view opened")
	}
	if v.Title() != "A" || v.Function() != "work" || v.Caption() != "Ghidra code - A" {
		t.Fatalf("view = %q %q %q", v.Title(), v.Function(), v.Caption())
	}
	if got := v.Line(5); got != "  iVar1 = main();" {
		t.Fatalf("line 5 = %q", got)
	}
}

func TestOpenFailureKeepsWorkbenchEmpty(t *testing.T) {
	f := newFixture(t)
	f.dec.Fail[fnMain.Start] = true
	if err := f.wb.Open(context.Background(), fnMain.Start); err == nil {
		t.Fatalf("open succeeded")
	}
	if f.wb.Len() != 0 || f.store.Titles().Len() != 0 {
		t.Fatalf("failed open left %d views", f.wb.Len())
	}
	if !strings.Contains(f.wb.Message(), "cannot decompile") {
		t.Fatalf("message = %q", f.wb.Message())
	}
}

func TestNavigateDrillAndBack(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnWork.Start)
	v.SetCursor(5, 11)

	if !f.key(tcell.KeyEnter, 0) {
		t.Fatalf("enter on a function not consumed")
	}
	if got := v.Line(0); got != "int main(int param_1)" {
		t.Fatalf("after drill line 0 = %q", got)
	}
	if v.Function() != "main" || v.Title() != "A" {
		t.Fatalf("view = %q %q", v.Function(), v.Title())
	}
	if v.Cursor() != (view.Cursor{}) {
		t.Fatalf("cursor = %+v, want top", v.Cursor())
	}
	sess, _ := f.wb.ActiveSession()
	if sess.History().Len() != 2 {
		t.Fatalf("history len = %d, want 2", sess.History().Len())
	}

	// Already displayed: no decompilation, no push.
	calls := len(f.dec.Calls)
	v.SetCursor(0, 5)
	f.key(tcell.KeyEnter, 0)
	if len(f.dec.Calls) != calls || sess.History().Len() != 2 {
		t.Fatalf("drill into the displayed function was not skipped")
	}

	if !f.key(tcell.KeyEscape, 0) {
		t.Fatalf("esc not consumed")
	}
	if got := v.Line(0); got != "void work(void)" {
		t.Fatalf("after back line 0 = %q", got)
	}
	if v.Cursor() != (view.Cursor{Row: 5, Col: 11}) {
		t.Fatalf("cursor not restored: %+v", v.Cursor())
	}

	f.key(tcell.KeyEscape, 0)
	if f.wb.Len() != 0 || f.store.Len() != 0 || f.store.Titles().Len() != 0 {
		t.Fatalf("last back did not close: views=%d sessions=%d", f.wb.Len(), f.store.Len())
	}
	if f.key(tcell.KeyEscape, 0) {
		t.Fatalf("esc consumed with no views")
	}
}

func TestNavigatePlainJump(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnWork.Start)
	v.SetCursor(6, 3)
	if !f.key(tcell.KeyEnter, 0) {
		t.Fatalf("enter on data name not consumed")
	}
	if f.db.Screen != 0x7000 {
		t.Fatalf("screen = %s, want 0x7000", f.db.Screen)
	}
	sess, _ := f.wb.ActiveSession()
	if sess.History().Len() != 1 || v.Function() != "work" {
		t.Fatalf("plain jump touched the session")
	}
}

func TestNavigateExternFunctionIsPlainJump(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnMain.Start)
	v.SetCursor(8, 3)
	f.key(tcell.KeyEnter, 0)
	if f.db.Screen != fnPuts.Start {
		t.Fatalf("screen = %s, want %s", f.db.Screen, fnPuts.Start)
	}
	if v.Function() != "main" {
		t.Fatalf("extern function was drilled into")
	}
}

func TestNavigateUnresolved(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnTypo.Start)
	v.SetCursor(5, 11)
	if f.key(tcell.KeyEnter, 0) {
		t.Fatalf("unresolved word consumed")
	}
	if got := f.wb.Message(); got != "unknown name mian, did you mean main?" {
		t.Fatalf("message = %q", got)
	}

	v.SetCursor(3, 7)
	f.key(tcell.KeyEnter, 0)
	if got := f.wb.Message(); got != "" {
		t.Fatalf("local produced a suggestion: %q", got)
	}
	v.SetCursor(3, 1)
	if f.key(tcell.KeyEnter, 0) {
		t.Fatalf("enter off a word consumed")
	}
}

func TestJump(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnWork.Start)

	f.prompt.Answers = []string{"main"}
	if !f.key(tcell.KeyRune, 'G') {
		t.Fatalf("G not consumed")
	}
	if f.prompt.Labels[0] != "Jump address" {
		t.Fatalf("label = %q", f.prompt.Labels[0])
	}
	if v.Function() != "main" {
		t.Fatalf("jump by name did not decompile main")
	}

	f.prompt.Answers = []string{"0x2010"}
	f.key(tcell.KeyRune, 'G')
	if v.Function() != "work" {
		t.Fatalf("jump by address inside work shows %q", v.Function())
	}
	sess, _ := f.wb.ActiveSession()
	if sess.History().Len() != 3 {
		t.Fatalf("history len = %d, want 3", sess.History().Len())
	}

	f.prompt.Answers = []string{"nowhere"}
	f.key(tcell.KeyRune, 'G')
	if !strings.HasPrefix(f.wb.Message(), "unknown name nowhere") {
		t.Fatalf("message = %q", f.wb.Message())
	}

	f.prompt.Answers = []string{"0x9000"}
	f.key(tcell.KeyRune, 'G')
	if got := f.wb.Message(); got != "0x9000 is not inside a function" {
		t.Fatalf("message = %q", got)
	}

	if !f.key(tcell.KeyRune, 'G') {
		t.Fatalf("cancelled jump not consumed")
	}
	if v.Function() != "work" {
		t.Fatalf("cancelled jump changed the view")
	}
}

func TestJumpWithoutViewOpensOne(t *testing.T) {
	f := newFixture(t)
	f.prompt.Answers = []string{"work"}
	f.key(tcell.KeyRune, 'G')
	if f.wb.Len() != 1 || f.wb.ActiveView().Function() != "work" {
		t.Fatalf("jump without a view did not open one")
	}
}

func TestRenameFromCursor(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnMain.Start)
	if got := v.Line(3); got != "  int var_A;" {
		t.Fatalf("line 3 = %q", got)
	}
	v.SetCursor(3, 8)
	f.prompt.Answers = []string{"total"}
	if !f.key(tcell.KeyRune, 'N') {
		t.Fatalf("N not consumed")
	}
	if got := v.Line(3); got != "  int total;" {
		t.Fatalf("line 3 = %q", got)
	}
	if got := v.Line(6); got != "  total = param_1;" {
		t.Fatalf("line 6 = %q", got)
	}
	if got := f.wb.Message(); got != "renamed var_A to total" {
		t.Fatalf("message = %q", got)
	}

	before := v.Lines()
	f.prompt.Answers = []string{"int"}
	f.key(tcell.KeyRune, 'N')
	if !strings.Contains(f.wb.Message(), "reserved") {
		t.Fatalf("message = %q", f.wb.Message())
	}
	if testutil.Lines(v.Lines()) != testutil.Lines(before) {
		t.Fatalf("rejected rename changed the view")
	}
}

func TestRenameFunctionUpdatesStatus(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnMain.Start)
	v.SetCursor(0, 5)
	f.prompt.Answers = []string{"entry"}
	f.key(tcell.KeyRune, 'N')
	if got := v.Line(0); got != "int entry(int param_1)" {
		t.Fatalf("line 0 = %q", got)
	}
	if v.Function() != "entry" {
		t.Fatalf("status function = %q", v.Function())
	}
}

func TestStubsConsumeWithoutChanges(t *testing.T) {
	f := newFixture(t)
	if f.key(tcell.KeyRune, 'Y') {
		t.Fatalf("Y consumed with no views")
	}
	v := f.open(t, fnMain.Start)
	before := v.Lines()
	if !f.key(tcell.KeyRune, 'Y') || !f.key(tcell.KeyRune, '/') {
		t.Fatalf("stub commands not consumed")
	}
	if testutil.Lines(v.Lines()) != testutil.Lines(before) {
		t.Fatalf("stub changed the view")
	}
}

func TestUnboundKeysAndMotions(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnMain.Start)
	if f.key(tcell.KeyRune, 'z') {
		t.Fatalf("unbound key consumed")
	}
	if !f.key(tcell.KeyRune, 'j') || v.Cursor().Row != 1 {
		t.Fatalf("j did not move down: %+v", v.Cursor())
	}
	if !f.key(tcell.KeyCtrlC, 0) || !f.wb.Quit() {
		t.Fatalf("ctrl+c did not quit")
	}
}

func TestViewCycling(t *testing.T) {
	f := newFixture(t)
	f.open(t, fnMain.Start)
	f.open(t, fnWork.Start)
	if f.wb.ActiveView().Title() != "B" {
		t.Fatalf("second view title = %q", f.wb.ActiveView().Title())
	}
	f.key(tcell.KeyTab, 0)
	if f.wb.ActiveView().Title() != "A" {
		t.Fatalf("tab focused %q", f.wb.ActiveView().Title())
	}
	f.key(tcell.KeyBacktab, 0)
	if f.wb.ActiveView().Title() != "B" {
		t.Fatalf("shift+tab focused %q", f.wb.ActiveView().Title())
	}

	// Closing A frees its title for the next view.
	f.key(tcell.KeyTab, 0)
	f.key(tcell.KeyEscape, 0)
	if f.wb.Len() != 1 || f.wb.ActiveView().Title() != "B" {
		t.Fatalf("after closing A: %d views", f.wb.Len())
	}
	f.open(t, fnTypo.Start)
	if f.wb.ActiveView().Title() != "A" {
		t.Fatalf("title = %q, want A", f.wb.ActiveView().Title())
	}
}

func TestDoubleClickNavigates(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnWork.Start)
	// gutter is 4 cells; "main" starts at column 10 of line 5
	x, y := 4+11, 5

	if !f.press(x, y) {
		t.Fatalf("click not consumed")
	}
	if v.Cursor() != (view.Cursor{Row: 5, Col: 11}) || v.Function() != "work" {
		t.Fatalf("single click: cursor %+v, function %q", v.Cursor(), v.Function())
	}

	f.clock = f.clock.Add(time.Second)
	f.press(x, y)
	if v.Function() != "work" {
		t.Fatalf("slow second click navigated")
	}

	f.clock = f.clock.Add(100 * time.Millisecond)
	f.press(x, y)
	if v.Function() != "main" {
		t.Fatalf("double click did not navigate")
	}
}

func TestMouseWheelScrolls(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnMain.Start)
	f.wb.HandleMouse(context.Background(), tcell.NewEventMouse(0, 0, tcell.WheelDown, tcell.ModNone))
	if row, _ := v.Scroll(); row != 3 {
		t.Fatalf("scroll = %d, want 3", row)
	}
}

func TestSuggestAndComplete(t *testing.T) {
	f := newFixture(t)
	if got := f.wb.Suggest("mian"); got != "main" {
		t.Fatalf("Suggest(mian) = %q", got)
	}
	if got := f.wb.Suggest("zzzzzz"); got != "" {
		t.Fatalf("Suggest(zzzzzz) = %q", got)
	}
	got := f.wb.Complete("wk")
	if len(got) != 1 || got[0] != "work" {
		t.Fatalf("Complete(wk) = %v", got)
	}
}

func TestSaveStatePersistsPositions(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, fnMain.Start)
	v.SetCursor(6, 4)
	f.wb.SaveState()
	mgr := f.wb.states
	if err := mgr.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := session.NewManager(f.states)
	st, ok := reloaded.ViewState(fnMain.Start)
	if !ok || st.CursorRow != 6 || st.CursorCol != 4 {
		t.Fatalf("state = %+v, %v", st, ok)
	}
	if last, ok := reloaded.LastOpened(); !ok || last != fnMain.Start {
		t.Fatalf("last opened = %s, %v", last, ok)
	}
}

func TestRenderPlaceholderAndMarkedWord(t *testing.T) {
	f := newFixture(t)
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	defer s.Fini()
	s.SetSize(80, 12)

	f.wb.Render(s)
	cells, w, _ := s.GetContents()
	var row strings.Builder
	for x := 4; x < w; x++ {
		if r := cells[x].Runes; len(r) > 0 {
			row.WriteRune(r[0])
		}
	}
	if !strings.HasPrefix(row.String(), "No decompiled views are open.") {
		t.Fatalf("placeholder row = %q", row.String())
	}
	if f.wb.empty.Line(2) != "F3 decompiles the function at the current address." {
		t.Fatalf("placeholder line = %q", f.wb.empty.Line(2))
	}

	v := f.open(t, fnWork.Start)
	v.SetCursor(3, 7)
	f.wb.Render(s)
	cells, w, _ = s.GetContents()
	_, bg, _ := cells[6*w+4+15].Style.Decompose()
	cfg := config.Default()
	if want := tcell.GetColor(cfg.Theme.WordBackground); bg != want {
		t.Fatalf("occurrence of iVar1 not marked: bg %v, want %v", bg, want)
	}
}

func TestOpenTarget(t *testing.T) {
	f := newFixture(t)
	if err := f.wb.OpenTarget(context.Background(), " work "); err != nil {
		t.Fatalf("OpenTarget(work): %v", err)
	}
	if err := f.wb.OpenTarget(context.Background(), "1004"); err != nil {
		t.Fatalf("OpenTarget(1004): %v", err)
	}
	if v := f.wb.ActiveView(); v.Function() != "main" || v.Title() != "B" {
		t.Fatalf("view = %q %q", v.Function(), v.Title())
	}
	if err := f.wb.OpenTarget(context.Background(), "nowhere"); err == nil {
		t.Fatalf("unknown target opened")
	}
	if f.wb.Len() != 2 {
		t.Fatalf("views = %d, want 2", f.wb.Len())
	}
}
