package session

import (
	"context"
	"errors"
	"testing"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/testutil"
)

var (
	fnMain = host.Function{Start: 0x1000, End: 0x1100, Name: "main", FrameRegs: 4, RetAddrOffset: 0x20}
	fnWork = host.Function{Start: 0x2000, End: 0x2100, Name: "work", FrameRegs: 4, RetAddrOffset: 0x20}
	fnLeaf = host.Function{Start: 0x3000, End: 0x3100, Name: "leaf", FrameRegs: 4, RetAddrOffset: 0x20}
)

func newTestStore(t *testing.T) (*Store, *testutil.DB, *testutil.Decompiler) {
	t.Helper()
	db := testutil.NewDB()
	dec := testutil.NewDecompiler()
	for _, fn := range []host.Function{fnMain, fnWork, fnLeaf} {
		fn := fn
		db.AddFunction(fn)
		dec.Trees[fn.Start] = func() *ast.Function { return testutil.LocalsTree(fn.Name) }
	}
	return NewStore(db, dec), db, dec
}

func TestOpenAllocatesTitles(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	a, err := st.Open(ctx, fnMain.Start)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b, err := st.Open(ctx, fnWork.Start+0x10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if a.Title() != "A" || b.Title() != "B" {
		t.Fatalf("titles = %q, %q, want A, B", a.Title(), b.Title())
	}
	if b.Function().Start != fnWork.Start || b.History().Top() != fnWork.Start {
		t.Fatalf("session b shows %s, history top %s", b.Function().Start, b.History().Top())
	}
	if a.ID() == b.ID() {
		t.Fatalf("sessions share an id")
	}

	if err := st.Close(a.ID()); err != nil {
		t.Fatalf("close: %v", err)
	}
	c, err := st.Open(ctx, fnLeaf.Start)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if c.Title() != "A" {
		t.Fatalf("title after release = %q, want A", c.Title())
	}
}

func TestOpenFailureAllocatesNothing(t *testing.T) {
	st, _, dec := newTestStore(t)
	dec.Fail[fnMain.Start] = true

	if _, err := st.Open(context.Background(), fnMain.Start); !errors.Is(err, testutil.ErrInjected) {
		t.Fatalf("open error = %v, want injected", err)
	}
	if _, err := st.Open(context.Background(), 0x9000); !errors.Is(err, ErrNoFunction) {
		t.Fatalf("open error = %v, want ErrNoFunction", err)
	}
	if st.Len() != 0 || st.Titles().Len() != 0 {
		t.Fatalf("sessions = %d, titles = %d, want 0, 0", st.Len(), st.Titles().Len())
	}
}

func TestGetUnknownSession(t *testing.T) {
	st, _, _ := newTestStore(t)
	if _, err := st.Get(ID{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get error = %v, want ErrNotFound", err)
	}
	if err := st.Close(ID{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("close error = %v, want ErrNotFound", err)
	}
}

func TestDrillAndBack(t *testing.T) {
	st, _, dec := newTestStore(t)
	ctx := context.Background()
	sess, err := st.Open(ctx, fnMain.Start)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	changed, err := st.Drill(ctx, sess.ID(), fnWork.Start)
	if err != nil || !changed {
		t.Fatalf("drill = %v, %v", changed, err)
	}
	calls := len(dec.Calls)
	changed, err = st.Drill(ctx, sess.ID(), fnWork.Start+4)
	if err != nil || changed {
		t.Fatalf("drill to same function = %v, %v", changed, err)
	}
	if len(dec.Calls) != calls {
		t.Fatalf("drill to displayed function decompiled again")
	}
	if sess.History().Len() != 2 {
		t.Fatalf("history len = %d, want 2", sess.History().Len())
	}
	if got := sess.Render()[0]; got != "int work(int param_1)" {
		t.Fatalf("signature = %q", got)
	}

	closed, err := st.Back(ctx, sess.ID())
	if err != nil || closed {
		t.Fatalf("back = %v, %v", closed, err)
	}
	if sess.Function().Start != fnMain.Start || sess.History().Len() != 1 {
		t.Fatalf("after back: func %s, history %v", sess.Function().Start, sess.History().Addresses())
	}

	closed, err = st.Back(ctx, sess.ID())
	if err != nil || !closed {
		t.Fatalf("final back = %v, %v", closed, err)
	}
	if st.Len() != 0 || st.Titles().Allocated("A") {
		t.Fatalf("session or title survived close")
	}
}

func TestDrillFailureKeepsSession(t *testing.T) {
	st, _, dec := newTestStore(t)
	ctx := context.Background()
	sess, err := st.Open(ctx, fnMain.Start)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	before := testutil.Lines(sess.Render())

	dec.Fail[fnWork.Start] = true
	if _, err := st.Drill(ctx, sess.ID(), fnWork.Start); err == nil {
		t.Fatalf("drill succeeded")
	}
	if sess.History().Len() != 1 || sess.Function().Start != fnMain.Start {
		t.Fatalf("session changed after failed drill")
	}
	if after := testutil.Lines(sess.Render()); after != before {
		t.Fatalf("render changed:\n%s", after)
	}

	dec.Fail[fnWork.Start] = false
	if _, err := st.Drill(ctx, sess.ID(), fnWork.Start); err != nil {
		t.Fatalf("drill: %v", err)
	}
	dec.Fail[fnMain.Start] = true
	if _, err := st.Back(ctx, sess.ID()); err == nil {
		t.Fatalf("back succeeded")
	}
	if sess.History().Len() != 2 || sess.Function().Start != fnWork.Start {
		t.Fatalf("history popped after failed back: %v", sess.History().Addresses())
	}
}

func TestSessionsDoNotInterfere(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()
	a, _ := st.Open(ctx, fnMain.Start)
	b, _ := st.Open(ctx, fnWork.Start)
	beforeB := testutil.Lines(b.Render())

	if _, err := st.Drill(ctx, a.ID(), fnLeaf.Start); err != nil {
		t.Fatalf("drill: %v", err)
	}
	if b.History().Len() != 1 || testutil.Lines(b.Render()) != beforeB {
		t.Fatalf("session b changed by drill in a")
	}
	if got := st.Sessions(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("sessions out of order")
	}
}
