package app

import (
	"context"
	"fmt"
	"runtime"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/multierr"

	"github.com/kobzarvs/qdecomp/internal/config"
	"github.com/kobzarvs/qdecomp/internal/database"
	"github.com/kobzarvs/qdecomp/internal/decompiler"
	"github.com/kobzarvs/qdecomp/internal/logger"
	"github.com/kobzarvs/qdecomp/internal/rename"
	"github.com/kobzarvs/qdecomp/internal/session"
	"github.com/kobzarvs/qdecomp/internal/treesitter"
	"github.com/kobzarvs/qdecomp/internal/view"
	"github.com/kobzarvs/qdecomp/internal/workbench"
)

// Options come from the command line.
type Options struct {
	ConfigPath string
	DBPath     string
	Debug      bool
	// Target is a name or hex address to open on start.
	Target string
}

// App is the top-level runtime for qdecomp.
type App struct {
	opts Options
}

func New(opts Options) *App {
	return &App{opts: opts}
}

// LoadConfig reads the config file named in opts, or the default one, and
// applies command line overrides.
func LoadConfig(opts Options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFile(opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}
	return cfg, nil
}

func (a *App) Run() (err error) {
	runtime.LockOSThread()
	cfg, err := LoadConfig(a.opts)
	if err != nil {
		return err
	}
	if err := logger.Init(a.opts.Debug); err != nil {
		return err
	}
	defer logger.Close()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	client := decompiler.NewClient(cfg.Decompiler)
	client.SetSegments(db)
	ts := treesitter.New()
	defer func() {
		ts.Close()
		err = multierr.Combine(err, client.Stop(), db.Close())
	}()

	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	s.EnableMouse()
	defer s.Fini()

	prompt := view.NewPrompt(s, cfg)
	states := session.NewManager(db)
	wb := workbench.New(cfg, workbench.Deps{
		DB:        db,
		Store:     session.NewStore(db, client),
		Renamer:   rename.NewOrchestrator(db, prompt, rename.HostRenamer{Names: db, Prompt: prompt}),
		Prompt:    prompt,
		Highlight: ts,
		States:    states,
	})
	prompt.SetRedraw(func() { wb.Render(s) })
	prompt.SetCompleter(wb.Complete)
	defer func() {
		wb.SaveState()
		if serr := states.Save(); serr != nil {
			logger.Warn("view state not saved", "error", serr)
		}
	}()

	stopEvents := make(chan struct{})
	defer close(stopEvents)
	go forwardEvents(s, client.Events(), stopEvents)

	ctx := context.Background()
	a.openInitial(ctx, wb, states)

	wb.Render(s)
	for !wb.Quit() {
		ev := s.PollEvent()
		if ev == nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			wb.HandleKey(ctx, ev)
		case *tcell.EventMouse:
			wb.HandleMouse(ctx, ev)
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			if dev, ok := ev.Data().(decompiler.Event); ok {
				wb.SetMessage(fmt.Sprintf("decompiler %s: %s", dev.Kind, dev.Message))
			}
		}
		wb.Render(s)
	}
	return nil
}

// openInitial opens the command line target, or the function viewed last.
func (a *App) openInitial(ctx context.Context, wb *workbench.Workbench, states *session.Manager) {
	if a.opts.Target != "" {
		if err := wb.OpenTarget(ctx, a.opts.Target); err != nil {
			logger.Warn("initial target not opened", "target", a.opts.Target, "error", err)
		}
		return
	}
	if addr, ok := states.LastOpened(); ok {
		if err := wb.Open(ctx, addr); err != nil {
			logger.Warn("last view not reopened", "addr", addr.String(), "error", err)
		}
	}
}

// forwardEvents posts decompiler events to the screen so the main loop shows
// them on the prompt line.
func forwardEvents(s tcell.Screen, events <-chan decompiler.Event, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev := <-events:
			logger.Info("decompiler event", "kind", ev.Kind, "message", ev.Message)
			_ = s.PostEvent(tcell.NewEventInterrupt(ev))
		}
	}
}
