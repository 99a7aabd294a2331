package view

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/qdecomp/internal/config"
	"github.com/kobzarvs/qdecomp/internal/logger"
)

// Prompt actions.
const (
	ActionCancel    = "cancel"
	ActionAccept    = "accept"
	ActionBackspace = "backspace"
	ActionComplete  = "complete"
)

// Prompt runs modal line input on the bottom row of the screen. It
// implements host.Prompter.
type Prompt struct {
	screen   tcell.Screen
	keymap   map[string]string
	style    tcell.Style
	poll     func() tcell.Event
	redraw   func()
	complete func(text string) []string
}

func NewPrompt(s tcell.Screen, cfg config.Config) *Prompt {
	keymap := make(map[string]string, len(cfg.Keymap.Prompt))
	for k, v := range cfg.Keymap.Prompt {
		keymap[k] = v
	}
	return &Prompt{
		screen: s,
		keymap: keymap,
		style:  newStyles(cfg.Theme).command,
		poll:   s.PollEvent,
	}
}

// SetRedraw sets the function that repaints the screen beneath the prompt.
func (p *Prompt) SetRedraw(fn func()) {
	p.redraw = fn
}

// SetCompleter sets the candidates offered by the complete action when
// asking for an address.
func (p *Prompt) SetCompleter(fn func(text string) []string) {
	p.complete = fn
}

func (p *Prompt) AskString(label, initial string) (string, bool) {
	return p.run(label, initial, nil)
}

func (p *Prompt) AskAddress(label string) (string, bool) {
	return p.run(label, "", p.complete)
}

func (p *Prompt) run(label, initial string, complete func(string) []string) (string, bool) {
	in := &lineInput{text: []rune(initial), pos: len([]rune(initial)), complete: complete}
	for {
		p.draw(label, in)
		ev := p.poll()
		if ev == nil {
			// screen finalized
			return "", false
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			key := KeyString(ev)
			action := p.keymap[key]
			if action == "" && ev.Key() == tcell.KeyRune {
				in.insert(ev.Rune())
				continue
			}
			switch action {
			case ActionCancel:
				logger.Debug("prompt cancelled", "label", label)
				return "", false
			case ActionAccept:
				return string(in.text), true
			default:
				in.apply(action)
			}
		case *tcell.EventResize:
			p.screen.Sync()
		}
	}
}

func (p *Prompt) draw(label string, in *lineInput) {
	if p.redraw != nil {
		p.redraw()
	}
	w, h := p.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	y := h - 1
	clearLine(p.screen, y, w, p.style)
	x := drawText(p.screen, 0, y, w, label+": ", p.style)
	drawText(p.screen, x, y, w, string(in.text), p.style)
	cx := x + runewidth.StringWidth(string(in.text[:in.pos]))
	if cx >= w {
		cx = w - 1
	}
	p.screen.SetCursorStyle(tcell.CursorStyleSteadyBar)
	p.screen.ShowCursor(cx, y)
	p.screen.Show()
}

type lineInput struct {
	text     []rune
	pos      int
	complete func(string) []string
	// candidates of the current completion cycle
	candidates []string
	next       int
}

func (in *lineInput) insert(r rune) {
	in.text = append(in.text[:in.pos], append([]rune{r}, in.text[in.pos:]...)...)
	in.pos++
	in.candidates = nil
}

func (in *lineInput) apply(action string) {
	switch action {
	case ActionBackspace:
		if in.pos > 0 {
			in.text = append(in.text[:in.pos-1], in.text[in.pos:]...)
			in.pos--
		}
		in.candidates = nil
	case ActionMoveLeft:
		if in.pos > 0 {
			in.pos--
		}
	case ActionMoveRight:
		if in.pos < len(in.text) {
			in.pos++
		}
	case ActionLineStart:
		in.pos = 0
	case ActionLineEnd:
		in.pos = len(in.text)
	case ActionComplete:
		in.cycle()
	}
}

// cycle replaces the text with the next completion candidate.
func (in *lineInput) cycle() {
	if in.complete == nil {
		return
	}
	if in.candidates == nil {
		in.candidates = in.complete(string(in.text))
		in.next = 0
	}
	if len(in.candidates) == 0 {
		return
	}
	in.text = []rune(in.candidates[in.next%len(in.candidates)])
	in.pos = len(in.text)
	in.next++
}
