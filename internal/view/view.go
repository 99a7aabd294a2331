package view

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/qdecomp/internal/config"
	"github.com/kobzarvs/qdecomp/internal/treesitter"
)

// Cursor motions understood by HandleAction.
const (
	ActionMoveLeft     = "move_left"
	ActionMoveRight    = "move_right"
	ActionMoveUp       = "move_up"
	ActionMoveDown     = "move_down"
	ActionLineStart    = "line_start"
	ActionLineEnd      = "line_end"
	ActionWordForward  = "word_forward"
	ActionWordBackward = "word_backward"
	ActionFileStart    = "file_start"
	ActionFileEnd      = "file_end"
	ActionPageUp       = "page_up"
	ActionPageDown     = "page_down"
)

type Cursor struct {
	Row int
	Col int
}

// Highlighter produces syntax spans for a keyed document.
type Highlighter interface {
	ParseSync(key string, lines []string) bool
	Highlights(key string, startLine, endLine int) map[int][]treesitter.HighlightSpan
}

// View displays one session's pseudocode.
type View struct {
	key      string
	title    string
	function string
	lines    [][]rune
	text     []string

	cursor     Cursor
	scroll     int
	scrollX    int
	freeScroll bool
	message    string
	word       string

	highlighter    Highlighter
	highlights     map[int][]treesitter.HighlightSpan
	highlightStart int
	highlightEnd   int
	parsed         bool

	viewHeight  int
	tabWidth    int
	lineNumbers bool
	titleFormat string
	styles      styles
}

// New creates an empty view. key identifies the document for the
// highlighter; hl may be nil.
func New(key string, cfg config.Config, hl Highlighter) *View {
	tabWidth := cfg.View.TabWidth
	if tabWidth < 1 {
		tabWidth = 1
	}
	lineNumbers := true
	switch strings.ToLower(strings.TrimSpace(cfg.View.LineNumbers)) {
	case "off", "none", "false":
		lineNumbers = false
	}
	return &View{
		key:            key,
		lines:          [][]rune{{}},
		text:           []string{""},
		highlighter:    hl,
		highlightStart: -1,
		highlightEnd:   -1,
		tabWidth:       tabWidth,
		lineNumbers:    lineNumbers,
		titleFormat:    cfg.View.TitleFormat,
		styles:         newStyles(cfg.Theme),
	}
}

func (v *View) Key() string      { return v.key }
func (v *View) Title() string    { return v.title }
func (v *View) Function() string { return v.function }
func (v *View) Cursor() Cursor   { return v.cursor }
func (v *View) Scroll() (int, int) {
	return v.scroll, v.scrollX
}
func (v *View) Message() string { return v.message }
func (v *View) LineCount() int  { return len(v.lines) }

// Caption is the window caption, "<format> - <title>".
func (v *View) Caption() string {
	if v.titleFormat == "" || v.title == "" {
		return v.titleFormat + v.title
	}
	return v.titleFormat + " - " + v.title
}

func (v *View) SetTitle(title, function string) {
	v.title = title
	v.function = function
}

// SetLines replaces the content wholesale. The cursor is kept where it was,
// clamped to the new text.
func (v *View) SetLines(lines []string) {
	if len(lines) == 0 {
		lines = []string{""}
	}
	v.text = append(v.text[:0], lines...)
	v.lines = make([][]rune, len(lines))
	for i, line := range lines {
		v.lines[i] = []rune(line)
	}
	v.highlights = nil
	v.highlightStart = -1
	v.highlightEnd = -1
	v.parsed = v.highlighter != nil && v.highlighter.ParseSync(v.key, v.text)
	v.clampCursor()
}

// Lines returns the displayed text.
func (v *View) Lines() []string {
	return append([]string(nil), v.text...)
}

func (v *View) Line(row int) string {
	if row < 0 || row >= len(v.text) {
		return ""
	}
	return v.text[row]
}

func (v *View) SetMessage(msg string) {
	v.message = msg
}

// SetMarkedWord highlights every occurrence of word.
func (v *View) SetMarkedWord(word string) {
	v.word = word
}

func (v *View) SetCursor(row, col int) {
	v.cursor = Cursor{Row: row, Col: col}
	v.freeScroll = false
	v.clampCursor()
}

func (v *View) SetScroll(row, col int) {
	if row < 0 {
		row = 0
	}
	if col < 0 {
		col = 0
	}
	v.scroll = row
	v.scrollX = col
}

func (v *View) clampCursor() {
	if v.cursor.Row >= len(v.lines) {
		v.cursor.Row = len(v.lines) - 1
	}
	if v.cursor.Row < 0 {
		v.cursor.Row = 0
	}
	v.clampCursorCol()
}

func (v *View) clampCursorCol() {
	lineLen := len(v.lines[v.cursor.Row])
	if v.cursor.Col > lineLen {
		v.cursor.Col = lineLen
	}
	if v.cursor.Col < 0 {
		v.cursor.Col = 0
	}
}

// HandleAction applies a cursor motion. It reports false for actions that
// are not motions.
func (v *View) HandleAction(action string) bool {
	v.freeScroll = false
	switch action {
	case ActionMoveLeft:
		if v.cursor.Col > 0 {
			v.cursor.Col--
		}
	case ActionMoveRight:
		if v.cursor.Col < len(v.lines[v.cursor.Row]) {
			v.cursor.Col++
		}
	case ActionMoveUp:
		if v.cursor.Row > 0 {
			v.cursor.Row--
			v.clampCursorCol()
		}
	case ActionMoveDown:
		if v.cursor.Row < len(v.lines)-1 {
			v.cursor.Row++
			v.clampCursorCol()
		}
	case ActionLineStart:
		v.cursor.Col = 0
	case ActionLineEnd:
		v.cursor.Col = len(v.lines[v.cursor.Row])
	case ActionWordForward:
		v.wordForward()
	case ActionWordBackward:
		v.wordBackward()
	case ActionFileStart:
		v.cursor = Cursor{}
	case ActionFileEnd:
		v.cursor.Row = len(v.lines) - 1
		v.clampCursorCol()
	case ActionPageUp:
		v.cursor.Row -= v.pageSize()
		v.clampCursor()
	case ActionPageDown:
		v.cursor.Row += v.pageSize()
		v.clampCursor()
	default:
		return false
	}
	return true
}

func (v *View) pageSize() int {
	if v.viewHeight > 1 {
		return v.viewHeight - 1
	}
	return 1
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordForward moves to the start of the next word, crossing lines.
func (v *View) wordForward() {
	row, col := v.cursor.Row, v.cursor.Col
	line := v.lines[row]
	for col < len(line) && isWordRune(line[col]) {
		col++
	}
	for {
		for col < len(line) && !isWordRune(line[col]) {
			col++
		}
		if col < len(line) || row == len(v.lines)-1 {
			break
		}
		row++
		col = 0
		line = v.lines[row]
	}
	v.cursor = Cursor{Row: row, Col: col}
}

// wordBackward moves to the start of the previous word, crossing lines.
func (v *View) wordBackward() {
	row, col := v.cursor.Row, v.cursor.Col
	line := v.lines[row]
	for {
		for col > 0 && !isWordRune(line[col-1]) {
			col--
		}
		if col > 0 || row == 0 {
			break
		}
		row--
		line = v.lines[row]
		col = len(line)
	}
	for col > 0 && isWordRune(line[col-1]) {
		col--
	}
	v.cursor = Cursor{Row: row, Col: col}
}

// CellAt maps a screen cell to a text position. Cells below the text area
// do not map.
func (v *View) CellAt(x, y int) (Cursor, bool) {
	if y < 0 || (v.viewHeight > 0 && y >= v.viewHeight) {
		return Cursor{}, false
	}
	row := y + v.scroll
	if row >= len(v.lines) {
		return Cursor{}, false
	}
	visualX := x - v.gutterWidth() + v.scrollX
	if visualX < 0 {
		visualX = 0
	}
	return Cursor{Row: row, Col: visualToLogicalCol(v.lines[row], visualX, v.tabWidth)}, true
}

// Click moves the cursor to a screen cell.
func (v *View) Click(x, y int) bool {
	pos, ok := v.CellAt(x, y)
	if !ok {
		return false
	}
	v.cursor = pos
	v.clampCursorCol()
	v.freeScroll = false
	return true
}

// ScrollBy scrolls without moving the cursor until the next motion.
func (v *View) ScrollBy(n int) {
	v.freeScroll = true
	v.scroll += n
	if last := len(v.lines) - 1; v.scroll > last {
		v.scroll = last
	}
	if v.scroll < 0 {
		v.scroll = 0
	}
}

func (v *View) ensureCursorVisible(viewHeight, textWidth int) {
	if viewHeight > 0 {
		if v.cursor.Row < v.scroll-1 || v.cursor.Row >= v.scroll+viewHeight+1 {
			v.scroll = v.cursor.Row - viewHeight/2
			if v.scroll < 0 {
				v.scroll = 0
			}
		} else if v.cursor.Row < v.scroll {
			v.scroll = v.cursor.Row
		} else if v.cursor.Row >= v.scroll+viewHeight {
			v.scroll = v.cursor.Row - viewHeight + 1
		}
	}
	if textWidth > 0 {
		cx := visualCol(v.lines[v.cursor.Row], v.cursor.Col, v.tabWidth)
		if cx < v.scrollX {
			v.scrollX = cx
		} else if cx >= v.scrollX+textWidth {
			v.scrollX = cx - textWidth + 1
		}
	}
}

func (v *View) gutterWidth() int {
	if !v.lineNumbers {
		return 0
	}
	digits := len(strconv.Itoa(len(v.lines)))
	if digits < 2 {
		digits = 2
	}
	return 1 + digits + 1
}

// Render draws the text area, the status line and the prompt line.
func (v *View) Render(s tcell.Screen) {
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return
	}
	statusY := h - 2
	cmdY := h - 1
	viewHeight := h - 2
	if viewHeight < 0 {
		viewHeight = 0
	}
	v.viewHeight = viewHeight
	gutterWidth := v.gutterWidth()
	if !v.freeScroll {
		v.ensureCursorVisible(viewHeight, w-gutterWidth)
	}
	v.refreshHighlights(viewHeight)

	s.SetStyle(v.styles.main)
	s.Clear()
	for y := 0; y < viewHeight; y++ {
		lineIdx := v.scroll + y
		if lineIdx >= len(v.lines) {
			clearLine(s, y, w, v.styles.main)
			continue
		}
		v.drawLineWithGutter(s, y, w, gutterWidth, lineIdx)
	}
	if statusY >= 0 {
		v.renderStatusline(s, w, statusY)
	}
	if cmdY >= 0 && cmdY != statusY {
		clearLine(s, cmdY, w, v.styles.command)
		drawText(s, 0, cmdY, w, v.message, v.styles.command)
	}

	cy := v.cursor.Row - v.scroll
	cx := gutterWidth + visualCol(v.lines[v.cursor.Row], v.cursor.Col, v.tabWidth) - v.scrollX
	if cy < 0 || cy >= viewHeight || cx >= w {
		s.HideCursor()
	} else {
		s.SetCursorStyle(tcell.CursorStyleSteadyBlock)
		s.ShowCursor(cx, cy)
	}
	s.Show()
}

func (v *View) refreshHighlights(viewHeight int) {
	if !v.parsed {
		return
	}
	start := v.scroll
	end := v.scroll + viewHeight - 1
	if end >= len(v.lines) {
		end = len(v.lines) - 1
	}
	if start == v.highlightStart && end == v.highlightEnd {
		return
	}
	spans := v.highlighter.Highlights(v.key, start, end)
	// Tree-sitter columns are bytes; the view indexes runes.
	for row, rowSpans := range spans {
		if row < 0 || row >= len(v.text) {
			continue
		}
		for i := range rowSpans {
			rowSpans[i].StartCol = runeIndex(v.text[row], rowSpans[i].StartCol)
			rowSpans[i].EndCol = runeIndex(v.text[row], rowSpans[i].EndCol)
		}
	}
	v.highlights = spans
	v.highlightStart = start
	v.highlightEnd = end
}

func runeIndex(line string, byteCol int) int {
	if byteCol >= len(line) {
		return len([]rune(line)) + (byteCol - len(line))
	}
	if byteCol <= 0 {
		return 0
	}
	return len([]rune(line[:byteCol]))
}

func (v *View) renderStatusline(s tcell.Screen, w, y int) {
	status := " " + v.Caption() + " "
	if v.function != "" {
		status = fmt.Sprintf(" %s | %s ", v.Caption(), v.function)
	}
	col := visualCol(v.lines[v.cursor.Row], v.cursor.Col, v.tabWidth) + 1
	right := fmt.Sprintf(" Ln %d, Col %d ", v.cursor.Row+1, col)
	line := composeStatusLine(status, right, w)
	for x, r := range line {
		if x >= w {
			break
		}
		s.SetContent(x, y, r, nil, v.styles.status)
	}
}

func (v *View) drawLineWithGutter(s tcell.Screen, y, w, gutterWidth, lineIdx int) {
	if gutterWidth > 0 {
		digits := gutterWidth - 2
		numStr := fmt.Sprintf("%*d", digits, lineIdx+1)
		style := v.styles.lineNumber
		if lineIdx == v.cursor.Row {
			style = v.styles.lineNumberActive
		}
		if w > 0 {
			s.SetContent(0, y, ' ', nil, v.styles.main)
		}
		for i, r := range numStr {
			x := 1 + i
			if x >= gutterWidth-1 || x >= w {
				break
			}
			s.SetContent(x, y, r, nil, style)
		}
		if gutterWidth-1 < w {
			s.SetContent(gutterWidth-1, y, ' ', nil, v.styles.main)
		}
	}
	if gutterWidth >= w {
		return
	}
	v.drawLine(s, y, w, gutterWidth, lineIdx)
}

func (v *View) drawLine(s tcell.Screen, y, w, startX, lineIdx int) {
	line := v.lines[lineIdx]
	spans := v.highlights[lineIdx]
	marked := markedRanges(line, v.word)
	x := startX - v.scrollX
	col := 0
	for idx, r := range line {
		if x >= w {
			break
		}
		style := v.styles.main
		if kind, ok := highlightKindAt(spans, idx); ok {
			style, _ = v.styles.forHighlight(kind)
		}
		if marked[idx] {
			style = v.styles.word
		}
		cells := cellWidth(r, col, v.tabWidth)
		if r == '\t' {
			r = ' '
		}
		for i := 0; i < cells; i++ {
			if x >= startX && x < w {
				if i == 0 {
					s.SetContent(x, y, r, nil, style)
				} else if r == ' ' {
					s.SetContent(x, y, ' ', nil, style)
				}
			}
			x++
			col++
		}
	}
	if x < startX {
		x = startX
	}
	for x < w {
		s.SetContent(x, y, ' ', nil, v.styles.main)
		x++
	}
}

// markedRanges flags the runes of every whole-word occurrence of word.
func markedRanges(line []rune, word string) map[int]bool {
	if word == "" {
		return nil
	}
	target := []rune(word)
	var out map[int]bool
	for i := 0; i+len(target) <= len(line); i++ {
		if i > 0 && isWordRune(line[i-1]) {
			continue
		}
		end := i + len(target)
		if end < len(line) && isWordRune(line[end]) {
			continue
		}
		if string(line[i:end]) != word {
			continue
		}
		if out == nil {
			out = make(map[int]bool)
		}
		for j := i; j < end; j++ {
			out[j] = true
		}
	}
	return out
}

func clearLine(s tcell.Screen, y, w int, style tcell.Style) {
	for x := 0; x < w; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

func drawText(s tcell.Screen, x, y, w int, text string, style tcell.Style) int {
	for _, r := range text {
		if x >= w {
			break
		}
		s.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
	return x
}

func composeStatusLine(left, right string, width int) []rune {
	if width <= 0 {
		return nil
	}
	leftRunes := []rune(left)
	rightRunes := []rune(right)
	if len(leftRunes)+len(rightRunes) > width {
		if len(rightRunes) >= width {
			rightRunes = rightRunes[len(rightRunes)-width:]
			leftRunes = nil
		} else {
			leftRunes = leftRunes[:width-len(rightRunes)]
		}
	}
	spaceCount := width - len(leftRunes) - len(rightRunes)
	line := make([]rune, 0, width)
	line = append(line, leftRunes...)
	for i := 0; i < spaceCount; i++ {
		line = append(line, ' ')
	}
	return append(line, rightRunes...)
}

func cellWidth(r rune, col, tabWidth int) int {
	if r == '\t' {
		return tabWidth - (col % tabWidth)
	}
	if w := runewidth.RuneWidth(r); w > 0 {
		return w
	}
	return 1
}

func visualCol(line []rune, logicalCol int, tabWidth int) int {
	if tabWidth < 1 {
		tabWidth = 1
	}
	if logicalCol > len(line) {
		logicalCol = len(line)
	}
	col := 0
	for i := 0; i < logicalCol; i++ {
		col += cellWidth(line[i], col, tabWidth)
	}
	return col
}

func visualToLogicalCol(line []rune, visualX int, tabWidth int) int {
	if tabWidth < 1 {
		tabWidth = 1
	}
	if visualX <= 0 {
		return 0
	}
	col := 0
	for i, r := range line {
		advance := cellWidth(r, col, tabWidth)
		if col+advance > visualX {
			return i
		}
		col += advance
		if col >= visualX {
			return i + 1
		}
	}
	return len(line)
}
