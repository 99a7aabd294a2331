package view

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/qdecomp/internal/config"
	"github.com/kobzarvs/qdecomp/internal/treesitter"
)

type styles struct {
	main             tcell.Style
	status           tcell.Style
	command          tcell.Style
	lineNumber       tcell.Style
	lineNumberActive tcell.Style
	word             tcell.Style
	syntax           map[string]tcell.Style
}

func newStyles(theme config.Theme) styles {
	mainFg := parseColor(theme.Foreground, tcell.ColorWhite)
	mainBg := parseColor(theme.Background, tcell.ColorBlack)
	statusFg := parseColor(theme.StatuslineForeground, tcell.ColorBlack)
	statusBg := parseColor(theme.StatuslineBackground, tcell.ColorGray)
	commandFg := parseColor(theme.CommandlineForeground, statusFg)
	commandBg := parseColor(theme.CommandlineBackground, statusBg)
	lineNumberFg := parseColor(theme.LineNumberForeground, tcell.ColorGray)
	lineNumberActiveFg := parseColor(theme.LineNumberActiveForeground, mainFg)
	wordFg := parseColor(theme.WordForeground, tcell.ColorBlack)
	wordBg := parseColor(theme.WordBackground, tcell.ColorYellow)

	fg := func(name string) tcell.Style {
		return tcell.StyleDefault.Foreground(parseColor(name, mainFg)).Background(mainBg)
	}
	return styles{
		main:             tcell.StyleDefault.Foreground(mainFg).Background(mainBg),
		status:           tcell.StyleDefault.Foreground(statusFg).Background(statusBg),
		command:          tcell.StyleDefault.Foreground(commandFg).Background(commandBg),
		lineNumber:       tcell.StyleDefault.Foreground(lineNumberFg).Background(mainBg),
		lineNumberActive: tcell.StyleDefault.Foreground(lineNumberActiveFg).Background(mainBg),
		word:             tcell.StyleDefault.Foreground(wordFg).Background(wordBg),
		syntax: map[string]tcell.Style{
			"keyword":     fg(theme.SyntaxKeyword),
			"string":      fg(theme.SyntaxString),
			"comment":     fg(theme.SyntaxComment),
			"type":        fg(theme.SyntaxType),
			"function":    fg(theme.SyntaxFunction),
			"number":      fg(theme.SyntaxNumber),
			"constant":    fg(theme.SyntaxConstant),
			"operator":    fg(theme.SyntaxOperator),
			"punctuation": fg(theme.SyntaxPunctuation),
			"field":       fg(theme.SyntaxField),
			"variable":    fg(theme.SyntaxVariable),
		},
	}
}

func (st styles) forHighlight(kind string) (tcell.Style, bool) {
	style, ok := st.syntax[kind]
	if !ok {
		return st.main, false
	}
	return style, true
}

func highlightPriority(kind string) int {
	switch kind {
	case "comment":
		return 7
	case "string":
		return 6
	case "keyword":
		return 5
	case "constant":
		return 4
	case "type", "function", "number":
		return 3
	case "field", "variable":
		return 2
	case "operator", "punctuation":
		return 1
	default:
		return 0
	}
}

// highlightKindAt picks the highest priority span covering col.
func highlightKindAt(spans []treesitter.HighlightSpan, col int) (string, bool) {
	bestKind := ""
	bestPriority := 0
	for _, span := range spans {
		if col < span.StartCol || col >= span.EndCol {
			continue
		}
		priority := highlightPriority(span.Kind)
		if priority > bestPriority {
			bestPriority = priority
			bestKind = span.Kind
		}
	}
	if bestKind == "" {
		return "", false
	}
	return bestKind, true
}

func parseColor(name string, fallback tcell.Color) tcell.Color {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if strings.HasPrefix(name, "#") && len(name) == 7 {
		r, err1 := strconv.ParseInt(name[1:3], 16, 32)
		g, err2 := strconv.ParseInt(name[3:5], 16, 32)
		b, err3 := strconv.ParseInt(name[5:7], 16, 32)
		if err1 == nil && err2 == nil && err3 == nil {
			return tcell.NewRGBColor(int32(r), int32(g), int32(b))
		}
		return fallback
	}
	name = strings.ToLower(name)
	if name == "default" {
		return tcell.ColorDefault
	}
	c := tcell.GetColor(name)
	if c == tcell.ColorDefault {
		return fallback
	}
	return c
}
