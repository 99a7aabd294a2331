package treesitter

import (
	"context"
	"math"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/kobzarvs/qdecomp/internal/logger"
)

// Engine parses rendered pseudocode as C and answers highlight queries.
// Documents are keyed by the caller, one per open view.
type Engine struct {
	parser  *sitter.Parser
	query   *sitter.Query
	trees   map[string]*sitter.Tree
	sources map[string][]byte
	mu      sync.RWMutex
}

type HighlightSpan struct {
	StartCol int
	EndCol   int
	Kind     string
}

func New() *Engine {
	lang := c.GetLanguage()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	query, err := sitter.NewQuery([]byte(cHighlightQuery), lang)
	if err != nil {
		// Highlighting is optional; parsing still works without it
		logger.Warn("highlight query rejected", "error", err)
		query = nil
	}
	return &Engine{
		parser:  parser,
		query:   query,
		trees:   make(map[string]*sitter.Tree),
		sources: make(map[string][]byte),
	}
}

// ParseSync parses lines as the document key, replacing any previous parse.
func (e *Engine) ParseSync(key string, lines []string) bool {
	text := []byte(strings.Join(lines, "\n"))
	e.mu.Lock()
	defer e.mu.Unlock()
	tree, err := e.parser.ParseCtx(context.Background(), nil, text)
	if err != nil || tree == nil {
		logger.Debug("parse failed", "key", key, "error", err)
		return false
	}
	if old := e.trees[key]; old != nil {
		old.Close()
	}
	e.trees[key] = tree
	e.sources[key] = text
	return true
}

// Forget drops the document key.
func (e *Engine) Forget(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tree := e.trees[key]; tree != nil {
		tree.Close()
	}
	delete(e.trees, key)
	delete(e.sources, key)
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, tree := range e.trees {
		tree.Close()
		delete(e.trees, key)
		delete(e.sources, key)
	}
	if e.query != nil {
		e.query.Close()
	}
	e.parser.Close()
}

func (e *Engine) Highlights(key string, startLine, endLine int) map[int][]HighlightSpan {
	if startLine < 0 || endLine < startLine {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	tree := e.trees[key]
	if tree == nil || e.query == nil {
		return nil
	}
	return queryHighlights(e.query, tree, e.sources[key], startLine, endLine)
}

func queryHighlights(query *sitter.Query, tree *sitter.Tree, source []byte, startLine, endLine int) map[int][]HighlightSpan {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.SetPointRange(
		sitter.Point{Row: uint32(startLine), Column: 0},
		sitter.Point{Row: uint32(endLine + 1), Column: 0},
	)
	cursor.Exec(query, tree.RootNode())

	out := make(map[int][]HighlightSpan)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		if source != nil {
			match = cursor.FilterPredicates(match, source)
			if match == nil {
				continue
			}
		}
		for _, capture := range match.Captures {
			kind := query.CaptureNameForId(capture.Index)
			start := capture.Node.StartPoint()
			end := capture.Node.EndPoint()
			if int(end.Row) < startLine || int(start.Row) > endLine {
				continue
			}
			for row := int(start.Row); row <= int(end.Row); row++ {
				if row < startLine || row > endLine {
					continue
				}
				startCol := 0
				endCol := int(math.MaxInt32)
				if row == int(start.Row) {
					startCol = int(start.Column)
				}
				if row == int(end.Row) {
					endCol = int(end.Column)
				}
				out[row] = append(out[row], HighlightSpan{
					StartCol: startCol,
					EndCol:   endCol,
					Kind:     kind,
				})
			}
		}
	}
	return out
}

// KindAt returns the kind of the innermost named node at a position, e.g.
// "identifier" or "number_literal".
func (e *Engine) KindAt(key string, row, col int) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tree := e.trees[key]
	if tree == nil {
		return ""
	}
	point := sitter.Point{Row: uint32(row), Column: uint32(col)}
	node := tree.RootNode().NamedDescendantForPointRange(point, point)
	if node == nil {
		return ""
	}
	return node.Type()
}

const cHighlightQuery = `
((comment) @comment)
((string_literal) @string)
((char_literal) @string)
((number_literal) @number)
((true) @constant)
((false) @constant)
[
  "break" "case" "const" "continue" "default" "do" "else" "enum"
  "extern" "for" "goto" "if" "return" "sizeof" "static" "struct"
  "switch" "typedef" "union" "volatile" "while"
] @keyword
((primitive_type) @type)
((sized_type_specifier) @type)
((type_identifier) @type)
((function_declarator declarator: (identifier) @function))
((call_expression function: (identifier) @function))
((field_identifier) @field)
((statement_identifier) @keyword)
((identifier) @constant (#match? @constant "^[A-Z][A-Z0-9_]+$"))
((identifier) @variable)
[
  "+" "-" "*" "/" "%" "==" "!=" "<=" ">=" "<" ">" "=" "&&" "||"
  "!" "&" "|" "^" "~" "<<" ">>" "+=" "-=" "*=" "/=" "++" "--" "->"
] @operator
[
  "." "," ";" "(" ")" "[" "]" "{" "}"
] @punctuation
`
