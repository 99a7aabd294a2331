package ast

import "strings"

const indentUnit = "  "

// VarDecl is a parameter or local variable declaration.
type VarDecl struct {
	Type string
	Name string
}

func (d *VarDecl) String() string {
	if strings.HasSuffix(d.Type, "*") {
		return d.Type + d.Name
	}
	return d.Type + " " + d.Name
}

type StmtKind int

const (
	// StmtDecl is a local variable declaration; Decl is set.
	StmtDecl StmtKind = iota
	// StmtLine is a single line of code held in Tokens.
	StmtLine
	// StmtBlock is Tokens followed by a braced Body and a closing Tail,
	// e.g. "do" { ... } " while (x);".
	StmtBlock
)

func (k StmtKind) String() string {
	switch k {
	case StmtDecl:
		return "decl"
	case StmtLine:
		return "line"
	case StmtBlock:
		return "block"
	default:
		return "unknown"
	}
}

type Statement struct {
	Kind   StmtKind
	Decl   *VarDecl
	Tokens []Token
	Body   []*Statement
	Tail   []Token
}

func NewDecl(typ, name string) *Statement {
	return &Statement{Kind: StmtDecl, Decl: &VarDecl{Type: typ, Name: name}}
}

func NewLine(text string) *Statement {
	return &Statement{Kind: StmtLine, Tokens: Tokenize(text)}
}

func NewBlock(header string, body []*Statement, tail string) *Statement {
	return &Statement{Kind: StmtBlock, Tokens: Tokenize(header), Body: body, Tail: Tokenize(tail)}
}

type Prototype struct {
	ReturnType string
	Name       string
	Params     []*VarDecl
}

// Function is a decompiled function: prototype plus body.
type Function struct {
	Prototype Prototype
	Body      []*Statement
}

// LeadingDecls returns the declarations at the top of the body, stopping at
// the first statement of any other kind.
func (f *Function) LeadingDecls() []*VarDecl {
	var out []*VarDecl
	for _, stmt := range f.Body {
		if stmt.Kind != StmtDecl {
			break
		}
		out = append(out, stmt.Decl)
	}
	return out
}

// Rename replaces every identifier occurrence of from with to and returns
// the number of replacements.
func (f *Function) Rename(from, to string) int {
	if from == to || from == "" {
		return 0
	}
	n := 0
	if f.Prototype.Name == from {
		f.Prototype.Name = to
		n++
	}
	for _, p := range f.Prototype.Params {
		if p.Name == from {
			p.Name = to
			n++
		}
	}
	return n + renameStatements(f.Body, from, to)
}

func renameStatements(stmts []*Statement, from, to string) int {
	n := 0
	for _, stmt := range stmts {
		switch stmt.Kind {
		case StmtDecl:
			if stmt.Decl.Name == from {
				stmt.Decl.Name = to
				n++
			}
		case StmtLine:
			n += renameTokens(stmt.Tokens, from, to)
		case StmtBlock:
			n += renameTokens(stmt.Tokens, from, to)
			n += renameStatements(stmt.Body, from, to)
			n += renameTokens(stmt.Tail, from, to)
		}
	}
	return n
}

// Occurrences counts identifier occurrences of name.
func (f *Function) Occurrences(name string) int {
	n := 0
	if f.Prototype.Name == name {
		n++
	}
	for _, p := range f.Prototype.Params {
		if p.Name == name {
			n++
		}
	}
	return n + countStatements(f.Body, name)
}

func countStatements(stmts []*Statement, name string) int {
	n := 0
	for _, stmt := range stmts {
		switch stmt.Kind {
		case StmtDecl:
			if stmt.Decl.Name == name {
				n++
			}
		case StmtLine:
			n += countTokens(stmt.Tokens, name)
		case StmtBlock:
			n += countTokens(stmt.Tokens, name)
			n += countStatements(stmt.Body, name)
			n += countTokens(stmt.Tail, name)
		}
	}
	return n
}

// Render linearizes the function into display lines.
func (f *Function) Render() []string {
	params := make([]string, len(f.Prototype.Params))
	for i, p := range f.Prototype.Params {
		params[i] = p.String()
	}
	sig := f.Prototype.ReturnType + " " + f.Prototype.Name + "(" + strings.Join(params, ",") + ")"
	if len(params) == 0 {
		sig = f.Prototype.ReturnType + " " + f.Prototype.Name + "(void)"
	}
	lines := []string{sig, "", "{"}
	decls := 0
	for _, stmt := range f.Body {
		if stmt.Kind != StmtDecl {
			break
		}
		decls++
	}
	lines = renderStatements(lines, f.Body[:decls], 1)
	if decls > 0 && decls < len(f.Body) {
		lines = append(lines, "")
	}
	lines = renderStatements(lines, f.Body[decls:], 1)
	return append(lines, "}")
}

func renderStatements(lines []string, stmts []*Statement, depth int) []string {
	indent := strings.Repeat(indentUnit, depth)
	for _, stmt := range stmts {
		switch stmt.Kind {
		case StmtDecl:
			lines = append(lines, indent+stmt.Decl.String()+";")
		case StmtLine:
			lines = append(lines, indent+joinTokens(stmt.Tokens))
		case StmtBlock:
			header := joinTokens(stmt.Tokens)
			if header == "" {
				lines = append(lines, indent+"{")
			} else {
				lines = append(lines, indent+header+" {")
			}
			lines = renderStatements(lines, stmt.Body, depth+1)
			lines = append(lines, indent+"}"+joinTokens(stmt.Tail))
		}
	}
	return lines
}
