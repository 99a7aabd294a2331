package testutil

import "github.com/kobzarvs/qdecomp/internal/ast"

// LocalsTree returns a function with one parameter, a stack local
// iStack_14 and a register local Stack_none.
func LocalsTree(name string) *ast.Function {
	return &ast.Function{
		Prototype: ast.Prototype{
			ReturnType: "int",
			Name:       name,
			Params:     []*ast.VarDecl{{Type: "int", Name: "param_1"}},
		},
		Body: []*ast.Statement{
			ast.NewDecl("int", "iStack_14"),
			ast.NewDecl("int", "Stack_none"),
			ast.NewLine("iStack_14 = param_1;"),
			ast.NewLine("Stack_none = iStack_14 + 1;"),
			ast.NewLine(`puts("iStack_14");`),
			ast.NewLine("return Stack_none;"),
		},
	}
}

// CallerTree returns a function whose body calls callee.
func CallerTree(name, callee string) *ast.Function {
	return &ast.Function{
		Prototype: ast.Prototype{ReturnType: "void", Name: name},
		Body: []*ast.Statement{
			ast.NewDecl("int", "iVar1"),
			ast.NewLine("iVar1 = " + callee + "();"),
			ast.NewLine("printf(\"%d\", iVar1);"),
		},
	}
}
