package ast

var keywords = map[string]struct{}{
	"auto": {}, "break": {}, "case": {}, "char": {}, "const": {},
	"continue": {}, "default": {}, "do": {}, "double": {}, "else": {},
	"enum": {}, "extern": {}, "float": {}, "for": {}, "goto": {},
	"if": {}, "int": {}, "long": {}, "register": {}, "return": {},
	"short": {}, "signed": {}, "sizeof": {}, "static": {}, "struct": {},
	"switch": {}, "typedef": {}, "union": {}, "unsigned": {}, "void": {},
	"volatile": {}, "while": {},
}

// Builtin type names emitted by the decompiler.
var builtinTypes = map[string]struct{}{
	"void": {}, "bool": {}, "uint1": {}, "uint2": {}, "uint4": {},
	"uint8": {}, "int1": {}, "int2": {}, "int4": {}, "int8": {},
	"float4": {}, "float8": {}, "float10": {}, "float16": {},
	"xunknown1": {}, "xunknown2": {}, "xunknown4": {}, "xunknown8": {},
	"code": {}, "char": {}, "wchar2": {}, "wchar4": {}, "undefined": {},
	"undefined1": {}, "undefined2": {}, "undefined4": {},
	"undefined8": {},
}

// IsKeyword reports whether word is a C keyword.
func IsKeyword(word string) bool {
	_, ok := keywords[word]
	return ok
}

// IsReserved reports whether name cannot be used as a variable or symbol
// name in decompiler output: keywords and builtin type names.
func IsReserved(name string) bool {
	if IsKeyword(name) {
		return true
	}
	_, ok := builtinTypes[name]
	return ok
}
