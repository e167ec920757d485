package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Snake converts kebab-case to snake_case.
func Snake(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

// Pascal converts kebab-case to PascalCase. Empty segments are dropped.
func Pascal(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "-") {
		if part == "" {
			continue
		}
		r, n := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[n:])
	}
	return b.String()
}

// LowerCamel converts kebab-case to lowerCamelCase.
func LowerCamel(s string) string {
	p := Pascal(s)
	if p == "" {
		return ""
	}
	r, n := utf8.DecodeRuneInString(p)
	return string(unicode.ToLower(r)) + p[n:]
}

var reserved = map[string]bool{
	// keywords
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	// predeclared
	"any": true, "bool": true, "byte": true, "comparable": true, "error": true,
	"float32": true, "float64": true, "int": true, "int8": true, "int16": true,
	"int32": true, "int64": true, "rune": true, "string": true, "uint": true,
	"uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"true": true, "false": true, "nil": true, "iota": true,
	"append": true, "cap": true, "clear": true, "close": true, "copy": true,
	"delete": true, "len": true, "make": true, "max": true, "min": true,
	"new": true, "panic": true, "print": true, "println": true, "recover": true,
	// locals and package names used by generated stubs
	"ctx": true, "target": true, "request": true, "caller": true, "wit": true, "context": true,
}

// SafeIdent returns name, suffixed with "_" when it would shadow a Go keyword,
// a predeclared identifier or a name generated stubs use themselves.
func SafeIdent(name string) string {
	if reserved[name] {
		return name + "_"
	}
	return name
}

// Param converts a kebab-case field name to a safe lowerCamel parameter name.
func Param(s string) string {
	return SafeIdent(LowerCamel(s))
}
