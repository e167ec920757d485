// Package typemap translates WIT type expressions into Go type expressions
// and produces default-value expressions for the resulting Go types.
package typemap

import (
	"fmt"
	"strings"

	"github.com/hyperware-ai/hyper-bindgen/internal/naming"
)

// Qualifier of the runtime value types referenced by mapped expressions.
const RuntimePackage = "wit"

// MaxTupleArity is the largest tuple the runtime package has a type for.
const MaxTupleArity = 8

const unitType = "struct{}"

var primitives = map[string]string{
	"s8":  "int8",
	"s16": "int16",
	"s32": "int32",
	"s64": "int64",
	"i8":  "int8",
	"i16": "int16",
	"i32": "int32",
	"i64": "int64",
	"u8":  "uint8",
	"u16": "uint16",
	"u32": "uint32",
	"u64": "uint64",

	"usize": "uint",
	"isize": "int",

	"f32":     "float32",
	"f64":     "float64",
	"float32": "float32",
	"float64": "float64",

	"string": "string",
	"str":    "string",
	"char":   "rune",
	"bool":   "bool",
	"unit":   unitType,
	"_":      unitType,

	"address": RuntimePackage + ".Address",
}

// IsPrimitive reports whether name is in the fixed primitive table.
func IsPrimitive(name string) bool {
	_, ok := primitives[name]
	return ok
}

// Map converts a WIT type expression (for example "list<tuple<string, u64>>")
// into the Go type expression generated code uses for it.
func Map(expr string) (string, error) {
	n, err := parse(expr)
	if err != nil {
		return "", err
	}
	return mapNode(expr, n)
}

// Zero maps expr and returns the default-value expression of the mapped type.
func Zero(expr string) (string, error) {
	goType, err := Map(expr)
	if err != nil {
		return "", err
	}
	return DefaultValue(goType)
}

func mapNode(expr string, n *node) (string, error) {
	if !n.generic {
		if goType, ok := primitives[n.name]; ok {
			return goType, nil
		}
		switch n.name {
		case "result":
			return fmt.Sprintf("%s.Result[%s, %s]", RuntimePackage, unitType, unitType), nil
		case "list", "option", "tuple", "map":
			return "", &Error{Expr: expr, Pos: n.pos, Msg: n.name + " requires type arguments"}
		}
		return naming.Pascal(n.name), nil
	}

	args := make([]string, len(n.args))
	for i, a := range n.args {
		m, err := mapNode(expr, a)
		if err != nil {
			return "", err
		}
		args[i] = m
	}
	arity := func(lo, hi int) error {
		if len(args) < lo || len(args) > hi {
			want := fmt.Sprintf("%d", lo)
			if hi != lo {
				want = fmt.Sprintf("%d..%d", lo, hi)
			}
			return &Error{Expr: expr, Pos: n.pos, Msg: fmt.Sprintf("%s takes %s type arguments, got %d", n.name, want, len(args))}
		}
		return nil
	}

	switch n.name {
	case "list":
		if err := arity(1, 1); err != nil {
			return "", err
		}
		return "[]" + args[0], nil
	case "option":
		if err := arity(1, 1); err != nil {
			return "", err
		}
		return "*" + args[0], nil
	case "result":
		if err := arity(1, 2); err != nil {
			return "", err
		}
		errType := unitType
		if len(args) == 2 {
			errType = args[1]
		}
		return fmt.Sprintf("%s.Result[%s, %s]", RuntimePackage, args[0], errType), nil
	case "tuple":
		if err := arity(1, MaxTupleArity); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.Tuple%d[%s]", RuntimePackage, len(args), strings.Join(args, ", ")), nil
	case "map":
		if err := arity(2, 2); err != nil {
			return "", err
		}
		return fmt.Sprintf("map[%s]%s", args[0], args[1]), nil
	default:
		return "", &Error{Expr: expr, Pos: n.pos, Msg: fmt.Sprintf("unknown parametric type %q", n.name)}
	}
}
