package typemap

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"strings"
)

// DefaultValue returns a Go expression evaluating to the default instance of
// goType, a type expression as produced by Map.
//
// Named types outside the runtime package default to a composite literal
// ("Name{}"); the generated bindings must make that valid.
func DefaultValue(goType string) (string, error) {
	x, err := parser.ParseExpr(goType)
	if err != nil {
		return "", &Error{Expr: goType, Msg: "not a Go type expression: " + err.Error()}
	}
	return defaultOf(goType, x)
}

func defaultOf(src string, x ast.Expr) (string, error) {
	switch t := x.(type) {
	case *ast.ParenExpr:
		return defaultOf(src, t.X)
	case *ast.Ident:
		return identDefault(t.Name), nil
	case *ast.StarExpr:
		return "nil", nil
	case *ast.ArrayType, *ast.MapType, *ast.StructType, *ast.SelectorExpr:
		return types.ExprString(t) + "{}", nil
	case *ast.IndexExpr:
		return genericDefault(src, t.X, []ast.Expr{t.Index})
	case *ast.IndexListExpr:
		return genericDefault(src, t.X, t.Indices)
	case *ast.InterfaceType, *ast.FuncType, *ast.ChanType:
		return "nil", nil
	default:
		return "", &Error{Expr: src, Pos: int(x.Pos()) - 1, Msg: fmt.Sprintf("unsupported type expression %T", x)}
	}
}

func identDefault(name string) string {
	switch name {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"byte", "rune":
		return "0"
	case "float32", "float64":
		return "0.0"
	case "string":
		return `""`
	case "bool":
		return "false"
	case "any", "error":
		return "nil"
	default:
		return name + "{}"
	}
}

// genericDefault handles instantiated runtime generics (wit.Result, wit.TupleN).
// Any other generic type gets a composite literal.
func genericDefault(src string, base ast.Expr, typeArgs []ast.Expr) (string, error) {
	full := types.ExprString(base) + "[" + exprList(typeArgs) + "]"
	sel, ok := base.(*ast.SelectorExpr)
	if !ok {
		return full + "{}", nil
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != RuntimePackage {
		return full + "{}", nil
	}
	name := sel.Sel.Name
	switch {
	case name == "Result":
		if len(typeArgs) != 2 {
			return "", &Error{Expr: src, Msg: "Result needs two type arguments"}
		}
		value, err := defaultOf(src, typeArgs[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.Ok[%s](%s)", RuntimePackage, exprList(typeArgs), value), nil
	case strings.HasPrefix(name, "Tuple"):
		fields := make([]string, len(typeArgs))
		for i, a := range typeArgs {
			d, err := defaultOf(src, a)
			if err != nil {
				return "", err
			}
			fields[i] = fmt.Sprintf("V%d: %s", i, d)
		}
		return full + "{" + strings.Join(fields, ", ") + "}", nil
	default:
		return full + "{}", nil
	}
}

func exprList(xs []ast.Expr) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = types.ExprString(x)
	}
	return strings.Join(parts, ", ")
}
