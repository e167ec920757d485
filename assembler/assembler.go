// Package assembler joins rendered stubs into the single generated Go file
// of the caller-utils module and stages the WIT sources next to it.
package assembler

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperware-ai/hyper-bindgen/internal/naming"
	"github.com/hyperware-ai/hyper-bindgen/stubgen"
	"github.com/hyperware-ai/hyper-bindgen/witparse"
)

const (
	DefaultBindgen     = "go run go.bytecodealliance.org/cmd/wit-bindgen-go generate"
	DefaultBindingsDir = "bindings"
	DefaultStageDir    = "target/wit"
)

// Module is the stubs generated from one interface file.
type Module struct {
	Interface string
	Stubs     []*stubgen.Stub
}

// Input is everything one generated file is built from.
type Input struct {
	Package     string
	World       string
	UnusedTypes bool

	Bindgen     string // Binding generator command for the go:generate line.
	BindingsDir string // Output directory of the binding generator, relative to the module.
	StageDir    string // Staged WIT sources, relative to the module.

	// BindingsImport is the import path prefix of the generated bindings;
	// interface packages live directly under it.
	BindingsImport string

	Imports []string            // World imports, duplicates allowed.
	Types   map[string][]string // Interface name -> declared WIT type names.
	Modules []Module
}

var ErrNoPackage = errors.New("assembler: package name is required")

// Receiver returns the unexported stub-set type name for iface.
func Receiver(iface string) string {
	return naming.LowerCamel(iface) + "Stubs"
}

// InterfaceImport returns the snake-case key and bindings path of one world
// import such as "wallet" or "hyperware:process/wallet@0.1.0".
func InterfaceImport(prefix, imp string) (key, path string) {
	name := imp
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	key = naming.Snake(strings.TrimSpace(name))
	return key, strings.TrimSuffix(prefix, "/") + "/" + key
}

// Assemble renders the generated file. Interfaces whose types the live stubs
// reference are dot-imported; the rest are imported for their side effects
// so the bindings stay linked.
func Assemble(in Input) ([]byte, error) {
	if in.Package == "" {
		return nil, ErrNoPackage
	}
	bindgen := orDefault(in.Bindgen, DefaultBindgen)
	bindingsDir := orDefault(in.BindingsDir, DefaultBindingsDir)
	stageDir := orDefault(in.StageDir, DefaultStageDir)

	used := referencedInterfaces(in.Modules, in.Types)
	typeNames := map[string]bool{}
	for _, names := range in.Types {
		for _, n := range names {
			typeNames[naming.Pascal(n)] = true
		}
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by hyper-bindgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "//go:generate %s --world %s --out %s ./%s\n", bindgen, in.World, bindingsDir, filepath.ToSlash(stageDir))
	fmt.Fprintf(&b, "//hyper-bindgen:world %s generate-unused-types=%t\n\n", in.World, in.UnusedTypes)
	fmt.Fprintf(&b, "// Package %s holds the generated caller stubs of the %s world.\n", in.Package, in.World)
	fmt.Fprintf(&b, "package %s\n\n", in.Package)

	b.WriteString("import (\n")
	b.WriteString("\t\"context\"\n\n")
	fmt.Fprintf(&b, "\t%q\n", stubgen.CallerImport)
	fmt.Fprintf(&b, "\t%q\n", stubgen.WitImport)
	if in.BindingsImport != "" && len(in.Imports) > 0 {
		b.WriteString("\n")
		seen := map[string]bool{}
		for _, imp := range in.Imports {
			key, path := InterfaceImport(in.BindingsImport, imp)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if used[key] {
				fmt.Fprintf(&b, "\t. %q\n", path)
			} else {
				fmt.Fprintf(&b, "\t_ %q\n", path)
			}
		}
	}
	b.WriteString(")\n\n")

	b.WriteString("var (\n")
	b.WriteString("\t_ context.Context\n")
	b.WriteString("\t_ = caller.ErrTimeout\n")
	b.WriteString("\t_ wit.Address\n")
	b.WriteString(")\n")

	for _, m := range in.Modules {
		if len(m.Stubs) == 0 {
			continue
		}
		recv := Receiver(m.Interface)
		varName := naming.Pascal(m.Interface)
		if typeNames[varName] {
			varName += "Stubs"
		}
		fmt.Fprintf(&b, "\ntype %s struct{}\n\n", recv)
		fmt.Fprintf(&b, "// %s holds the caller stubs of the %s interface.\n", varName, m.Interface)
		fmt.Fprintf(&b, "var %s %s\n", varName, recv)
		for _, st := range m.Stubs {
			b.WriteString("\n")
			b.WriteString(st.Source)
		}
	}

	out, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("assembler: format: %w", err)
	}
	return out, nil
}

// referencedInterfaces returns the snake names of interfaces with at least
// one type named in the signature of a live stub. Only type positions count:
// payload keys and doc text can spell a type name without using it.
func referencedInterfaces(modules []Module, types map[string][]string) map[string]bool {
	named := map[string]bool{}
	for _, m := range modules {
		for _, st := range m.Stubs {
			if st.Inert {
				continue
			}
			for _, t := range st.ParamTypes {
				typeIdents(t, named)
			}
			typeIdents(st.Return, named)
		}
	}
	used := map[string]bool{}
	for iface, names := range types {
		for _, n := range names {
			if named[naming.Pascal(n)] {
				used[naming.Snake(iface)] = true
				break
			}
		}
	}
	return used
}

// typeIdents adds the unqualified identifiers of the Go type expression expr
// to into. Qualified names such as wit.Address are skipped.
func typeIdents(expr string, into map[string]bool) {
	x, err := parser.ParseExpr(expr)
	if err != nil {
		return
	}
	ast.Inspect(x, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			return false
		case *ast.Ident:
			into[n.Name] = true
		}
		return true
	})
}

// Stage replaces stageDir with fresh copies of every WIT source in srcDir and
// returns the copied file names.
func Stage(srcDir, stageDir string) ([]string, error) {
	sources, err := witparse.ListSources(srcDir)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(stageDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		name := filepath.Base(src)
		if err := copyFile(src, filepath.Join(stageDir, name)); err != nil {
			return names, fmt.Errorf("stage %s: %w", name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
