// Package stubgen renders one Go caller stub per WIT signature record.
package stubgen

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/hyperware-ai/hyper-bindgen/internal/naming"
	"github.com/hyperware-ai/hyper-bindgen/typemap"
	"github.com/hyperware-ai/hyper-bindgen/witparse"
)

// Import paths referenced by generated stubs.
const (
	CallerImport = "github.com/hyperware-ai/hyper-bindgen/caller"
	WitImport    = "github.com/hyperware-ai/hyper-bindgen/wit"
)

const (
	DefaultTimeoutSeconds = 30
	unitType              = "struct{}"
	addressType           = typemap.RuntimePackage + ".Address"
)

// Generator holds the emission settings shared by all stubs of a run.
type Generator struct {
	// Special lists call kinds rendered as inert templates.
	Special        map[string]bool
	TimeoutSeconds int
}

func New() *Generator {
	return &Generator{
		Special:        map[string]bool{"http": true},
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// Stub is the rendered source of one operation.
type Stub struct {
	Name      string
	Operation string
	Kind      string
	Inert     bool
	// Params holds the generated parameter names, routing parameter first,
	// and ParamTypes the Go type of each.
	Params     []string
	ParamTypes []string
	Return     string // Go type of the reply.
	Notes      []string
	Source     string
}

type param struct {
	name string
	typ  string
}

// Name returns the Go name of the stub for sig: <Operation><Kind>RPC.
func Name(sig witparse.Signature) string {
	return naming.Pascal(sig.Operation) + naming.Pascal(sig.Kind) + "RPC"
}

// Generate renders sig as a package-level function.
func (g *Generator) Generate(sig witparse.Signature) (*Stub, error) {
	return g.GenerateMethod("", sig)
}

// GenerateMethod renders sig as a method on recv. An empty recv renders a
// plain function.
func (g *Generator) GenerateMethod(recv string, sig witparse.Signature) (*Stub, error) {
	call, err := sig.Call()
	if err != nil {
		return nil, err
	}
	st := &Stub{
		Name:      Name(sig),
		Operation: sig.Operation,
		Kind:      sig.Kind,
		Inert:     g.Special[sig.Kind],
		Return:    unitType,
	}

	targetType := addressType
	switch {
	case call.Target == nil:
		st.Notes = append(st.Notes, "no target field; routing parameter defaults to "+addressType)
	case call.Target.Type == "string":
		targetType = "string"
	}

	if call.Returning != nil {
		r, err := typemap.Map(call.Returning.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: returning: %w", st.Name, err)
		}
		st.Return = r
	}

	seen := map[string]bool{"ctx": true, "target": true}
	params := make([]param, 0, len(call.Params))
	for _, f := range call.Params {
		t, err := typemap.Map(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: field %s: %w", st.Name, f.Name, err)
		}
		name := naming.Param(f.Name)
		for i := 2; seen[name]; i++ {
			name = naming.Param(f.Name) + strconv.Itoa(i)
		}
		seen[name] = true
		params = append(params, param{name: name, typ: t})
	}

	st.Params = append(st.Params, "target")
	st.ParamTypes = append(st.ParamTypes, targetType)
	for _, p := range params {
		st.Params = append(st.Params, p.name)
		st.ParamTypes = append(st.ParamTypes, p.typ)
	}

	doc := fmt.Sprintf("%s calls %s over %s.", st.Name, sig.Operation, sig.Kind)
	if st.Inert {
		st.Source, err = g.renderInert(recv, st, doc, targetType, params)
	} else {
		st.Source, err = g.renderLive(recv, st, doc, targetType, params)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (g *Generator) renderLive(recv string, st *Stub, doc, targetType string, params []param) (string, error) {
	sig := []jen.Code{
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("target").Id(targetType),
	}
	for _, p := range params {
		sig = append(sig, jen.Id(p.name).Id(p.typ))
	}

	timeout := g.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds
	}
	body := []jen.Code{
		jen.Id("request").Op(":=").Add(payload(naming.Pascal(st.Operation), params)),
		jen.Return(jen.Qual(CallerImport, "Send").Types(jen.Id(st.Return)).Call(
			jen.Id("ctx"), jen.Id("request"), jen.Id("target"), jen.Lit(timeout),
		)),
	}

	decl := jen.Comment(doc).Line().Func()
	if recv != "" {
		decl = decl.Params(jen.Id(recv))
	}
	decl = decl.Id(st.Name).Params(sig...).Params(jen.Id(st.Return), jen.Error()).Block(body...)
	return render(decl)
}

// renderInert renders the same signature with "_"-prefixed parameters and a
// default reply, every line commented out.
func (g *Generator) renderInert(recv string, st *Stub, doc, targetType string, params []param) (string, error) {
	def, err := typemap.DefaultValue(st.Return)
	if err != nil {
		return "", fmt.Errorf("%s: %w", st.Name, err)
	}
	sig := []jen.Code{
		jen.Id("_ctx").Qual("context", "Context"),
		jen.Id("_target").Id(targetType),
	}
	for _, p := range params {
		sig = append(sig, jen.Id("_"+p.name).Id(p.typ))
	}
	decl := jen.Func()
	if recv != "" {
		decl = decl.Params(jen.Id(recv))
	}
	decl = decl.Id(st.Name).Params(sig...).Params(jen.Id(st.Return), jen.Error()).Block(
		jen.Return(jen.Id(def), jen.Nil()),
	)
	src, err := render(decl)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("// " + doc + "\n")
	b.WriteString("// " + st.Kind + " endpoint: manual implementation template, uncomment to implement.\n")
	for _, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
		if line == "" {
			b.WriteString("//\n")
			continue
		}
		b.WriteString("// " + line + "\n")
	}
	return b.String(), nil
}

// payload builds the request literal. Zero parameters send an empty struct,
// one sends the bare value and several send a JSON array in field order.
func payload(op string, params []param) *jen.Statement {
	var value jen.Code
	switch len(params) {
	case 0:
		value = jen.Struct().Values()
	case 1:
		value = jen.Id(params[0].name)
	default:
		items := make([]jen.Code, len(params))
		for i, p := range params {
			items[i] = jen.Id(p.name)
		}
		value = jen.Index().Id("any").Values(items...)
	}
	return jen.Map(jen.String()).Id("any").Values(jen.Dict{jen.Lit(op): value})
}

func render(c *jen.Statement) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return string(bytes.TrimRight(out, "\n")) + "\n", nil
}
