package witparse

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// SignatureInfix separates operation name and call kind in a signature
	// record name: "<op>-signature-<kind>".
	SignatureInfix = "-signature-"

	// Control field names.
	TargetField    = "target"
	ReturningField = "returning"
)

var ErrDuplicateControlField = errors.New("duplicate control field")

// Field is one "name: type" line of a signature record.
type Field struct {
	Name string
	Type string
}

// Signature is one remote-callable operation.
type Signature struct {
	Operation string
	Kind      string
	Fields    []Field // Source order, control fields included.
	Line      int     // 1-based line of the record declaration.
}

// Call is a Signature with its control fields split out.
type Call struct {
	Target    *Field // nil when the record has no target field.
	Returning *Field // nil when the operation returns nothing.
	Params    []Field
}

// Call validates the control slots and returns the remaining parameters in
// source order.
func (s *Signature) Call() (Call, error) {
	var c Call
	for i := range s.Fields {
		f := s.Fields[i]
		switch f.Name {
		case TargetField:
			if c.Target != nil {
				return Call{}, fmt.Errorf("%s-%s: %w %q", s.Operation, s.Kind, ErrDuplicateControlField, f.Name)
			}
			c.Target = &f
		case ReturningField:
			if c.Returning != nil {
				return Call{}, fmt.Errorf("%s-%s: %w %q", s.Operation, s.Kind, ErrDuplicateControlField, f.Name)
			}
			c.Returning = &f
		default:
			c.Params = append(c.Params, f)
		}
	}
	return c, nil
}

type TypeKind string

const (
	KindRecord  TypeKind = "record"
	KindVariant TypeKind = "variant"
)

// TypeDecl is a plain record or variant declared outside any signature.
type TypeDecl struct {
	Kind TypeKind
	Name string
}

// Diagnostic is a recoverable problem found while scanning a file.
type Diagnostic struct {
	Path string
	Line int
	Msg  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Msg)
}

// File is the scan result for one interface source.
type File struct {
	Path        string
	Interface   string
	Signatures  []Signature
	Types       []TypeDecl
	Diagnostics []Diagnostic
}

// ParseFile reads and scans path.
func ParseFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSource(path, string(b)), nil
}

// ParseSource scans text, the contents of path.
//
// Signature bodies are assumed to be one level deep: the body ends at the
// first line starting with "}".
func ParseSource(path, text string) *File {
	f := &File{Path: path, Interface: InterfaceName(path)}
	lines := strings.Split(text, "\n")
	diag := func(i int, format string, args ...any) {
		f.Diagnostics = append(f.Diagnostics, Diagnostic{Path: path, Line: i + 1, Msg: fmt.Sprintf(format, args...)})
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "record ") && !strings.Contains(line, SignatureInfix):
			f.Types = append(f.Types, TypeDecl{Kind: KindRecord, Name: declName(line, "record ")})
		case strings.HasPrefix(line, "variant "):
			f.Types = append(f.Types, TypeDecl{Kind: KindVariant, Name: declName(line, "variant ")})
		case strings.HasPrefix(line, "record "):
			name := declName(line, "record ")
			parts := strings.Split(name, SignatureInfix)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				diag(i, "malformed signature record name %q", name)
				continue
			}
			sig := Signature{Operation: parts[0], Kind: parts[1], Line: i + 1}
			closed := false
			for i++; i < len(lines); i++ {
				fl := strings.TrimSpace(lines[i])
				if strings.HasPrefix(fl, "}") {
					closed = true
					break
				}
				if fl == "" || strings.HasPrefix(fl, "//") {
					continue
				}
				field, ok := parseField(fl)
				if !ok {
					diag(i, "malformed field %q in %s", fl, name)
					continue
				}
				sig.Fields = append(sig.Fields, field)
			}
			if !closed {
				diag(sig.Line-1, "signature record %s is not closed", name)
			}
			f.Signatures = append(f.Signatures, sig)
		}
	}
	return f
}

func declName(line, keyword string) string {
	name := strings.TrimPrefix(line, keyword)
	name = strings.TrimSpace(name)
	return strings.TrimSpace(strings.TrimSuffix(name, "{"))
}

func parseField(line string) (Field, bool) {
	parts := strings.Split(line, ":")
	if len(parts) != 2 {
		return Field{}, false
	}
	name := strings.TrimSpace(parts[0])
	typ := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(parts[1]), ","))
	if name == "" || typ == "" {
		return Field{}, false
	}
	return Field{Name: name, Type: typ}, true
}
