package witparse

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestResolveWorldPrefersPrefixed(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"app.wit":       "package hyperware:process;\n\nworld app {\n    import wallet;\n}\n",
		"types-app.wit": "world types-app {\n    import wallet;\n    import ledger;\n}\n",
		"wallet.wit":    "interface wallet {\n}\n",
	})
	w, err := ResolveWorld(dir)
	if err != nil {
		t.Fatalf("ResolveWorld: %v", err)
	}
	if w.Name != "types-app" {
		t.Fatalf("Name = %q, want types-app", w.Name)
	}
	if len(w.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", w.Warnings)
	}
	want := []string{"wallet", "wallet", "ledger"}
	if !reflect.DeepEqual(w.Imports, want) {
		t.Fatalf("Imports = %v, want %v", w.Imports, want)
	}
	if !reflect.DeepEqual(w.Files, []string{"app.wit", "types-app.wit"}) {
		t.Fatalf("Files = %v", w.Files)
	}
}

func TestResolveWorldSiblingFile(t *testing.T) {
	// The sibling exists but carries no world line itself.
	dir := writeFiles(t, map[string]string{
		"app.wit":       "world app {\n    import wallet;\n}\n",
		"types-app.wit": "interface shared {\n}\n",
	})
	w, err := ResolveWorld(dir)
	if err != nil {
		t.Fatalf("ResolveWorld: %v", err)
	}
	if w.Name != "types-app" {
		t.Fatalf("Name = %q, want types-app", w.Name)
	}
	if len(w.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", w.Warnings)
	}
}

func TestResolveWorldPlainWithWarning(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"app.wit": "world app{\n    import wallet;\n}\n",
	})
	w, err := ResolveWorld(dir)
	if err != nil {
		t.Fatalf("ResolveWorld: %v", err)
	}
	if w.Name != "app" {
		t.Fatalf("Name = %q, want app", w.Name)
	}
	if len(w.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", w.Warnings)
	}
}

func TestResolveWorldMissing(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"wallet.wit": "interface wallet {\n    record balance {\n    }\n}\n",
		"notes.txt":  "world app {\n}\n",
	})
	_, err := ResolveWorld(dir)
	if !errors.Is(err, ErrNoWorld) {
		t.Fatalf("expected ErrNoWorld, got %v", err)
	}
}

func TestFindImportsAndListSources(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.wit":      "world types-b {\n  import ledger;\n  import  wallet ;\n  export run;\n  import broken\n}\n",
		"a.wit":      "interface a {}\n",
		"ignore.txt": "",
	})
	if err := os.Mkdir(filepath.Join(dir, "nested.wit"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	sources, err := ListSources(dir)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 2 || filepath.Base(sources[0]) != "a.wit" || filepath.Base(sources[1]) != "b.wit" {
		t.Fatalf("ListSources = %v", sources)
	}
	imports, err := FindImports(dir)
	if err != nil {
		t.Fatalf("FindImports: %v", err)
	}
	if !reflect.DeepEqual(imports, []string{"ledger", "wallet"}) {
		t.Fatalf("FindImports = %v", imports)
	}
}

const walletWIT = `interface wallet {
    use standard.{address};

    record balance-info {
        owner: string,
        amount: u64,
    }

    variant transfer-error {
        insufficient-funds,
        unknown-account(string),
    }

    // get-balance
    record get-balance-signature-remote {
        target: string,
        returning: u64,
    }

    record transfer-signature-remote {
        // routing
        target: address,

        to: string,
        amount: u64,
        returning: result<bool, transfer-error>,
    }

    record history-signature-http {
        target: string,
        since: option<u64>,
        returning: list<tuple<string, u64>>,
    }
}
`

func TestParseSource(t *testing.T) {
	f := ParseSource("/api/wallet.wit", walletWIT)
	if f.Interface != "wallet" {
		t.Fatalf("Interface = %q", f.Interface)
	}
	wantTypes := []TypeDecl{{KindRecord, "balance-info"}, {KindVariant, "transfer-error"}}
	if !reflect.DeepEqual(f.Types, wantTypes) {
		t.Fatalf("Types = %v, want %v", f.Types, wantTypes)
	}
	if len(f.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", f.Diagnostics)
	}
	if len(f.Signatures) != 3 {
		t.Fatalf("expected 3 signatures, got %d", len(f.Signatures))
	}

	get := f.Signatures[0]
	if get.Operation != "get-balance" || get.Kind != "remote" || get.Line != 15 {
		t.Fatalf("unexpected signature: %+v", get)
	}
	if !reflect.DeepEqual(get.Fields, []Field{{"target", "string"}, {"returning", "u64"}}) {
		t.Fatalf("get-balance fields = %v", get.Fields)
	}

	transfer := f.Signatures[1]
	want := []Field{
		{"target", "address"},
		{"to", "string"},
		{"amount", "u64"},
		{"returning", "result<bool, transfer-error>"},
	}
	if !reflect.DeepEqual(transfer.Fields, want) {
		t.Fatalf("transfer fields = %v", transfer.Fields)
	}
	if f.Signatures[2].Kind != "http" {
		t.Fatalf("history kind = %q", f.Signatures[2].Kind)
	}
}

func TestParseSourceRecoversFromMalformedInput(t *testing.T) {
	text := `interface odd {
    record a-signature-b-signature-c {
        x: u8,
    }
    record ping-signature-remote {
        target: string,
        this line is junk
        a: b: c,
    }
    record after {
    }
}
`
	f := ParseSource("odd.wit", text)
	if len(f.Diagnostics) != 3 {
		t.Fatalf("expected 3 diagnostics, got %v", f.Diagnostics)
	}
	if f.Diagnostics[0].Line != 2 {
		t.Fatalf("first diagnostic line = %d", f.Diagnostics[0].Line)
	}
	if len(f.Signatures) != 1 || f.Signatures[0].Operation != "ping" {
		t.Fatalf("unexpected signatures: %+v", f.Signatures)
	}
	if len(f.Signatures[0].Fields) != 1 {
		t.Fatalf("unexpected fields: %+v", f.Signatures[0].Fields)
	}
	if len(f.Types) != 1 || f.Types[0].Name != "after" {
		t.Fatalf("unexpected types: %+v", f.Types)
	}
}

func TestParseSourceUnclosedSignature(t *testing.T) {
	f := ParseSource("x.wit", "record go-signature-remote {\n    target: string,\n")
	if len(f.Signatures) != 1 || len(f.Diagnostics) != 1 {
		t.Fatalf("signatures=%v diagnostics=%v", f.Signatures, f.Diagnostics)
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "nope.wit")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestSignatureCall(t *testing.T) {
	sig := Signature{Operation: "transfer", Kind: "remote", Fields: []Field{
		{"to", "string"},
		{"target", "address"},
		{"returning", "bool"},
		{"amount", "u64"},
	}}
	c, err := sig.Call()
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if c.Target == nil || c.Target.Type != "address" {
		t.Fatalf("Target = %+v", c.Target)
	}
	if c.Returning == nil || c.Returning.Type != "bool" {
		t.Fatalf("Returning = %+v", c.Returning)
	}
	if !reflect.DeepEqual(c.Params, []Field{{"to", "string"}, {"amount", "u64"}}) {
		t.Fatalf("Params = %v", c.Params)
	}

	none := Signature{Operation: "ping", Kind: "remote"}
	c, err = none.Call()
	if err != nil || c.Target != nil || c.Returning != nil || len(c.Params) != 0 {
		t.Fatalf("empty Call = %+v, %v", c, err)
	}

	dup := Signature{Operation: "x", Kind: "remote", Fields: []Field{{"target", "string"}, {"target", "address"}}}
	if _, err := dup.Call(); !errors.Is(err, ErrDuplicateControlField) {
		t.Fatalf("expected ErrDuplicateControlField, got %v", err)
	}
}
