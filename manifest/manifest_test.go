package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

func write(t *testing.T, path, text string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestWriteModule(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caller-utils")
	err := WriteModule(dir, "example.com/app/caller-utils", "1.25",
		[]module.Version{{Path: "github.com/hyperware-ai/hyper-bindgen", Version: "v0.3.0"}},
		map[string]string{"github.com/hyperware-ai/hyper-bindgen": "../../hyper-bindgen"})
	if err != nil {
		t.Fatalf("WriteModule: %v", err)
	}
	data := read(t, filepath.Join(dir, GoModName))
	f, err := modfile.Parse("go.mod", []byte(data), nil)
	if err != nil {
		t.Fatalf("written go.mod does not parse: %v\n%s", err, data)
	}
	if f.Module.Mod.Path != "example.com/app/caller-utils" || f.Go.Version != "1.25" {
		t.Fatalf("unexpected header:\n%s", data)
	}
	if len(f.Require) != 1 || f.Require[0].Mod.Version != "v0.3.0" {
		t.Fatalf("unexpected require:\n%s", data)
	}
	if len(f.Replace) != 1 || f.Replace[0].New.Path != "../../hyper-bindgen" {
		t.Fatalf("unexpected replace:\n%s", data)
	}
	mp, err := ModulePath(dir)
	if err != nil || mp != "example.com/app/caller-utils" {
		t.Fatalf("ModulePath = %q, %v", mp, err)
	}
}

func TestWriteModuleRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	if err := WriteModule(dir, "bad path with spaces", "1.25", nil, nil); err == nil {
		t.Fatalf("expected module path error")
	}
	if err := WriteModule(dir, "example.com/x", "1.25", []module.Version{{Path: "example.com/y", Version: "latest"}}, nil); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestModulePathMissing(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, GoModName), "go 1.25\n")
	if _, err := ModulePath(dir); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRegisterWorkspaceMember(t *testing.T) {
	base := t.TempDir()
	changed, err := RegisterWorkspaceMember(base, "caller-utils")
	if err != nil || changed {
		t.Fatalf("missing go.work: changed=%v err=%v", changed, err)
	}

	work := filepath.Join(base, GoWorkName)
	write(t, work, "go 1.25\n\n// projects\nuse (\n\t./app\n)\n")
	changed, err = RegisterWorkspaceMember(base, "caller-utils")
	if err != nil || !changed {
		t.Fatalf("first register: changed=%v err=%v", changed, err)
	}
	first := read(t, work)
	if !strings.Contains(first, "./caller-utils") || !strings.Contains(first, "// projects") {
		t.Fatalf("unexpected go.work:\n%s", first)
	}

	changed, err = RegisterWorkspaceMember(base, "./caller-utils")
	if err != nil || changed {
		t.Fatalf("second register: changed=%v err=%v", changed, err)
	}
	if again := read(t, work); again != first {
		t.Fatalf("go.work changed on re-run:\n%s\n---\n%s", first, again)
	}
}

func TestAddPathDependencyIsIdempotent(t *testing.T) {
	base := t.TempDir()
	project := filepath.Join(base, "app")
	target := filepath.Join(base, "caller-utils")
	gomod := filepath.Join(project, GoModName)
	write(t, gomod, "module example.com/app\n\ngo 1.25\n\nrequire example.com/other v1.2.3 // keep\n")

	changed, err := AddPathDependency(project, "example.com/app/caller-utils", target)
	if err != nil || !changed {
		t.Fatalf("first add: changed=%v err=%v", changed, err)
	}
	first := read(t, gomod)
	f, err := modfile.Parse("go.mod", []byte(first), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var found bool
	for _, r := range f.Require {
		if r.Mod.Path == "example.com/app/caller-utils" && r.Mod.Version == PathVersion {
			found = true
		}
	}
	if !found {
		t.Fatalf("require missing:\n%s", first)
	}
	if len(f.Replace) != 1 || f.Replace[0].New.Path != "../caller-utils" {
		t.Fatalf("replace missing:\n%s", first)
	}
	if !strings.Contains(first, "// keep") {
		t.Fatalf("comment lost:\n%s", first)
	}

	changed, err = AddPathDependency(project, "example.com/app/caller-utils", target)
	if err != nil || changed {
		t.Fatalf("second add: changed=%v err=%v", changed, err)
	}
	if again := read(t, gomod); again != first {
		t.Fatalf("go.mod changed on re-run:\n%s\n---\n%s", first, again)
	}
}

func TestAddPathDependencyMissingProject(t *testing.T) {
	if _, err := AddPathDependency(t.TempDir(), "example.com/x", t.TempDir()); err == nil {
		t.Fatalf("expected read error")
	}
}
