// Package manifest writes the generated module's go.mod and registers the
// module with the surrounding workspace and projects.
//
// All edits go through golang.org/x/mod so that rewritten files keep their
// comments and layout, and re-running an edit that is already applied never
// touches the file.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

const (
	GoModName  = "go.mod"
	GoWorkName = "go.work"

	// PathVersion is the placeholder version required for replaced modules.
	PathVersion = "v0.0.0"
)

var ErrNoModulePath = errors.New("manifest: go.mod declares no module path")

// WriteModule writes dir/go.mod for modPath.
func WriteModule(dir, modPath, goVersion string, reqs []module.Version, replaces map[string]string) error {
	if err := module.CheckImportPath(modPath); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	f := new(modfile.File)
	if err := f.AddModuleStmt(modPath); err != nil {
		return err
	}
	if goVersion != "" {
		if err := f.AddGoStmt(goVersion); err != nil {
			return fmt.Errorf("manifest: go version: %w", err)
		}
	}
	for _, r := range reqs {
		if err := module.Check(r.Path, r.Version); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if err := f.AddRequire(r.Path, r.Version); err != nil {
			return err
		}
	}
	olds := make([]string, 0, len(replaces))
	for old := range replaces {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		if err := f.AddReplace(old, "", replaces[old], ""); err != nil {
			return fmt.Errorf("manifest: replace %s: %w", old, err)
		}
	}
	f.Cleanup()
	out, err := f.Format()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, GoModName), out, 0o644)
}

// ModulePath returns the module path declared by dir/go.mod.
func ModulePath(dir string) (string, error) {
	path := filepath.Join(dir, GoModName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mp := modfile.ModulePath(data)
	if mp == "" {
		return "", fmt.Errorf("%w: %s", ErrNoModulePath, path)
	}
	return mp, nil
}

// RegisterWorkspaceMember adds "use ./member" to baseDir/go.work. A missing
// go.work is not an error and reports no change.
func RegisterWorkspaceMember(baseDir, member string) (bool, error) {
	path := filepath.Join(baseDir, GoWorkName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	wf, err := modfile.ParseWork(path, data, nil)
	if err != nil {
		return false, err
	}
	want := dirPath(member)
	for _, u := range wf.Use {
		if dirPath(u.Path) == want {
			return false, nil
		}
	}
	if err := wf.AddUse(want, ""); err != nil {
		return false, err
	}
	wf.Cleanup()
	if err := os.WriteFile(path, modfile.Format(wf.Syntax), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// AddPathDependency makes projectDir/go.mod require modPath and replace it
// with the local directory targetDir.
func AddPathDependency(projectDir, modPath, targetDir string) (bool, error) {
	path := filepath.Join(projectDir, GoModName)
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		return false, err
	}
	rel, err := relDir(projectDir, targetDir)
	if err != nil {
		return false, err
	}

	hasRequire := false
	for _, r := range f.Require {
		if r.Mod.Path == modPath {
			hasRequire = true
			break
		}
	}
	hasReplace := false
	for _, r := range f.Replace {
		if r.Old.Path == modPath && r.New.Version == "" && dirPath(r.New.Path) == rel {
			hasReplace = true
			break
		}
	}
	if hasRequire && hasReplace {
		return false, nil
	}
	if !hasRequire {
		if err := f.AddRequire(modPath, PathVersion); err != nil {
			return false, err
		}
	}
	if !hasReplace {
		if err := f.AddReplace(modPath, "", rel, ""); err != nil {
			return false, err
		}
	}
	f.Cleanup()
	out, err := f.Format()
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// relDir returns targetDir relative to fromDir in the "./x" or "../x" form
// replace directives need for local paths.
func relDir(fromDir, targetDir string) (string, error) {
	from, err := filepath.Abs(fromDir)
	if err != nil {
		return "", err
	}
	to, err := filepath.Abs(targetDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(from, to)
	if err != nil {
		return "", err
	}
	return dirPath(rel), nil
}

func dirPath(p string) string {
	p = filepath.ToSlash(filepath.Clean(p))
	if p == "." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") || p == ".." || strings.HasPrefix(p, "/") {
		return p
	}
	return "./" + p
}
