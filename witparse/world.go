// Package witparse discovers the world declared in a WIT API directory and
// extracts remote-call signatures and type declarations from interface files.
//
// It is a line scanner over the narrow dialect the upstream schema
// generator emits, not a WIT grammar.
package witparse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// Extension of WIT source files.
	Extension = ".wit"
	// TypesPrefix marks the world variant that carries the generated types.
	TypesPrefix = "types-"

	worldKeyword  = "world "
	importKeyword = "import "
)

var ErrNoWorld = errors.New("no world declaration found")

// World is the resolved root of one API directory.
type World struct {
	Name     string
	Imports  []string // In file order, duplicates kept.
	Files    []string // World source files, by name.
	Warnings []string
}

// ListSources returns the paths of regular *.wit files directly in dir,
// sorted by file name.
func ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// IsWorldSource reports whether text declares a world. Such files are never
// scanned for signatures.
func IsWorldSource(text string) bool {
	return strings.Contains(text, worldKeyword)
}

// InterfaceName returns the interface a source file defines: its file stem.
func InterfaceName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}

// ResolveWorld picks the world name for dir.
//
// A "types-" prefixed declaration wins over a plain one. A plain name is
// upgraded to its prefixed form when a sibling "types-<name>.wit" exists,
// and otherwise used as-is with a warning. No declaration at all is
// ErrNoWorld.
func ResolveWorld(dir string) (*World, error) {
	sources, err := ListSources(dir)
	if err != nil {
		return nil, err
	}
	w := &World{}
	var prefixed, plain string
	for _, path := range sources {
		b, err := os.ReadFile(path)
		if err != nil {
			w.Warnings = append(w.Warnings, fmt.Sprintf("skipping %s: %v", filepath.Base(path), err))
			continue
		}
		text := string(b)
		if !IsWorldSource(text) {
			continue
		}
		w.Files = append(w.Files, filepath.Base(path))
		w.Imports = append(w.Imports, importsOf(text)...)

		name := worldName(text)
		switch {
		case name == "":
		case strings.HasPrefix(name, TypesPrefix):
			if prefixed == "" {
				prefixed = name
			}
		default:
			if plain == "" {
				plain = name
			}
		}
	}

	switch {
	case prefixed != "":
		w.Name = prefixed
	case plain != "":
		candidate := TypesPrefix + plain
		if isRegularFile(filepath.Join(dir, candidate+Extension)) {
			w.Name = candidate
		} else {
			w.Name = plain
			w.Warnings = append(w.Warnings, fmt.Sprintf("no %s%s file for world %q; using the plain name", candidate, Extension, plain))
		}
	default:
		return nil, fmt.Errorf("%w in %s", ErrNoWorld, dir)
	}
	return w, nil
}

// FindImports returns the interfaces imported by every world file in dir, in
// file order. Duplicates are kept.
func FindImports(dir string) ([]string, error) {
	sources, err := ListSources(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, path := range sources {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if text := string(b); IsWorldSource(text) {
			out = append(out, importsOf(text)...)
		}
	}
	return out, nil
}

// worldName returns the name on the first line starting with "world", or "".
func worldName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, worldKeyword) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return ""
		}
		return strings.TrimSpace(strings.TrimSuffix(fields[1], "{"))
	}
	return ""
}

func importsOf(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, importKeyword) || !strings.HasSuffix(line, ";") {
			continue
		}
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, importKeyword), ";"))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}
