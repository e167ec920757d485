// Package generator runs the full pipeline: resolve the world, scan the
// interface files, render stubs, write the caller-utils module and register
// it with the surrounding workspace.
package generator

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"

	"github.com/hyperware-ai/hyper-bindgen/assembler"
	"github.com/hyperware-ai/hyper-bindgen/bgerrors"
	"github.com/hyperware-ai/hyper-bindgen/internal/defaults"
	"github.com/hyperware-ai/hyper-bindgen/internal/naming"
	"github.com/hyperware-ai/hyper-bindgen/manifest"
	"github.com/hyperware-ai/hyper-bindgen/stubgen"
	"github.com/hyperware-ai/hyper-bindgen/typemap"
	"github.com/hyperware-ai/hyper-bindgen/witparse"
)

const (
	DefaultOutDirName     = "caller-utils"
	DefaultPackageName    = "callerutils"
	DefaultGoVersion      = "1.25"
	DefaultRuntimeModule  = "github.com/hyperware-ai/hyper-bindgen"
	DefaultRuntimeVersion = "v0.1.0"
)

// Config describes one generation run. Relative paths resolve against the
// working directory.
type Config struct {
	APIDir  string // Directory holding the *.wit sources.
	BaseDir string // Workspace root; the module is written under it.

	OutDirName  string // Generated module directory, relative to BaseDir.
	PackageName string
	// ModulePath of the generated module. Empty derives "<base module>/<out>"
	// from BaseDir/go.mod, or falls back to the directory name.
	ModulePath string
	GoVersion  string

	RuntimeModule  string
	RuntimeVersion string
	RuntimeReplace string // Optional local directory for the runtime module.

	Projects []string // Project directories that get a path dependency.

	Special        []string // Call kinds rendered as inert templates.
	TimeoutSeconds int
	UnusedTypes    bool

	Bindgen        string
	BindingsImport string // Empty derives "<module>/bindings".

	SkipManifests bool
}

func (c Config) withDefaults() Config {
	if c.OutDirName == "" {
		c.OutDirName = DefaultOutDirName
	}
	if c.PackageName == "" {
		c.PackageName = DefaultPackageName
	}
	if c.GoVersion == "" {
		c.GoVersion = DefaultGoVersion
	}
	if c.RuntimeModule == "" {
		c.RuntimeModule = DefaultRuntimeModule
	}
	if c.RuntimeVersion == "" {
		c.RuntimeVersion = DefaultRuntimeVersion
	}
	if c.Special == nil {
		c.Special = []string{"http"}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaults.DispatchTimeoutSeconds
	}
	if c.Bindgen == "" {
		c.Bindgen = assembler.DefaultBindgen
	}
	return c
}

// Validate reports configuration errors that make a run impossible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIDir) == "" {
		return errors.New("missing api dir")
	}
	if strings.TrimSpace(c.BaseDir) == "" {
		return errors.New("missing base dir")
	}
	if c.OutDirName != "" && (filepath.IsAbs(c.OutDirName) || strings.Contains(filepath.ToSlash(c.OutDirName), "..")) {
		return fmt.Errorf("out dir must be a relative path inside the base dir: %q", c.OutDirName)
	}
	if c.PackageName != "" && !validPackageName(c.PackageName) {
		return fmt.Errorf("invalid package name %q", c.PackageName)
	}
	return nil
}

// InterfaceReport summarizes one interface file.
type InterfaceReport struct {
	Name        string   `json:"name"`
	File        string   `json:"file"`
	Types       []string `json:"types,omitempty"`
	Stubs       []string `json:"stubs,omitempty"`
	Inert       []string `json:"inert,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Report is the outcome of a successful run.
type Report struct {
	World            string            `json:"world"`
	Imports          []string          `json:"imports"`
	Interfaces       []InterfaceReport `json:"interfaces"`
	ModulePath       string            `json:"module_path"`
	Output           string            `json:"output"`
	Staged           []string          `json:"staged"`
	WorkspaceUpdated bool              `json:"workspace_updated"`
	ProjectsUpdated  []string          `json:"projects_updated,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// Generator runs the pipeline for one Config.
type Generator struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cfg: cfg.withDefaults(), logger: logger}
}

// runState is the mutable accumulation of one run.
type runState struct {
	report  *Report
	types   map[string][]string // interface -> declared WIT type names
	modules []assembler.Module
}

func (s *runState) warn(logger *slog.Logger, msg string, args ...any) {
	logger.Warn(msg, args...)
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	s.report.Warnings = append(s.report.Warnings, b.String())
}

// Run executes the pipeline. Per-file and per-signature problems are logged
// and reported; only world resolution and writes abort the run.
func (g *Generator) Run(ctx context.Context) (*Report, error) {
	cfg := g.cfg
	if err := cfg.Validate(); err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageDiscover, bgerrors.CodeInvalidConfig, "", err)
	}
	st := &runState{report: &Report{}, types: map[string][]string{}}

	world, err := witparse.ResolveWorld(cfg.APIDir)
	if err != nil {
		code := bgerrors.CodeReadFailed
		if errors.Is(err, witparse.ErrNoWorld) {
			code = bgerrors.CodeNoWorld
		}
		return nil, bgerrors.Wrap(bgerrors.StageDiscover, code, cfg.APIDir, err)
	}
	st.report.World = world.Name
	st.report.Imports = world.Imports
	g.logger.Info("resolved world", "world", world.Name, "files", world.Files)
	for _, w := range world.Warnings {
		st.warn(g.logger, w)
	}
	for _, imp := range world.Imports {
		g.logger.Info("found interface import", "interface", imp)
	}

	sources, err := witparse.ListSources(cfg.APIDir)
	if err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageDiscover, bgerrors.CodeReadFailed, cfg.APIDir, err)
	}
	stubs := stubgen.New()
	stubs.TimeoutSeconds = cfg.TimeoutSeconds
	stubs.Special = map[string]bool{}
	for _, k := range cfg.Special {
		stubs.Special[k] = true
	}

	for _, path := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.processFile(st, stubs, path)
	}

	modPath, err := g.modulePath()
	if err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageManifest, bgerrors.CodeReadFailed, cfg.BaseDir, err)
	}
	st.report.ModulePath = modPath
	bindings := cfg.BindingsImport
	if bindings == "" {
		bindings = modPath + "/" + assembler.DefaultBindingsDir
	}

	src, err := assembler.Assemble(assembler.Input{
		Package:        cfg.PackageName,
		World:          world.Name,
		UnusedTypes:    cfg.UnusedTypes,
		Bindgen:        cfg.Bindgen,
		BindingsImport: bindings,
		Imports:        world.Imports,
		Types:          st.types,
		Modules:        st.modules,
	})
	if err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageAssemble, bgerrors.CodeFormatFailed, "", err)
	}

	outDir := filepath.Join(cfg.BaseDir, cfg.OutDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageWrite, bgerrors.CodeWriteFailed, outDir, err)
	}
	outFile := filepath.Join(outDir, cfg.PackageName+".gen.go")
	if err := os.WriteFile(outFile, src, 0o644); err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageWrite, bgerrors.CodeWriteFailed, outFile, err)
	}
	st.report.Output = outFile
	g.logger.Info("wrote generated stubs", "path", outFile, "interfaces", len(st.modules))

	if err := g.writeModule(outDir, modPath); err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageWrite, bgerrors.CodeWriteFailed, filepath.Join(outDir, manifest.GoModName), err)
	}

	stageDir := filepath.Join(outDir, filepath.FromSlash(assembler.DefaultStageDir))
	staged, err := assembler.Stage(cfg.APIDir, stageDir)
	if err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageStage, bgerrors.CodeWriteFailed, stageDir, err)
	}
	for _, name := range staged {
		g.logger.Info("copied wit source", "file", name, "to", stageDir)
	}
	st.report.Staged = staged

	if cfg.SkipManifests {
		return st.report, nil
	}
	changed, err := manifest.RegisterWorkspaceMember(cfg.BaseDir, cfg.OutDirName)
	if err != nil {
		return nil, bgerrors.Wrap(bgerrors.StageManifest, bgerrors.CodeWriteFailed, filepath.Join(cfg.BaseDir, manifest.GoWorkName), err)
	}
	st.report.WorkspaceUpdated = changed
	if changed {
		g.logger.Info("registered workspace member", "member", cfg.OutDirName)
	} else {
		g.logger.Info("workspace member already registered or no go.work", "member", cfg.OutDirName)
	}
	for _, project := range cfg.Projects {
		changed, err := manifest.AddPathDependency(project, modPath, outDir)
		if err != nil {
			return nil, bgerrors.Wrap(bgerrors.StageManifest, bgerrors.CodeWriteFailed, filepath.Join(project, manifest.GoModName), err)
		}
		if changed {
			st.report.ProjectsUpdated = append(st.report.ProjectsUpdated, project)
			g.logger.Info("added path dependency", "project", project, "module", modPath)
		} else {
			g.logger.Info("path dependency already present", "project", project)
		}
	}
	return st.report, nil
}

// processFile scans one source and records its types and stubs. Failures
// stay local to the file.
func (g *Generator) processFile(st *runState, stubs *stubgen.Generator, path string) {
	name := filepath.Base(path)
	b, err := os.ReadFile(path)
	if err != nil {
		st.warn(g.logger, "skipping unreadable wit file", "file", name, "err", err)
		st.report.Interfaces = append(st.report.Interfaces, InterfaceReport{Name: witparse.InterfaceName(path), File: name, Error: err.Error()})
		return
	}
	text := string(b)
	if witparse.IsWorldSource(text) {
		g.logger.Debug("skipping world file", "file", name)
		return
	}

	f := witparse.ParseSource(path, text)
	ir := InterfaceReport{Name: f.Interface, File: name}
	g.logger.Info("processing interface", "interface", f.Interface, "module", naming.Snake(f.Interface))
	for _, d := range f.Diagnostics {
		st.warn(g.logger, "malformed declaration", "at", d.String())
		ir.Diagnostics = append(ir.Diagnostics, d.String())
	}
	for _, t := range f.Types {
		g.logger.Info("found type", "kind", string(t.Kind), "name", t.Name)
		ir.Types = append(ir.Types, t.Name)
	}
	st.types[f.Interface] = ir.Types

	mod := assembler.Module{Interface: f.Interface}
	recv := assembler.Receiver(f.Interface)
	for _, sig := range f.Signatures {
		g.logger.Info("found signature", "operation", sig.Operation, "kind", sig.Kind)
		for _, field := range sig.Fields {
			g.logger.Debug("field", "name", field.Name, "type", field.Type)
		}
		stub, err := stubs.GenerateMethod(recv, sig)
		if err != nil {
			code := bgerrors.CodeMalformedType
			var te *typemap.Error
			switch {
			case errors.Is(err, witparse.ErrDuplicateControlField):
				code = bgerrors.CodeDuplicateControlField
			case !errors.As(err, &te):
				code = bgerrors.CodeFormatFailed
			}
			werr := bgerrors.Wrap(bgerrors.StageEmit, code, fmt.Sprintf("%s:%d", name, sig.Line), err)
			st.warn(g.logger, "skipping signature", "err", werr)
			ir.Diagnostics = append(ir.Diagnostics, werr.Error())
			continue
		}
		for _, note := range stub.Notes {
			st.warn(g.logger, "stub note", "stub", stub.Name, "note", note)
		}
		mod.Stubs = append(mod.Stubs, stub)
		if stub.Inert {
			ir.Inert = append(ir.Inert, stub.Name)
		} else {
			ir.Stubs = append(ir.Stubs, stub.Name)
		}
	}
	st.report.Interfaces = append(st.report.Interfaces, ir)
	if len(mod.Stubs) == 0 {
		g.logger.Info("no signatures found", "file", name)
		return
	}
	st.modules = append(st.modules, mod)
	g.logger.Info("generated module", "interface", f.Interface, "stubs", len(mod.Stubs))
}

func (g *Generator) modulePath() (string, error) {
	cfg := g.cfg
	if cfg.ModulePath != "" {
		return cfg.ModulePath, module.CheckImportPath(cfg.ModulePath)
	}
	base, err := manifest.ModulePath(cfg.BaseDir)
	if err == nil {
		return base + "/" + filepath.ToSlash(cfg.OutDirName), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return filepath.ToSlash(cfg.OutDirName), nil
}

func (g *Generator) writeModule(outDir, modPath string) error {
	cfg := g.cfg
	reqs := []module.Version{{Path: cfg.RuntimeModule, Version: cfg.RuntimeVersion}}
	var replaces map[string]string
	if target := cfg.RuntimeReplace; target != "" {
		// Replace paths are rewritten relative to the generated module.
		absOut, err := filepath.Abs(outDir)
		if err != nil {
			return err
		}
		absTarget, err := filepath.Abs(target)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absOut, absTarget)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(rel, "..") {
			rel = "./" + rel
		}
		replaces = map[string]string{cfg.RuntimeModule: filepath.ToSlash(rel)}
	}
	return manifest.WriteModule(outDir, modPath, cfg.GoVersion, reqs, replaces)
}

// validPackageName reports whether s can name the generated library package:
// an identifier that is not a keyword, the blank identifier, a predeclared
// name or main.
func validPackageName(s string) bool {
	if !token.IsIdentifier(s) || s == "_" || s == "main" {
		return false
	}
	return types.Universe.Lookup(s) == nil
}
