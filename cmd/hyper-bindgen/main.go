package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hyperware-ai/hyper-bindgen/bgerrors"
	"github.com/hyperware-ai/hyper-bindgen/generator"
	"github.com/hyperware-ai/hyper-bindgen/internal/cmdutil"
	"github.com/hyperware-ai/hyper-bindgen/internal/logging"
	hbversion "github.com/hyperware-ai/hyper-bindgen/internal/version"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	showVersion := false
	configPath := cmdutil.EnvString(cmdutil.Env("config"), "")
	apiDir := cmdutil.EnvString(cmdutil.Env("api-dir"), "")
	baseDir := cmdutil.EnvString(cmdutil.Env("base-dir"), "")
	modulePath := cmdutil.EnvString(cmdutil.Env("module-path"), "")
	outDir := cmdutil.EnvString(cmdutil.Env("out"), "")
	pkgName := cmdutil.EnvString(cmdutil.Env("package"), "")
	logLevel := cmdutil.EnvString(cmdutil.Env("log-level"), "")
	logFormat := cmdutil.EnvString(cmdutil.Env("log-format"), "")
	noManifest, err := cmdutil.EnvBool(cmdutil.Env("no-manifest"), false)
	if err != nil {
		fmt.Fprintf(stderr, "invalid %s: %v\n", cmdutil.Env("no-manifest"), err)
		return 2
	}
	var projects cmdutil.StringList

	fs := flag.NewFlagSet("hyper-bindgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&configPath, "config", configPath, "path to TOML config file (env: "+cmdutil.Env("config")+")")
	fs.StringVar(&apiDir, "api-dir", apiDir, "directory holding the .wit files (env: "+cmdutil.Env("api-dir")+")")
	fs.StringVar(&baseDir, "base-dir", baseDir, "workspace root the module is generated into (env: "+cmdutil.Env("base-dir")+")")
	fs.StringVar(&modulePath, "module-path", modulePath, "module path of the generated module (env: "+cmdutil.Env("module-path")+")")
	fs.StringVar(&outDir, "out", outDir, "generated module directory under --base-dir (default caller-utils) (env: "+cmdutil.Env("out")+")")
	fs.StringVar(&pkgName, "package", pkgName, "generated package name (default callerutils) (env: "+cmdutil.Env("package")+")")
	fs.Var(&projects, "project", "project directory that gets a path dependency on the generated module (repeatable) (env: "+cmdutil.Env("project")+", comma-separated)")
	fs.BoolVar(&noManifest, "no-manifest", noManifest, "skip go.work and project go.mod updates (env: "+cmdutil.Env("no-manifest")+")")
	fs.StringVar(&logLevel, "log-level", logLevel, "debug, info, warn or error (env: "+cmdutil.Env("log-level")+")")
	fs.StringVar(&logFormat, "log-format", logFormat, "text or json (env: "+cmdutil.Env("log-format")+")")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage:")
		fmt.Fprintln(out, "  hyper-bindgen --api-dir ./api --base-dir . [--project ./app]")
		fmt.Fprintln(out, "  hyper-bindgen --config ./hyper-bindgen.toml")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Output:")
		fmt.Fprintln(out, "  stdout: a single JSON report")
		fmt.Fprintln(out, "  stderr: logs and errors")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Exit codes:")
		fmt.Fprintln(out, "  0: success")
		fmt.Fprintln(out, "  2: usage error (bad flags/config)")
		fmt.Fprintln(out, "  1: runtime error")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if showVersion {
		_, _ = fmt.Fprintln(stdout, hbversion.String(version, commit, date))
		return 0
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return 2
	}
	if len(projects) == 0 {
		projects = cmdutil.SplitCSVEnv(cmdutil.Env("project"))
	}

	var file fileConfig
	if p := strings.TrimSpace(configPath); p != "" {
		loaded, err := loadConfig(p)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		file = *loaded
	}
	cfg := file.generatorConfig()
	override(&cfg.APIDir, apiDir)
	override(&cfg.BaseDir, baseDir)
	override(&cfg.ModulePath, modulePath)
	override(&cfg.OutDirName, outDir)
	override(&cfg.PackageName, pkgName)
	if len(projects) > 0 {
		cfg.Projects = projects
	}
	if noManifest {
		cfg.SkipManifests = true
	}
	override(&file.Log.Level, logLevel)
	override(&file.Log.Format, logFormat)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}
	logger, err := logging.New(logging.Config{Level: file.Log.Level, Format: file.Log.Format, Output: stderr})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := generator.New(cfg, logger).Run(ctx)
	if err != nil {
		attrs := []any{"err", err}
		if code, ok := bgerrors.CodeOf(err); ok {
			attrs = append(attrs, "code", code)
		}
		logger.Error("generation failed", attrs...)
		return 1
	}
	if err := cmdutil.WriteJSON(stdout, report, true); err != nil {
		logger.Error("write report", "err", err)
		return 1
	}
	return 0
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
