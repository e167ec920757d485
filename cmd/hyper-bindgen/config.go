package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hyperware-ai/hyper-bindgen/generator"
)

const maxConfigBytes = 1 << 20

// fileConfig is the TOML config file schema.
type fileConfig struct {
	APIDir     string `toml:"api_dir"`
	BaseDir    string `toml:"base_dir"`
	Out        string `toml:"out"`
	Package    string `toml:"package"`
	ModulePath string `toml:"module_path"`
	GoVersion  string `toml:"go_version"`

	Projects []string `toml:"projects"`
	Special  []string `toml:"special"`

	TimeoutSeconds      int    `toml:"timeout_seconds"`
	GenerateUnusedTypes bool   `toml:"generate_unused_types"`
	Bindgen             string `toml:"bindgen"`
	BindingsImport      string `toml:"bindings_import"`
	NoManifest          bool   `toml:"no_manifest"`

	Runtime struct {
		Module  string `toml:"module"`
		Version string `toml:"version"`
		Replace string `toml:"replace"`
	} `toml:"runtime"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) > maxConfigBytes {
		return nil, errors.New("config too large")
	}
	var cfg fileConfig
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var sm *toml.StrictMissingError
		if errors.As(err, &sm) {
			return nil, fmt.Errorf("config %s: %s", path, strings.TrimSpace(sm.String()))
		}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return nil, fmt.Errorf("config %s:%d:%d: %v", path, row, col, de)
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("config %s: timeout_seconds must be >= 0", path)
	}
	for _, p := range cfg.Projects {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("config %s: project paths must be non-empty", path)
		}
	}
	return &cfg, nil
}

func (f *fileConfig) generatorConfig() generator.Config {
	return generator.Config{
		APIDir:         f.APIDir,
		BaseDir:        f.BaseDir,
		OutDirName:     f.Out,
		PackageName:    f.Package,
		ModulePath:     f.ModulePath,
		GoVersion:      f.GoVersion,
		RuntimeModule:  f.Runtime.Module,
		RuntimeVersion: f.Runtime.Version,
		RuntimeReplace: f.Runtime.Replace,
		Projects:       f.Projects,
		Special:        f.Special,
		TimeoutSeconds: f.TimeoutSeconds,
		UnusedTypes:    f.GenerateUnusedTypes,
		Bindgen:        f.Bindgen,
		BindingsImport: f.BindingsImport,
		SkipManifests:  f.NoManifest,
	}
}
