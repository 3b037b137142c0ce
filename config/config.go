// Package config locates and loads nvfmt's project configuration. The
// .nvfmt.yaml file is found by walking ancestor directories from the buffer's
// directory upward, the same way formatters locate their own config files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nvfmt/types"

	"gopkg.in/yaml.v3"
)

// fileNames are the recognized project config file names, in lookup order.
var fileNames = []string{".nvfmt.yaml", ".nvfmt.yml"}

// Formatter is one formatter entry in the project config, keyed by filetype.
type Formatter struct {
	// Cmd is the executable name (resolved through PATH).
	Cmd string `yaml:"cmd"`
	// Args may reference "{config}" (replaced with the discovered tool
	// config path, the whole argument dropped when none is found) and
	// "{file}" (replaced by the runner when Stdin is false).
	Args []string `yaml:"args"`
	// ConfigFiles are candidate tool config names (e.g. ".clang-format")
	// searched for in ancestor directories of the buffer.
	ConfigFiles []string `yaml:"config_files"`
	// Stdin feeds the buffer to the formatter on stdin and reads the result
	// from stdout. Defaults to true via Load.
	Stdin *bool `yaml:"stdin"`
}

// Config is the parsed project configuration.
type Config struct {
	Formatters map[string]Formatter `yaml:"formatters"`
}

// Locate walks from startDir to the filesystem root looking for a project
// config file. Returns the path of the first one found.
func Locate(startDir string) (string, bool) {
	dir := filepath.Clean(startDir)
	for {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Load reads and parses a project config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for filetype, f := range cfg.Formatters {
		if f.Cmd == "" {
			return nil, fmt.Errorf("formatter %q has no cmd", filetype)
		}
	}
	return &cfg, nil
}

// FindToolConfig walks from startDir to the root looking for the first
// existing candidate file, e.g. a formatter's own ".clang-format".
func FindToolConfig(startDir string, names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	dir := filepath.Clean(startDir)
	for {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// expandArgs substitutes "{config}" in args with the discovered tool config
// path. An argument referencing "{config}" is dropped entirely when no tool
// config exists, so formatters fall back to their defaults.
func expandArgs(args []string, toolConfig string) []string {
	expanded := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.Contains(arg, "{config}") {
			if toolConfig == "" {
				continue
			}
			arg = strings.ReplaceAll(arg, "{config}", toolConfig)
		}
		expanded = append(expanded, arg)
	}
	return expanded
}

// Spec builds the runnable formatter spec for a buffer in startDir,
// performing tool config discovery and argument expansion.
func (f Formatter) Spec(startDir string) *types.FormatterSpec {
	toolConfig, _ := FindToolConfig(startDir, f.ConfigFiles)

	stdin := true
	if f.Stdin != nil {
		stdin = *f.Stdin
	}

	return &types.FormatterSpec{
		Cmd:   f.Cmd,
		Args:  expandArgs(f.Args, toolConfig),
		Stdin: stdin,
	}
}
