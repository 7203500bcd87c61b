// Package fixture loads declarative test definitions.
//
// A fixture is either a directory holding config.yaml (plus the message files
// it refers to) or a standalone YAML file. The YAML document has the keys:
//
//	mail:      [file, ...]              # optional
//	folders:   [name, ...]              # optional, pre-created before delivery
//	scripts:   [{folder: name, script: source}, ...]
//	expected:  {folder: {message-id: flags}}
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/infodancer/mailproc-harness/internal/maildir"
)

// ConfigFile is the fixture definition file inside a fixture directory.
const ConfigFile = "config.yaml"

// mailPrefix marks message files picked up from a fixture directory when the
// definition does not list them explicitly.
const mailPrefix = "mail"

// Script is one filter script run against the mailbox.
type Script struct {
	Folder string `yaml:"folder"`
	Source string `yaml:"script"`
}

// Fixture is a loaded test definition.
type Fixture struct {
	Name     string
	Dir      string
	Mail     []string // absolute message file paths; empty means the default message
	Folders  []string
	Scripts  []Script
	Expected maildir.Snapshot
}

// ConfigError reports a fixture that cannot be loaded or lacks required keys.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("fixture %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// document mirrors the YAML layout. Pointers distinguish absent keys from
// empty ones.
type document struct {
	Mail     []string                      `yaml:"mail"`
	Folders  []string                      `yaml:"folders"`
	Scripts  *[]Script                     `yaml:"scripts"`
	Expected *map[string]map[string]string `yaml:"expected"`
}

// Name returns the display name of the fixture at path: the directory name
// for fixture directories, the file name without extension otherwise.
func Name(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if isYAML(base) {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// Load reads the fixture at path, which is either a fixture directory or a
// YAML file.
func Load(path string) (*Fixture, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	dir, file := path, filepath.Join(path, ConfigFile)
	if !info.IsDir() {
		dir, file = filepath.Dir(path), path
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parsing %s: %w", file, err)}
	}
	if doc.Scripts == nil {
		return nil, &ConfigError{Path: path, Err: errors.New("missing required key \"scripts\"")}
	}
	if doc.Expected == nil {
		return nil, &ConfigError{Path: path, Err: errors.New("missing required key \"expected\"")}
	}

	fx := &Fixture{
		Name:     Name(path),
		Dir:      dir,
		Folders:  doc.Folders,
		Scripts:  *doc.Scripts,
		Expected: maildir.Snapshot(*doc.Expected),
	}

	switch {
	case doc.Mail != nil:
		for _, name := range doc.Mail {
			fx.Mail = append(fx.Mail, resolve(dir, name))
		}
	case info.IsDir():
		fx.Mail, err = mailFiles(dir)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
	}

	return fx, nil
}

// Discover returns every fixture under dir in name order: sub-directories
// holding config.yaml and top-level YAML files.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tests directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if _, err := os.Stat(filepath.Join(path, ConfigFile)); err == nil {
				paths = append(paths, path)
			}
			continue
		}
		if isYAML(e.Name()) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// mailFiles lists files in dir whose names start with "mail", sorted.
func mailFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing mail files: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), mailPrefix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
