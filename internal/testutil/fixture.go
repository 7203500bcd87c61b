package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFixtureDir creates <testsDir>/<name>/config.yaml with the given YAML
// content plus any extra files (name -> content) next to it. Returns the
// fixture directory.
func WriteFixtureDir(t *testing.T, testsDir, name, config string, files map[string]string) string {
	t.Helper()

	dir := filepath.Join(testsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o644); err != nil {
		t.Fatalf("failed to write config.yaml: %v", err)
	}
	for fname, content := range files {
		if err := os.WriteFile(filepath.Join(dir, fname), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write fixture file %s: %v", fname, err)
		}
	}
	return dir
}

// WriteExecutable writes a /bin/sh script to dir/name, marks it executable
// and returns its path. Tests use these as stand-ins for the filter
// processors and service control commands.
func WriteExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	content := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("failed to write executable %s: %v", name, err)
	}
	return path
}
