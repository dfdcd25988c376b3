package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validDefinitionJSON = `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"source":"a","target":"b"}]}`

const cyclicDefinitionYAML = `nodes:
  - id: a
  - id: b
edges:
  - source: a
    target: b
  - source: b
    target: a
`

func writeDefinitionFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateCommandAcceptsJSON(t *testing.T) {
	path := writeDefinitionFile(t, "pipeline.json", validDefinitionJSON)
	if err := validateCmd.RunE(validateCmd, []string{path}); err != nil {
		t.Fatalf("expected valid file to pass, got: %v", err)
	}
}

func TestValidateCommandRejectsCyclicYAML(t *testing.T) {
	path := writeDefinitionFile(t, "pipeline.yaml", cyclicDefinitionYAML)
	err := validateCmd.RunE(validateCmd, []string{path})
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected a cycle error, got: %v", err)
	}
}

func TestValidateCommandMissingFile(t *testing.T) {
	err := validateCmd.RunE(validateCmd, []string{filepath.Join(t.TempDir(), "nope.json")})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
