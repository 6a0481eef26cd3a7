package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "chat")
	s := sample{Port: 1}
	if err := Load(write(t, "name: ${SAMPLE_NAME}\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "chat" || s.Port != 1 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	s := sample{Port: 7}
	if err := Load(write(t, ""), &s); err != nil {
		t.Fatal(err)
	}
	if s.Port != 7 {
		t.Errorf("port = %d", s.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	s := sample{Port: 1}
	if err := Load(write(t, "unknown: 1\n"), &s); err == nil {
		t.Error("unknown key should fail")
	}
	if err := Load(write(t, "port: 0\n"), &s); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("validation error = %v", err)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &s); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Port: 3}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Port != 3 {
		t.Errorf("port = %d", s.Port)
	}

	s = sample{}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s); err == nil {
		t.Error("defaults are still validated")
	}
}
