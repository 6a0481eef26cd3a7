package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/mdchat/pkg/config"

	"github.com/starford/mdchat/internal/storage"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.Storage.Kind() != storage.KindMemory {
		t.Errorf("kind = %q", cfg.Storage.Kind())
	}
}

func TestStorageConfig_EmptyTypeDefaultsMemory(t *testing.T) {
	cfg := StorageConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty type should default to memory: %v", err)
	}
	if cfg.Type != string(storage.KindMemory) {
		t.Errorf("type = %q", cfg.Type)
	}
}

func TestStorageConfig_FilesystemNeedsPath(t *testing.T) {
	cfg := StorageConfig{Type: "Filesystem"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("filesystem without path should fail")
	}
	if !strings.Contains(err.Error(), "filesystem backend") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Path = "/tmp/x"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("filesystem with path should pass: %v", err)
	}
	if cfg.Kind() != storage.KindFilesystem {
		t.Errorf("kind = %q", cfg.Kind())
	}
}

func TestStorageConfig_UnknownType(t *testing.T) {
	cfg := StorageConfig{Type: "s3"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown type should fail validation")
	}
}

func TestAppConfig_LogFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogFormat = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty format should default: %v", err)
	}
	if cfg.App.LogFormat != LogFormatJSON {
		t.Errorf("format = %q", cfg.App.LogFormat)
	}

	cfg.App.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("xml format should fail")
	}
}

func TestIndexConfig_EnabledNeedsPath(t *testing.T) {
	cfg := IndexConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled index without path should fail")
	}
	cfg.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled index should pass: %v", err)
	}
}

func TestLoadYAMLWithEnv(t *testing.T) {
	t.Setenv("MDCHAT_TEST_VERSION", "9.9.9")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `app:
  log_level: debug
  log_format: text
  http:
    port: 9090
  version:
    version: ${MDCHAT_TEST_VERSION}
storage:
  type: filesystem
  path: ` + dir + `
index:
  enabled: false
events:
  tree_throttle: 500ms
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogFormat != LogFormatText {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.App.Version.Version != "9.9.9" {
		t.Errorf("version = %q", cfg.App.Version.Version)
	}
	if cfg.Storage.Kind() != storage.KindFilesystem || cfg.Storage.Path != dir {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Events.TreeThrottle != 500*time.Millisecond {
		t.Errorf("throttle = %v", cfg.Events.TreeThrottle)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Index.SQLitePath != "./mdchat.db" {
		t.Errorf("sqlite path = %q", cfg.Index.SQLitePath)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("vault:\n  path: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := pkgconfig.Load(path, NewDefaultConfig()); err == nil {
		t.Fatal("unknown section should fail")
	}
}
