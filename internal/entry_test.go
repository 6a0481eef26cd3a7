package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/mdchat/internal/storage"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Storage = StorageConfig{Type: string(storage.KindFilesystem), Path: filepath.Join(dir, "data")}
	cfg.Index.SQLitePath = filepath.Join(dir, "index.db")
	cfg.App.LogLevel = slog.LevelError + 4
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNewComponentsRequiresConfig(t *testing.T) {
	if _, err := newComponents(context.Background(), nil); err == nil {
		t.Fatal("missing config should fail")
	}
}

func TestRunSummarize(t *testing.T) {
	cfg := testConfig(t)
	chats := filepath.Join(cfg.Storage.Path, "chats")
	if err := os.MkdirAll(chats, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := "---\ntitle: Deploy Plan\n---\nhello"
	if err := os.WriteFile(filepath.Join(chats, "004-draft.md"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	err := RunSummarize(context.Background(), "/", true, WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("RunSummarize: %v", err)
	}

	if _, err := os.Stat(filepath.Join(chats, "004-deploy-plan.md")); err != nil {
		t.Errorf("file not renamed: %v", err)
	}
	readme, err := os.ReadFile(filepath.Join(chats, storage.FolderDocName))
	if err != nil {
		t.Fatalf("folder summary missing: %v", err)
	}
	if !strings.Contains(string(readme), "1. [Deploy Plan](./004-deploy-plan.md)") {
		t.Errorf("summary = %q", readme)
	}
}

func TestReadyEndpoint(t *testing.T) {
	rt, err := newComponents(context.Background(), []Option{WithConfig(testConfig(t)), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.close()

	w := httptest.NewRecorder()
	rt.ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("ready = %d", w.Code)
	}
	if got := rt.version(); got.Version != "" {
		t.Errorf("version = %+v", got)
	}
}
