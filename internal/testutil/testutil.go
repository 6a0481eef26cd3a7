// Package testutil provides shared test helpers for setting up storage
// registries and index databases.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/mdchat/internal/index"
	"github.com/starford/mdchat/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite index that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "mdchat-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MemoryRegistry returns a registry whose default session is ephemeral.
func MemoryRegistry(t *testing.T) *storage.Registry {
	t.Helper()
	return storage.NewRegistry(storage.Options{Kind: storage.KindMemory, Logger: Logger()})
}

// DiskRegistry returns a registry whose default session is stored in a
// temporary directory, and that directory.
func DiskRegistry(t *testing.T) (*storage.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := storage.NewRegistry(storage.Options{Kind: storage.KindFilesystem, Path: dir, Logger: Logger()})
	return reg, dir
}
