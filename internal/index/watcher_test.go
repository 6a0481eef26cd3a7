package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/mdchat/internal/storage"
)

// watcherTestEnv sets up a storage dir, a durable backend, and a DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Backend, *DB) {
	t.Helper()
	dir := t.TempDir()
	b, err := storage.New(context.Background(), storage.Options{Kind: storage.KindFilesystem, Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	return dir, b, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func checksumOf(db *DB, p string) string {
	cs, _ := db.GetChecksum(context.Background(), p)
	return cs
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, b, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, b, dir, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumOf(db, "/new.md") != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:/new.md" {
				return true
			}
		}
		return false
	}, "expected created:/new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, b, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, b, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(dir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumOf(db, "/subdir/deep.md") != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_FolderDocumentUpdatesFolder(t *testing.T) {
	dir, b, db := watcherTestEnv(t)
	_ = os.MkdirAll(filepath.Join(dir, "proj"), 0o755)
	if err := Sync(context.Background(), db, b, quietLogger()); err != nil {
		t.Fatal(err)
	}
	before := checksumOf(db, "/proj")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, b, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "proj", storage.FolderDocName), []byte("---\ntitle: Project\n---\nabout"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs := checksumOf(db, "/proj")
		return cs != "" && cs != before
	}, "folder document change not reflected on the folder row")
	if cs := checksumOf(db, "/proj/readme.md"); cs != "" {
		t.Error("folder document indexed as its own node")
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir, b, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(dir, "del.md"), []byte("# Delete Me"), 0o644)
	_ = Sync(context.Background(), db, b, quietLogger())
	if checksumOf(db, "/del.md") == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, b, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumOf(db, "/del.md") == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, b, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(dir, "old.md"), []byte("# Rename"), 0o644)
	_ = Sync(context.Background(), db, b, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, b, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumOf(db, "/old.md") == "" && checksumOf(db, "/renamed.md") != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
