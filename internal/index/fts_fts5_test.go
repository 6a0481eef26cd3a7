//go:build sqlite_fts5

package index

import (
	"context"
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM nodes_fts`).Scan(&count); err != nil {
		t.Fatalf("nodes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	row := NodeRow{Path: "/fts.md", Type: "file", Title: "FTS Chat", Checksum: "f1", Tags: []string{"search"}}
	if err := db.UpsertNode(ctx, row, "The assistant explained powerful full-text search capabilities."); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	results, err := db.Search(ctx, "powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Snippet, "<b>powerful</b>") {
		t.Errorf("snippet = %q, want highlighted match", results[0].Snippet)
	}
}

func TestFTS5_DeleteTree(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.UpsertNode(ctx, NodeRow{Path: "/dir/gone.md", Type: "file", Checksum: "1"}, "ephemeral words")
	if err := db.DeleteTree(ctx, "/dir"); err != nil {
		t.Fatalf("DeleteTree: %v", err)
	}
	results, err := db.Search(ctx, "ephemeral", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results after delete = %+v", results)
	}
}

func TestFTS5_DeleteTreeKeepsSimilarPaths(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.UpsertNode(ctx, NodeRow{Path: "/docs/keep.md", Type: "file", Checksum: "1"}, "lantern notes")
	_ = db.UpsertNode(ctx, NodeRow{Path: "/Docs/gone.md", Type: "file", Checksum: "1"}, "lantern drafts")
	if err := db.DeleteTree(ctx, "/Docs"); err != nil {
		t.Fatalf("DeleteTree: %v", err)
	}
	results, err := db.Search(ctx, "lantern", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "/docs/keep.md" {
		t.Errorf("results = %+v", results)
	}
}
