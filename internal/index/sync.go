package index

import (
	"context"
	"log/slog"

	"github.com/starford/mdchat/internal/checksum"
	"github.com/starford/mdchat/internal/frontmatter"
	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/storage"
	"github.com/starford/mdchat/internal/vpath"
)

// indexable reports whether n carries a document worth indexing.
func indexable(n *models.Node) bool {
	return n.IsFolder() || vpath.IsMarkdown(n.Name)
}

// Sync walks the whole tree and brings the index up to date:
//   - new/changed documents are upserted
//   - rows whose node no longer exists are deleted
func Sync(ctx context.Context, db *DB, b storage.Backend, logger *slog.Logger) error {
	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		return err
	}

	root, err := b.GetNode(ctx, vpath.Root)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{})
	queue := []*models.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.IsFolder() {
			children, err := b.ListNodes(ctx, n.Name)
			if err != nil {
				return err
			}
			queue = append(queue, children...)
		}
		if !indexable(n) {
			continue
		}
		seen[n.Name] = struct{}{}
		changed, err := indexNode(ctx, db, b, n, checksums[n.Name])
		if err != nil {
			logger.Warn("sync: index failed", slog.String("path", n.Name), slog.String("error", err.Error()))
			continue
		}
		if changed {
			logger.Debug("sync: indexed", slog.String("path", n.Name))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := seen[p]; ok {
			continue
		}
		if err := db.DeleteTree(ctx, p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}
	return nil
}

// Reindex refreshes the row of the node at p, removing the rows of p and
// its descendants when the node is gone. It reports whether the index
// changed.
func Reindex(ctx context.Context, db *DB, b storage.Backend, p string) (bool, error) {
	p = vpath.Normalize(p)
	prev, err := db.GetChecksum(ctx, p)
	if err != nil {
		return false, err
	}
	n, err := b.GetNode(ctx, p)
	if err != nil {
		return false, err
	}
	if n == nil {
		return prev != "", db.DeleteTree(ctx, p)
	}
	if !indexable(n) {
		return false, nil
	}
	return indexNode(ctx, db, b, n, prev)
}

// indexNode upserts n unless its document still matches prev.
func indexNode(ctx context.Context, db *DB, b storage.Backend, n *models.Node, prev string) (bool, error) {
	body, err := b.ReadContent(ctx, n.Name)
	if err != nil {
		return false, err
	}
	cs := checksum.Document(n.Metadata, body)
	if cs == prev {
		return false, nil
	}
	title := frontmatter.Title(n.Metadata, body)
	if title == "" {
		title = models.DisplayName(n)
	}
	row := NodeRow{
		Path:     n.Name,
		Type:     string(n.Type),
		Title:    title,
		Checksum: cs,
		Tags:     frontmatter.Tags(n.Metadata),
	}
	return true, db.UpsertNode(ctx, row, body)
}

// ReindexTree refreshes the rows of p and every node below it.
func ReindexTree(ctx context.Context, db *DB, b storage.Backend, p string) error {
	if _, err := Reindex(ctx, db, b, p); err != nil {
		return err
	}
	n, err := b.GetNode(ctx, p)
	if err != nil || n == nil || !n.IsFolder() {
		return err
	}
	children, err := b.ListNodes(ctx, n.Name)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := ReindexTree(ctx, db, b, c.Name); err != nil {
			return err
		}
	}
	return nil
}
