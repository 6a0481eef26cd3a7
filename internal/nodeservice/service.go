// Package nodeservice coordinates storage sessions, folder summaries, the
// search index and change events behind one API for the transports.
package nodeservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/starford/mdchat/internal/apperr"
	"github.com/starford/mdchat/internal/index"
	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/sse"
	"github.com/starford/mdchat/internal/storage"
	"github.com/starford/mdchat/internal/summary"
	"github.com/starford/mdchat/internal/transcript"
	"github.com/starford/mdchat/internal/vpath"
)

// ErrSearchDisabled is returned by Search when no index is configured.
var ErrSearchDisabled = errors.New("nodeservice: search index disabled")

// Publisher receives node change notifications.
type Publisher interface {
	PublishNodeEvent(kind string, ev sse.NodeEvent)
}

// Listing is the result of ListNodes.
type Listing struct {
	Nodes       []*models.Node `json:"nodes"`
	Breadcrumbs []*models.Node `json:"breadcrumbs"`
}

// Service coordinates storage, summary, index and event operations.
// Only the default session is indexed.
type Service struct {
	reg    *storage.Registry
	db     *index.DB
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new node service. db and events may be nil.
func NewService(reg *storage.Registry, db *index.DB, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reg: reg, db: db, events: events, logger: logger, now: time.Now}
}

// Backend returns the storage backend of session.
func (s *Service) Backend(ctx context.Context, session string) (storage.Backend, error) {
	return s.reg.Get(ctx, session)
}

// GetNode returns the node at path, or nil when absent.
func (s *Service) GetNode(ctx context.Context, session, path string) (*models.Node, error) {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	return b.GetNode(ctx, path)
}

// ListNodes returns the children of the folder at path and the existing
// nodes on the way from the root to it.
func (s *Service) ListNodes(ctx context.Context, session, path string) (*Listing, error) {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	nodes, err := b.ListNodes(ctx, path)
	if err != nil {
		return nil, err
	}
	crumbs := []*models.Node{}
	for _, p := range vpath.Ancestors(path, true) {
		n, err := b.GetNode(ctx, p)
		if err != nil {
			return nil, err
		}
		if n != nil {
			crumbs = append(crumbs, n)
		}
	}
	return &Listing{Nodes: nodes, Breadcrumbs: crumbs}, nil
}

// CreateNode creates a file or folder, with optional initial metadata.
func (s *Service) CreateNode(ctx context.Context, session, path string, typ models.NodeType, meta map[string]any) (*models.Node, error) {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	var node *models.Node
	switch typ {
	case models.TypeFile:
		node, err = b.CreateFile(ctx, path)
	case models.TypeFolder:
		node, err = b.CreateFolder(ctx, path)
	default:
		return nil, fmt.Errorf("%w: type must be %q or %q", apperr.ErrInvalidInput, models.TypeFile, models.TypeFolder)
	}
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := b.WriteMetadata(ctx, node.Name, meta); err != nil {
			return nil, err
		}
		if node, err = b.GetNode(ctx, node.Name); err != nil {
			return nil, err
		}
	}
	s.changed(ctx, session, b, "created", node.Name, "")
	return node, nil
}

// DeleteNode removes the node at path and its subtree.
func (s *Service) DeleteNode(ctx context.Context, session, path string) error {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return err
	}
	if err := b.DeleteNode(ctx, path); err != nil {
		return err
	}
	s.changed(ctx, session, b, "deleted", vpath.Normalize(path), "")
	return nil
}

// RenameNode moves the node at oldPath, with its subtree, to newPath.
func (s *Service) RenameNode(ctx context.Context, session, oldPath, newPath string) (*models.Node, error) {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	node, err := b.RenameNode(ctx, oldPath, newPath)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, session, b, "moved", node.Name, vpath.Normalize(oldPath))
	return node, nil
}

// ReadContent returns the body of the node at path.
func (s *Service) ReadContent(ctx context.Context, session, path string) (string, error) {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return "", err
	}
	return b.ReadContent(ctx, path)
}

// WriteContent replaces the body of the node at path.
func (s *Service) WriteContent(ctx context.Context, session, path, content string) error {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return err
	}
	if err := b.WriteContent(ctx, path, content); err != nil {
		return err
	}
	s.changed(ctx, session, b, "updated", vpath.Normalize(path), "")
	return nil
}

// WriteMetadata replaces the metadata of the node at path, or merges it
// into the existing metadata when merge is set, then refreshes the summary
// of the enclosing folder.
func (s *Service) WriteMetadata(ctx context.Context, session, path string, meta map[string]any, merge bool) (*models.Node, error) {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if merge {
		cur, err := b.GetNode(ctx, path)
		if err != nil {
			return nil, err
		}
		merged := map[string]any{}
		if cur != nil {
			maps.Copy(merged, cur.Metadata)
		}
		maps.Copy(merged, meta)
		meta = merged
	}
	if err := b.WriteMetadata(ctx, path, meta); err != nil {
		return nil, err
	}
	node, err := b.GetNode(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := summary.Update(ctx, b, path, summary.Options{Logger: s.logger}); err != nil {
		return nil, err
	}
	s.changed(ctx, session, b, "updated", vpath.Normalize(path), "")
	return node, nil
}

// ReadMessages decodes the conversation stored at path.
func (s *Service) ReadMessages(ctx context.Context, session, path string) ([]transcript.Message, error) {
	content, err := s.ReadContent(ctx, session, path)
	if err != nil {
		return nil, err
	}
	msgs := transcript.Decode(content)
	if msgs == nil {
		msgs = []transcript.Message{}
	}
	return msgs, nil
}

// WriteMessages stores msgs as the conversation at path and refreshes the
// summary of the enclosing folder.
func (s *Service) WriteMessages(ctx context.Context, session, path string, msgs []transcript.Message) error {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return err
	}
	content, err := transcript.Encode(msgs)
	if err != nil {
		return err
	}
	if err := b.WriteContent(ctx, path, content); err != nil {
		return err
	}
	if err := summary.Update(ctx, b, path, summary.Options{Logger: s.logger}); err != nil {
		return err
	}
	s.changed(ctx, session, b, "updated", vpath.Normalize(path), "")
	return nil
}

// GetUsage returns the usage record stored on the thread at threadID, or
// nil when there is none.
func (s *Service) GetUsage(ctx context.Context, session, threadID string) (map[string]any, error) {
	n, err := s.GetNode(ctx, session, threadID)
	if err != nil || n == nil {
		return nil, err
	}
	usage, _ := n.Metadata["usage"].(map[string]any)
	return usage, nil
}

// SetUsage merges data into the usage record of the thread at threadID and
// stamps it with the current time in milliseconds.
func (s *Service) SetUsage(ctx context.Context, session, threadID string, data map[string]any) (map[string]any, error) {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	n, err := b.GetNode(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("usage %s: %w", threadID, apperr.ErrNotFound)
	}
	meta := map[string]any{}
	maps.Copy(meta, n.Metadata)
	usage := map[string]any{}
	if cur, ok := meta["usage"].(map[string]any); ok {
		maps.Copy(usage, cur)
	}
	maps.Copy(usage, data)
	usage["updatedAt"] = s.now().UnixMilli()
	meta["usage"] = usage
	if err := b.WriteMetadata(ctx, threadID, meta); err != nil {
		return nil, err
	}
	s.changed(ctx, session, b, "updated", n.Name, "")
	return usage, nil
}

// Summarize refreshes the folder summaries below path, optionally renaming
// children after their titles.
func (s *Service) Summarize(ctx context.Context, session, path string, rename bool) error {
	b, err := s.reg.Get(ctx, session)
	if err != nil {
		return err
	}
	opts := summary.Options{Recursive: true, Rename: rename, Logger: s.logger}
	if err := summary.Update(ctx, b, path, opts); err != nil {
		return err
	}
	if s.indexed(session) {
		if err := index.Sync(ctx, s.db, b, s.logger); err != nil {
			s.logger.Warn("index sync after summarize failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Search queries the index of the default session.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, ErrSearchDisabled
	}
	res, err := s.db.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []index.SearchResult{}
	}
	return res, nil
}

// ClearSession resets the state of an ephemeral session.
func (s *Service) ClearSession(ctx context.Context, session string) error {
	if err := s.reg.Clear(ctx, session); err != nil {
		return err
	}
	s.publish("deleted", session, vpath.Root, "")
	return nil
}

// DropSession forgets the backend of session.
func (s *Service) DropSession(session string) {
	s.reg.Drop(session)
}

func (s *Service) indexed(session string) bool {
	return s.db != nil && (session == "" || session == storage.DefaultSession)
}

// changed reindexes the touched paths and publishes the change event.
// Index failures are logged; the storage operation already succeeded.
func (s *Service) changed(ctx context.Context, session string, b storage.Backend, kind, path, oldPath string) {
	if s.indexed(session) {
		var err error
		switch kind {
		case "moved":
			if _, err = index.Reindex(ctx, s.db, b, oldPath); err == nil {
				err = index.ReindexTree(ctx, s.db, b, path)
			}
		default:
			_, err = index.Reindex(ctx, s.db, b, path)
		}
		if err == nil && path != vpath.Root {
			_, err = index.Reindex(ctx, s.db, b, vpath.Parent(path))
		}
		if err != nil {
			s.logger.Warn("index update failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	s.publish(kind, session, path, oldPath)
}

func (s *Service) publish(kind, session, path, oldPath string) {
	if s.events == nil {
		return
	}
	if session == "" {
		session = storage.DefaultSession
	}
	s.events.PublishNodeEvent(kind, sse.NodeEvent{Session: session, Path: path, OldPath: oldPath})
}
