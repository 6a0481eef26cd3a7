package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/mdchat/internal/apperr"
	"github.com/starford/mdchat/internal/frontmatter"
	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/vpath"
)

// record is one node of the in-memory tree. doc holds the raw stored text:
// for markdown files and folders it may start with a front-matter header.
type record struct {
	typ models.NodeType
	doc string
}

// Memory is the ephemeral backend. State lives in a flat path-keyed map and
// is lost when the process exits. Every operation holds the lock for its
// whole duration, so a subtree move is observed all at once.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*record
	logger  *slog.Logger
}

// Stats summarizes the contents of a Memory backend.
type Stats struct {
	Files   int `json:"files"`
	Folders int `json:"folders"`
	Bytes   int `json:"bytes"`
}

// NewMemory returns an empty ephemeral backend holding only the root folder.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{logger: logger}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.records = map[string]*record{vpath.Root: {typ: models.TypeFolder}}
}

// Initialize is a no-op: the root exists from construction.
func (m *Memory) Initialize(context.Context) error { return nil }

// Clear drops every node except the root.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	m.logger.Debug("memory storage cleared")
}

// Stats counts the nodes and stored bytes, excluding the root.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for p, r := range m.records {
		if p == vpath.Root {
			continue
		}
		if r.typ == models.TypeFolder {
			s.Folders++
		} else {
			s.Files++
		}
		s.Bytes += len(r.doc)
	}
	return s
}

// ensureParents creates every missing ancestor folder of p. Callers hold mu.
func (m *Memory) ensureParents(op, p string) error {
	for _, a := range vpath.Ancestors(p, false) {
		r, ok := m.records[a]
		if !ok {
			m.records[a] = &record{typ: models.TypeFolder}
			continue
		}
		if r.typ != models.TypeFolder {
			return pathErr(op, a, apperr.ErrNotAFolder)
		}
	}
	return nil
}

func (m *Memory) create(op, path string, typ models.NodeType) (*models.Node, error) {
	p, err := clean(op, path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[p]; ok {
		return nil, pathErr(op, p, apperr.ErrAlreadyExists)
	}
	if err := m.ensureParents(op, p); err != nil {
		return nil, err
	}
	m.records[p] = &record{typ: typ}
	m.logger.Debug("node created", slog.String("path", p), slog.String("type", string(typ)))
	return models.NewNode(p, typ, nil), nil
}

func (m *Memory) CreateFile(_ context.Context, path string) (*models.Node, error) {
	return m.create("create file", path, models.TypeFile)
}

func (m *Memory) CreateFolder(_ context.Context, path string) (*models.Node, error) {
	return m.create("create folder", path, models.TypeFolder)
}

func (m *Memory) DeleteNode(_ context.Context, path string) error {
	p, err := clean("delete", path)
	if err != nil {
		return err
	}
	if p == vpath.Root {
		return pathErr("delete", p, fmt.Errorf("%w: cannot delete the root folder", apperr.ErrInvalidInput))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[p]; !ok {
		return pathErr("delete", p, apperr.ErrNotFound)
	}
	for k := range m.records {
		if vpath.IsWithin(k, p) {
			delete(m.records, k)
		}
	}
	m.logger.Debug("node deleted", slog.String("path", p))
	return nil
}

func (m *Memory) RenameNode(_ context.Context, oldPath, newPath string) (*models.Node, error) {
	from, err := clean("rename", oldPath)
	if err != nil {
		return nil, err
	}
	to, err := clean("rename", newPath)
	if err != nil {
		return nil, err
	}
	if err := checkMove(from, to); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.records[from]
	if !ok {
		return nil, pathErr("rename", from, apperr.ErrNotFound)
	}
	if _, ok := m.records[to]; ok {
		return nil, pathErr("rename", to, apperr.ErrAlreadyExists)
	}
	if err := m.ensureParents("rename", to); err != nil {
		return nil, err
	}
	moved := make(map[string]*record)
	for k, r := range m.records {
		if vpath.IsWithin(k, from) {
			moved[vpath.Rebase(k, from, to)] = r
			delete(m.records, k)
		}
	}
	for k, r := range moved {
		m.records[k] = r
	}
	m.logger.Debug("node renamed", slog.String("from", from), slog.String("to", to))
	return m.node(to, src), nil
}

func (m *Memory) ReadContent(_ context.Context, path string) (string, error) {
	p, err := clean("read", path)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[p]
	if !ok {
		return "", pathErr("read", p, apperr.ErrNotFound)
	}
	if !hasDocument(r.typ, p) {
		return r.doc, nil
	}
	return frontmatter.Parse(r.doc).Content, nil
}

func (m *Memory) WriteContent(_ context.Context, path, content string) error {
	p, err := clean("write", path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[p]
	if !ok {
		return pathErr("write", p, apperr.ErrNotFound)
	}
	if !hasDocument(r.typ, p) {
		r.doc = content
		return nil
	}
	r.doc = frontmatter.Serialize(frontmatter.Parse(r.doc).Metadata, content)
	return nil
}

func (m *Memory) WriteMetadata(_ context.Context, path string, meta map[string]any) error {
	p, err := clean("write metadata", path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[p]
	if !ok {
		return pathErr("write metadata", p, apperr.ErrNotFound)
	}
	if !hasDocument(r.typ, p) {
		return nil
	}
	r.doc = frontmatter.Serialize(meta, frontmatter.Parse(r.doc).Content)
	return nil
}

func (m *Memory) GetNode(_ context.Context, path string) (*models.Node, error) {
	p, ok := lookup(path)
	if !ok {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[p]
	if !ok {
		return nil, nil
	}
	return m.node(p, r), nil
}

func (m *Memory) ListNodes(_ context.Context, path string) ([]*models.Node, error) {
	p, err := clean("list", path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[p]
	if !ok {
		return nil, pathErr("list", p, apperr.ErrNotFound)
	}
	if r.typ != models.TypeFolder {
		return nil, pathErr("list", p, apperr.ErrNotAFolder)
	}
	out := []*models.Node{}
	for k, child := range m.records {
		if k != vpath.Root && vpath.Parent(k) == p {
			out = append(out, m.node(k, child))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// node materializes r as a Node, parsing metadata from its document.
func (m *Memory) node(p string, r *record) *models.Node {
	var meta map[string]any
	if hasDocument(r.typ, p) {
		meta = frontmatter.Parse(r.doc).Metadata
	}
	return models.NewNode(p, r.typ, meta)
}
