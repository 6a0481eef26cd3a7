package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/starford/mdchat/internal/apperr"
	"github.com/starford/mdchat/internal/frontmatter"
	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/vpath"
)

// TempPrefix starts the names of in-flight atomic writes.
const TempPrefix = ".mdchat-tmp-"

// FS is the durable backend. Logical paths map one-to-one onto entries below
// a base directory; a folder's document is its readme.md child.
type FS struct {
	fs     afero.Fs
	root   string // absolute base path, empty when fs is not OS-backed
	logger *slog.Logger
}

// NewFS returns a durable backend rooted at dir on the local disk. The
// directory is created by Initialize when missing.
func NewFS(dir string, logger *slog.Logger) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	b := NewFSOn(afero.NewBasePathFs(afero.NewOsFs(), abs), logger)
	b.root = abs
	return b, nil
}

// NewFSOn returns a durable backend over an arbitrary afero filesystem whose
// "/" is the storage root.
func NewFSOn(fsys afero.Fs, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.Default()
	}
	return &FS{fs: fsys, logger: logger}
}

// Root returns the absolute base directory, or "" for non-OS filesystems.
func (f *FS) Root() string { return f.root }

// Initialize creates the base directory.
func (f *FS) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.MkdirAll(vpath.Root, 0o755); err != nil {
		return fmt.Errorf("storage: create root: %w", err)
	}
	return nil
}

// stat resolves p to a node type. A missing entry yields ErrNotFound.
func (f *FS) stat(op, p string) (models.NodeType, error) {
	info, err := f.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return "", pathErr(op, p, apperr.ErrNotFound)
		}
		return "", pathErr(op, p, err)
	}
	if info.IsDir() {
		return models.TypeFolder, nil
	}
	return models.TypeFile, nil
}

func (f *FS) exists(op, p string) (bool, error) {
	_, err := f.stat(op, p)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// docPath returns the physical file holding the document of the node at p.
func docPath(typ models.NodeType, p string) string {
	if typ == models.TypeFolder {
		return path.Join(p, FolderDocName)
	}
	return p
}

// ensureParents creates missing ancestors of p and fails when one of them
// is a file.
func (f *FS) ensureParents(op, p string) error {
	for _, a := range vpath.Ancestors(p, false) {
		info, err := f.fs.Stat(a)
		if err == nil {
			if !info.IsDir() {
				return pathErr(op, a, apperr.ErrNotAFolder)
			}
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return pathErr(op, a, err)
		}
		if err := f.fs.Mkdir(a, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return pathErr(op, a, err)
		}
	}
	return nil
}

func (f *FS) CreateFile(ctx context.Context, p string) (*models.Node, error) {
	const op = "create file"
	p, err := clean(op, p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok, err := f.exists(op, p); err != nil {
		return nil, err
	} else if ok {
		return nil, pathErr(op, p, apperr.ErrAlreadyExists)
	}
	if err := f.ensureParents(op, p); err != nil {
		return nil, err
	}
	file, err := f.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, pathErr(op, p, apperr.ErrAlreadyExists)
		}
		return nil, pathErr(op, p, err)
	}
	if err := file.Close(); err != nil {
		return nil, pathErr(op, p, err)
	}
	f.logger.Debug("node created", slog.String("path", p), slog.String("type", string(models.TypeFile)))
	return models.NewNode(p, models.TypeFile, nil), nil
}

func (f *FS) CreateFolder(ctx context.Context, p string) (*models.Node, error) {
	const op = "create folder"
	p, err := clean(op, p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok, err := f.exists(op, p); err != nil {
		return nil, err
	} else if ok {
		return nil, pathErr(op, p, apperr.ErrAlreadyExists)
	}
	if err := f.ensureParents(op, p); err != nil {
		return nil, err
	}
	if err := f.fs.Mkdir(p, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, pathErr(op, p, apperr.ErrAlreadyExists)
		}
		return nil, pathErr(op, p, err)
	}
	f.logger.Debug("node created", slog.String("path", p), slog.String("type", string(models.TypeFolder)))
	return models.NewNode(p, models.TypeFolder, nil), nil
}

func (f *FS) DeleteNode(ctx context.Context, p string) error {
	const op = "delete"
	p, err := clean(op, p)
	if err != nil {
		return err
	}
	if p == vpath.Root {
		return pathErr(op, p, fmt.Errorf("%w: cannot delete the root folder", apperr.ErrInvalidInput))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	typ, err := f.stat(op, p)
	if err != nil {
		return err
	}
	if typ == models.TypeFolder {
		err = f.fs.RemoveAll(p)
	} else {
		err = f.fs.Remove(p)
	}
	if err != nil {
		return pathErr(op, p, err)
	}
	f.logger.Debug("node deleted", slog.String("path", p))
	return nil
}

func (f *FS) RenameNode(ctx context.Context, oldPath, newPath string) (*models.Node, error) {
	const op = "rename"
	from, err := clean(op, oldPath)
	if err != nil {
		return nil, err
	}
	to, err := clean(op, newPath)
	if err != nil {
		return nil, err
	}
	if err := checkMove(from, to); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	typ, err := f.stat(op, from)
	if err != nil {
		return nil, err
	}
	if ok, err := f.exists(op, to); err != nil {
		return nil, err
	} else if ok {
		return nil, pathErr(op, to, apperr.ErrAlreadyExists)
	}
	if err := f.ensureParents(op, to); err != nil {
		return nil, err
	}
	if err := f.fs.Rename(from, to); err != nil {
		return nil, pathErr(op, from, err)
	}
	f.logger.Debug("node renamed", slog.String("from", from), slog.String("to", to))
	return f.node(to, typ), nil
}

func (f *FS) ReadContent(ctx context.Context, p string) (string, error) {
	const op = "read"
	p, err := clean(op, p)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	typ, err := f.stat(op, p)
	if err != nil {
		return "", err
	}
	raw, err := f.readDoc(typ, p)
	if err != nil {
		return "", pathErr(op, p, err)
	}
	if !hasDocument(typ, p) {
		return raw, nil
	}
	return frontmatter.Parse(raw).Content, nil
}

func (f *FS) WriteContent(ctx context.Context, p, content string) error {
	const op = "write"
	p, err := clean(op, p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	typ, err := f.stat(op, p)
	if err != nil {
		return err
	}
	if !hasDocument(typ, p) {
		return f.writeFile(op, p, content)
	}
	raw, err := f.readDoc(typ, p)
	if err != nil {
		return pathErr(op, p, err)
	}
	doc := frontmatter.Serialize(frontmatter.Parse(raw).Metadata, content)
	return f.writeFile(op, docPath(typ, p), doc)
}

func (f *FS) WriteMetadata(ctx context.Context, p string, meta map[string]any) error {
	const op = "write metadata"
	p, err := clean(op, p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	typ, err := f.stat(op, p)
	if err != nil {
		return err
	}
	if !hasDocument(typ, p) {
		return nil
	}
	raw, err := f.readDoc(typ, p)
	if err != nil {
		return pathErr(op, p, err)
	}
	doc := frontmatter.Serialize(meta, frontmatter.Parse(raw).Content)
	return f.writeFile(op, docPath(typ, p), doc)
}

func (f *FS) GetNode(ctx context.Context, p string) (*models.Node, error) {
	const op = "get"
	p, ok := lookup(p)
	if !ok {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	typ, err := f.stat(op, p)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f.node(p, typ), nil
}

func (f *FS) ListNodes(ctx context.Context, p string) ([]*models.Node, error) {
	const op = "list"
	p, err := clean(op, p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	typ, err := f.stat(op, p)
	if err != nil {
		return nil, err
	}
	if typ != models.TypeFolder {
		return nil, pathErr(op, p, apperr.ErrNotAFolder)
	}
	entries, err := afero.ReadDir(f.fs, p)
	if err != nil {
		return nil, pathErr(op, p, err)
	}
	out := make([]*models.Node, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.EqualFold(name, FolderDocName) || strings.HasPrefix(name, TempPrefix) {
			continue
		}
		ct := models.TypeFile
		if e.IsDir() {
			ct = models.TypeFolder
		}
		out = append(out, f.node(vpath.Join(p, name), ct))
	}
	return out, nil
}

// node builds the node at p, reading metadata from its document when it has
// one. Unreadable documents yield a node without metadata.
func (f *FS) node(p string, typ models.NodeType) *models.Node {
	if !hasDocument(typ, p) {
		return models.NewNode(p, typ, nil)
	}
	raw, err := f.readDoc(typ, p)
	if err != nil {
		f.logger.Warn("read node document", slog.String("path", p), slog.String("error", err.Error()))
		return models.NewNode(p, typ, nil)
	}
	return models.NewNode(p, typ, frontmatter.Parse(raw).Metadata)
}

// readDoc returns the stored text of the node at p. A folder without a
// document reads as empty.
func (f *FS) readDoc(typ models.NodeType, p string) (string, error) {
	data, err := afero.ReadFile(f.fs, docPath(typ, p))
	if err != nil {
		if typ == models.TypeFolder && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// writeFile atomically replaces the file at p: temp file, fsync, rename.
func (f *FS) writeFile(op, p, content string) error {
	tmp, err := afero.TempFile(f.fs, path.Dir(p), TempPrefix+"*")
	if err != nil {
		return pathErr(op, p, fmt.Errorf("create temp: %w", err))
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		return pathErr(op, p, fmt.Errorf("write temp: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return pathErr(op, p, fmt.Errorf("fsync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return pathErr(op, p, fmt.Errorf("close temp: %w", err))
	}
	if err := f.fs.Rename(tmpName, p); err != nil {
		return pathErr(op, p, fmt.Errorf("rename temp: %w", err))
	}
	success = true
	f.logger.Debug("document written", slog.String("path", p), slog.Int("bytes", len(content)))
	return nil
}
