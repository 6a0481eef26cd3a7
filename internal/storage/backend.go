// Package storage implements the virtual node tree: the Backend contract, its
// in-memory and filesystem variants, and the per-session registry that hands
// backends out to transports.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/mdchat/internal/apperr"
	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/vpath"
)

// FolderDocName is the hidden child that carries a folder's content and
// metadata. It never shows up in listings and cannot be addressed directly.
const FolderDocName = "readme.md"

// Backend is the capability contract shared by every storage variant.
// All paths are logical; paths without a leading slash are normalized.
type Backend interface {
	// Initialize prepares the backend for use.
	Initialize(ctx context.Context) error
	// CreateFile creates an empty file, auto-creating missing parent folders.
	CreateFile(ctx context.Context, path string) (*models.Node, error)
	// CreateFolder creates a folder, auto-creating missing parent folders.
	CreateFolder(ctx context.Context, path string) (*models.Node, error)
	// DeleteNode removes a file or a whole folder subtree.
	DeleteNode(ctx context.Context, path string) error
	// RenameNode moves a node and all its descendants to newPath.
	RenameNode(ctx context.Context, oldPath, newPath string) (*models.Node, error)
	// ReadContent returns the document body with any front matter stripped.
	ReadContent(ctx context.Context, path string) (string, error)
	// WriteContent replaces the body, keeping existing metadata.
	WriteContent(ctx context.Context, path, content string) error
	// WriteMetadata replaces the metadata wholesale, keeping the body.
	WriteMetadata(ctx context.Context, path string, meta map[string]any) error
	// GetNode returns the node at path, or nil when there is none.
	GetNode(ctx context.Context, path string) (*models.Node, error)
	// ListNodes returns the immediate children of a folder.
	ListNodes(ctx context.Context, path string) ([]*models.Node, error)
}

// Clearer is implemented by backends whose whole state can be reset in place.
type Clearer interface {
	Clear()
}

// PathError records a failed operation and the logical path that caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// clean normalizes p and rejects paths no backend can represent: relative
// segments, the reserved folder document name and in-flight write names.
func clean(op, p string) (string, error) {
	p = vpath.Normalize(p)
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return "", pathErr(op, p, fmt.Errorf("%w: relative segment %q", apperr.ErrInvalidInput, seg))
		}
		if strings.EqualFold(seg, FolderDocName) {
			return "", pathErr(op, p, fmt.Errorf("%w: %s is reserved for folder documents", apperr.ErrInvalidInput, FolderDocName))
		}
		if strings.HasPrefix(seg, TempPrefix) {
			return "", pathErr(op, p, fmt.Errorf("%w: names starting with %s are reserved", apperr.ErrInvalidInput, TempPrefix))
		}
	}
	return p, nil
}

// lookup normalizes p for a read. Paths clean rejects never name a node, so
// ok is false for them instead of an error.
func lookup(p string) (string, bool) {
	p, err := clean("get", p)
	return p, err == nil
}

// checkMove validates the pure path constraints of a rename.
func checkMove(from, to string) error {
	if from == vpath.Root {
		return pathErr("rename", from, fmt.Errorf("%w: cannot move the root folder", apperr.ErrInvalidInput))
	}
	if from != to && vpath.IsWithin(to, from) {
		return pathErr("rename", to, fmt.Errorf("%w: cannot move %s into itself", apperr.ErrInvalidInput, from))
	}
	return nil
}

// hasDocument reports whether the node at p stores a front-matter document:
// folders always do (through their synthetic document), files only when
// their name is markdown.
func hasDocument(typ models.NodeType, p string) bool {
	return typ == models.TypeFolder || vpath.IsMarkdown(p)
}
