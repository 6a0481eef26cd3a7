package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
)

// Kind selects a backend variant.
type Kind string

const (
	KindMemory     Kind = "memory"
	KindFilesystem Kind = "filesystem"
)

// Kinds lists every supported backend kind.
var Kinds = []Kind{KindMemory, KindFilesystem}

// ParseKind maps a configuration string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMemory, KindFilesystem:
		return k, nil
	default:
		return "", fmt.Errorf("storage: unknown backend kind %q", s)
	}
}

// Options configures New.
type Options struct {
	Kind Kind
	// Path is the base directory of the filesystem kind.
	Path string
	// Fs replaces the OS filesystem for the filesystem kind; its "/" is the
	// storage root and Path is ignored.
	Fs     afero.Fs
	Logger *slog.Logger
}

// New constructs and initializes one backend of the requested kind.
func New(ctx context.Context, opts Options) (Backend, error) {
	var b Backend
	switch opts.Kind {
	case KindMemory:
		b = NewMemory(opts.Logger)
	case KindFilesystem:
		if opts.Fs != nil {
			b = NewFSOn(opts.Fs, opts.Logger)
			break
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("storage: filesystem backend requires a base path")
		}
		fsb, err := NewFS(opts.Path, opts.Logger)
		if err != nil {
			return nil, err
		}
		b = fsb
	default:
		return nil, fmt.Errorf("storage: unknown backend kind %q", opts.Kind)
	}
	if err := b.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("storage: initialize %s backend: %w", opts.Kind, err)
	}
	return b, nil
}
