package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DefaultSession is the session id used when a request names none. It is
// the only session served by the configured backend kind.
const DefaultSession = "default"

// ErrNotResettable is returned by Registry.Clear for backends that cannot
// be reset in place.
var ErrNotResettable = errors.New("storage: backend cannot be cleared")

// Registry hands out one backend per session id, creating each lazily on
// first use. Non-default sessions always get an ephemeral backend so that
// concurrent test runs stay isolated from each other and from disk.
type Registry struct {
	opts Options

	mu       sync.Mutex
	backends map[string]Backend
}

// NewRegistry returns a registry whose default session uses opts.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{opts: opts, backends: make(map[string]Backend)}
}

// DefaultKind returns the backend kind of the default session.
func (r *Registry) DefaultKind() Kind { return r.opts.Kind }

// Get returns the backend of session id, constructing it when missing.
// An empty id means DefaultSession.
func (r *Registry) Get(ctx context.Context, id string) (Backend, error) {
	if id == "" {
		id = DefaultSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[id]; ok {
		return b, nil
	}
	opts := r.opts
	if id != DefaultSession {
		opts = Options{Kind: KindMemory, Logger: r.opts.Logger}
	}
	opts.Logger = opts.Logger.With(slog.String("session", id))
	b, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}
	r.backends[id] = b
	r.opts.Logger.Info("storage session opened", slog.String("session", id), slog.String("kind", string(opts.Kind)))
	return b, nil
}

// Drop forgets the backend of session id. The next Get builds a fresh one.
func (r *Registry) Drop(id string) {
	if id == "" {
		id = DefaultSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[id]; ok {
		delete(r.backends, id)
		r.opts.Logger.Info("storage session dropped", slog.String("session", id))
	}
}

// Clear resets the state of session id in place.
func (r *Registry) Clear(ctx context.Context, id string) error {
	b, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	c, ok := b.(Clearer)
	if !ok {
		return fmt.Errorf("%w: session %q", ErrNotResettable, id)
	}
	c.Clear()
	return nil
}

// Sessions returns the ids of all live sessions, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.backends))
	for id := range r.backends {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
