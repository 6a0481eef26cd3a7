package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"memory": KindMemory, " FileSystem ": KindFilesystem} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("s3")
	assert.Error(t, err)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Options{Kind: "s3"})
	assert.ErrorContains(t, err, "unknown backend kind")

	_, err = New(context.Background(), Options{Kind: KindFilesystem})
	assert.ErrorContains(t, err, "base path")
}

func TestRegistrySessions(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Options{Kind: KindFilesystem, Path: t.TempDir()})

	def, err := r.Get(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, &FS{}, def)

	again, err := r.Get(ctx, DefaultSession)
	require.NoError(t, err)
	assert.Same(t, def, again)

	other, err := r.Get(ctx, "e2e-1")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, other)

	assert.Equal(t, []string{DefaultSession, "e2e-1"}, r.Sessions())
}

func TestRegistryIsolation(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Options{Kind: KindMemory})

	a, err := r.Get(ctx, "a")
	require.NoError(t, err)
	b, err := r.Get(ctx, "b")
	require.NoError(t, err)

	_, err = a.CreateFile(ctx, "/only-a.md")
	require.NoError(t, err)
	n, err := b.GetNode(ctx, "/only-a.md")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestRegistryClearAndDrop(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Options{Kind: KindFilesystem, Path: t.TempDir()})

	s, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, "/x.md")
	require.NoError(t, err)

	require.NoError(t, r.Clear(ctx, "t1"))
	n, err := s.GetNode(ctx, "/x.md")
	require.NoError(t, err)
	assert.Nil(t, n)

	assert.ErrorIs(t, r.Clear(ctx, DefaultSession), ErrNotResettable)

	r.Drop("t1")
	fresh, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
}
