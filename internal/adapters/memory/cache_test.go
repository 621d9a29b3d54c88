package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

func TestCache_GetSetDelete(t *testing.T) {
	c := New()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 60))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAudioStore_SharesCacheNamespace(t *testing.T) {
	c := New()
	s := NewAudioStore(c, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "abc", []byte("mp3")))
	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), got)

	_, err = c.Get(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound, "audio keys are prefixed")
}
