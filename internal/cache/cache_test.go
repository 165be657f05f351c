package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v := []byte(`{"states":["Goa"]}`)
	require.NoError(t, m.Set(ctx, "k", v))
	v[0] = 'X' // stored copy must not alias the caller's slice

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"states":["Goa"]}`, string(got))

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(20 * time.Millisecond)
	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	time.Sleep(40 * time.Millisecond)
	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	_, ok, err := f.Get(ctx, "india_states_districts_cache_v1")
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte(`{"states":["Assam","Bihar"],"districtsByState":{}}`)
	require.NoError(t, f.Set(ctx, "india_states_districts_cache_v1", payload))

	// A fresh instance over the same directory sees the entry (survives restarts).
	f2, err := NewFile(dir)
	require.NoError(t, err)
	got, ok, err := f2.Get(ctx, "india_states_districts_cache_v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload, got)

	require.NoError(t, f2.Delete(ctx, "india_states_districts_cache_v1"))
	require.NoError(t, f2.Delete(ctx, "india_states_districts_cache_v1"))
	_, ok, _ = f.Get(ctx, "india_states_districts_cache_v1")
	assert.False(t, ok)
}

func TestFileSanitizesKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, "../escape/key", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".._escape_key.json.zst", entries[0].Name())
}

func TestFileCorruptPayloadIsError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k.json.zst"), []byte("plain"), 0o644))
	_, ok, err := f.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failingStore) Set(context.Context, string, []byte) error { return errors.New("down") }
func (failingStore) Delete(context.Context, string) error      { return errors.New("down") }

func TestChainBackfillsFasterTiers(t *testing.T) {
	ctx := context.Background()
	front := NewMemory(0)
	back := NewMemory(0)
	require.NoError(t, back.Set(ctx, "k", []byte("v")))

	c := NewChain(Tier{Name: "memory", Store: front}, Tier{Name: "nil", Store: nil}, Tier{Name: "file", Store: back})
	assert.Equal(t, []string{"memory", "file"}, c.Tiers())

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))

	got, ok, _ = front.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))
}

func TestChainSkipsFailingTier(t *testing.T) {
	ctx := context.Background()
	good := NewMemory(0)
	c := NewChain(Tier{Name: "redis", Store: failingStore{}}, Tier{Name: "memory", Store: good})

	err := c.Set(ctx, "k", []byte("v"))
	assert.Error(t, err)

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))

	assert.Error(t, c.Delete(ctx, "k"))
	_, ok, _ = good.Get(ctx, "k")
	assert.False(t, ok)
}
