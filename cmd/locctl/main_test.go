package main

import (
	"bytes"
	"context"
	"loc-api/internal/cache"
	"loc-api/internal/locations"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	got, err := splitArgs(`districts "Andaman and Nicobar Islands"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"districts", "Andaman and Nicobar Islands"}, got)

	got, err = splitArgs(`pins  state="Tamil Nadu" district=Chennai`)
	require.NoError(t, err)
	assert.Equal(t, []string{"pins", "state=Tamil Nadu", "district=Chennai"}, got)

	got, err = splitArgs(`cache-get ""`)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache-get", ""}, got)

	_, err = splitArgs(`districts "Goa`)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory(0)
	r := locations.New(locations.Options{Cache: store})

	var out bytes.Buffer
	require.NoError(t, run(ctx, r, store, []string{"cache-get"}, &out))
	assert.Equal(t, "(miss)\n", out.String())

	out.Reset()
	require.NoError(t, run(ctx, r, store, []string{"districts", "Andaman and Nicobar Islands"}, &out))
	assert.Contains(t, out.String(), "South Andaman\n")
	assert.Contains(t, out.String(), "# degraded, failed sources: backend/districts\n")

	out.Reset()
	require.NoError(t, run(ctx, r, store, []string{"cache-get"}, &out))
	assert.Contains(t, out.String(), `"states":[`)

	out.Reset()
	require.NoError(t, run(ctx, r, store, []string{"pins", "state=Goa"}, &out))
	assert.Contains(t, out.String(), "400058\n")
	assert.Contains(t, out.String(), "# 5 entries\n")

	out.Reset()
	require.NoError(t, run(ctx, r, store, []string{"invalidate"}, &out))
	assert.Equal(t, "ok\n", out.String())
	assert.Nil(t, r.Snapshot())

	assert.ErrorIs(t, run(ctx, r, store, []string{"pins", "zip=1"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, r, store, []string{"villages", "Goa"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, r, store, []string{"teleport"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, r, store, nil, &out), errUsage)
}
