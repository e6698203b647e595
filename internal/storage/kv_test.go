// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_SetGetDelete(t *testing.T) {
	kv, err := OpenKV(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	defer kv.Close()
	ctx := context.Background()

	_, err = kv.Get(ctx, "active")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "active", []byte("one")))
	require.NoError(t, kv.Set(ctx, "active", []byte("two")))
	v, err := kv.Get(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, "two", string(v))

	require.NoError(t, kv.Delete(ctx, "active"))
	require.NoError(t, kv.Delete(ctx, "active"))
	_, err = kv.Get(ctx, "active")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKV_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	kv, err := OpenKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "k", []byte("v")))
	require.NoError(t, kv.Close())

	kv, err = OpenKV(path)
	require.NoError(t, err)
	defer kv.Close()
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
}

func TestKV_Memory(t *testing.T) {
	kv, err := OpenKV(":memory:")
	require.NoError(t, err)
	defer kv.Close()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "k", []byte("x")))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "x", string(v))
}
