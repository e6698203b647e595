// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// =============================================================================
// SOURCE TESTS
// =============================================================================

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = Static("").Token()
	assert.True(t, chaterr.IsUnauthorized(err))
}

func TestEnvFile_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, SaveToken(path, "  from-file \n"))

	src := &EnvFile{Env: "MORPHEUS_TEST_TOKEN", Path: path}

	t.Setenv("MORPHEUS_TEST_TOKEN", "")
	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok)

	t.Setenv("MORPHEUS_TEST_TOKEN", "from-env")
	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)
}

func TestEnvFile_MissingIsUnauthorized(t *testing.T) {
	src := &EnvFile{Path: filepath.Join(t.TempDir(), "absent")}
	_, err := src.Token()
	assert.ErrorIs(t, err, ErrNoToken)
	assert.True(t, chaterr.IsUnauthorized(err))
}

func TestSaveAndRemoveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "token")
	require.NoError(t, SaveToken(path, "t1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, RemoveToken(path))
	require.NoError(t, RemoveToken(path))
}

// =============================================================================
// EXPIRY TESTS
// =============================================================================

func TestCheckExpiry(t *testing.T) {
	now := time.Now()

	assert.NoError(t, CheckExpiry("opaque-token", now))
	assert.NoError(t, CheckExpiry("not.a.jwt", now))
	assert.NoError(t, CheckExpiry(signed(t, now.Add(time.Hour)), now))

	err := CheckExpiry(signed(t, now.Add(-time.Minute)), now)
	assert.True(t, chaterr.IsUnauthorized(err))
}

func TestChecked(t *testing.T) {
	now := time.Now()
	expired := Checked{Source: Static(signed(t, now.Add(-time.Hour)))}
	_, err := expired.Token()
	assert.True(t, chaterr.IsUnauthorized(err))

	fixed := Checked{
		Source: Static(signed(t, now.Add(-time.Hour))),
		Now:    func() time.Time { return now.Add(-2 * time.Hour) },
	}
	_, err = fixed.Token()
	assert.NoError(t, err)
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatchSignOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	require.NoError(t, SaveToken(path, "t1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signedOut := make(chan struct{}, 4)
	require.NoError(t, WatchSignOut(ctx, path, zerolog.Nop(), func() { signedOut <- struct{}{} }))

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0600))
	require.NoError(t, os.Remove(filepath.Join(dir, "other")))

	require.NoError(t, RemoveToken(path))

	select {
	case <-signedOut:
	case <-time.After(5 * time.Second):
		t.Fatal("sign-out not observed")
	}
}
