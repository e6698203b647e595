// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("disabled"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New("debug", "json", &buf), "stream")
	log.Debug().Str("request_id", "r1").Msg("opening stream")
	log.Trace().Msg("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "opening stream", entry["message"])
	assert.Equal(t, "stream", entry["component"])
	assert.Equal(t, "r1", entry["request_id"])
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNew_ConsoleWithoutColour(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "console", &buf)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "morpheus.log")
	log, closer, err := OpenFile(path, "info", "json")
	require.NoError(t, err)
	log.Info().Msg("written")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}
