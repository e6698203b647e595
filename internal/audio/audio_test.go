// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// =============================================================================
// CLASSIFIER TESTS
// =============================================================================

func reply(content, agent string) model.Message {
	return model.Message{
		Role:        model.RoleAssistant,
		Content:     content,
		Annotations: model.Annotations{SourceAgent: agent},
	}
}

func TestClassifier_ExplicitTag(t *testing.T) {
	c := NewClassifier("", false, 0)

	assert.True(t, c.Eligible(reply("Once upon a time the end.", "storyteller")))
	assert.True(t, c.Eligible(reply("Short.", "StoryTeller")))
	assert.False(t, c.Eligible(reply("Once upon a time the end.", "coach")))
	assert.False(t, c.Eligible(reply("Once upon a time the end.", "")))
}

func TestClassifier_NeverPartialOrUser(t *testing.T) {
	c := NewClassifier("", true, 1)

	partial := reply("Once upon a time", "storyteller")
	partial.IsStreaming = true
	assert.False(t, c.Eligible(partial))

	user := reply("tell me a story", "storyteller")
	user.Role = model.RoleUser
	assert.False(t, c.Eligible(user))

	assert.False(t, c.Eligible(reply("   ", "storyteller")))
}

func TestClassifier_KeywordFallback(t *testing.T) {
	long := "Once Upon A Time " + strings.Repeat("sleepy ", 20) + "and they lived happily."
	c := NewClassifier("", true, 10)

	assert.True(t, c.Eligible(reply(long, "")))
	assert.False(t, c.Eligible(reply("Once upon a time.", "")), "too short")
	assert.False(t, c.Eligible(reply(strings.Repeat("sleep hygiene ", 20), "")), "no marker")
	assert.False(t, c.Eligible(reply(long, "coach")), "explicit tag wins over keywords")

	off := NewClassifier("", false, 10)
	assert.False(t, off.Eligible(reply(long, "")))
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClient_GenerateAndDownload(t *testing.T) {
	var generated atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/audio/generate":
			generated.Add(1)
			var req generateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Once upon a time", req.Text)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"audio_id":"aud-7"}`))
		case "/audio/aud-7":
			_, _ = w.Write([]byte("RIFFdata"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	ctx := context.Background()

	id, err := c.Generate(ctx, "tok", "Once upon a time")
	require.NoError(t, err)
	assert.Equal(t, "aud-7", id)

	id, err = c.Generate(ctx, "tok", "Once upon a time")
	require.NoError(t, err)
	assert.Equal(t, "aud-7", id)
	assert.EqualValues(t, 1, generated.Load(), "same text is generated once")

	assert.Equal(t, srv.URL+"/audio/aud-7", c.URL("aud-7"))

	var buf bytes.Buffer
	n, err := c.Download(ctx, "tok", "aud-7", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)
	assert.Equal(t, "RIFFdata", buf.String())

	_, err = c.Download(ctx, "tok", "missing", &buf)
	assert.True(t, chaterr.IsNotFound(err))

	_, err = c.Generate(ctx, "bad", "other text")
	assert.True(t, chaterr.IsUnauthorized(err))

	_, err = c.Generate(ctx, "", "other text")
	assert.True(t, chaterr.IsUnauthorized(err))
}
