// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
)

// =============================================================================
// CLIENT
// =============================================================================

type generateRequest struct {
	Text string `json:"text"`
}

type generateResponse struct {
	AudioID string `json:"audio_id"`
}

// Client requests narration for finished replies. Generated ids are
// remembered per text so the same reply is never narrated twice.
type Client struct {
	baseURL string
	http    *resty.Client
	seen    *lru.Cache
}

// NewClient creates an audio client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	baseURL = strings.TrimRight(baseURL, "/")
	seen, _ := lru.New(128)
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
		seen: seen,
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Generate asks the server to narrate text and returns the audio id.
func (c *Client) Generate(ctx context.Context, token, text string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", chaterr.New(chaterr.KindUnauthorized, "no credential available")
	}
	key := cacheKey(text)
	if v, ok := c.seen.Get(key); ok {
		return v.(string), nil
	}

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(generateRequest{Text: text}).
		SetResult(&out).
		Post("/audio/generate")
	if err := check(ctx, resp, err); err != nil {
		return "", err
	}
	if out.AudioID == "" {
		return "", chaterr.New(chaterr.KindStreamUnavailable, "audio service returned no audio_id")
	}
	c.seen.Add(key, out.AudioID)
	return out.AudioID, nil
}

// URL returns where the bytes for id are served.
func (c *Client) URL(id string) string {
	return c.baseURL + "/audio/" + url.PathEscape(id)
}

// Download copies the audio for id into w and returns the byte count.
func (c *Client) Download(ctx context.Context, token, id string, w io.Writer) (int64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetDoNotParseResponse(true).
		SetPathParam("id", id).
		Get("/audio/{id}")
	if err != nil {
		return 0, check(ctx, resp, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if err := check(ctx, resp, nil); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, body)
	if err != nil {
		return n, chaterr.Wrap(chaterr.KindStreamUnavailable, "audio download interrupted", err)
	}
	return n, nil
}

func check(ctx context.Context, resp *resty.Response, err error) error {
	if err != nil {
		if ctx.Err() != nil {
			return chaterr.Wrap(chaterr.KindCancelled, "audio request cancelled", ctx.Err())
		}
		return chaterr.Wrap(chaterr.KindStreamUnavailable, "audio request failed", err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return chaterr.New(chaterr.KindUnauthorized, "audio service rejected credential")
	case code == http.StatusNotFound:
		return chaterr.New(chaterr.KindNotFound, "audio not found")
	case code < 200 || code > 299:
		return chaterr.New(chaterr.KindStreamUnavailable, "audio request failed: "+resp.Status())
	}
	return nil
}
