// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the streaming client.
type ClientConfig struct {
	// BaseURL is the API base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// Path of the streaming endpoint (default: /chat/stream)
	Path string

	// ConnectTimeout bounds dialing and waiting for response headers.
	// Nothing times out once the body is streaming. (default: 15s)
	ConnectTimeout time.Duration

	// Buffer is the capacity of a session's event channel (default: 64)
	Buffer int

	// Logger receives debug output; zero value discards.
	Logger zerolog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:8000",
		Path:           "/chat/stream",
		ConnectTimeout: 15 * time.Second,
		Buffer:         64,
		Logger:         zerolog.Nop(),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Request is the body posted to the streaming endpoint.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Client opens streaming chat sessions. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with a custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Path == "" {
		config.Path = "/chat/stream"
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 15 * time.Second
	}
	if config.Buffer <= 0 {
		config.Buffer = 64
	}

	// No Client.Timeout: it would cut off long replies mid-stream.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   config.ConnectTimeout,
		ResponseHeaderTimeout: config.ConnectTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Transport: transport},
		log:        config.Logger,
	}
}

// Endpoint returns the full URL of the streaming endpoint.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.config.BaseURL, "/") + c.config.Path
}

// Open posts req and returns a live session once response headers arrive.
// The returned session owns the response body until it finishes or is
// cancelled. Cancelling ctx has the same effect as Session.Cancel.
func (c *Client) Open(ctx context.Context, req Request, token string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, chaterr.New(chaterr.KindUnauthorized, "no credential available")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, chaterr.Wrap(chaterr.KindStreamUnavailable, "failed to marshal request", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(sctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, chaterr.Wrap(chaterr.KindStreamUnavailable, "failed to create request", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson, text/plain")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Request-ID", requestID)

	log := c.log.With().Str("request_id", requestID).Logger()
	log.Debug().Str("conversation_id", req.ConversationID).Msg("opening stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) {
			return nil, chaterr.Wrap(chaterr.KindCancelled, "stream cancelled", err)
		}
		return nil, chaterr.Wrap(chaterr.KindStreamUnavailable, "failed to reach chat service", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		drain(resp.Body)
		cancel()
		return nil, chaterr.New(chaterr.KindUnauthorized, "chat service rejected credential: "+resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		cancel()
		return nil, chaterr.New(chaterr.KindStreamUnavailable, "stream request failed: "+resp.Status)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, chaterr.New(chaterr.KindStreamUnavailable, "stream response has no body")
	}

	s := newSession(sctx, cancel, resp.Body, c.config.Buffer, requestID, log)
	go s.pump()
	return s, nil
}

// Stream opens a session and invokes fn for each delta in order. It
// returns when the stream completes, fails or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, req Request, token string, fn func(Delta)) error {
	s, err := c.Open(ctx, req, token)
	if err != nil {
		return err
	}
	defer s.Cancel()
	return s.Each(fn)
}

func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
