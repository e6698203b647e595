// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type listResponse struct {
	Conversations []model.ConversationSummary `json:"conversations"`
}

type wireMessage struct {
	Role      string                       `json:"role"`
	Content   string                       `json:"content"`
	Agent     string                       `json:"agent,omitempty"`
	AudioID   string                       `json:"audio_id,omitempty"`
	Timestamp time.Time                    `json:"timestamp,omitempty"`
	Checks    map[string]model.SafetyCheck `json:"responsible_ai_checks,omitempty"`
}

type detailResponse struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Messages []wireMessage `json:"messages"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type recoverResponse struct {
	Recovered int `json:"recovered"`
}

func (w wireMessage) toModel() model.Message {
	role := model.Role(strings.ToLower(w.Role))
	if !role.Valid() {
		role = model.RoleAssistant
	}
	return model.Message{
		Role:        role,
		Content:     w.Content,
		Timestamp:   w.Timestamp,
		Attachments: model.Attachments{AudioRef: w.AudioID},
		Annotations: model.Annotations{SourceAgent: w.Agent, SafetyChecks: w.Checks},
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// TokenFunc supplies the bearer token for each request.
type TokenFunc func() (string, error)

// Client is the REST client for the conversation endpoints.
type Client struct {
	http  *resty.Client
	token TokenFunc
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, token TokenFunc) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{http: httpClient, token: token}
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	tok := ""
	if c.token != nil {
		var err error
		if tok, err = c.token(); err != nil {
			return nil, chaterr.Wrap(chaterr.KindUnauthorized, "no credential available", err)
		}
	}
	if strings.TrimSpace(tok) == "" {
		return nil, chaterr.New(chaterr.KindUnauthorized, "no credential available")
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetHeader("X-Request-ID", uuid.NewString()), nil
}

// check maps transport failures and status codes onto the error taxonomy.
func check(ctx context.Context, resp *resty.Response, err error, what string) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return chaterr.Wrap(chaterr.KindCancelled, what+" cancelled", ctxErr)
		}
		return chaterr.Wrap(chaterr.KindStreamUnavailable, what+" failed", err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return chaterr.New(chaterr.KindUnauthorized, what+": "+resp.Status())
	case code == http.StatusNotFound:
		return chaterr.New(chaterr.KindNotFound, what+": conversation not found")
	case resp.IsError():
		return chaterr.New(chaterr.KindStreamUnavailable, what+": "+resp.Status())
	}
	return nil
}

// ListConversations fetches every conversation summary.
func (c *Client) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out listResponse
	resp, err := req.SetResult(&out).Get("/conversations")
	if err := check(ctx, resp, err, "list conversations"); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetMessages fetches the messages of conversation id in server order.
func (c *Client) GetMessages(ctx context.Context, id string) ([]model.Message, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out detailResponse
	resp, err := req.SetResult(&out).SetPathParam("id", id).Get("/conversations/{id}")
	if err := check(ctx, resp, err, "load conversation"); err != nil {
		return nil, err
	}
	msgs := make([]model.Message, len(out.Messages))
	for i, w := range out.Messages {
		msgs[i] = w.toModel()
		msgs[i].Ordinal = i
	}
	return msgs, nil
}

// RenameConversation sets the title of conversation id.
func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetBody(renameRequest{Title: title}).SetPathParam("id", id).Put("/conversations/{id}")
	return check(ctx, resp, err, "rename conversation")
}

// DeleteConversation removes conversation id.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetPathParam("id", id).Delete("/conversations/{id}")
	return check(ctx, resp, err, "delete conversation")
}

// RecoverConversations asks the server to repair conversations whose
// records were orphaned and returns how many it restored.
func (c *Client) RecoverConversations(ctx context.Context) (int, error) {
	req, err := c.request(ctx)
	if err != nil {
		return 0, err
	}
	var out recoverResponse
	resp, err := req.SetResult(&out).Post("/conversations/recover")
	if err := check(ctx, resp, err, "recover conversations"); err != nil {
		return 0, err
	}
	return out.Recovered, nil
}
