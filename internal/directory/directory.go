// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// DefaultCacheSize is the number of conversations whose messages are kept.
const DefaultCacheSize = 32

type cachedMessages struct {
	updatedAt time.Time
	messages  []model.Message
}

// Directory is the client-side view of the user's conversations. It keeps
// the summary list sorted most recent first and caches fetched message
// lists. Safe for concurrent use.
type Directory struct {
	client *Client
	log    zerolog.Logger

	mu        sync.RWMutex
	summaries []model.ConversationSummary
	refreshed time.Time

	cache *lru.Cache
}

// New creates a directory backed by client.
func New(client *Client, cacheSize int, log zerolog.Logger) (*Directory, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Directory{client: client, log: log, cache: cache}, nil
}

// List refreshes the summary list from the server and returns a copy.
// Cached messages of conversations that changed or vanished are evicted.
func (d *Directory) List(ctx context.Context) ([]model.ConversationSummary, error) {
	summaries, err := d.client.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	sortSummaries(summaries)

	current := make(map[string]time.Time, len(summaries))
	for _, s := range summaries {
		current[s.ID] = s.UpdatedAt
	}
	for _, key := range d.cache.Keys() {
		id := key.(string)
		v, ok := d.cache.Peek(id)
		if !ok {
			continue
		}
		updated, exists := current[id]
		if !exists || !updated.Equal(v.(cachedMessages).updatedAt) {
			d.cache.Remove(id)
		}
	}

	d.mu.Lock()
	d.summaries = summaries
	d.refreshed = time.Now()
	d.mu.Unlock()

	d.log.Debug().Int("conversations", len(summaries)).Msg("directory refreshed")
	return d.Summaries(), nil
}

// Summaries returns the last fetched list without contacting the server.
func (d *Directory) Summaries() []model.ConversationSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.ConversationSummary(nil), d.summaries...)
}

// Refreshed returns when the list was last fetched, or the zero time.
func (d *Directory) Refreshed() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshed
}

// Lookup finds a summary by id in the last fetched list.
func (d *Directory) Lookup(id string) (model.ConversationSummary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.summaries {
		if s.ID == id {
			return s, true
		}
	}
	return model.ConversationSummary{}, false
}

// Upsert records a conversation locally, e.g. when a new one is created by
// the first streamed reply, and moves it to the top.
func (d *Directory) Upsert(s model.ConversationSummary) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.summaries {
		if d.summaries[i].ID == s.ID {
			if s.Title == "" {
				s.Title = d.summaries[i].Title
			}
			d.summaries[i] = s
			sortSummaries(d.summaries)
			return
		}
	}
	d.summaries = append(d.summaries, s)
	sortSummaries(d.summaries)
}

// FetchMessages returns the messages of conversation id, from cache when
// possible.
func (d *Directory) FetchMessages(ctx context.Context, id string) ([]model.Message, error) {
	if v, ok := d.cache.Get(id); ok {
		return model.CloneMessages(v.(cachedMessages).messages), nil
	}

	msgs, err := d.client.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated time.Time
	if s, ok := d.Lookup(id); ok {
		updated = s.UpdatedAt
	}
	d.cache.Add(id, cachedMessages{updatedAt: updated, messages: model.CloneMessages(msgs)})
	return msgs, nil
}

// Rename sets a conversation's title on the server and locally.
func (d *Directory) Rename(ctx context.Context, id, title string) error {
	if err := d.client.RenameConversation(ctx, id, title); err != nil {
		return err
	}
	d.mu.Lock()
	for i := range d.summaries {
		if d.summaries[i].ID == id {
			d.summaries[i].Title = title
		}
	}
	d.mu.Unlock()
	d.cache.Remove(id)
	return nil
}

// Delete removes a conversation. A conversation already gone on the server
// counts as deleted.
func (d *Directory) Delete(ctx context.Context, id string) error {
	err := d.client.DeleteConversation(ctx, id)
	if err != nil && !chaterr.IsNotFound(err) {
		return err
	}
	d.mu.Lock()
	out := d.summaries[:0]
	for _, s := range d.summaries {
		if s.ID != id {
			out = append(out, s)
		}
	}
	d.summaries = out
	d.mu.Unlock()
	d.cache.Remove(id)
	return nil
}

// Recover asks the server to repair orphaned conversations. The whole
// cache is dropped since any entry may have changed.
func (d *Directory) Recover(ctx context.Context) (int, error) {
	n, err := d.client.RecoverConversations(ctx)
	if err != nil {
		return 0, err
	}
	d.cache.Purge()
	d.log.Info().Int("recovered", n).Msg("conversation recovery finished")
	return n, nil
}

// Invalidate drops cached messages for id.
func (d *Directory) Invalidate(id string) {
	d.cache.Remove(id)
}

func sortSummaries(s []model.ConversationSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].UpdatedAt.After(s[j].UpdatedAt)
	})
}
