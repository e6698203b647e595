// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jeranaias/morpheus-tui/internal/storage"
)

// =============================================================================
// ACTIVE STATE
// =============================================================================

// ActiveState points at the conversation to reopen on the next start.
type ActiveState struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsZero reports whether no conversation is recorded.
func (s ActiveState) IsZero() bool {
	return s.ConversationID == ""
}

// Store loads and saves the active state. Load reports false when nothing
// has been saved.
type Store interface {
	Load(ctx context.Context) (ActiveState, bool, error)
	Save(ctx context.Context, state ActiveState) error
	Clear(ctx context.Context) error
}

// =============================================================================
// SQLITE-BACKED STORE
// =============================================================================

// StateKey is the storage key of the active state.
const StateKey = "session.active"

// KVStore keeps the active state in the local state database.
type KVStore struct {
	kv *storage.KV
}

// NewKVStore creates a store over kv.
func NewKVStore(kv *storage.KV) *KVStore {
	return &KVStore{kv: kv}
}

// Load reads the saved state. A corrupt record is treated as absent.
func (s *KVStore) Load(ctx context.Context) (ActiveState, bool, error) {
	raw, err := s.kv.Get(ctx, StateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ActiveState{}, false, nil
	}
	if err != nil {
		return ActiveState{}, false, err
	}
	var st ActiveState
	if err := json.Unmarshal(raw, &st); err != nil || st.IsZero() {
		return ActiveState{}, false, nil
	}
	return st, true, nil
}

// Save records state, stamping UpdatedAt. A zero state clears instead.
func (s *KVStore) Save(ctx context.Context, state ActiveState) error {
	if state.IsZero() {
		return s.Clear(ctx)
	}
	state.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, StateKey, raw)
}

// Clear forgets the active conversation.
func (s *KVStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, StateKey)
}

// =============================================================================
// IN-MEMORY STORE
// =============================================================================

// MemoryStore keeps state for the life of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	state ActiveState
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (ActiveState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, !s.state.IsZero(), nil
}

func (s *MemoryStore) Save(_ context.Context, state ActiveState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.UpdatedAt = time.Now().UTC()
	s.state = state
	s.saves++
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ActiveState{}
	return nil
}

// Saves returns how many times Save has been called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
