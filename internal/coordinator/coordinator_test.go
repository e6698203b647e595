// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/morpheus-tui/internal/audio"
	"github.com/jeranaias/morpheus-tui/internal/auth"
	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/session"
	"github.com/jeranaias/morpheus-tui/internal/stream"
)

const waitFor = 2 * time.Second

// =============================================================================
// FAKES
// =============================================================================

type fakeDirectory struct {
	mu        sync.Mutex
	summaries []model.ConversationSummary
	messages  map[string][]model.Message
	missing   map[string]int // fetches that fail with NotFound before succeeding
	recovered int

	fetches     int
	recovers    int
	lists       int
	renames     map[string]string
	deleted     []string
	invalidated []string
	upserts     []model.ConversationSummary
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		messages: map[string][]model.Message{},
		missing:  map[string]int{},
		renames:  map[string]string{},
	}
}

func (d *fakeDirectory) List(context.Context) ([]model.ConversationSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lists++
	return append([]model.ConversationSummary(nil), d.summaries...), nil
}

func (d *fakeDirectory) Summaries() []model.ConversationSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.ConversationSummary(nil), d.summaries...)
}

func (d *fakeDirectory) Lookup(id string) (model.ConversationSummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.summaries {
		if s.ID == id {
			return s, true
		}
	}
	return model.ConversationSummary{}, false
}

func (d *fakeDirectory) Upsert(s model.ConversationSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upserts = append(d.upserts, s)
}

func (d *fakeDirectory) FetchMessages(_ context.Context, id string) ([]model.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetches++
	if d.missing[id] > 0 {
		d.missing[id]--
		return nil, chaterr.New(chaterr.KindNotFound, "conversation not found")
	}
	msgs, ok := d.messages[id]
	if !ok {
		return nil, chaterr.New(chaterr.KindNotFound, "conversation not found")
	}
	return model.CloneMessages(msgs), nil
}

func (d *fakeDirectory) Rename(_ context.Context, id, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renames[id] = title
	return nil
}

func (d *fakeDirectory) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, id)
	return nil
}

func (d *fakeDirectory) Recover(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recovers++
	return d.recovered, nil
}

func (d *fakeDirectory) Invalidate(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidated = append(d.invalidated, id)
}

func (d *fakeDirectory) counts() (fetches, recovers, lists int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches, d.recovers, d.lists
}

type fakeAudio struct {
	calls atomic.Int32
	id    string
}

func (a *fakeAudio) Generate(_ context.Context, token, text string) (string, error) {
	a.calls.Add(1)
	if token == "" || text == "" {
		return "", fmt.Errorf("bad request")
	}
	return a.id, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// lines serves each line as its own flushed write.
func lines(records ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, rec := range records {
			fmt.Fprintln(w, rec)
			w.(http.Flusher).Flush()
		}
	}
}

// hanging serves one record and then holds the stream open until the client
// goes away or release is closed.
func hanging(first string, release <-chan struct{}, gone *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, first)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
			gone.Store(true)
		case <-release:
		}
	}
}

type harness struct {
	c     *Coordinator
	dir   *fakeDirectory
	state *session.MemoryStore
	audio *fakeAudio
}

func newHarness(t *testing.T, handler http.Handler, mutate ...func(*Options)) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	h := &harness{
		dir:   newFakeDirectory(),
		state: session.NewMemoryStore(),
		audio: &fakeAudio{id: "aud-1"},
	}
	opts := Options{
		Streamer:   stream.NewClientWithConfig(&stream.ClientConfig{BaseURL: srv.URL, ConnectTimeout: waitFor}),
		Directory:  h.dir,
		Tokens:     auth.Static("tok"),
		State:      h.state,
		Audio:      h.audio,
		Classifier: audio.NewClassifier("", false, 0),
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func wait(t *testing.T, turn *Turn) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	select {
	case <-turn.Done():
		return turn.Err()
	case <-ctx.Done():
		t.Fatal("turn did not finish")
		return nil
	}
}

func waitStreaming(t *testing.T, c *Coordinator, content string) {
	t.Helper()
	require.Eventually(t, func() bool {
		msgs := c.Messages()
		return c.State() == StateStreaming && len(msgs) > 0 && msgs[len(msgs)-1].Content == content
	}, waitFor, 5*time.Millisecond)
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestSubmit_StoryIsAssembledAndFlagged(t *testing.T) {
	h := newHarness(t, lines(
		`{"text":"Once"}`,
		`{"text":" upon a time"}`,
		`{"text":" the end.","data":{"agent":"storyteller"}}`,
	))

	turn, err := h.c.Submit("Tell me a story")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	msgs := h.c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Tell me a story", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Once upon a time the end.", msgs[1].Content)
	assert.Equal(t, "storyteller", msgs[1].Annotations.SourceAgent)
	assert.True(t, msgs[1].AudioEligible)
	assert.False(t, msgs[1].IsStreaming)
	assert.Equal(t, StateIdle, h.c.State())
	assert.NoError(t, h.c.LastError())
}

func TestSubmit_UntaggedReplyIsNotEligible(t *testing.T) {
	h := newHarness(t, lines(`{"text":"Just facts."}`))

	turn, err := h.c.Submit("hi")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	assert.False(t, h.c.Messages()[1].AudioEligible)
}

func TestSubmit_RejectsEmptyText(t *testing.T) {
	h := newHarness(t, lines(`{"text":"x"}`))

	_, err := h.c.Submit("   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, h.c.Messages())
	assert.Equal(t, StateIdle, h.c.State())
}

func TestSubmit_RejectsWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	var gone atomic.Bool
	h := newHarness(t, hanging(`{"text":"partial"}`, release, &gone))
	defer close(release)

	turn, err := h.c.Submit("first")
	require.NoError(t, err)
	waitStreaming(t, h.c, "partial")

	_, err = h.c.Submit("second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, h.c.Messages(), 2)

	require.True(t, h.c.Stop())
	assert.True(t, chaterr.IsCancelled(wait(t, turn)))
}

func TestSubmit_ServerErrorRollsBack(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))

	turn, err := h.c.Submit("hello")
	require.NoError(t, err)

	err = wait(t, turn)
	assert.ErrorIs(t, err, chaterr.ErrStreamUnavailable)
	assert.Empty(t, h.c.Messages())
	assert.ErrorIs(t, h.c.LastError(), chaterr.ErrStreamUnavailable)
	assert.Equal(t, StateIdle, h.c.State())
	assert.Zero(t, h.state.Saves())
}

func TestSubmit_UnauthorizedResponseRollsBack(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	turn, err := h.c.Submit("hello")
	require.NoError(t, err)
	assert.True(t, chaterr.IsUnauthorized(wait(t, turn)))
	assert.Empty(t, h.c.Messages())
}

func TestSubmit_MissingTokenRollsBackImmediately(t *testing.T) {
	h := newHarness(t, lines(`{"text":"x"}`), func(o *Options) {
		o.Tokens = auth.Static("")
	})

	turn, err := h.c.Submit("hello")
	assert.Nil(t, turn)
	assert.True(t, chaterr.IsUnauthorized(err))
	assert.Empty(t, h.c.Messages())
	assert.Equal(t, StateIdle, h.c.State())
	assert.True(t, chaterr.IsUnauthorized(h.c.LastError()))
}

func TestSubmit_SendsConversationID(t *testing.T) {
	var got []stream.Request
	var mu sync.Mutex
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req stream.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		fmt.Fprintln(w, `{"text":"ok","data":{"conversation_id":"c1"}}`)
	}))

	for _, text := range []string{"one", "two"} {
		turn, err := h.c.Submit(text)
		require.NoError(t, err)
		require.NoError(t, wait(t, turn))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ConversationID)
	assert.Equal(t, "c1", got[1].ConversationID)
}

// =============================================================================
// STOP TESTS
// =============================================================================

func TestStop_KeepsPartialReply(t *testing.T) {
	release := make(chan struct{})
	var gone atomic.Bool
	h := newHarness(t, hanging(`{"text":"Once upon"}`, release, &gone))
	defer close(release)

	turn, err := h.c.Submit("story")
	require.NoError(t, err)
	waitStreaming(t, h.c, "Once upon")

	assert.True(t, h.c.Stop())
	assert.True(t, chaterr.IsCancelled(wait(t, turn)))

	msgs := h.c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Once upon", msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
	assert.Equal(t, StateIdle, h.c.State())
	assert.NoError(t, h.c.LastError())

	assert.Eventually(t, gone.Load, waitFor, 5*time.Millisecond)
	assert.False(t, h.c.Stop())
}

func TestStop_BeforeAnyTextRemovesTurn(t *testing.T) {
	release := make(chan struct{})
	var gone atomic.Bool
	h := newHarness(t, hanging(`{"data":{"conversation_id":"c1"}}`, release, &gone))
	defer close(release)

	turn, err := h.c.Submit("story")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.c.ConversationID() == "c1" }, waitFor, 5*time.Millisecond)

	require.True(t, h.c.Stop())
	wait(t, turn)
	assert.Empty(t, h.c.Messages())
}

func TestStop_PartialReplyIsRemembered(t *testing.T) {
	release := make(chan struct{})
	var gone atomic.Bool
	h := newHarness(t, hanging(`{"text":"Once upon","data":{"conversation_id":"c-new","conversation_title":"Fox"}}`, release, &gone))
	defer close(release)

	_, err := h.c.Submit("story")
	require.NoError(t, err)
	waitStreaming(t, h.c, "Once upon")
	require.True(t, h.c.Stop())

	st, ok, err := h.state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c-new", st.ConversationID)
	assert.Equal(t, "Fox", st.Title)

	h.dir.mu.Lock()
	assert.Contains(t, h.dir.invalidated, "c-new")
	h.dir.mu.Unlock()

	assert.Eventually(t, func() bool {
		_, _, lists := h.dir.counts()
		return lists == 1
	}, waitFor, 5*time.Millisecond)
}

func TestStop_EmptyReplyIsNotRemembered(t *testing.T) {
	release := make(chan struct{})
	var gone atomic.Bool
	h := newHarness(t, hanging(`{"data":{"conversation_id":"c-new"}}`, release, &gone))
	defer close(release)

	_, err := h.c.Submit("story")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.c.ConversationID() == "c-new" }, waitFor, 5*time.Millisecond)
	require.True(t, h.c.Stop())

	_, ok, err := h.state.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	h.dir.mu.Lock()
	defer h.dir.mu.Unlock()
	assert.Empty(t, h.dir.invalidated)
}

// =============================================================================
// RETROFIT TESTS
// =============================================================================

func TestRetrofit_FirstMetadataWins(t *testing.T) {
	h := newHarness(t, lines(
		`{"text":"a"}`,
		`{"text":"b","data":{"conversation_id":"c1","conversation_title":"First"}}`,
		`{"text":"c","data":{"conversation_id":"c2","conversation_title":"Second"}}`,
	))

	turn, err := h.c.Submit("hi")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	snap := h.c.Snapshot()
	assert.Equal(t, "c1", snap.ConversationID)
	assert.Equal(t, "First", snap.Title)
	assert.Equal(t, "abc", snap.Messages[1].Content)

	st, ok, err := h.state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", st.ConversationID)
	assert.Equal(t, "First", st.Title)

	h.dir.mu.Lock()
	defer h.dir.mu.Unlock()
	require.Len(t, h.dir.upserts, 1)
	assert.Equal(t, "c1", h.dir.upserts[0].ID)
	assert.Contains(t, h.dir.invalidated, "c1")
}

func TestSuccess_RefreshesDirectory(t *testing.T) {
	h := newHarness(t, lines(`{"text":"hi","data":{"conversation_id":"c1"}}`))

	turn, err := h.c.Submit("hello")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	assert.Eventually(t, func() bool {
		_, _, lists := h.dir.counts()
		return lists == 1
	}, waitFor, 5*time.Millisecond)
}

// =============================================================================
// EDIT TESTS
// =============================================================================

func TestEdit_RegeneratesReply(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req stream.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprintf(w, `{"text":"re: %s"}`+"\n", req.Message)
	}))

	turn, err := h.c.Submit("first")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	turn, err = h.c.Edit(0, "edited")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	msgs := h.c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "edited", msgs[0].Content)
	assert.Equal(t, "re: edited", msgs[1].Content)
	assert.Equal(t, 1, msgs[1].Ordinal)
}

func TestEdit_FailedRegenerationRestoresTranscript(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, `{"text":"original reply","data":{"agent":"storyteller"}}`)
	}))

	turn, err := h.c.Submit("first")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))
	before := h.c.Messages()

	turn, err = h.c.Edit(0, "edited")
	require.NoError(t, err)
	assert.Equal(t, chaterr.KindStreamUnavailable, chaterr.KindOf(wait(t, turn)))

	assert.Equal(t, before, h.c.Messages())
	assert.Error(t, h.c.LastError())
	assert.Equal(t, StateIdle, h.c.State())
}

func TestEdit_RejectsOlderMessage(t *testing.T) {
	h := newHarness(t, lines(`{"text":"ok"}`))

	for _, text := range []string{"one", "two"} {
		turn, err := h.c.Submit(text)
		require.NoError(t, err)
		require.NoError(t, wait(t, turn))
	}
	before := h.c.Messages()

	_, err := h.c.Edit(0, "changed")
	assert.ErrorIs(t, err, chaterr.ErrNotEditable)
	assert.Equal(t, before, h.c.Messages())
}

func TestEdit_RejectsWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	var gone atomic.Bool
	h := newHarness(t, hanging(`{"text":"p"}`, release, &gone))
	defer close(release)

	_, err := h.c.Submit("first")
	require.NoError(t, err)
	waitStreaming(t, h.c, "p")

	_, err = h.c.Edit(0, "changed")
	assert.ErrorIs(t, err, chaterr.ErrNotEditable)
	h.c.Stop()
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestSwitch_CancelsActiveStream(t *testing.T) {
	release := make(chan struct{})
	var gone atomic.Bool
	h := newHarness(t, hanging(`{"text":"streaming"}`, release, &gone))
	defer close(release)
	h.dir.summaries = []model.ConversationSummary{{ID: "c9", Title: "Other"}}
	h.dir.messages["c9"] = []model.Message{
		{Role: model.RoleUser, Content: "old question"},
		{Role: model.RoleAssistant, Content: "old answer"},
	}

	turn, err := h.c.Submit("new question")
	require.NoError(t, err)
	waitStreaming(t, h.c, "streaming")

	require.NoError(t, h.c.SwitchConversation(context.Background(), "c9"))
	assert.True(t, chaterr.IsCancelled(wait(t, turn)))

	snap := h.c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, "c9", snap.ConversationID)
	assert.Equal(t, "Other", snap.Title)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "old answer", snap.Messages[1].Content)
	assert.Equal(t, 1, snap.Messages[1].Ordinal)
	assert.Eventually(t, gone.Load, waitFor, 5*time.Millisecond)

	// A late delta from the old turn must not reach the new transcript.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "old answer", h.c.Messages()[1].Content)
}

func TestSwitch_RecoversOnce(t *testing.T) {
	h := newHarness(t, lines())
	h.dir.missing["c1"] = 1
	h.dir.recovered = 1
	h.dir.messages["c1"] = []model.Message{{Role: model.RoleUser, Content: "hello"}}

	require.NoError(t, h.c.SwitchConversation(context.Background(), "c1"))

	fetches, recovers, lists := h.dir.counts()
	assert.Equal(t, 2, fetches)
	assert.Equal(t, 1, recovers)
	assert.Equal(t, 1, lists)
	assert.Len(t, h.c.Messages(), 1)
}

func TestSwitch_SecondNotFoundIsSurfaced(t *testing.T) {
	h := newHarness(t, lines())
	h.dir.missing["c1"] = 5
	h.dir.recovered = 3
	h.dir.messages["c1"] = []model.Message{{Role: model.RoleUser, Content: "hello"}}

	err := h.c.SwitchConversation(context.Background(), "c1")
	assert.True(t, chaterr.IsNotFound(err))

	fetches, recovers, lists := h.dir.counts()
	assert.Equal(t, 2, fetches)
	assert.Equal(t, 1, recovers)
	assert.Equal(t, 1, lists)
	assert.True(t, chaterr.IsNotFound(h.c.LastError()))
}

func TestSwitch_NothingRecoveredSkipsRetry(t *testing.T) {
	h := newHarness(t, lines())

	err := h.c.SwitchConversation(context.Background(), "gone")
	assert.True(t, chaterr.IsNotFound(err))

	fetches, recovers, lists := h.dir.counts()
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 1, recovers)
	assert.Zero(t, lists)
}

func TestRestore(t *testing.T) {
	t.Run("reopens saved conversation", func(t *testing.T) {
		h := newHarness(t, lines())
		h.dir.messages["c1"] = []model.Message{{Role: model.RoleUser, Content: "hello"}}
		require.NoError(t, h.state.Save(context.Background(), session.ActiveState{ConversationID: "c1"}))

		restored, err := h.c.Restore(context.Background())
		require.NoError(t, err)
		assert.True(t, restored)
		assert.Equal(t, "c1", h.c.ConversationID())
	})

	t.Run("drops pointer to missing conversation", func(t *testing.T) {
		h := newHarness(t, lines())
		require.NoError(t, h.state.Save(context.Background(), session.ActiveState{ConversationID: "gone"}))

		restored, err := h.c.Restore(context.Background())
		require.NoError(t, err)
		assert.False(t, restored)

		_, ok, err := h.state.Load(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nothing saved", func(t *testing.T) {
		h := newHarness(t, lines())
		restored, err := h.c.Restore(context.Background())
		require.NoError(t, err)
		assert.False(t, restored)
	})
}

func TestNewConversation_ClearsState(t *testing.T) {
	h := newHarness(t, lines(`{"text":"hi","data":{"conversation_id":"c1"}}`))

	turn, err := h.c.Submit("hello")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))
	require.Equal(t, "c1", h.c.ConversationID())

	h.c.NewConversation()
	assert.Empty(t, h.c.ConversationID())
	assert.Empty(t, h.c.Messages())
	_, ok, _ := h.state.Load(context.Background())
	assert.False(t, ok)
}

func TestRenameAndDelete(t *testing.T) {
	h := newHarness(t, lines(`{"text":"hi","data":{"conversation_id":"c1","conversation_title":"Old"}}`))

	turn, err := h.c.Submit("hello")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	require.NoError(t, h.c.Rename(context.Background(), "c1", "  New  "))
	assert.Equal(t, "New", h.c.Snapshot().Title)
	st, _, _ := h.state.Load(context.Background())
	assert.Equal(t, "New", st.Title)
	assert.Error(t, h.c.Rename(context.Background(), "c1", " "))

	require.NoError(t, h.c.Delete(context.Background(), "other"))
	assert.Equal(t, "c1", h.c.ConversationID())

	require.NoError(t, h.c.Delete(context.Background(), "c1"))
	assert.Empty(t, h.c.ConversationID())
	assert.Empty(t, h.c.Messages())
	assert.Equal(t, []string{"other", "c1"}, h.dir.deleted)
}

func TestSignOut_ClearsEverything(t *testing.T) {
	h := newHarness(t, lines(`{"text":"hi","data":{"conversation_id":"c1"}}`))

	turn, err := h.c.Submit("hello")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	require.NoError(t, h.c.SignOut(context.Background()))
	assert.Empty(t, h.c.Messages())
	assert.Empty(t, h.c.ConversationID())
	_, ok, _ := h.state.Load(context.Background())
	assert.False(t, ok)
}

// =============================================================================
// AUDIO TESTS
// =============================================================================

func TestGenerateAudio_AttachesID(t *testing.T) {
	h := newHarness(t, lines(`{"text":"Once upon a time.","data":{"agent":"storyteller"}}`))

	turn, err := h.c.Submit("story")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	id, err := h.c.GenerateAudio(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "aud-1", id)
	assert.True(t, h.c.Messages()[1].HasAudio())

	// A second request reuses the attached id.
	_, err = h.c.GenerateAudio(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.audio.calls.Load())

	_, err = h.c.GenerateAudio(context.Background(), 0)
	assert.Error(t, err)
	_, err = h.c.GenerateAudio(context.Background(), 9)
	assert.Error(t, err)
}

func TestGenerateAudio_AutomaticForEligibleReplies(t *testing.T) {
	h := newHarness(t, lines(`{"text":"The dragon slept.","data":{"agent":"storyteller"}}`), func(o *Options) {
		o.AutoAudio = true
	})

	turn, err := h.c.Submit("story")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	assert.Eventually(t, func() bool {
		msgs := h.c.Messages()
		return len(msgs) == 2 && msgs[1].HasAudio()
	}, waitFor, 5*time.Millisecond)
}

func TestGenerateAudio_Disabled(t *testing.T) {
	h := newHarness(t, lines(), func(o *Options) { o.Audio = nil })
	_, err := h.c.GenerateAudio(context.Background(), 0)
	assert.ErrorIs(t, err, ErrAudioDisabled)
}

// =============================================================================
// NOTIFICATION TESTS
// =============================================================================

func TestOnUpdate_FiresDuringTurn(t *testing.T) {
	h := newHarness(t, lines(`{"text":"a"}`, `{"text":"b"}`))
	var updates atomic.Int32
	h.c.OnUpdate(func() {
		// Snapshot from inside a callback must not deadlock.
		_ = h.c.Snapshot()
		updates.Add(1)
	})

	turn, err := h.c.Submit("hi")
	require.NoError(t, err)
	require.NoError(t, wait(t, turn))

	assert.GreaterOrEqual(t, updates.Load(), int32(3))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Streamer: stream.NewClient()})
	assert.Error(t, err)
	_, err = New(Options{Streamer: stream.NewClient(), Directory: newFakeDirectory()})
	assert.Error(t, err)
}
