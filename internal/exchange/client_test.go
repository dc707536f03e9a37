package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddy-ai/buddyai/internal/conversation"
	"github.com/buddy-ai/buddyai/internal/model"
	"github.com/buddy-ai/buddyai/pkg/logger"
)

func newTestStore(t *testing.T) *conversation.Store {
	t.Helper()
	s, err := conversation.Open(filepath.Join(t.TempDir(), "conversations.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func replyServer(t *testing.T, calls *atomic.Int64, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req model.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(model.ChatResponse{Response: reply})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendAppendsUserAndAssistantMessages(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int64
	srv := replyServer(t, &calls, "Hello there!")

	client := New(srv.URL, store, WithMinReplyDelay(0))

	reply, err := client.Send(context.Background(), "Hi buddy")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply.Text)
	assert.Equal(t, model.SenderAssistant, reply.Sender)

	msgs := store.Current().Messages
	require.Len(t, msgs, 3) // welcome + user + assistant
	assert.Equal(t, "Hi buddy", msgs[1].Text)
	assert.Equal(t, model.SenderUser, msgs[1].Sender)
	assert.Equal(t, "Hello there!", msgs[2].Text)
	assert.EqualValues(t, 1, calls.Load())
	assert.False(t, client.Busy())
}

func TestSendEmptyMessageIsRejectedWithoutRequest(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int64
	srv := replyServer(t, &calls, "unused")

	client := New(srv.URL, store, WithMinReplyDelay(0))

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := client.Send(context.Background(), input)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}

	assert.EqualValues(t, 0, calls.Load())
	assert.Len(t, store.Current().Messages, 1)
}

func TestSendFallbackOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "missing response field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"something":"else"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := New(srv.URL, store, WithMinReplyDelay(0))

			reply, err := client.Send(context.Background(), "Hi")
			require.NoError(t, err)
			assert.Equal(t, FallbackReply, reply.Text)
			assert.False(t, client.Busy())

			msgs := store.Current().Messages
			require.Len(t, msgs, 3)
			assert.Equal(t, FallbackReply, msgs[2].Text)
		})
	}
}

func TestSendFallbackOnUnreachableGateway(t *testing.T) {
	store := newTestStore(t)

	client := New("http://127.0.0.1:1", store, WithMinReplyDelay(0))

	reply, err := client.Send(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply.Text)
	assert.False(t, client.Busy())
}

func TestSendRejectsOverlappingExchanges(t *testing.T) {
	store := newTestStore(t)

	release := make(chan struct{})
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(model.ChatResponse{Response: "done"})
	}))
	defer srv.Close()

	client := New(srv.URL, store, WithMinReplyDelay(0))

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := client.Send(context.Background(), "first")
		assert.NoError(t, err)
	}()

	<-started
	_, err := client.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-firstDone
	assert.False(t, client.Busy())
}

func TestReplyRoutedToIssuingConversation(t *testing.T) {
	store := newTestStore(t)
	first := store.Current()

	release := make(chan struct{})
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(model.ChatResponse{Response: "late reply"})
	}))
	defer srv.Close()

	client := New(srv.URL, store, WithMinReplyDelay(0))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := client.Send(context.Background(), "question")
		assert.NoError(t, err)
	}()

	// Switch away while the exchange is in flight.
	<-started
	second := store.Create()
	close(release)
	<-done

	got, ok := store.Get(first.ID)
	require.True(t, ok)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "late reply", got.Messages[2].Text)

	// The new conversation only has its welcome message.
	gotSecond, ok := store.Get(second.ID)
	require.True(t, ok)
	assert.Len(t, gotSecond.Messages, 1)
}

func TestMinReplyDelayIsEnforced(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int64
	srv := replyServer(t, &calls, "quick")

	delay := 50 * time.Millisecond
	client := New(srv.URL, store, WithMinReplyDelay(delay))

	start := time.Now()
	_, err := client.Send(context.Background(), "Hi")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay)
}
