package misskey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/listener"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockStreaming accepts one connection, waits for the connect frame and
// then sends frames built from the channel id it received.
func mockStreaming(t *testing.T, frames func(channelID string) []any) (*httptest.Server, <-chan string) {
	t.Helper()
	tokens := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/streaming" {
			http.NotFound(w, r)
			return
		}
		tokens <- r.URL.Query().Get("i")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var connect struct {
			Type string      `json:"type"`
			Body connectBody `json:"body"`
		}
		if err := conn.ReadJSON(&connect); err != nil {
			return
		}
		if connect.Type != "connect" || connect.Body.Channel != "main" {
			return
		}

		for _, f := range frames(connect.Body.ID) {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}

		// hold the connection until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv, tokens
}

func channelFrame(id, typ string, body any) map[string]any {
	return map[string]any{
		"type": "channel",
		"body": map[string]any{"id": id, "type": typ, "body": body},
	}
}

func TestNewStreamDialer_URL(t *testing.T) {
	d, err := NewStreamDialer("https://misskey.example/", "tok")
	require.NoError(t, err)
	assert.Equal(t, "wss://misskey.example/streaming", d.streamURL)

	d, err = NewStreamDialer("http://127.0.0.1:3000", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:3000/streaming", d.streamURL)
}

func TestStream_ReadsMentions(t *testing.T) {
	srv, tokens := mockStreaming(t, func(id string) []any {
		return []any{
			map[string]any{"type": "noteUpdated", "body": map[string]any{}},
			channelFrame("other-channel", "mention", map[string]any{"id": "x"}),
			channelFrame(id, "mention", map[string]any{
				"id":   "n1",
				"text": "@barkwrapped wrapped",
				"user": map[string]any{"id": "u1", "username": "rex"},
			}),
			channelFrame(id, "followed", map[string]any{"id": "u2", "username": "fido"}),
		}
	})
	defer srv.Close()

	d, err := NewStreamDialer(srv.URL, "tok")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := d.Dial(ctx)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "tok", <-tokens)

	ev, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, listener.Event{
		Type:     listener.EventMention,
		NoteID:   "n1",
		Username: "rex",
		Text:     "@barkwrapped wrapped",
	}, ev)

	ev, err = s.Read()
	require.NoError(t, err)
	assert.Equal(t, "followed", ev.Type)
}

func TestStream_CloseUnblocksRead(t *testing.T) {
	srv, _ := mockStreaming(t, func(string) []any { return nil })
	defer srv.Close()

	d, err := NewStreamDialer(srv.URL, "")
	require.NoError(t, err)

	s, err := d.Dial(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read()
		errCh <- err
	}()

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestStream_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d, err := NewStreamDialer(srv.URL, "")
	require.NoError(t, err)

	_, err = d.Dial(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"))
}

func TestStream_RemoteAuthorCarriesHost(t *testing.T) {
	srv, _ := mockStreaming(t, func(id string) []any {
		return []any{
			channelFrame(id, "mention", map[string]any{
				"id":   "n7",
				"text": "@barkwrapped wrapped",
				"user": map[string]any{"id": "u7", "username": "alice", "host": "evil.social"},
			}),
		}
	})
	defer srv.Close()

	d, err := NewStreamDialer(srv.URL, "")
	require.NoError(t, err)
	s, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, "evil.social", ev.Host)

	l := listener.New(d, nil, listener.Config{BotHandle: "@barkwrapped", Keyword: "wrapped"}, nil)
	assert.False(t, l.Triggers(ev))
}

type mentionCounter struct {
	mu        sync.Mutex
	triggered int
	ignored   int
}

func (c *mentionCounter) MentionReceived(triggered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if triggered {
		c.triggered++
	} else {
		c.ignored++
	}
}

func (c *mentionCounter) Reconnected() {}

func (c *mentionCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered, c.ignored
}

func TestStream_SlowRunKeepsReading(t *testing.T) {
	srv, _ := mockStreaming(t, func(id string) []any {
		mention := func(noteID, username, host string) map[string]any {
			user := map[string]any{"id": "u-" + username, "username": username}
			if host != "" {
				user["host"] = host
			}
			return channelFrame(id, "mention", map[string]any{"id": noteID, "text": "@barkwrapped wrapped", "user": user})
		}
		return []any{
			mention("n1", "rex", ""),
			mention("n2", "alice", "evil.social"),
			mention("n3", "fido", ""),
		}
	})
	defer srv.Close()

	d, err := NewStreamDialer(srv.URL, "tok")
	require.NoError(t, err)

	release := make(chan struct{})
	handled := make(chan listener.Mention, 4)
	counter := &mentionCounter{}
	l := listener.New(d, func(_ context.Context, m listener.Mention) bool {
		<-release
		handled <- m
		return true
	}, listener.Config{BotHandle: "@barkwrapped", Keyword: "wrapped", ReconnectDelay: time.Second}, nil).WithMetrics(counter)

	l.Start(context.Background())
	defer l.Stop()

	// every frame is read while the first run is blocked
	require.Eventually(t, func() bool {
		triggered, ignored := counter.counts()
		return triggered == 2 && ignored == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, handled)

	close(release)
	for _, want := range []listener.Mention{{NoteID: "n1", Username: "rex"}, {NoteID: "n3", Username: "fido"}} {
		select {
		case m := <-handled:
			assert.Equal(t, want, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("mention %s was not handled", want.NoteID)
		}
	}
}
