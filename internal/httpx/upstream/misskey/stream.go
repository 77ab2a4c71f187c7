package misskey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/listener"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	writeWait  = 10 * time.Second
)

// StreamDialer connects to the streaming API and subscribes to the main channel
type StreamDialer struct {
	streamURL string
	token     string
	dialer    *websocket.Dialer
}

// NewStreamDialer creates a dialer for the instance at baseURL
func NewStreamDialer(baseURL, token string) (*StreamDialer, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/streaming"

	return &StreamDialer{
		streamURL: u.String(),
		token:     token,
		dialer:    websocket.DefaultDialer,
	}, nil
}

// streamMessage is the envelope of every streaming message
type streamMessage struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type channelBody struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type connectBody struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
}

// Dial opens a connection and subscribes to the "main" channel
func (d *StreamDialer) Dial(ctx context.Context) (listener.Stream, error) {
	u := d.streamURL
	if d.token != "" {
		u += "?i=" + url.QueryEscape(d.token)
	}

	conn, resp, err := d.dialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing stream (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing stream: %w", err)
	}

	s := &stream{
		conn:      conn,
		channelID: uuid.New().String(),
		done:      make(chan struct{}),
	}

	connect, err := json.Marshal(connectBody{Channel: "main", ID: s.channelID})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("encoding connect: %w", err)
	}
	if err := s.write(streamMessage{Type: "connect", Body: connect}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to main channel: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.pingLoop()

	return s, nil
}

// stream is one subscribed connection
type stream struct {
	conn      *websocket.Conn
	channelID string

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *stream) write(msg streamMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *stream) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Read returns the next event of the main channel. Messages for other
// channels and non-channel frames are skipped.
func (s *stream) Read() (listener.Event, error) {
	for {
		var msg streamMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return listener.Event{}, err
		}
		if msg.Type != "channel" {
			continue
		}

		var ch channelBody
		if err := json.Unmarshal(msg.Body, &ch); err != nil || ch.ID != s.channelID {
			continue
		}

		ev := listener.Event{Type: ch.Type}
		var note Note
		if err := json.Unmarshal(ch.Body, &note); err == nil && note.ID != "" {
			ev.NoteID = note.ID
			ev.Text = note.TextOrEmpty()
			if note.User != nil {
				ev.Username = note.User.Username
				if note.User.Host != nil {
					ev.Host = *note.User.Host
				}
			}
		}
		return ev, nil
	}
}

// Close closes the connection; safe to call more than once
func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
