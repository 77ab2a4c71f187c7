package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// EventMention is the stream event type emitted when a note mentions the bot
const EventMention = "mention"

// Event is one message from the platform's event stream
type Event struct {
	Type     string
	NoteID   string
	Username string // author of the note
	Host     string // author's instance; empty for local users
	Text     string
}

// Stream is an open event stream. Read blocks until the next event; Close
// unblocks a pending Read.
type Stream interface {
	Read() (Event, error)
	Close() error
}

// Dialer opens event streams
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Mention is a trigger for one Wrapped run
type Mention struct {
	NoteID   string
	Username string
}

// Handler processes a mention and reports whether it succeeded
type Handler func(ctx context.Context, m Mention) bool

// Recorder receives listener metrics
type Recorder interface {
	MentionReceived(triggered bool)
	Reconnected()
}

// Config holds listener configuration
type Config struct {
	BotHandle      string // e.g. "@barkwrapped"
	Keyword        string // e.g. "wrapped"
	ReconnectDelay time.Duration
	// QueueSize bounds the mentions waiting for the worker; more are dropped
	QueueSize int
}

// DefaultQueueSize is used when Config.QueueSize is not set
const DefaultQueueSize = 32

// Listener watches the event stream for mentions and triggers runs.
// On disconnect it waits a fixed delay and reconnects until stopped.
type Listener struct {
	dialer  Dialer
	handler Handler
	cfg     Config
	clock   clockwork.Clock
	metrics Recorder
	logger  *slog.Logger

	// Mentions are handled by one worker so the read loop keeps
	// answering pings while a run is in progress
	queue chan Mention

	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// New creates a new mention listener
func New(dialer Dialer, handler Handler, cfg Config, logger *slog.Logger) *Listener {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		dialer:  dialer,
		handler: handler,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
}

// WithClock replaces the clock used for the reconnect delay
func (l *Listener) WithClock(c clockwork.Clock) *Listener {
	l.clock = c
	return l
}

// WithMetrics sets the metrics recorder
func (l *Listener) WithMetrics(m Recorder) *Listener {
	l.metrics = m
	return l
}

// Start starts the listener
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.queue = make(chan Mention, l.cfg.QueueSize)

	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	l.logger.Info("mention listener started", "bot_handle", l.cfg.BotHandle, "keyword", l.cfg.Keyword)

	l.wg.Add(2)
	go l.run(ctx, l.stopCh)
	go l.work(ctx, l.queue)
}

// Stop stops the listener and waits for the in-flight run, if any
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	close(l.stopCh)
	l.wg.Wait()
	l.logger.Info("mention listener stopped")
}

// run is the reconnect loop
func (l *Listener) run(ctx context.Context, stopCh <-chan struct{}) {
	defer l.wg.Done()

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("event stream disconnected", "error", err, "retry_in", l.cfg.ReconnectDelay)

		select {
		case <-l.clock.After(l.cfg.ReconnectDelay):
			if l.metrics != nil {
				l.metrics.Reconnected()
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// listen consumes one connection until it drops
func (l *Listener) listen(ctx context.Context) error {
	stream, err := l.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dialing: %w", entity.ErrStreamDisconnect, err)
	}
	defer stream.Close()

	// Close unblocks Read when the listener is stopped
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-done:
		}
	}()

	l.logger.Info("event stream connected")
	for {
		ev, err := stream.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, entity.ErrStreamDisconnect) {
				return err
			}
			return fmt.Errorf("%w: %w", entity.ErrStreamDisconnect, err)
		}
		l.dispatch(ev)
	}
}

func (l *Listener) dispatch(ev Event) {
	if ev.Type != EventMention {
		return
	}

	triggered := l.Triggers(ev)
	if l.metrics != nil {
		l.metrics.MentionReceived(triggered)
	}
	if !triggered {
		l.logger.Debug("mention ignored", "note_id", ev.NoteID, "username", ev.Username)
		return
	}

	l.logger.Info("mention received", "note_id", ev.NoteID, "username", ev.Username)
	select {
	case l.queue <- Mention{NoteID: ev.NoteID, Username: ev.Username}:
	default:
		l.logger.Warn("mention dropped, worker busy", "note_id", ev.NoteID, "username", ev.Username, "queue_size", cap(l.queue))
	}
}

// work runs queued mentions one at a time until the listener stops
func (l *Listener) work(ctx context.Context, queue <-chan Mention) {
	defer l.wg.Done()

	for {
		select {
		case m := <-queue:
			if !l.handler(ctx, m) {
				l.logger.Info("mention not answered", "note_id", m.NoteID, "username", m.Username)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Triggers reports whether a mention asks for a Wrapped: the text must contain
// both the keyword and the bot's handle. The bot never triggers itself, and
// authors from other instances are ignored since runs resolve local usernames.
func (l *Listener) Triggers(ev Event) bool {
	text := strings.ToLower(ev.Text)
	handle := strings.ToLower(l.cfg.BotHandle)

	if ev.Username == "" || ev.Host != "" || strings.EqualFold("@"+ev.Username, handle) {
		return false
	}
	return strings.Contains(text, strings.ToLower(l.cfg.Keyword)) && strings.Contains(text, handle)
}
