package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/version"
)

// Handler processes one message. A returned error stops the receive loop.
type Handler func(subject string, data []byte) error

// inboxSize bounds messages buffered ahead of the receive loop.
const inboxSize = 64

// Subscriber delivers messages from every subject into one channel so they
// are handled strictly in arrival order by a single loop. Reconnection is
// left to the NATS client, which retries forever.
type Subscriber struct {
	url      string
	name     string
	subjects []string
	bus      *events.Bus
	logger   *slog.Logger

	inbox chan *nats.Msg

	mu         sync.RWMutex
	conn       *nats.Conn
	subs       []*nats.Subscription
	connected  bool
	subscribed bool
	onConnect  func()
	announced  sync.Once
}

// NewSubscriber creates a subscriber for subjects on the server at url.
// bus may be nil.
func NewSubscriber(url string, subjects []string, bus *events.Bus, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		url:      url,
		name:     version.ClientName("daemon"),
		subjects: subjects,
		bus:      bus,
		logger:   logger.With("component", "nats-subscriber"),
		inbox:    make(chan *nats.Msg, inboxSize),
	}
}

// OnConnect registers fn to run once, the first time the connection is up.
// Call it before Connect.
func (s *Subscriber) OnConnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// Connect dials the server and registers the subscriptions. If the server
// is not reachable yet the client keeps retrying in the background and the
// subscriptions take effect once it connects.
func (s *Subscriber) Connect() error {
	conn, err := nats.Connect(s.url,
		nats.Name(s.name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ConnectHandler(func(c *nats.Conn) {
			s.setConnected(true, "connected", c.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("NATS disconnected", "error", err)
			} else {
				s.logger.Debug("NATS disconnected")
			}
			s.setConnected(false, "disconnected", s.url)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.logger.Info("NATS reconnected", "url", c.ConnectedUrl())
			s.setConnected(true, "reconnected", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", s.url, err)
	}

	var subs []*nats.Subscription
	for _, subject := range s.subjects {
		sub, err := conn.ChanSubscribe(subject, s.inbox)
		if err != nil {
			conn.Close()
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	// The server must hold the subscriptions before anyone is told we are up.
	if conn.IsConnected() {
		if err := conn.Flush(); err != nil {
			s.logger.Debug("Flush after subscribe failed", "error", err)
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.subs = subs
	s.subscribed = true
	s.mu.Unlock()

	if conn.IsConnected() {
		s.setConnected(true, "connected", conn.ConnectedUrl())
	} else {
		s.logger.Warn("NATS server not reachable yet, retrying in background", "url", s.url)
	}
	s.logger.Info("Subscribed", "subjects", s.subjects)
	return nil
}

func (s *Subscriber) setConnected(up bool, state, url string) {
	s.mu.Lock()
	changed := s.connected != up || state == "reconnected"
	s.connected = up
	ready := up && s.subscribed
	onConnect := s.onConnect
	s.mu.Unlock()

	if changed && s.bus != nil {
		s.bus.Publish(events.ConnectionEvent{
			State:     state,
			URL:       url,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	if ready {
		s.announced.Do(func() {
			s.logger.Info("Connected to NATS", "url", url)
			if onConnect != nil {
				onConnect()
			}
		})
	}
}

// Run hands every message to handle, one at a time, until ctx is done or
// handle fails.
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.inbox:
			if err := handle(msg.Subject, msg.Data); err != nil {
				return err
			}
		}
	}
}

// IsConnected reports whether the client currently has a live connection.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.conn != nil
}

// Conn returns the underlying connection, or nil before Connect.
func (s *Subscriber) Conn() *nats.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Close drops the subscriptions and closes the connection.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.logger.Debug("Unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	s.subs = nil

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	s.logger.Debug("NATS subscriber closed")
}
