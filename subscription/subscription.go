package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	subscribeCommand   = "substanox:%s"
	unsubscribeCommand = "unsubstanox"
)

// ErrAlreadyOpen is returned by Open on a subscription that is still running
var ErrAlreadyOpen = errors.New("subscription already open")

// Handler receives every inbound feed message. Calls are made one at a time
// from the subscription's read loop.
type Handler func(ctx context.Context, msg []byte)

// Options tune reconnect behaviour
type Options struct {
	InitialInterval  time.Duration
	MaxInterval      time.Duration
	BreakerThreshold int // consecutive failed connects before cooling down; 0 disables
	BreakerCooldown  time.Duration
	WriteTimeout     time.Duration
	Dialer           *websocket.Dialer
}

// DefaultOptions returns the reconnect settings used when none are configured
func DefaultOptions() Options {
	return Options{
		InitialInterval:  time.Second,
		MaxInterval:      time.Minute,
		BreakerThreshold: 10,
		BreakerCooldown:  5 * time.Minute,
		WriteTimeout:     10 * time.Second,
		Dialer:           websocket.DefaultDialer,
	}
}

// Subscription is a feed subscription for one stanox
type Subscription struct {
	url     string
	topic   string
	handler Handler
	opts    Options

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	writeMu  sync.Mutex
	connects atomic.Uint64
}

// New creates an idle subscription delivering messages for topic to handler
func New(url, topic string, handler Handler, opts Options) *Subscription {
	def := DefaultOptions()
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = def.InitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = def.MaxInterval
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = def.BreakerCooldown
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = def.Dialer
	}
	return &Subscription{
		url:     url,
		topic:   topic,
		handler: handler,
		opts:    opts,
	}
}

// State returns the current lifecycle state
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connects returns how many times a subscription was established
func (s *Subscription) Connects() uint64 {
	return s.connects.Load()
}

// Open starts connecting and subscribing in the background. Connection
// failures are not returned; they are retried until Close.
func (s *Subscription) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle && s.state != Closed {
		return ErrAlreadyOpen
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = Connecting

	slog.Info("connecting to feed", "url", s.url)
	go s.run(ctx, s.done)
	return nil
}

// Close unsubscribes, disconnects and stops reconnecting. It is a no-op on a
// subscription that was never opened or is already closed.
func (s *Subscription) Close(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Idle, Closed:
		s.mu.Unlock()
		return nil
	case Closing:
		done := s.done
		s.mu.Unlock()
		return wait(ctx, done)
	}
	s.state = Closing
	conn, cancel, done := s.conn, s.cancel, s.done
	s.mu.Unlock()

	slog.Info("closing feed subscription", "stanox", s.topic)
	cancel()
	if conn != nil {
		if err := s.write(conn, unsubscribeCommand); err != nil {
			slog.Warn("failed to unsubscribe", "err", err)
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteTimeout))
		_ = conn.Close()
	}

	if err := wait(ctx, done); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
	return nil
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscription) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialInterval
	b.MaxInterval = s.opts.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (s *Subscription) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := s.newBackOff()
	failures := 0
	for {
		subscribed, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}

		if subscribed {
			b.Reset()
			failures = 0
		} else {
			failures++
		}

		delay := b.NextBackOff()
		if s.opts.BreakerThreshold > 0 && failures >= s.opts.BreakerThreshold {
			slog.Warn("feed unreachable, pausing reconnects", "failures", failures, "cooldown", s.opts.BreakerCooldown)
			delay = s.opts.BreakerCooldown
			failures = 0
		}
		slog.Warn("feed disconnected, reconnecting", "err", err, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until it drops. subscribed reports whether the
// subscribe command was sent.
func (s *Subscription) session(ctx context.Context) (subscribed bool, err error) {
	s.setState(Connecting)
	conn, _, err := s.opts.Dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.setState(Disconnected)
		return false, fmt.Errorf("connect %s: %w", s.url, err)
	}

	if s.State() == Closing {
		_ = conn.Close()
		return false, nil
	}

	slog.Info("subscribing to stanox", "stanox", s.topic)
	if err := s.write(conn, fmt.Sprintf(subscribeCommand, s.topic)); err != nil {
		_ = conn.Close()
		s.setState(Disconnected)
		return false, fmt.Errorf("subscribe: %w", err)
	}

	// conn is visible to Close only after the subscribe command is written
	s.mu.Lock()
	if s.state == Closing {
		s.mu.Unlock()
		_ = conn.Close()
		return false, nil
	}
	s.conn = conn
	s.state = Subscribed
	s.connects.Add(1)
	s.mu.Unlock()
	defer s.drop(conn)

	// handlers finish their message even when Close cancels ctx
	deliverCtx := context.WithoutCancel(ctx)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		s.deliver(deliverCtx, data)
	}
}

func (s *Subscription) deliver(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("unhandled fault processing feed message", "panic", r)
			panic(r)
		}
	}()
	s.handler(ctx, data)
}

func (s *Subscription) drop(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	if s.state != Closing {
		s.state = Disconnected
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Subscription) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Closing {
		s.state = st
	}
}

func (s *Subscription) write(conn *websocket.Conn, cmd string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(cmd))
}
