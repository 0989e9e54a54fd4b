// Package transport speaks the game server's TCP protocol: binary messages
// in, newline-terminated text commands out.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/brensch/gravbot/game"
	"github.com/cenkalti/backoff/v5"
)

var ErrConnectionLost = errors.New("connection lost")

type Config struct {
	Address string
	Version int

	// RetryInterval is the pause between connection attempts. RetryFor caps
	// the total time spent retrying; zero retries until ctx is done.
	RetryInterval time.Duration
	RetryFor      time.Duration
	DialTimeout   time.Duration

	// HandshakeDrain is how long to swallow whatever the server sends before
	// announcing our protocol version.
	HandshakeDrain time.Duration

	// PollTimeout bounds the wait for the first byte of a message.
	// ReadTimeout bounds reading the rest of it.
	PollTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DiscardWindow is how long to drop input after an unknown message.
	DiscardWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Address:        "localhost:3490",
		Version:        ProtocolVersion,
		RetryInterval:  time.Second,
		DialTimeout:    5 * time.Second,
		HandshakeDrain: time.Second,
		PollTimeout:    100 * time.Millisecond,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		DiscardWindow:  100 * time.Millisecond,
	}
}

// Client is one server connection. Next must be called from a single
// goroutine; the send methods may be called from any.
type Client struct {
	cfg    Config
	conn   net.Conn
	r      *bufio.Reader
	logger *slog.Logger

	wmu sync.Mutex
}

// Dial connects to cfg.Address, retrying every RetryInterval, and performs
// the handshake.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "transport", "addr", cfg.Address)

	attempt := 0
	conn, err := backoff.Retry(ctx, func() (net.Conn, error) {
		attempt++
		d := net.Dialer{Timeout: cfg.DialTimeout}
		return d.DialContext(ctx, "tcp", cfg.Address)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(cfg.RetryInterval)),
		backoff.WithMaxElapsedTime(cfg.RetryFor),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("connect failed, retrying", "attempt", attempt, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Address, err)
	}
	logger.Info("connected", "attempts", attempt)

	c := NewClient(conn, cfg, logger)
	if err := c.Handshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an established connection without performing the
// handshake.
func NewClient(conn net.Conn, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, conn: conn, r: bufio.NewReader(conn), logger: logger}
}

func (c *Client) Close() error { return c.conn.Close() }

// Handshake drops the server's greeting and announces our protocol version.
func (c *Client) Handshake(ctx context.Context) error {
	if err := c.drain(c.cfg.HandshakeDrain); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	return c.send(ctx, versionCommand(c.cfg.Version))
}

// pollWait is how long Poll waits for a first byte. It only needs to be long
// enough for the read syscall to see data the kernel already holds.
const pollWait = time.Millisecond

// Next returns the next server event. ok is false when nothing arrived within
// PollTimeout or the message was one we skip.
func (c *Client) Next(ctx context.Context) (ev game.Event, ok bool, err error) {
	return c.next(ctx, c.cfg.PollTimeout)
}

// Poll is Next without the wait: ok is false unless a message has already
// started arriving.
func (c *Client) Poll(ctx context.Context) (ev game.Event, ok bool, err error) {
	return c.next(ctx, pollWait)
}

func (c *Client) next(ctx context.Context, wait time.Duration) (ev game.Event, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return game.Event{}, false, err
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	if _, err := c.r.Peek(1); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return game.Event{}, false, nil
		}
		return game.Event{}, false, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	h, err := readHeader(c.r)
	if err != nil {
		return game.Event{}, false, fmt.Errorf("%w: read header: %w", ErrConnectionLost, err)
	}

	ev, err = readBody(c.r, h)
	switch {
	case err == nil:
		return ev, true, nil
	case errors.Is(err, ErrUnknownMessage):
		c.logger.Warn("unknown message, discarding pending input", "type", h.Type, "payload", h.Payload)
		if err := c.drain(c.cfg.DiscardWindow); err != nil {
			return game.Event{}, false, err
		}
		return game.Event{}, false, nil
	case errors.Is(err, ErrProtocolVersion):
		return game.Event{}, false, err
	default:
		return game.Event{}, false, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
}

// drain reads and drops input until the connection stays quiet for d.
func (c *Client) drain(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
		n, err := c.r.Discard(c.r.Buffered())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		if n > 0 {
			continue
		}
		if _, err := c.r.Peek(1); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
	}
}

func (c *Client) SetName(ctx context.Context, name string) error {
	return c.send(ctx, nameCommand(name))
}

// Fire sends a shot. degrees is the launch angle in the server's convention.
func (c *Client) Fire(ctx context.Context, velocity, degrees float64) error {
	return c.send(ctx, fireCommand(velocity, degrees))
}

func (c *Client) send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if _, err := io.WriteString(c.conn, line); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnectionLost, err)
	}
	return nil
}
