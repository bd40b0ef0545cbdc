package progress

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/altamira-dev/webpilot/pkg/logging"
	"github.com/altamira-dev/webpilot/pkg/types"
)

// ClientState is the websocket client's connection state.
type ClientState string

// Client states.
const (
	StateConnecting   ClientState = "connecting"   // first connection attempt in flight
	StateOpen         ClientState = "open"         // connected, events flowing
	StateReconnecting ClientState = "reconnecting" // lost the connection, backing off
	StateFailed       ClientState = "failed"       // gave up after max attempts
	StateClosed       ClientState = "closed"       // shut down by the caller
)

// Reconnection defaults.
const (
	DefaultMaxAttempts  = 10
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultPingInterval = 20 * time.Second
)

// Client consumes progress events over a websocket, transparently
// reconnecting with exponential backoff when the connection drops.
// Events arrive on Events(); when reconnection is exhausted the channel
// receives a final error event and closes.
type Client struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	maxAttempts  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	pingInterval time.Duration

	mu    sync.Mutex
	state ClientState
	conn  *websocket.Conn

	events  chan *types.ProgressEvent
	done    chan struct{}
	stopped sync.Once
	logger  *logging.Logger

	onStateChange func(ClientState)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHeader sets headers sent on the websocket handshake, such as the
// Authorization bearer token.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		c.header = header
	}
}

// WithMaxAttempts bounds how many consecutive reconnection attempts are
// made before the client gives up.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithBackoff sets the base and maximum reconnection delays.
func WithBackoff(base, max time.Duration) ClientOption {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithPingInterval sets the heartbeat interval.
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pingInterval = d
	}
}

// WithStateChange registers a callback invoked on every state
// transition.
func WithStateChange(fn func(ClientState)) ClientOption {
	return func(c *Client) {
		c.onStateChange = fn
	}
}

// NewClient creates a client for the given websocket URL. Call Start to
// connect.
func NewClient(url string, opts ...ClientOption) *Client {
	logger, _ := logging.NewLogger("progress-client")

	c := &Client{
		url:          url,
		dialer:       websocket.DefaultDialer,
		maxAttempts:  DefaultMaxAttempts,
		baseDelay:    DefaultBaseDelay,
		maxDelay:     DefaultMaxDelay,
		pingInterval: DefaultPingInterval,
		state:        StateConnecting,
		events:       make(chan *types.ProgressEvent, DefaultCapacity),
		done:         make(chan struct{}),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the channel progress events arrive on. It closes when
// the client shuts down or gives up reconnecting.
func (c *Client) Events() <-chan *types.ProgressEvent {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(state ClientState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed && c.onStateChange != nil {
		c.onStateChange(state)
	}
}

// Start connects and begins delivering events. It returns once the
// first connection succeeds or fails; delivery and reconnection run in
// the background until Close or reconnection exhaustion.
func (c *Client) Start(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateFailed)
		close(c.events)
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateOpen)

	go c.run(ctx, conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	return conn, err
}

// run reads events until the connection drops, then reconnects with
// backoff. It owns the events channel.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.events)

	for {
		c.readLoop(ctx, conn)

		select {
		case <-c.done:
			c.setState(StateClosed)
			return
		case <-ctx.Done():
			c.setState(StateClosed)
			return
		default:
		}

		c.setState(StateReconnecting)
		next, err := c.reconnect(ctx)
		if err != nil {
			c.logger.Errorf("Giving up on %s: %v", c.url, err)
			c.setState(StateFailed)
			c.deliver(types.NewErrorEvent(fmt.Errorf("connection lost and could not be re-established: %w", err)))
			return
		}
		conn = next
		c.setState(StateOpen)
	}
}

// readLoop pumps events from one connection until it errors, running a
// ping heartbeat on the side.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go c.heartbeat(conn, heartbeatDone)

	for {
		var event types.ProgressEvent
		if err := conn.ReadJSON(&event); err != nil {
			select {
			case <-c.done:
			case <-ctx.Done():
			default:
				c.logger.Warnf("Connection to %s dropped: %v", c.url, err)
			}
			return
		}
		c.deliver(&event)
	}
}

// heartbeat pings the server on an interval so dead connections are
// noticed even when no events flow.
func (c *Client) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// reconnect retries the dial with exponential backoff and jitter until
// it succeeds or the attempt budget is spent.
func (c *Client) reconnect(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		delay := c.backoffDelay(attempt)
		c.logger.Infof("Reconnect attempt %d/%d to %s in %s", attempt+1, c.maxAttempts, c.url, delay)

		select {
		case <-time.After(delay):
		case <-c.done:
			return nil, fmt.Errorf("client closed")
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		conn, err := c.dial(ctx)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("exhausted %d reconnect attempts: %w", c.maxAttempts, lastErr)
}

// backoffDelay computes the delay before the given attempt: exponential
// growth from the base delay, capped at the max, with up to 50% added
// jitter so a fleet of clients does not reconnect in lockstep.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay << uint(attempt)
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// deliver hands an event to the consumer, dropping it if the consumer
// has fallen too far behind.
func (c *Client) deliver(event *types.ProgressEvent) {
	select {
	case c.events <- event:
	default:
		c.logger.Warnf("Consumer lagging, dropping %s event", event.Type)
	}
}

// Close shuts the client down. Safe to call more than once.
func (c *Client) Close() error {
	c.stopped.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	return nil
}
