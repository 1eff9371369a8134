package feed

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gardenbot/internal/eventbus"
	"gardenbot/pkg/logx"
)

// State of the feed connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateGivenUp is terminal: the retry budget is exhausted and the
	// controller will not reconnect without an external restart.
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGivenUp:
		return "givenup"
	default:
		return "unknown"
	}
}

// ErrGivenUp is returned by Run when the retry budget is exhausted.
var ErrGivenUp = errors.New("feed: gave up reconnecting")

type Config struct {
	URL          string
	InitialDelay time.Duration // default 1s
	MaxDelay     time.Duration // default 1m
	JitterMax    time.Duration // default 500ms
	MaxRetries   int           // default 10
	Heartbeat    time.Duration // default 30s
	PongTimeout  time.Duration // default 10s
}

func (c Config) withDefaults() Config {
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = time.Minute
	}
	if c.JitterMax <= 0 {
		c.JitterMax = 500 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 10 * time.Second
	}
	return c
}

// Backoff computes the reconnect delay for a retry attempt:
// min(initial * 2^attempt, max) + uniform jitter in [0, jitterMax).
func Backoff(cfg Config, attempt int, rng *rand.Rand) time.Duration {
	cfg = cfg.withDefaults()
	d := cfg.MaxDelay
	// Guard the shift; past ~62 bits it has long since hit the cap anyway.
	if attempt < 62 {
		if v := cfg.InitialDelay << uint(attempt); v > 0 && v < cfg.MaxDelay {
			d = v
		}
	}
	return d + time.Duration(rng.Int63n(int64(cfg.JitterMax)))
}

// Conn is the slice of a WebSocket connection the controller needs.
// *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Dialer func(ctx context.Context, url string) (Conn, error)

// Controller owns the feed connection lifecycle:
// Disconnected -> Connecting -> Connected -> (on close) Disconnected,
// with jittered exponential backoff between attempts and a terminal
// GivenUp state once the retry budget runs out. All timers (heartbeat,
// reconnect) live inside Run and die with it.
type Controller struct {
	cfg    Config
	dial   Dialer
	handle func(ctx context.Context, frame []byte)
	bus    eventbus.Bus
	log    logx.Logger

	state atomic.Int32

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewController builds the controller. handle is invoked on the read-loop
// goroutine, one frame at a time. bus may be nil.
func NewController(cfg Config, dial Dialer, handle func(ctx context.Context, frame []byte), bus eventbus.Bus, log logx.Logger) *Controller {
	if dial == nil {
		dial = Dial
	}
	return &Controller{
		cfg:    cfg.withDefaults(),
		dial:   dial,
		handle: handle,
		bus:    bus,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Controller) publish(typ string) {
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: typ})
	}
}

func (c *Controller) backoff(attempt int) time.Duration {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return Backoff(c.cfg, attempt, c.rng)
}

// Run drives the state machine until ctx is cancelled or the controller
// gives up. A successful open resets the retry counter.
func (c *Controller) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx, c.cfg.URL)
		if err == nil {
			attempt = 0
			c.setState(StateConnected)
			c.publish(eventbus.TypeFeedConnected)
			c.log.Info("feed connected", logx.String("url", c.cfg.URL))

			rerr := c.pump(ctx, conn)
			_ = conn.Close()
			c.setState(StateDisconnected)
			c.publish(eventbus.TypeFeedDisconnected)
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("feed connection lost", logx.Err(rerr))
		} else {
			c.setState(StateDisconnected)
			c.publish(eventbus.TypeFeedDisconnected)
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("feed connect failed", logx.Err(err))
		}

		if attempt >= c.cfg.MaxRetries {
			c.setState(StateGivenUp)
			c.publish(eventbus.TypeFeedGivenUp)
			c.log.Error("feed gave up reconnecting; restart required",
				logx.Int("attempts", attempt+1))
			return ErrGivenUp
		}

		delay := c.backoff(attempt)
		attempt++
		c.log.Info("feed reconnect scheduled",
			logx.Int("attempt", attempt), logx.Duration("delay", delay))
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return nil
		case <-time.After(delay):
		}
	}
}

// pump reads frames until the connection dies, pinging on a fixed interval
// to detect silent failures. A pong (or any frame) extends the read
// deadline; a silent peer trips it and surfaces as a read error.
func (c *Controller) pump(ctx context.Context, conn Conn) error {
	deadline := c.cfg.Heartbeat + c.cfg.PongTimeout
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()
	go func() {
		ticker := time.NewTicker(c.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				// On shutdown, unblock a read stuck on a quiet peer; without
				// this, cancellation waits out the full read deadline.
				if ctx.Err() != nil {
					_ = conn.Close()
				}
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.PongTimeout)); err != nil {
					c.log.Debug("feed ping failed", logx.Err(err))
					// Force the read loop out; the deadline would get there
					// eventually, this is just faster.
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		if c.handle != nil {
			c.handle(ctx, frame)
		}
	}
}
