package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"casino-relay/internal/config"
	"casino-relay/internal/metrics"
	"casino-relay/internal/subscription"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
	StateStopped      State = "stopped"
)

type Config struct {
	URL                  string
	CasinoID             string
	Currency             string
	ConnectTimeout       time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	WriteTimeout         time.Duration
	PingInterval         time.Duration
	// PongWait bounds how long the socket may stay silent, pongs included.
	PongWait time.Duration
}

func ConfigFromApp(cfg config.UpstreamConfig) Config {
	return Config{
		URL:                  cfg.URL,
		CasinoID:             cfg.CasinoID,
		Currency:             cfg.Currency,
		ConnectTimeout:       cfg.ConnectTimeout(),
		ReconnectDelay:       cfg.ReconnectDelay(),
		MaxReconnectDelay:    cfg.MaxReconnectDelay(),
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		WriteTimeout:         cfg.WriteTimeout(),
		PingInterval:         cfg.PingInterval(),
	}
}

type Status struct {
	State           State      `json:"state"`
	Connected       bool       `json:"connected"`
	Attempts        int        `json:"reconnect_attempts"`
	MaxAttempts     int        `json:"max_reconnect_attempts"`
	LastError       string     `json:"last_error,omitempty"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	FramesReceived  int64      `json:"frames_received"`
	ParseErrors     int64      `json:"parse_errors"`
	AvailableTables int        `json:"available_tables"`
}

// Client owns the single WebSocket to the live-casino provider.
type Client struct {
	cfg    Config
	dialer websocket.Dialer

	onConnected func()
	onUpdate    func(subscription.TableUpdate)
	onState     func(State, error)

	mu              sync.Mutex
	conn            *websocket.Conn
	state           State
	attempts        int
	lastErr         error
	lastConnectedAt time.Time
	lastMessageAt   time.Time
	framesReceived  int64
	parseErrors     int64
	available       []string

	writeMu sync.Mutex

	started  bool
	cancel   context.CancelFunc
	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}
	return &Client{
		cfg: cfg,
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
			ReadBufferSize:   16 * 1024,
			WriteBufferSize:  4 * 1024,
		},
		state: StateIdle,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
}

// OnConnected registers a hook run after every successful (re)connect.
func (c *Client) OnConnected(fn func()) { c.onConnected = fn }

// OnStateChange registers a hook run outside the client lock whenever the
// connection state changes.
func (c *Client) OnStateChange(fn func(State, error)) { c.onState = fn }

// OnTableUpdate registers the receiver for frames that carry a tableId.
func (c *Client) OnTableUpdate(fn func(subscription.TableUpdate)) { c.onUpdate = fn }

// Start launches the connect loop. It returns immediately.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.connectLoop(ctx)
}

// Stop closes the socket and waits for the connect loop to exit.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		conn := c.conn
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			_ = conn.Close()
		}
		c.wg.Wait()
		c.setState(StateStopped, nil)
	})
}

// Wake restarts the connect loop after a terminal failure.
func (c *Client) Wake() bool {
	if c.Status().State != StateFailed {
		return false
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *Client) connectLoop(ctx context.Context) {
	defer c.wg.Done()
	backoff := c.cfg.ReconnectDelay

	for {
		if c.stopping(ctx) {
			return
		}
		connected, err := c.connectOnce(ctx)
		if c.stopping(ctx) {
			return
		}
		if connected {
			backoff = c.cfg.ReconnectDelay
			log.Warn().Err(err).Msg("upstream_disconnected")
			c.setState(StateReconnecting, err)
		} else {
			attempts := c.recordFailure(err)
			if attempts >= c.cfg.MaxReconnectAttempts {
				log.Error().Err(err).Int("attempts", attempts).Msg("upstream_reconnect_exhausted")
				c.setState(StateFailed, fmt.Errorf("%w: %w", ErrPermanentUpstreamFailure, err))
				if stop := c.waitWake(ctx); stop {
					return
				}
				backoff = c.cfg.ReconnectDelay
				continue
			}
			if attempts <= 3 || attempts%10 == 0 {
				log.Warn().Err(err).Int("attempts", attempts).Dur("backoff", backoff).Msg("upstream_reconnect_scheduled")
			}
			c.setState(StateReconnecting, err)
		}

		metrics.UpstreamReconnectsTotal.Inc()
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-c.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
		backoff *= 2
		if backoff > c.cfg.MaxReconnectDelay {
			backoff = c.cfg.MaxReconnectDelay
		}
	}
}

func (c *Client) waitWake(ctx context.Context) bool {
	select {
	case <-c.wake:
		c.mu.Lock()
		c.attempts = 0
		c.mu.Unlock()
		log.Info().Msg("upstream_wake")
		return false
	case <-c.stop:
		return true
	case <-ctx.Done():
		return true
	}
}

func (c *Client) stopping(ctx context.Context) bool {
	select {
	case <-c.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// connectOnce dials, runs the read loop and reports whether the socket opened.
func (c *Client) connectOnce(ctx context.Context) (bool, error) {
	c.setState(StateConnecting, nil)
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, resp, err := c.dialer.DialContext(dialCtx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		c.mu.Lock()
		attempt := c.attempts + 1
		c.mu.Unlock()
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return false, &ConnectError{URL: c.cfg.URL, Attempt: attempt, Err: err}
	}

	now := time.Now()
	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.lastErr = nil
	c.lastConnectedAt = now
	c.mu.Unlock()
	c.setState(StateConnected, nil)
	metrics.UpstreamConnected.Set(1)
	log.Info().Str("url", c.cfg.URL).Msg("upstream_connected")

	c.Send(ControlMessage{Type: MsgAvailable, CasinoID: c.cfg.CasinoID})
	if c.onConnected != nil {
		c.onConnected()
	}

	done := make(chan struct{})
	go c.pingLoop(conn, done)
	err = c.readLoop(conn)
	close(done)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
	metrics.UpstreamConnected.Set(0)
	return true, err
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return fmt.Errorf("upstream silent for %s: %w", c.cfg.PongWait, err)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("upstream closed: %w", err)
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.handleFrame(msg)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) handleFrame(msg []byte) {
	c.mu.Lock()
	c.framesReceived++
	c.lastMessageAt = time.Now()
	c.mu.Unlock()

	var frame inboundFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		c.mu.Lock()
		c.parseErrors++
		c.mu.Unlock()
		metrics.UpstreamParseErrorsTotal.Inc()
		perr := &MessageParseError{Size: len(msg), Err: err}
		log.Warn().Err(perr).Msg("upstream_frame_dropped")
		return
	}
	frameType := frame.Type
	if frameType == "" {
		frameType = "unknown"
	}
	metrics.UpstreamFramesTotal.WithLabelValues(frameType).Inc()

	if frame.Type == MsgAvailable && len(frame.Tables) > 0 {
		tables := parseAvailableTables(frame.Tables)
		c.mu.Lock()
		c.available = tables
		c.mu.Unlock()
		log.Info().Int("tables", len(tables)).Msg("upstream_catalog_received")
		return
	}

	tableID := string(frame.TableID)
	payload := json.RawMessage(msg)
	if tableID == "" && len(frame.Data) > 0 {
		var nested nestedTable
		if err := json.Unmarshal(frame.Data, &nested); err == nil && nested.TableID != "" {
			tableID = string(nested.TableID)
			payload = frame.Data
		}
	}
	if tableID == "" {
		log.Debug().Str("type", frame.Type).Msg("upstream_frame_ignored")
		return
	}
	if c.onUpdate != nil {
		c.onUpdate(subscription.TableUpdate{
			TableID:    tableID,
			Type:       frame.Type,
			Raw:        payload,
			ReceivedAt: time.Now(),
		})
	}
}

// Send writes a control frame. When the socket is not open it logs and returns.
func (c *Client) Send(msg ControlMessage) {
	if err := c.send(msg); err != nil {
		log.Warn().Err(err).Str("type", msg.Type).Str("key", msg.Key).Msg("upstream_send_skipped")
	}
}

func (c *Client) send(msg ControlMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteJSON(msg)
}

func (c *Client) SubscribeTable(tableID string) {
	c.Send(ControlMessage{Type: MsgSubscribe, Key: tableID, CasinoID: c.cfg.CasinoID, Currency: c.cfg.Currency})
}

func (c *Client) UnsubscribeTable(tableID string) {
	c.Send(ControlMessage{Type: MsgUnsubscribe, Key: tableID, CasinoID: c.cfg.CasinoID})
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:           c.state,
		Connected:       c.conn != nil && c.state == StateConnected,
		Attempts:        c.attempts,
		MaxAttempts:     c.cfg.MaxReconnectAttempts,
		FramesReceived:  c.framesReceived,
		ParseErrors:     c.parseErrors,
		AvailableTables: len(c.available),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if !c.lastConnectedAt.IsZero() {
		t := c.lastConnectedAt
		st.LastConnectedAt = &t
	}
	if !c.lastMessageAt.IsZero() {
		t := c.lastMessageAt
		st.LastMessageAt = &t
	}
	return st
}

// Err returns ErrPermanentUpstreamFailure (wrapped) in the terminal state.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateFailed {
		return c.lastErr
	}
	return nil
}

// AvailableTables returns the table ids from the last provider catalog frame.
func (c *Client) AvailableTables() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.available))
	copy(out, c.available)
	return out
}

func (c *Client) recordFailure(err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	c.lastErr = err
	return c.attempts
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()
	if changed && c.onState != nil {
		c.onState(state, err)
	}
}

// IsPermanent reports whether err marks the terminal upstream state.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentUpstreamFailure)
}
