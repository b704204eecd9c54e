package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

const (
	sendBufferSize    = 16
	writeTimeout      = 5 * time.Second
	idleCheckInterval = 30 * time.Second
)

// slot is a live connection plus the bookkeeping the manager keeps for it.
type slot struct {
	client      *Client
	stop        context.CancelFunc
	connectedAt time.Time
	lastActive  time.Time
}

// ConnStats is a snapshot of connection counters.
type ConnStats struct {
	Active          int   `json:"active"`
	MaxConns        int   `json:"max_conns"`
	Rejected        int64 `json:"rejected"`
	DroppedMessages int64 `json:"dropped_messages"`
	IdleReaped      int64 `json:"idle_reaped"`
}

// ConnInfo describes one live connection.
type ConnInfo struct {
	ConnID      string        `json:"conn_id"`
	RemoteAddr  string        `json:"remote_addr"`
	ConnectedAt time.Time     `json:"connected_at"`
	LastActive  time.Time     `json:"last_active"`
	Idle        time.Duration `json:"idle"`
}

// ConnManager is the index of live sockets by connection id. It owns each
// socket's outbound queue and write pump, enforces the connection cap and
// closes sockets that stay silent past the idle timeout.
type ConnManager struct {
	mu       sync.Mutex
	slots    map[string]*slot
	closed   bool
	maxConns int
	idleTTL  time.Duration
	stopIdle context.CancelFunc
	logger   *slog.Logger

	rejected atomic.Int64
	dropped  atomic.Int64
	reaped   atomic.Int64
}

// ConnManagerOption configures a ConnManager.
type ConnManagerOption func(*ConnManager)

// WithMaxConns caps concurrent connections. 0 means unlimited.
func WithMaxConns(n int) ConnManagerOption {
	return func(cm *ConnManager) { cm.maxConns = n }
}

// WithIdleTimeout closes connections that have not sent a frame for d.
// 0 disables reaping.
func WithIdleTimeout(d time.Duration) ConnManagerOption {
	return func(cm *ConnManager) { cm.idleTTL = d }
}

// WithConnLogger sets the logger.
func WithConnLogger(l *slog.Logger) ConnManagerOption {
	return func(cm *ConnManager) {
		if l != nil {
			cm.logger = l
		}
	}
}

// NewConnManager creates a connection manager. The idle reaper only runs
// when an idle timeout is set.
func NewConnManager(opts ...ConnManagerOption) *ConnManager {
	cm := &ConnManager{
		slots:  make(map[string]*slot),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cm)
	}
	if cm.idleTTL > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		cm.stopIdle = cancel
		go cm.idleReapLoop(ctx)
	}
	return cm
}

// Add indexes c under its connection id and starts its write pump. The
// returned context ends when c is removed, reaped or the manager shuts
// down; it is already done when c was refused.
func (cm *ConnManager) Add(c *Client) context.Context {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	switch {
	case cm.closed:
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return doneContext()
	case cm.maxConns > 0 && len(cm.slots) >= cm.maxConns:
		cm.rejected.Add(1)
		cm.logger.Warn("connection refused at capacity", "conn_id", c.connID, "max_conns", cm.maxConns)
		c.conn.Close(websocket.StatusTryAgainLater, "server at capacity")
		return doneContext()
	}

	ctx, stop := context.WithCancel(context.Background())
	now := time.Now()
	c.send = make(chan []byte, sendBufferSize)
	cm.slots[c.connID] = &slot{client: c, stop: stop, connectedAt: now, lastActive: now}
	go cm.writePump(ctx, c)
	return ctx
}

// Remove drops c from the index. Removing twice is harmless.
func (cm *ConnManager) Remove(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if s, ok := cm.slots[c.connID]; ok && s.client == c {
		cm.detachLocked(s)
	}
}

// Lookup returns the live client with connID, or nil.
func (cm *ConnManager) Lookup(connID string) *Client {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if s, ok := cm.slots[connID]; ok {
		return s.client
	}
	return nil
}

// Send queues data for c without blocking. A frame for a client that is
// gone or whose queue is full is dropped and false is returned.
func (cm *ConnManager) Send(c *Client, data []byte) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if s, ok := cm.slots[c.connID]; !ok || s.client != c {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		cm.dropped.Add(1)
		cm.logger.Warn("outbound queue full, frame dropped", "conn_id", c.connID)
		return false
	}
}

// TouchActivity marks c as active now.
func (cm *ConnManager) TouchActivity(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if s, ok := cm.slots[c.connID]; ok {
		s.lastActive = time.Now()
	}
}

// Count returns the number of live connections.
func (cm *ConnManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.slots)
}

// Stats returns point-in-time connection counters.
func (cm *ConnManager) Stats() ConnStats {
	cm.mu.Lock()
	active, maxConns := len(cm.slots), cm.maxConns
	cm.mu.Unlock()
	return ConnStats{
		Active:          active,
		MaxConns:        maxConns,
		Rejected:        cm.rejected.Load(),
		DroppedMessages: cm.dropped.Load(),
		IdleReaped:      cm.reaped.Load(),
	}
}

// Clients lists every live connection.
func (cm *ConnManager) Clients() []ConnInfo {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	now := time.Now()
	infos := make([]ConnInfo, 0, len(cm.slots))
	for id, s := range cm.slots {
		infos = append(infos, ConnInfo{
			ConnID:      id,
			RemoteAddr:  s.client.remoteAddr,
			ConnectedAt: s.connectedAt,
			LastActive:  s.lastActive,
			Idle:        now.Sub(s.lastActive),
		})
	}
	return infos
}

// Shutdown refuses new clients and closes every open socket with
// StatusGoingAway.
func (cm *ConnManager) Shutdown() {
	cm.mu.Lock()
	cm.closed = true
	victims := cm.detachAllLocked(func(*slot) bool { return true })
	cm.mu.Unlock()

	if cm.stopIdle != nil {
		cm.stopIdle()
	}
	for _, c := range victims {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (cm *ConnManager) idleReapLoop(ctx context.Context) {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.reapIdle()
		}
	}
}

// reapIdle closes sockets silent for longer than idleTTL. Their read loops
// then fail and the sessions disconnect as for any other close.
func (cm *ConnManager) reapIdle() {
	now := time.Now()
	cm.mu.Lock()
	victims := cm.detachAllLocked(func(s *slot) bool {
		return now.Sub(s.lastActive) > cm.idleTTL
	})
	cm.mu.Unlock()

	for _, c := range victims {
		c.conn.Close(websocket.StatusPolicyViolation, "idle timeout")
		cm.reaped.Add(1)
		cm.logger.Info("idle connection closed", "conn_id", c.connID)
	}
}

// detachLocked stops the write pump and closes the queue of s.
func (cm *ConnManager) detachLocked(s *slot) {
	delete(cm.slots, s.client.connID)
	s.stop()
	close(s.client.send)
}

func (cm *ConnManager) detachAllLocked(match func(*slot) bool) []*Client {
	var out []*Client
	for _, s := range cm.slots {
		if match(s) {
			out = append(out, s.client)
			cm.detachLocked(s)
		}
	}
	return out
}

// writePump writes queued frames in order until the queue closes, ctx ends
// or a write fails.
func (cm *ConnManager) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				cm.logger.Debug("write failed", "conn_id", c.connID, "error", err)
				return
			}
		}
	}
}

func doneContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
