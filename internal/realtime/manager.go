// Package realtime tracks live websocket connections and pushes in-app
// notifications to them. The registry is in-memory only; a restart drops all
// registrations and clients reconnect.
package realtime

import (
	"context"
	"sync"
	"time"

	"gatherly/internal/types"
)

// Handle is one live client connection. The websocket implementation lives
// in conn.go; tests register in-memory fakes.
type Handle interface {
	// Send pushes one JSON payload to the client.
	Send(payload any) error
	// Ping pushes a keepalive frame.
	Ping() error
	// Close tears the connection down.
	Close() error
}

// connMeta records when a handle registered and last received traffic.
type connMeta struct {
	connectedAt time.Time
	lastSentAt  time.Time
}

// Manager is the process-wide connection registry. A user may hold several
// handles (multiple tabs, phone plus laptop); the user counts as online
// while at least one remains.
type Manager struct {
	mu     sync.RWMutex
	conns  map[string]map[Handle]*connMeta
	clock  types.Clock
	logger types.Logger
}

// NewManager creates an empty connection registry.
func NewManager(clock types.Clock, logger types.Logger) *Manager {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Manager{
		conns:  make(map[string]map[Handle]*connMeta),
		clock:  clock,
		logger: logger,
	}
}

// connectionConfirmation is the first frame pushed to a new connection.
type connectionConfirmation struct {
	Type        string    `json:"type"`
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Connect registers a handle under the user's ID and sends the connection
// confirmation frame. A confirmation failure tears the handle straight back
// down; a connection that cannot receive the first frame cannot receive
// notifications either.
func (m *Manager) Connect(userID string, h Handle) error {
	now := m.clock.Now()

	m.mu.Lock()
	if m.conns[userID] == nil {
		m.conns[userID] = make(map[Handle]*connMeta)
	}
	m.conns[userID][h] = &connMeta{connectedAt: now, lastSentAt: now}
	total := len(m.conns[userID])
	m.mu.Unlock()

	if err := h.Send(connectionConfirmation{
		Type:        "connection_established",
		UserID:      userID,
		ConnectedAt: now,
	}); err != nil {
		m.Disconnect(userID, h)
		return err
	}

	m.logger.Info("realtime connection established",
		"user_id", userID,
		"user_connections", total,
	)
	return nil
}

// Disconnect removes a handle and closes it. Removing the user's last handle
// takes them fully offline.
func (m *Manager) Disconnect(userID string, h Handle) {
	m.mu.Lock()
	handles, ok := m.conns[userID]
	if ok {
		delete(handles, h)
		if len(handles) == 0 {
			delete(m.conns, userID)
		}
	}
	remaining := len(handles)
	m.mu.Unlock()

	_ = h.Close()

	if ok {
		m.logger.Info("realtime connection closed",
			"user_id", userID,
			"user_connections", remaining,
		)
	}
}

// SendUserNotification pushes a payload to every live handle the user holds.
// A failing handle is removed without aborting the fan-out to the rest.
// Returns true when at least one handle received the payload.
func (m *Manager) SendUserNotification(userID string, payload any) bool {
	m.mu.RLock()
	handles := make([]Handle, 0, len(m.conns[userID]))
	for h := range m.conns[userID] {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	if len(handles) == 0 {
		return false
	}

	delivered := 0
	now := m.clock.Now()
	for _, h := range handles {
		if err := h.Send(payload); err != nil {
			m.logger.Warn("realtime send failed, dropping connection",
				"user_id", userID,
				"error", err.Error(),
			)
			m.Disconnect(userID, h)
			continue
		}
		m.mu.Lock()
		if meta, ok := m.conns[userID][h]; ok {
			meta.lastSentAt = now
		}
		m.mu.Unlock()
		delivered++
	}
	return delivered > 0
}

// IsUserOnline reports whether the user holds at least one live handle.
func (m *Manager) IsUserOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[userID]) > 0
}

// OnlineUsers returns how many distinct users are connected.
func (m *Manager) OnlineUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// PingSweep pushes a keepalive to every open handle and disconnects the ones
// that fail it. Returns how many handles were dropped.
func (m *Manager) PingSweep() int {
	type entry struct {
		userID string
		handle Handle
	}

	m.mu.RLock()
	var all []entry
	for userID, handles := range m.conns {
		for h := range handles {
			all = append(all, entry{userID: userID, handle: h})
		}
	}
	m.mu.RUnlock()

	dropped := 0
	for _, e := range all {
		if err := e.handle.Ping(); err != nil {
			m.Disconnect(e.userID, e.handle)
			dropped++
		}
	}

	if dropped > 0 {
		m.logger.Info("ping sweep dropped dead connections", "dropped", dropped)
	}
	return dropped
}

// RunPingSweep runs PingSweep on a fixed interval until the context is
// cancelled.
func (m *Manager) RunPingSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.PingSweep()
		}
	}
}

var _ types.RealtimeNotifier = (*Manager)(nil)
