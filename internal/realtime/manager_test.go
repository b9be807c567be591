package realtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

func (nopLogger) With(...any) types.Logger { return nopLogger{} }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeHandle records frames and can be scripted to fail.
type fakeHandle struct {
	sent    []any
	pings   int
	closed  bool
	sendErr error
	pingErr error
}

func (h *fakeHandle) Send(payload any) error {
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sent = append(h.sent, payload)
	return nil
}

func (h *fakeHandle) Ping() error {
	h.pings++
	return h.pingErr
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

func newTestManager() *Manager {
	return NewManager(fixedClock{time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}, nopLogger{})
}

func TestConnectSendsConfirmation(t *testing.T) {
	m := newTestManager()
	h := &fakeHandle{}

	require.NoError(t, m.Connect("usr_1", h))
	require.Len(t, h.sent, 1)

	frame, ok := h.sent[0].(connectionConfirmation)
	require.True(t, ok)
	assert.Equal(t, "connection_established", frame.Type)
	assert.Equal(t, "usr_1", frame.UserID)
	assert.True(t, m.IsUserOnline("usr_1"))
}

func TestConnectConfirmationFailureTearsDown(t *testing.T) {
	m := newTestManager()
	h := &fakeHandle{sendErr: errors.New("broken pipe")}

	err := m.Connect("usr_1", h)
	assert.Error(t, err)
	assert.True(t, h.closed)
	assert.False(t, m.IsUserOnline("usr_1"))
	assert.Zero(t, m.OnlineUsers())
}

func TestSendUserNotificationFansOut(t *testing.T) {
	m := newTestManager()
	phone := &fakeHandle{}
	laptop := &fakeHandle{}
	require.NoError(t, m.Connect("usr_1", phone))
	require.NoError(t, m.Connect("usr_1", laptop))

	ok := m.SendUserNotification("usr_1", map[string]string{"type": "notification"})
	assert.True(t, ok)
	assert.Len(t, phone.sent, 2, "confirmation plus notification")
	assert.Len(t, laptop.sent, 2)
}

func TestSendUserNotificationDropsFailingHandle(t *testing.T) {
	m := newTestManager()
	healthy := &fakeHandle{}
	dying := &fakeHandle{}
	require.NoError(t, m.Connect("usr_1", healthy))
	require.NoError(t, m.Connect("usr_1", dying))
	dying.sendErr = errors.New("connection reset")

	ok := m.SendUserNotification("usr_1", "payload")
	assert.True(t, ok, "surviving handle still counts as delivered")
	assert.True(t, dying.closed)
	assert.True(t, m.IsUserOnline("usr_1"), "healthy handle keeps the user online")

	// Next fan-out only reaches the survivor.
	healthyBefore := len(healthy.sent)
	m.SendUserNotification("usr_1", "again")
	assert.Len(t, healthy.sent, healthyBefore+1)
}

func TestSendUserNotificationOffline(t *testing.T) {
	m := newTestManager()
	assert.False(t, m.SendUserNotification("usr_ghost", "payload"))
}

func TestDisconnectLastHandleTakesUserOffline(t *testing.T) {
	m := newTestManager()
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}
	require.NoError(t, m.Connect("usr_1", h1))
	require.NoError(t, m.Connect("usr_1", h2))

	m.Disconnect("usr_1", h1)
	assert.True(t, h1.closed)
	assert.True(t, m.IsUserOnline("usr_1"))

	m.Disconnect("usr_1", h2)
	assert.False(t, m.IsUserOnline("usr_1"))
	assert.Zero(t, m.OnlineUsers())
}

func TestDisconnectUnknownHandleIsHarmless(t *testing.T) {
	m := newTestManager()
	h := &fakeHandle{}
	m.Disconnect("usr_never_connected", h)
	assert.True(t, h.closed)
}

func TestOnlineUsersCountsDistinctUsers(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Connect("usr_1", &fakeHandle{}))
	require.NoError(t, m.Connect("usr_1", &fakeHandle{}))
	require.NoError(t, m.Connect("usr_2", &fakeHandle{}))

	assert.Equal(t, 2, m.OnlineUsers())
}

func TestPingSweepDropsDeadHandles(t *testing.T) {
	m := newTestManager()
	alive := &fakeHandle{}
	dead := &fakeHandle{}
	require.NoError(t, m.Connect("usr_1", alive))
	require.NoError(t, m.Connect("usr_2", dead))
	dead.pingErr = errors.New("write timeout")

	dropped := m.PingSweep()
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, alive.pings)
	assert.True(t, dead.closed)
	assert.True(t, m.IsUserOnline("usr_1"))
	assert.False(t, m.IsUserOnline("usr_2"))
}
