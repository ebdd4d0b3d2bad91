package navigation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	router := &fakeRouter{resp: okRoute()}
	m := NewManager(router, Config{PollInterval: 5 * time.Millisecond, PositionTimeout: 20 * time.Millisecond}, zerolog.Nop())

	defer m.CloseAll()

	h := m.Open("ag1", outlet)
	require.NotEmpty(t, h.Session.ID())
	assert.Equal(t, 1, m.Len())

	_, err := m.Get(h.Session.ID(), "ag2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.Report(h.Session.ID(), "ag1", userStart))
	require.Eventually(t, func() bool {
		return h.Session.Snapshot().Phase == PhaseTracking
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.Close(h.Session.ID(), "ag2"), ErrSessionNotFound)
	require.NoError(t, m.Close(h.Session.ID(), "ag1"))
	assert.Equal(t, PhaseClosed, h.Session.Snapshot().Phase)
	assert.ErrorIs(t, m.Close(h.Session.ID(), "ag1"), ErrSessionNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(&fakeRouter{resp: okRoute()}, Config{PositionTimeout: 10 * time.Millisecond}, zerolog.Nop())
	a := m.Open("ag1", outlet)
	b := m.Open("ag2", outlet)
	c := m.Open("ag1", outlet)

	assert.Equal(t, 2, m.CloseOwned("ag1"))
	assert.Equal(t, PhaseClosed, a.Session.Snapshot().Phase)
	assert.Equal(t, PhaseClosed, c.Session.Snapshot().Phase)

	m.CloseAll()
	assert.Equal(t, PhaseClosed, b.Session.Snapshot().Phase)
	assert.Equal(t, 0, m.Len())
}

func TestManagerExpiresAbandonedSession(t *testing.T) {
	m := NewManager(&fakeRouter{resp: okRoute()}, Config{
		PollInterval:    5 * time.Millisecond,
		PositionTimeout: 10 * time.Millisecond,
		IdleTimeouts:    2,
	}, zerolog.Nop())
	defer m.CloseAll()

	h := m.Open("ag1", outlet)
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseClosed, h.Session.Snapshot().Phase)
	_, err := m.Get(h.Session.ID(), "ag1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerIdleExpiryCountsActivity(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(&fakeRouter{resp: okRoute()}, Config{
		PollInterval:    time.Hour,
		PositionTimeout: time.Hour,
		IdleTimeouts:    2,
	}, zerolog.Nop())
	m.now = clock.Now
	defer m.CloseAll()

	reporting := m.Open("ag1", outlet)
	streaming := m.Open("ag1", outlet)
	silent := m.Open("ag1", outlet)
	_, unsubscribe := streaming.Session.Subscribe()

	clock.Advance(90 * time.Minute)
	require.NoError(t, m.Report(reporting.Session.ID(), "ag1", userStart))
	clock.Advance(time.Hour)

	assert.Equal(t, 1, m.expireIdle())
	assert.Equal(t, PhaseClosed, silent.Session.Snapshot().Phase)
	assert.Equal(t, 2, m.Len())

	unsubscribe()
	clock.Advance(2*time.Hour + time.Second)
	assert.Equal(t, 2, m.expireIdle())
	assert.Equal(t, PhaseClosed, streaming.Session.Snapshot().Phase)
	assert.Equal(t, PhaseClosed, reporting.Session.Snapshot().Phase)
}

func TestManagerIdleExpiryDisabled(t *testing.T) {
	m := NewManager(&fakeRouter{resp: okRoute()}, Config{PositionTimeout: time.Millisecond, IdleTimeouts: -1}, zerolog.Nop())
	defer m.CloseAll()

	m.Open("ag1", outlet)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, m.expireIdle())
}
