package navigation

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/outlet_survey/backend/internal/geo"
	"github.com/outlet_survey/backend/internal/metrics"
	"github.com/outlet_survey/backend/internal/routing"
)

var ErrSessionNotFound = errors.New("navigation session not found")

// Handle is an open session together with the source its client reports to.
type Handle struct {
	Session *Session
	Source  *ReportedSource
	OwnerID string

	lastSeen atomic.Int64
}

func (h *Handle) touch(now time.Time) {
	h.lastSeen.Store(now.UnixNano())
}

func (h *Handle) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, h.lastSeen.Load()))
}

// Manager owns the navigation sessions opened by agents. Sessions whose
// client stops reporting and has no open stream are closed after
// Config.IdleTimeouts position timeouts.
type Manager struct {
	router routing.Router
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Handle
	stopReap chan struct{}
}

func NewManager(router routing.Router, cfg Config, logger zerolog.Logger) *Manager {
	return &Manager{
		router:   router,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		sessions: map[string]*Handle{},
	}
}

// Open starts a session navigating ownerID to dest.
func (m *Manager) Open(ownerID string, dest Destination) *Handle {
	id := uuid.NewString()
	source := NewReportedSource(m.cfg.PositionTimeout)
	h := &Handle{
		Session: NewSession(id, dest, source, m.router, m.cfg, m.logger),
		Source:  source,
		OwnerID: ownerID,
	}
	h.touch(m.now())

	m.mu.Lock()
	m.sessions[id] = h
	m.startReaperLocked()
	m.mu.Unlock()
	metrics.NavigationSessionsActive.Inc()

	h.Session.Start()
	m.logger.Info().
		Str("session_id", id).
		Str("agent_id", ownerID).
		Str("outlet_id", dest.OutletID).
		Msg("navigation session opened")
	return h
}

// Get returns the session only to the agent that opened it. Every lookup
// counts as client activity.
func (m *Manager) Get(id, ownerID string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[id]
	if !ok || h.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	h.touch(m.now())
	return h, nil
}

// Report feeds a position fix to the session.
func (m *Manager) Report(id, ownerID string, p geo.Point) error {
	h, err := m.Get(id, ownerID)
	if err != nil {
		return err
	}
	h.Source.Report(p)
	return nil
}

func (m *Manager) ReportError(id, ownerID string, code int) error {
	h, err := m.Get(id, ownerID)
	if err != nil {
		return err
	}
	h.Source.ReportError(code)
	return nil
}

// Close closes and forgets the session.
func (m *Manager) Close(id, ownerID string) error {
	m.mu.Lock()
	h, ok := m.sessions[id]
	if !ok || h.OwnerID != ownerID {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	m.closeHandles([]*Handle{h})
	return nil
}

// CloseAll closes every session and stops idle expiry. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.sessions))
	for id, h := range m.sessions {
		handles = append(handles, h)
		delete(m.sessions, id)
	}
	if m.stopReap != nil {
		close(m.stopReap)
		m.stopReap = nil
	}
	m.mu.Unlock()

	m.closeHandles(handles)
}

// CloseOwned closes the sessions opened by one agent.
func (m *Manager) CloseOwned(ownerID string) int {
	m.mu.Lock()
	var handles []*Handle
	for id, h := range m.sessions {
		if h.OwnerID == ownerID {
			handles = append(handles, h)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	m.closeHandles(handles)
	return len(handles)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) closeHandles(handles []*Handle) {
	for _, h := range handles {
		h.Session.Close()
		metrics.NavigationSessionsActive.Dec()
	}
}

func (m *Manager) startReaperLocked() {
	if m.stopReap != nil || m.cfg.idleAfter() <= 0 {
		return
	}
	stop := make(chan struct{})
	m.stopReap = stop
	go m.reap(stop)
}

func (m *Manager) reap(stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PositionTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}

// expireIdle closes sessions without an open stream whose client has not
// been heard from within the idle window. A subscribed session counts as
// active, so the window restarts when its last stream goes away.
func (m *Manager) expireIdle() int {
	idle := m.cfg.idleAfter()
	now := m.now()

	m.mu.Lock()
	var expired []*Handle
	for id, h := range m.sessions {
		if h.Session.subscriberCount() > 0 {
			h.touch(now)
			continue
		}
		if h.idleFor(now) > idle {
			expired = append(expired, h)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, h := range expired {
		m.logger.Info().
			Str("session_id", h.Session.ID()).
			Str("agent_id", h.OwnerID).
			Dur("idle", h.idleFor(now)).
			Msg("navigation session expired")
	}
	m.closeHandles(expired)
	return len(expired)
}
