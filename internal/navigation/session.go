package navigation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/outlet_survey/backend/internal/geo"
	"github.com/outlet_survey/backend/internal/metrics"
	"github.com/outlet_survey/backend/internal/routing"
)

type Phase string

const (
	PhaseAwaitingFirstFix Phase = "awaiting_first_fix"
	PhaseTracking         Phase = "tracking"
	PhaseClosed           Phase = "closed"
)

const (
	LabelRouteDistance  = "Route distance"
	LabelStraightLine   = "Distance to outlet"
	outletOnlySubtitle  = "Showing outlet location only"
	subscriberQueueSize = 1
)

// Destination is the outlet a session navigates to.
type Destination struct {
	OutletID string    `json:"outlet_id"`
	Name     string    `json:"name"`
	Point    geo.Point `json:"point"`
}

// Session drives live navigation from polled device positions to one outlet.
// At most one route request is outstanding per session.
type Session struct {
	id     string
	dest   Destination
	cfg    Config
	source PositionSource
	router routing.Router
	logger zerolog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	routes sync.WaitGroup

	inFlight  atomic.Bool
	closeOnce sync.Once

	mu            sync.Mutex
	phase         Phase
	user          *geo.Point
	lastUserPos   *geo.Point
	lastRouteAt   time.Time
	route         []geo.Point
	fallback      []geo.Point
	distance      *float64
	onRoute       bool
	outletOnly    bool
	message       string
	geoErrorShown bool
	updatedAt     time.Time
	subs          map[chan Snapshot]struct{}
}

func NewSession(id string, dest Destination, source PositionSource, router routing.Router, cfg Config, logger zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     id,
		dest:   dest,
		cfg:    cfg.withDefaults(),
		source: source,
		router: router,
		logger: logger.With().Str("session_id", id).Str("outlet_id", dest.OutletID).Logger(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		phase:  PhaseAwaitingFirstFix,
		subs:   map[chan Snapshot]struct{}{},
	}
	s.updatedAt = s.now()
	return s
}

func (s *Session) ID() string { return s.id }

// Start requests a position immediately and then on every poll interval until
// the session is closed.
func (s *Session) Start() {
	s.mu.Lock()
	if s.done != nil || s.phase == PhaseClosed {
		s.mu.Unlock()
		return
	}
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run()
}

func (s *Session) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		s.poll()
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) poll() {
	pos, err := s.source.CurrentPosition(s.ctx)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.handlePositionError(err)
		return
	}
	s.handleFix(pos)
}

// handlePositionError surfaces the first failure before any fix as an
// outlet-only view. Every later failure is ignored.
func (s *Session) handlePositionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAwaitingFirstFix || s.geoErrorShown {
		s.logger.Debug().Err(err).Msg("position unavailable")
		return
	}

	var perr *PositionError
	if !errors.As(err, &perr) {
		perr = &PositionError{}
	}
	s.geoErrorShown = true
	s.outletOnly = true
	s.message = perr.Message()
	s.logger.Warn().Int("code", perr.Code).Msg("no first fix, showing outlet only")
	s.publishLocked()
}

func (s *Session) handleFix(pos geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}

	s.user = &pos
	if s.phase == PhaseAwaitingFirstFix {
		s.phase = PhaseTracking
		s.outletOnly = false
		s.message = ""
		s.lastUserPos = &pos
		if s.inFlight.CompareAndSwap(false, true) {
			s.startRouteLocked(pos)
		}
		s.publishLocked()
		return
	}

	moved := s.cfg.MoveThresholdM
	if s.lastUserPos != nil {
		moved = geo.Distance(*s.lastUserPos, pos)
	}
	s.lastUserPos = &pos

	reroute, reason := s.cfg.decide(moved, s.lastRouteAt, s.now(), s.inFlight.Load())
	if reroute && !s.inFlight.CompareAndSwap(false, true) {
		reroute, reason = false, reasonInFlight
	}
	if reroute {
		s.startRouteLocked(pos)
	} else {
		metrics.RerouteSuppressed.WithLabelValues(reason).Inc()
		if s.fallback != nil {
			s.setFallbackLocked(pos)
		}
	}
	s.publishLocked()
}

// startRouteLocked must be called with the in-flight guard held; the request
// goroutine releases it.
func (s *Session) startRouteLocked(from geo.Point) {
	s.routes.Add(1)
	go s.fetchRoute(from)
}

func (s *Session) fetchRoute(from geo.Point) {
	defer s.routes.Done()
	defer s.inFlight.Store(false)

	started := time.Now()
	resp, err := s.router.FetchRoute(s.ctx, from.Lon, from.Lat, s.dest.Point.Lon, s.dest.Point.Lat)
	metrics.RouteDuration.Observe(time.Since(started).Seconds())
	if err == nil && len(resp.Routes) == 0 {
		err = &routing.RoutingError{Cause: routing.ErrNoRoutes}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}

	if err != nil {
		outcome := "failure"
		if errors.Is(err, routing.ErrNoRoutes) {
			outcome = "empty"
		}
		metrics.RouteRequests.WithLabelValues(outcome).Inc()
		s.logger.Warn().Err(err).Msg("routing failed, using straight line")

		user := from
		if s.user != nil {
			user = *s.user
		}
		s.setFallbackLocked(user)
		s.publishLocked()
		return
	}

	metrics.RouteRequests.WithLabelValues("success").Inc()
	best := resp.Routes[0]
	s.route = geo.Decode(best.Geometry)
	s.fallback = nil
	d := best.Distance
	s.distance = &d
	s.onRoute = true
	s.lastRouteAt = s.now()
	s.publishLocked()
}

func (s *Session) setFallbackLocked(user geo.Point) {
	s.fallback = []geo.Point{user, s.dest.Point}
	d := geo.Distance(user, s.dest.Point)
	s.distance = &d
	s.onRoute = false
}

// Close stops polling and releases session state. Route results arriving
// afterwards are discarded. Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.phase = PhaseClosed
		s.user = nil
		s.lastUserPos = nil
		s.route = nil
		s.fallback = nil
		s.distance = nil
		s.updatedAt = s.now()
		for ch := range s.subs {
			close(ch)
		}
		s.subs = map[chan Snapshot]struct{}{}
		done := s.done
		s.mu.Unlock()

		s.cancel()
		if done != nil {
			<-done
		}
		s.logger.Debug().Msg("navigation session closed")
	})
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Snapshot returns the current renderable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving the latest snapshot after every state
// change. Slow readers only see the most recent one. The channel is closed
// when the session closes or cancel is called.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberQueueSize)
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *Session) publishLocked() {
	s.updatedAt = s.now()
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Session) waitRoutes() {
	s.routes.Wait()
}
