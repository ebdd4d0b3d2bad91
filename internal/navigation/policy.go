package navigation

import "time"

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultRerouteInterval = 8 * time.Second
	DefaultMoveThresholdM  = 12.0
	DefaultPositionTimeout = 10 * time.Second
	DefaultIdleTimeouts    = 6
)

// Config holds the polling and reroute tuning knobs of a session.
type Config struct {
	PollInterval    time.Duration
	RerouteInterval time.Duration
	MoveThresholdM  float64
	PositionTimeout time.Duration
	// IdleTimeouts is how many position timeouts a session may go without
	// client activity before it is closed. Negative disables expiry.
	IdleTimeouts int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    DefaultPollInterval,
		RerouteInterval: DefaultRerouteInterval,
		MoveThresholdM:  DefaultMoveThresholdM,
		PositionTimeout: DefaultPositionTimeout,
		IdleTimeouts:    DefaultIdleTimeouts,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.RerouteInterval < 0 {
		c.RerouteInterval = d.RerouteInterval
	}
	if c.MoveThresholdM < 0 {
		c.MoveThresholdM = d.MoveThresholdM
	}
	if c.PositionTimeout <= 0 {
		c.PositionTimeout = d.PositionTimeout
	}
	if c.IdleTimeouts == 0 {
		c.IdleTimeouts = d.IdleTimeouts
	}
	return c
}

// idleAfter is zero when expiry is disabled.
func (c Config) idleAfter() time.Duration {
	if c.IdleTimeouts <= 0 {
		return 0
	}
	return time.Duration(c.IdleTimeouts) * c.PositionTimeout
}

const (
	reasonNotMoved  = "not_moved"
	reasonThrottled = "throttled"
	reasonInFlight  = "in_flight"
)

// ShouldReroute applies the reroute policy to a position update after the
// first fix. lastRouteAt is the time of the last successful route.
func (c Config) ShouldReroute(movedM float64, lastRouteAt, now time.Time, inFlight bool) bool {
	ok, _ := c.decide(movedM, lastRouteAt, now, inFlight)
	return ok
}

func (c Config) decide(movedM float64, lastRouteAt, now time.Time, inFlight bool) (bool, string) {
	switch {
	case movedM < c.MoveThresholdM:
		return false, reasonNotMoved
	case now.Sub(lastRouteAt) < c.RerouteInterval:
		return false, reasonThrottled
	case inFlight:
		return false, reasonInFlight
	}
	return true, ""
}
