package navigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/outlet_survey/backend/internal/geo"
)

const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// PositionError is a failed device position request.
type PositionError struct {
	Code int
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position error %d: %s", e.Code, e.Message())
}

// Message is the text shown to the agent.
func (e *PositionError) Message() string {
	switch e.Code {
	case CodePermissionDenied:
		return "Location permission denied"
	case CodePositionUnavailable:
		return "Location unavailable"
	case CodeTimeout:
		return "Location request timed out"
	}
	return "Unable to get your location"
}

// PositionSource yields a fresh device position on each call.
type PositionSource interface {
	CurrentPosition(ctx context.Context) (geo.Point, error)
}

type report struct {
	pos geo.Point
	err error
}

// ReportedSource is fed by the client, which owns the device. Each call to
// CurrentPosition waits for the next report made after the previous call; no
// cached fix is ever returned.
type ReportedSource struct {
	timeout time.Duration

	mu      sync.Mutex
	pending *report
	notify  chan struct{}
}

func NewReportedSource(timeout time.Duration) *ReportedSource {
	if timeout <= 0 {
		timeout = DefaultPositionTimeout
	}
	return &ReportedSource{timeout: timeout, notify: make(chan struct{}, 1)}
}

// Report records a fix; a newer report replaces one not yet consumed.
func (r *ReportedSource) Report(p geo.Point) {
	r.put(report{pos: p})
}

// ReportError records a device-side failure with a geolocation error code.
func (r *ReportedSource) ReportError(code int) {
	r.put(report{err: &PositionError{Code: code}})
}

func (r *ReportedSource) put(rep report) {
	r.mu.Lock()
	r.pending = &rep
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *ReportedSource) take() (report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return report{}, false
	}
	rep := *r.pending
	r.pending = nil
	return rep, true
}

func (r *ReportedSource) CurrentPosition(ctx context.Context) (geo.Point, error) {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	for {
		if rep, ok := r.take(); ok {
			return rep.pos, rep.err
		}
		select {
		case <-ctx.Done():
			return geo.Point{}, ctx.Err()
		case <-timer.C:
			return geo.Point{}, &PositionError{Code: CodeTimeout}
		case <-r.notify:
		}
	}
}
