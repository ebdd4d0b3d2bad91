package routing

import (
	"context"
	"errors"
)

var (
	ErrNoRoutes = errors.New("no routes returned")
	ErrDisabled = errors.New("routing disabled")
)

// RoutingError reports a failed call to the routing service.
type RoutingError struct {
	Cause error
}

func (e *RoutingError) Error() string {
	if e.Cause == nil {
		return "routing failed"
	}
	return "routing failed: " + e.Cause.Error()
}

func (e *RoutingError) Unwrap() error {
	return e.Cause
}

type Route struct {
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

type Response struct {
	Code   string  `json:"code"`
	Routes []Route `json:"routes"`
}

// Router fetches a walking route. Coordinates are longitude first.
type Router interface {
	FetchRoute(ctx context.Context, startLon, startLat, endLon, endLat float64) (Response, error)
}

// Disabled is used when no routing service is configured; every call fails so
// callers fall back to straight-line estimates.
type Disabled struct{}

func (Disabled) FetchRoute(ctx context.Context, startLon, startLat, endLon, endLat float64) (Response, error) {
	return Response{}, &RoutingError{Cause: ErrDisabled}
}
