package navigation

import (
	"time"

	"github.com/outlet_survey/backend/internal/geo"
)

// Snapshot is the renderable navigation state pushed to clients.
type Snapshot struct {
	SessionID     string      `json:"session_id"`
	Phase         Phase       `json:"phase"`
	OutletOnly    bool        `json:"outlet_only"`
	Message       string      `json:"message,omitempty"`
	Detail        string      `json:"detail,omitempty"`
	User          *geo.Point  `json:"user,omitempty"`
	Destination   Destination `json:"destination"`
	Route         []geo.Point `json:"route,omitempty"`
	Fallback      []geo.Point `json:"fallback,omitempty"`
	DistanceM     *float64    `json:"distance_m,omitempty"`
	DistanceText  string      `json:"distance_text,omitempty"`
	DistanceLabel string      `json:"distance_label,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:   s.id,
		Phase:       s.phase,
		OutletOnly:  s.outletOnly,
		Message:     s.message,
		Destination: s.dest,
		UpdatedAt:   s.updatedAt,
	}
	if s.outletOnly {
		snap.Detail = outletOnlySubtitle
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if len(s.route) > 0 {
		snap.Route = append([]geo.Point(nil), s.route...)
	}
	if len(s.fallback) > 0 {
		snap.Fallback = append([]geo.Point(nil), s.fallback...)
	}
	if s.distance != nil {
		d := *s.distance
		snap.DistanceM = &d
		snap.DistanceText = geo.FormatDistance(d)
		snap.DistanceLabel = LabelStraightLine
		if s.onRoute {
			snap.DistanceLabel = LabelRouteDistance
		}
	}
	return snap
}
