package outlets

import "github.com/outlet_survey/backend/internal/models"

// MergedView is the per-agent reconciliation of assigned and captured records.
// All lists not-yet-validated outlets first, then validated ones, each in input order.
type MergedView struct {
	NotValidated []models.Outlet `json:"not_validated"`
	Validated    []models.Outlet `json:"validated"`
	All          []models.Outlet `json:"all"`
}

// Merge builds the view for one agent. A captured record always wins over the
// assigned record with the same assigned_outlet_id; captured records whose
// assigned counterpart is unknown are still shown.
func Merge(assigned []models.AssignedOutlet, captured []models.CapturedOutlet, agentID string) MergedView {
	mine := filterAssigned(assigned, func(a models.AssignedOutlet) bool {
		return a.AgentID == agentID
	})
	mineCaptured := filterCaptured(captured, func(c models.CapturedOutlet) bool {
		return c.AgentID == agentID
	})

	capturedSet := make(map[string]struct{}, len(mineCaptured))
	for _, c := range mineCaptured {
		capturedSet[c.AssignedOutletID] = struct{}{}
	}

	view := MergedView{
		NotValidated: make([]models.Outlet, 0, len(mine)),
		Validated:    make([]models.Outlet, 0, len(mineCaptured)),
	}
	for _, a := range mine {
		if _, ok := capturedSet[a.AssignedOutletID]; ok {
			continue
		}
		view.NotValidated = append(view.NotValidated, models.FromAssigned(a))
	}
	for _, c := range mineCaptured {
		view.Validated = append(view.Validated, models.FromCaptured(c))
	}

	view.All = make([]models.Outlet, 0, len(view.NotValidated)+len(view.Validated))
	view.All = append(view.All, view.NotValidated...)
	view.All = append(view.All, view.Validated...)
	return view
}

// FindByID resolves id as a captured_id first, then as an assigned_outlet_id.
// An assigned hit is replaced by its captured record when one exists.
func FindByID(assigned []models.AssignedOutlet, captured []models.CapturedOutlet, id string, agentID string) (models.Outlet, bool) {
	for _, c := range captured {
		if c.CapturedID == id && c.AgentID == agentID {
			return models.FromCaptured(c), true
		}
	}
	for _, a := range assigned {
		if a.AssignedOutletID != id || a.AgentID != agentID {
			continue
		}
		if c, ok := findCapturedForAssigned(captured, a.AssignedOutletID, agentID); ok {
			return models.FromCaptured(c), true
		}
		return models.FromAssigned(a), true
	}
	return models.Outlet{}, false
}

func findCapturedForAssigned(captured []models.CapturedOutlet, assignedOutletID string, agentID string) (models.CapturedOutlet, bool) {
	for _, c := range captured {
		if c.AssignedOutletID == assignedOutletID && c.AgentID == agentID {
			return c, true
		}
	}
	return models.CapturedOutlet{}, false
}

// CapturedID derives the deterministic id of the captured record for an assignment.
func CapturedID(assignedOutletID, agentID string) string {
	return "cap_" + assignedOutletID + "_" + agentID
}

func filterAssigned(in []models.AssignedOutlet, keep func(models.AssignedOutlet) bool) []models.AssignedOutlet {
	out := make([]models.AssignedOutlet, 0, len(in))
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func filterCaptured(in []models.CapturedOutlet, keep func(models.CapturedOutlet) bool) []models.CapturedOutlet {
	out := make([]models.CapturedOutlet, 0, len(in))
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
