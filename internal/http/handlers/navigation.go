package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/outlet_survey/backend/internal/geo"
	"github.com/outlet_survey/backend/internal/navigation"
)

type StartNavigationRequest struct {
	OutletID string `json:"outlet_id" validate:"required"`
}

// PositionReport carries either a device fix or a geolocation error code.
type PositionReport struct {
	Lat       *float64 `json:"lat" validate:"required_without=ErrorCode,omitempty,gte=-90,lte=90"`
	Lon       *float64 `json:"lon" validate:"required_without=ErrorCode,omitempty,gte=-180,lte=180"`
	ErrorCode int      `json:"error_code" validate:"omitempty,min=1,max=3"`
}

// apply feeds the report to the agent's session.
func (r PositionReport) apply(m *navigation.Manager, sessionID, agentID string) error {
	if r.ErrorCode != 0 {
		return m.ReportError(sessionID, agentID, r.ErrorCode)
	}
	return m.Report(sessionID, agentID, geo.Point{Lat: *r.Lat, Lon: *r.Lon})
}

// @Summary Start navigation
// @Description Opens a live navigation session to an outlet
// @Tags navigation
// @Accept json
// @Produce json
// @Param body body StartNavigationRequest true "Outlet"
// @Success 201 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/navigation [post]
func (h *Handler) StartNavigation(c *gin.Context) {
	var req StartNavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	sess := session(c)
	o, err := h.Outlets.Outlet(ctx, req.OutletID, sess.AgentID)
	if err != nil {
		h.writeOutletError(c, err, "Failed to load outlet")
		return
	}

	handle := h.Navigation.Open(sess.AgentID, navigation.Destination{
		OutletID: o.ID(),
		Name:     o.OutletName,
		Point:    geo.Point{Lat: o.Latitude, Lon: o.Longitude},
	})
	c.JSON(http.StatusCreated, gin.H{
		"session_id": handle.Session.ID(),
		"snapshot":   handle.Session.Snapshot(),
	})
}

// @Summary Report position
// @Tags navigation
// @Accept json
// @Produce json
// @Param id path string true "Navigation session ID"
// @Param body body PositionReport true "Fix or error code"
// @Success 202 {object} map[string]any
// @Router /api/navigation/{id}/position [post]
func (h *Handler) ReportPosition(c *gin.Context) {
	var req PositionReport
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if err := req.apply(h.Navigation, c.Param("id"), session(c).AgentID); err != nil {
		writeNavigationError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// @Summary Navigation state
// @Tags navigation
// @Produce json
// @Param id path string true "Navigation session ID"
// @Success 200 {object} navigation.Snapshot
// @Router /api/navigation/{id} [get]
func (h *Handler) NavigationState(c *gin.Context) {
	handle, ok := h.navigationHandle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, handle.Session.Snapshot())
}

// @Summary Stop navigation
// @Tags navigation
// @Produce json
// @Param id path string true "Navigation session ID"
// @Success 200 {object} map[string]any
// @Router /api/navigation/{id} [delete]
func (h *Handler) StopNavigation(c *gin.Context) {
	if err := h.Navigation.Close(c.Param("id"), session(c).AgentID); err != nil {
		writeNavigationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (h *Handler) navigationHandle(c *gin.Context) (*navigation.Handle, bool) {
	handle, err := h.Navigation.Get(c.Param("id"), session(c).AgentID)
	if err != nil {
		writeNavigationError(c, err)
		return nil, false
	}
	return handle, true
}

func writeNavigationError(c *gin.Context, err error) {
	if errors.Is(err, navigation.ErrSessionNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Navigation session not found", nil)
		return
	}
	writeError(c, http.StatusInternalServerError, "NAVIGATION_ERROR", "Navigation failed", err.Error())
}
