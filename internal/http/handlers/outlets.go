package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/outlet_survey/backend/internal/outlets"
)

// @Summary List outlets
// @Description Merged assigned and validated outlets of the signed-in agent
// @Tags outlets
// @Produce json
// @Param search query string false "Outlet name substring"
// @Param community query string false "Community"
// @Param assembly query string false "Assembly"
// @Param outlet_type query string false "retail or salon"
// @Param validation query string false "validated or not-validated"
// @Param refresh query bool false "Bypass the cache"
// @Success 200 {object} outlets.Listing
// @Failure 503 {object} map[string]any
// @Router /api/outlets [get]
func (h *Handler) ListOutlets(c *gin.Context) {
	var f outlets.Filters
	if err := c.ShouldBindQuery(&f); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid filters", err.Error())
		return
	}
	if err := h.Validator.Struct(f); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	listing, err := h.Outlets.OutletsForAgent(ctx, session(c).AgentID, f, refreshRequested(c))
	if err != nil {
		h.writeOutletError(c, err, "Failed to list outlets")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// @Summary Outlet details
// @Tags outlets
// @Produce json
// @Param id path string true "Captured or assigned outlet ID"
// @Success 200 {object} models.Outlet
// @Failure 404 {object} map[string]any
// @Router /api/outlets/{id} [get]
func (h *Handler) OutletDetails(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	o, err := h.Outlets.Outlet(ctx, c.Param("id"), session(c).AgentID)
	if err != nil {
		h.writeOutletError(c, err, "Failed to load outlet")
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Validate outlet
// @Description Create or update the captured record of an outlet
// @Tags outlets
// @Accept json
// @Produce json
// @Param id path string true "Captured or assigned outlet ID"
// @Param body body outlets.CaptureRequest true "Capture form"
// @Success 200 {object} models.Outlet
// @Failure 422 {object} map[string]any
// @Router /api/outlets/{id}/validate [post]
func (h *Handler) ValidateOutlet(c *gin.Context) {
	var req outlets.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	o, err := h.Outlets.Validate(ctx, c.Param("id"), session(c), req)
	if err != nil {
		h.writeOutletError(c, err, "Failed to save outlet")
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Unvalidate outlet
// @Description Delete the captured record and its stored images
// @Tags outlets
// @Produce json
// @Param id path string true "Captured or assigned outlet ID"
// @Success 200 {object} models.Outlet
// @Failure 409 {object} map[string]any
// @Router /api/outlets/{id}/validate [delete]
func (h *Handler) UnvalidateOutlet(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	o, err := h.Outlets.Unvalidate(ctx, c.Param("id"), session(c).AgentID)
	if err != nil {
		h.writeOutletError(c, err, "Failed to unvalidate outlet")
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Active products
// @Tags products
// @Produce json
// @Param refresh query bool false "Bypass the cache"
// @Success 200 {object} map[string]any
// @Router /api/products [get]
func (h *Handler) ListProducts(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	c.JSON(http.StatusOK, gin.H{"items": h.Outlets.Products(ctx, refreshRequested(c))})
}

func refreshRequested(c *gin.Context) bool {
	return c.Query("refresh") == "1" || c.Query("refresh") == "true"
}

// @Summary Current session
// @Tags session
// @Produce json
// @Success 200 {object} models.AgentSession
// @Router /api/session [get]
func (h *Handler) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, session(c))
}

// @Summary Sign out
// @Description Drops cached data and closes the agent's navigation sessions
// @Tags session
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/session/signout [post]
func (h *Handler) SignOut(c *gin.Context) {
	sess := session(c)
	h.Outlets.SignOut(sess.AgentID)
	closed := h.Navigation.CloseOwned(sess.AgentID)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "navigation_closed": closed})
}
