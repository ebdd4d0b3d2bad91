package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/outlet_survey/backend/internal/http/middleware"
	"github.com/outlet_survey/backend/internal/models"
	"github.com/outlet_survey/backend/internal/navigation"
	"github.com/outlet_survey/backend/internal/outlets"
	"github.com/outlet_survey/backend/internal/storage"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ImageUploader interface {
	Upload(ctx context.Context, folder, name, contentType string, body io.Reader) (storage.Object, error)
}

type Handler struct {
	DB             Pinger
	Outlets        *outlets.Service
	Navigation     *navigation.Manager
	Images         ImageUploader
	Validator      *validator.Validate
	Logger         zerolog.Logger
	RequestTimeout time.Duration
	MaxUploadBytes int64
	// AllowedOrigin is the CORS origin; "*" or empty accepts any.
	AllowedOrigin string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.RequestTimeout)
}

func session(c *gin.Context) models.AgentSession {
	sess, _ := middleware.SessionFrom(c)
	return sess
}

// writeOutletError maps outlet service failures onto the error envelope.
func (h *Handler) writeOutletError(c *gin.Context, err error, fallbackMessage string) {
	var (
		verr     *outlets.ValidationError
		fetchErr *outlets.FetchError
	)
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", verr.Problems)
	case errors.Is(err, outlets.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Outlet not found", nil)
	case errors.Is(err, outlets.ErrNotValidated):
		writeError(c, http.StatusConflict, "NOT_VALIDATED", "Outlet is not validated", nil)
	case errors.As(err, &fetchErr):
		writeError(c, http.StatusServiceUnavailable, "FETCH_FAILED", "Could not load outlets, please retry", err.Error())
	default:
		h.Logger.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDHeader)).Msg(fallbackMessage)
		writeError(c, http.StatusInternalServerError, "DB_ERROR", fallbackMessage, err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
