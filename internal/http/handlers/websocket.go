package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/outlet_survey/backend/internal/navigation"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin applies the CORS origin to upgrades, which CORS itself does not
// cover. Requests without an Origin header come from non-browser clients.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.AllowedOrigin == "" || h.AllowedOrigin == "*" {
		return true
	}
	return strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(h.AllowedOrigin, "/"))
}

type wsClientMessage struct {
	Type string `json:"type"`
	PositionReport
}

// @Summary Navigation stream
// @Description WebSocket pushing a snapshot on every navigation change. Clients may send {"type":"position",...} messages.
// @Tags navigation
// @Param id path string true "Navigation session ID"
// @Param access_token query string false "Access token"
// @Router /ws/navigation/{id} [get]
func (h *Handler) NavigationStream(c *gin.Context) {
	handle, ok := h.navigationHandle(c)
	if !ok {
		return
	}
	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	logger := h.Logger.With().Str("session_id", handle.Session.ID()).Logger()
	updates, unsubscribe := handle.Session.Subscribe()
	go h.navigationWritePump(conn, updates, logger)
	go h.navigationReadPump(conn, handle, unsubscribe, logger)
}

func (h *Handler) navigationWritePump(conn *websocket.Conn, updates <-chan navigation.Snapshot, logger zerolog.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case snap, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "navigation closed"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// navigationReadPump feeds position messages to the session. Closing the
// socket only unsubscribes; the session stays open.
func (h *Handler) navigationReadPump(conn *websocket.Conn, handle *navigation.Handle, unsubscribe func(), logger zerolog.Logger) {
	defer func() {
		unsubscribe()
		conn.Close()
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("ignoring malformed websocket message")
			continue
		}
		if msg.Type != "position" {
			continue
		}
		if err := h.Validator.Struct(msg.PositionReport); err != nil {
			logger.Debug().Err(err).Msg("ignoring invalid position")
			continue
		}
		if err := msg.PositionReport.apply(h.Navigation, handle.Session.ID(), handle.OwnerID); err != nil {
			logger.Debug().Err(err).Msg("navigation session gone")
			return
		}
	}
}
