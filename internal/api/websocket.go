package api

import (
	"github.com/gin-gonic/gin"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/internal/ws"
)

// handleWebSocket upgrades the connection after JWT validation. Browsers
// cannot set headers on WebSocket upgrades, so the token rides the query
// string: GET /ws?geohash=<g>&token=<jwt>
func (h *Handler) handleWebSocket(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		respondError(c, apperr.ErrUnauthorized.Withf("missing token query parameter"))
		return
	}
	claims, err := h.parseToken(raw)
	if err != nil {
		respondError(c, err)
		return
	}
	ws.ServeConnection(h.state.Hub, c.Writer, c.Request, claims.PlayerID, c.Query("geohash"))
}
