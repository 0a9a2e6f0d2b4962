package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/titanbreach/breach-server/pkg/models"
)

// handlePvPQueueJoin enters the matchmaking queue.
// POST /api/v1/pvp/queue {titanId}
func (h *Handler) handlePvPQueueJoin(c *gin.Context) {
	player := currentPlayer(c)

	var req struct {
		TitanID int64 `json:"titanId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	entry, err := h.state.PvP.JoinQueue(c.Request.Context(), player.ID, req.TitanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// handlePvPQueueStatus reports the caller's queue entry.
// GET /api/v1/pvp/queue
func (h *Handler) handlePvPQueueStatus(c *gin.Context) {
	player := currentPlayer(c)
	entry, err := h.state.PvP.QueueStatus(c.Request.Context(), player.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"queued": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": true, "entry": entry})
}

// handlePvPQueueLeave abandons a still-searching entry.
// DELETE /api/v1/pvp/queue
func (h *Handler) handlePvPQueueLeave(c *gin.Context) {
	player := currentPlayer(c)
	if err := h.state.PvP.LeaveQueue(c.Request.Context(), player.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

// handlePvPMatch returns the match state.
// GET /api/v1/pvp/match/:id
func (h *Handler) handlePvPMatch(c *gin.Context) {
	m, err := h.state.PvP.GetMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// handlePvPTurns returns the turn history of a match.
// GET /api/v1/pvp/match/:id/turns
func (h *Handler) handlePvPTurns(c *gin.Context) {
	turns, err := h.state.PvP.ListTurns(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

// handlePvPAction submits the caller's turn; titan selection rides the same
// endpoint with action "select".
// POST /api/v1/pvp/action {matchId, action, titanId?}
func (h *Handler) handlePvPAction(c *gin.Context) {
	player := currentPlayer(c)

	var req struct {
		MatchID string `json:"matchId" binding:"required"`
		Action  string `json:"action" binding:"required"`
		TitanID int64  `json:"titanId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if req.Action == "select" {
		m, err := h.state.PvP.SelectTitan(c.Request.Context(), req.MatchID, player.ID, req.TitanID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
		return
	}

	m, err := h.state.PvP.SubmitAction(c.Request.Context(), req.MatchID, player.ID,
		models.BattleAction(req.Action))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// handlePvPSurrender forfeits the match.
// POST /api/v1/pvp/surrender {matchId}
func (h *Handler) handlePvPSurrender(c *gin.Context) {
	player := currentPlayer(c)

	var req struct {
		MatchID string `json:"matchId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	m, err := h.state.PvP.SurrenderMatch(c.Request.Context(), req.MatchID, player.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
