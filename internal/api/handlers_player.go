package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/pkg/models"
)

// handlePlayerMe returns the caller's profile with level progression.
// GET /api/v1/player/me
func (h *Handler) handlePlayerMe(c *gin.Context) {
	player := currentPlayer(c)
	c.JSON(http.StatusOK, gin.H{
		"player":         player,
		"nextLevelAt":    models.ExperienceForLevel(player.Level + 1),
		"currentLevelAt": models.ExperienceForLevel(player.Level),
	})
}

// handlePlayerTitans lists the caller's captured Titans with derived stats.
// GET /api/v1/player/titans
func (h *Handler) handlePlayerTitans(c *gin.Context) {
	player := currentPlayer(c)

	titans, err := h.state.Store.ListPlayerTitans(c.Request.Context(), player.ID)
	if err != nil {
		respondError(c, apperr.ErrDatabase.WithCause(err))
		return
	}

	type ownedTitan struct {
		*models.PlayerTitan
		Stats models.TitanStats `json:"stats"`
	}
	out := make([]ownedTitan, 0, len(titans))
	for _, t := range titans {
		out = append(out, ownedTitan{
			PlayerTitan: t,
			Stats:       models.DeriveStats(t.Genes, t.ThreatClass),
		})
	}
	c.JSON(http.StatusOK, gin.H{"titans": out})
}
