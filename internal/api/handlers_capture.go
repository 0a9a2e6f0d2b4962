package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/titanbreach/breach-server/internal/capture"
)

type captureTokenPayload struct {
	TitanID   int64  `json:"titanId" binding:"required"`
	SpeciesID int    `json:"speciesId"`
	ExpiresAt int64  `json:"expiresAt" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// handleCaptureRequest is stage A of the capture protocol.
// POST /api/v1/capture/request {titanId, playerLocation{lat,lng}}
func (h *Handler) handleCaptureRequest(c *gin.Context) {
	player := currentPlayer(c)

	var req struct {
		TitanID        int64 `json:"titanId" binding:"required"`
		PlayerLocation struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"playerLocation" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	auth, err := h.state.Capture.Authorize(c.Request.Context(), player, req.TitanID,
		req.PlayerLocation.Lat, req.PlayerLocation.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": auth.Authorized,
		"token": gin.H{
			"titanId":   auth.Token.TitanID,
			"speciesId": auth.Token.SpeciesID,
			"expiresAt": auth.Token.ExpiresAt.Unix(),
			"signature": auth.Token.Signature,
		},
		"expiresAt":    auth.ExpiresAt,
		"titan":        auth.Titan,
		"distanceM":    auth.DistanceM,
		"maxDistanceM": auth.MaxDistance,
	})
}

// tokenFromPayload rebuilds the capture token bound to the caller's wallet;
// the signature check in the broker rejects any tampering.
func tokenFromPayload(wallet string, p captureTokenPayload) *capture.Token {
	return capture.FromParts(wallet, p.TitanID, p.SpeciesID, p.ExpiresAt, p.Signature)
}

// handleCaptureBuild is stage B: returns the partially-signed mint.
// POST /api/v1/capture/build-transaction {token, captureLat, captureLng}
func (h *Handler) handleCaptureBuild(c *gin.Context) {
	player := currentPlayer(c)

	var req struct {
		Token      captureTokenPayload `json:"token" binding:"required"`
		CaptureLat float64             `json:"captureLat"`
		CaptureLng float64             `json:"captureLng"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	built, err := h.state.Capture.BuildTransaction(c.Request.Context(),
		tokenFromPayload(player.WalletAddress, req.Token), req.CaptureLat, req.CaptureLng)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, built)
}

// handleCaptureSubmit is stages C and D: co-sign, broadcast, reconcile.
// POST /api/v1/capture/submit-transaction
func (h *Handler) handleCaptureSubmit(c *gin.Context) {
	player := currentPlayer(c)

	var req struct {
		Token                 captureTokenPayload `json:"token" binding:"required"`
		SerializedTransaction string              `json:"serializedTransaction" binding:"required"`
		PlayerSignature       string              `json:"playerSignature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	result, err := h.state.Capture.Submit(c.Request.Context(), player,
		tokenFromPayload(player.WalletAddress, req.Token),
		req.SerializedTransaction, req.PlayerSignature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
