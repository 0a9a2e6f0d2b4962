// Package api is the HTTP and WebSocket surface of the server. Handlers
// translate wire requests into service calls and typed errors into the
// canonical error body.
package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/titanbreach/breach-server/internal/state"
)

type Handler struct {
	state      *state.State
	challenges *challengeStore
	startedAt  time.Time
}

// SetupRouter builds the gin engine with CORS, rate limiting and all
// /api/v1 routes.
func SetupRouter(st *state.State) *gin.Engine {
	if st.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS is configurable via ALLOWED_ORIGINS (comma-separated); empty
	// allows any origin for development.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &Handler{state: st, challenges: newChallengeStore(), startedAt: time.Now()}

	authLimiter := NewRateLimiter(30, 10)
	captureLimiter := NewRateLimiter(60, 20)

	api := r.Group("/api/v1")
	{
		api.GET("/health", h.handleHealth)

		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/challenge", h.handleChallenge)
			auth.POST("/authenticate", h.handleAuthenticate)
		}

		authed := api.Group("", h.requireAuth())
		{
			authed.GET("/map/titans", h.handleMapTitans)
			authed.GET("/map/pois", h.handleMapPOIs)
			authed.POST("/map/location", h.handleLocationReport)

			captureGroup := authed.Group("/capture", captureLimiter.Middleware())
			{
				captureGroup.POST("/request", h.handleCaptureRequest)
				captureGroup.POST("/build-transaction", h.handleCaptureBuild)
				captureGroup.POST("/submit-transaction", h.handleCaptureSubmit)
			}

			authed.POST("/pvp/queue", h.handlePvPQueueJoin)
			authed.GET("/pvp/queue", h.handlePvPQueueStatus)
			authed.DELETE("/pvp/queue", h.handlePvPQueueLeave)
			authed.GET("/pvp/match/:id", h.handlePvPMatch)
			authed.GET("/pvp/match/:id/turns", h.handlePvPTurns)
			authed.POST("/pvp/action", h.handlePvPAction)
			authed.POST("/pvp/surrender", h.handlePvPSurrender)

			authed.GET("/player/me", h.handlePlayerMe)
			authed.GET("/player/titans", h.handlePlayerTitans)
		}
	}

	r.GET("/ws", h.handleWebSocket)
	return r
}

// handleHealth reports subsystem reachability for service discovery.
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "operational",
		"uptimeSeconds":  int(time.Since(h.startedAt).Seconds()),
		"cacheConnected": h.state.Cache != nil,
		"chainConnected": h.state.Chain != nil,
		"wsConnections":  h.state.Hub.TotalConnections(),
	})
}
