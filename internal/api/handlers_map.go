package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/internal/db"
	"github.com/titanbreach/breach-server/internal/geo"
	"github.com/titanbreach/breach-server/internal/location"
	"github.com/titanbreach/breach-server/pkg/models"
)

// maxMapRadiusM caps the titan query radius.
const maxMapRadiusM = 50_000.0

type titanSummary struct {
	ID           int64          `json:"id"`
	Lat          float64        `json:"lat"`
	Lng          float64        `json:"lng"`
	Geohash      string         `json:"geohash"`
	Element      models.Element `json:"element"`
	ThreatClass  int            `json:"threatClass"`
	SpeciesID    int            `json:"speciesId"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	CapturesLeft int            `json:"capturesLeft"`
	DistanceM    float64        `json:"distanceM"`
}

// handleMapTitans lists capturable Titans around a point.
// GET /api/v1/map/titans?lat&lng&radius
func (h *Handler) handleMapTitans(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		respondError(c, apperr.ErrInvalidLocation.Withf("lat and lng are required"))
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "1000"), 64)
	if err != nil || radius <= 0 {
		respondError(c, apperr.ErrValidation.Withf("invalid radius"))
		return
	}
	if radius > maxMapRadiusM {
		radius = maxMapRadiusM
	}

	spawns, err := h.state.Store.SpawnsNear(c.Request.Context(), lat, lng, radius, time.Now())
	if err != nil {
		respondError(c, apperr.ErrDatabase.WithCause(err))
		return
	}

	out := make([]titanSummary, 0, len(spawns))
	for _, s := range spawns {
		// The SQL cut is a bounding box; apply the exact circle here.
		dist := geo.Haversine(lat, lng, s.Lat, s.Lng)
		if dist > radius {
			continue
		}
		out = append(out, titanSummary{
			ID:           s.ID,
			Lat:          s.Lat,
			Lng:          s.Lng,
			Geohash:      s.Geohash,
			Element:      s.Element,
			ThreatClass:  s.ThreatClass,
			SpeciesID:    s.SpeciesID,
			ExpiresAt:    s.ExpiresAt,
			CapturesLeft: s.MaxCaptures - s.CaptureCount,
			DistanceM:    dist,
		})
	}
	c.JSON(http.StatusOK, gin.H{"titans": out})
}

// handleMapPOIs lists active POIs in a bounding box.
// GET /api/v1/map/pois?bounds=sw_lat,sw_lng,ne_lat,ne_lng
func (h *Handler) handleMapPOIs(c *gin.Context) {
	var bounds *db.Bounds
	if raw := c.Query("bounds"); raw != "" {
		parts := strings.Split(raw, ",")
		if len(parts) != 4 {
			respondError(c, apperr.ErrValidation.Withf("bounds must be sw_lat,sw_lng,ne_lat,ne_lng"))
			return
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				respondError(c, apperr.ErrValidation.Withf("bounds must be numeric"))
				return
			}
			vals[i] = v
		}
		bounds = &db.Bounds{SWLat: vals[0], SWLng: vals[1], NELat: vals[2], NELng: vals[3]}
	}

	pois, err := h.state.Store.ActivePOIs(c.Request.Context(), bounds)
	if err != nil {
		respondError(c, apperr.ErrDatabase.WithCause(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"pois": pois})
}

// handleLocationReport scores a movement report.
// POST /api/v1/map/location
func (h *Handler) handleLocationReport(c *gin.Context) {
	player := currentPlayer(c)

	var req location.Report
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		respondError(c, apperr.ErrInvalidLocation)
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	result, err := h.state.Verifier.Verify(c.Request.Context(), player.ID, req)
	if err != nil {
		respondError(c, apperr.ErrDatabase.WithCause(err))
		return
	}
	// The trail insert and offense count already happened; rejection is
	// surfaced as the policy error the flags dictate.
	if rejErr := result.RejectionError(); rejErr != nil {
		respondError(c, rejErr)
		return
	}
	c.JSON(http.StatusOK, result)
}
