package ws

import (
	"encoding/json"
	"time"

	"github.com/titanbreach/breach-server/pkg/models"
)

// Frame is the wire envelope for both directions:
// {"type": "...", "data": {...}}
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Server -> client frame types.
const (
	TypeTitanSpawn    = "titan_spawn"
	TypeTitanCaptured = "titan_captured"
	TypeTitanExpired  = "titan_expired"
	TypePong          = "pong"
	TypeError         = "error"
)

// Client -> server frame types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

type TitanSpawnPayload struct {
	TitanID     int64          `json:"titanId"`
	POIName     string         `json:"poiName,omitempty"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	Element     models.Element `json:"element"`
	ThreatClass int            `json:"threatClass"`
	SpeciesID   int            `json:"speciesId"`
	ExpiresAt   time.Time      `json:"expiresAt"`
}

type TitanCapturedPayload struct {
	TitanID           int64  `json:"titanId"`
	CapturedBy        *int64 `json:"capturedBy,omitempty"`
	RemainingCaptures int    `json:"remainingCaptures"`
}

type TitanExpiredPayload struct {
	TitanID int64 `json:"titanId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type subscribePayload struct {
	Geohash string `json:"geohash"`
}

// Marshal builds an outgoing frame; payload marshal failures collapse to an
// error frame rather than a dropped message.
func Marshal(frameType string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(ErrorPayload{Message: "encode failure"})
		frameType = TypeError
	}
	out, _ := json.Marshal(Frame{Type: frameType, Data: data})
	return out
}
