// Package location validates player movement reports against physical
// plausibility before any gameplay action trusts the reported position.
package location

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/internal/config"
	"github.com/titanbreach/breach-server/internal/db"
	"github.com/titanbreach/breach-server/internal/geo"
	"github.com/titanbreach/breach-server/pkg/models"
)

// Status is the verifier's verdict for one report.
type Status string

const (
	StatusValid      Status = "valid"
	StatusSuspicious Status = "suspicious"
	StatusRejected   Status = "rejected"
)

// Flag names. The reserved flags are not scored here but stay representable
// so client-reported device signals survive into the trail unchanged.
const (
	FlagLowAccuracy      = "low_accuracy"
	FlagSpeedViolation   = "speed_violation"
	FlagPossibleTeleport = "possible_teleport"
	FlagSuspiciousIP     = "suspicious_ip"
	FlagSensorMismatch   = "sensor_mismatch"
	FlagMockLocation     = "mock_location"
)

// teleport thresholds: covering this distance this fast is not movement.
const (
	teleportDistanceM = 50_000.0
	teleportWindow    = 300 * time.Second
)

// Flag is one anomaly raised against a report.
type Flag struct {
	Name     string             `json:"name"`
	Critical bool               `json:"critical"`
	Detail   map[string]float64 `json:"detail,omitempty"`
}

// Report is a raw client location fix.
type Report struct {
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	AccuracyM    float64   `json:"accuracyM"`
	SpeedMps     *float64  `json:"speedMps,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	AltitudeM    *float64  `json:"altitudeM,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	MockLocation bool      `json:"mockLocation,omitempty"`
}

// Verification is the verdict plus the movement derived from the prior fix.
type Verification struct {
	Status    Status  `json:"status"`
	Flags     []Flag  `json:"flags"`
	DistanceM float64 `json:"distanceM"`
	SpeedMps  float64 `json:"speedMps"`
	Geohash   string  `json:"geohash"`
}

func (v *Verification) flagNames() []string {
	names := make([]string, len(v.Flags))
	for i, f := range v.Flags {
		names[i] = f.Name
	}
	return names
}

// RejectionError maps a rejected verdict to its wire error: speed-driven
// rejections carry the speed code, the rest fall back to a generic 403.
// Valid and suspicious reports map to no error.
func (v *Verification) RejectionError() error {
	if v.Status != StatusRejected {
		return nil
	}
	for _, f := range v.Flags {
		if f.Name == FlagSpeedViolation {
			return apperr.ErrSpeedViolation.Withf("derived speed %.1f m/s over %.0f m is not plausible movement", v.SpeedMps, v.DistanceM)
		}
	}
	return apperr.ErrForbidden.Withf("location report rejected (%v)", v.flagNames())
}

// Verifier scores location reports and persists the movement trail.
type Verifier struct {
	store             *db.Store
	maxSpeedMps       float64
	accuracyThreshold float64
}

func NewVerifier(store *db.Store, cfg config.GameConfig) *Verifier {
	return &Verifier{
		store:             store,
		maxSpeedMps:       cfg.MaxSpeedMps,
		accuracyThreshold: cfg.LocationAccuracyThreshold,
	}
}

// Evaluate scores a report against the prior fix without touching storage.
// last may be nil (first fix); no movement checks apply then.
func Evaluate(report Report, last *models.LocationRecord, maxSpeedMps, accuracyThreshold float64) *Verification {
	result := &Verification{
		Status:  StatusValid,
		Flags:   []Flag{},
		Geohash: geo.GeohashEncode(report.Lat, report.Lng, geo.DefaultGeohashPrecision),
	}

	if report.AccuracyM > accuracyThreshold {
		result.Flags = append(result.Flags, Flag{
			Name:   FlagLowAccuracy,
			Detail: map[string]float64{"accuracy": report.AccuracyM, "threshold": accuracyThreshold},
		})
	}
	if report.MockLocation {
		result.Flags = append(result.Flags, Flag{Name: FlagMockLocation, Critical: true})
	}

	if last != nil {
		dt := report.Timestamp.Sub(last.Timestamp)
		if dt > 0 {
			result.DistanceM = geo.Haversine(last.Lat, last.Lng, report.Lat, report.Lng)
			result.SpeedMps = result.DistanceM / dt.Seconds()

			if result.SpeedMps > maxSpeedMps {
				result.Flags = append(result.Flags, Flag{
					Name:   FlagSpeedViolation,
					Detail: map[string]float64{"speed": result.SpeedMps, "max": maxSpeedMps},
				})
			}
			if result.DistanceM > teleportDistanceM && dt < teleportWindow {
				result.Flags = append(result.Flags, Flag{
					Name:     FlagPossibleTeleport,
					Critical: true,
					Detail:   map[string]float64{"distance": result.DistanceM},
				})
			}
		}
	}

	for _, f := range result.Flags {
		if f.Critical {
			result.Status = StatusRejected
			break
		}
	}
	if result.Status != StatusRejected && len(result.Flags) > 0 {
		result.Status = StatusSuspicious
	}
	return result
}

// Verify scores one report against the player's last stored fix, appends it
// to the trail and advances the last-known fix. The trail insert happens
// even for rejected reports; rejection gates gameplay, not evidence.
func (v *Verifier) Verify(ctx context.Context, playerID int64, report Report) (*Verification, error) {
	last, err := v.store.LastLocation(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load last fix: %w", err)
	}
	result := Evaluate(report, last, v.maxSpeedMps, v.accuracyThreshold)

	record := &models.LocationRecord{
		PlayerID:     playerID,
		Lat:          report.Lat,
		Lng:          report.Lng,
		AccuracyM:    report.AccuracyM,
		SpeedMps:     report.SpeedMps,
		Heading:      report.Heading,
		AltitudeM:    report.AltitudeM,
		Timestamp:    report.Timestamp,
		IsSuspicious: result.Status != StatusValid,
		Flags:        result.flagNames(),
	}
	if err := v.store.InsertLocationRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("append trail: %w", err)
	}
	if err := v.store.UpdateLastFix(ctx, playerID, report.Lat, report.Lng, report.Timestamp); err != nil {
		return nil, fmt.Errorf("advance last fix: %w", err)
	}

	if result.Status == StatusRejected {
		if err := v.store.IncrementOffenses(ctx, playerID); err != nil {
			// Not fatal for the caller; the verdict already stands.
			log.Printf("[Location] Failed to record offense for player %d: %v", playerID, err)
		}
		log.Printf("[Location] Rejected report from player %d (flags %v)", playerID, result.flagNames())
	}
	return result, nil
}
