package location

import (
	"math"
	"testing"
	"time"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/pkg/models"
)

const (
	testMaxSpeed  = 42.0
	testAccuracy  = 100.0
	testTimestamp = 1_770_000_000
)

func hasFlag(v *Verification, name string) bool {
	for _, f := range v.Flags {
		if f.Name == name {
			return true
		}
	}
	return false
}

func TestEvaluateFirstFix(t *testing.T) {
	report := Report{
		Lat:       35.6762,
		Lng:       139.6503,
		AccuracyM: 10,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	v := Evaluate(report, nil, testMaxSpeed, testAccuracy)
	if v.Status != StatusValid {
		t.Errorf("first fix status = %q, want valid", v.Status)
	}
	if len(v.Flags) != 0 || v.DistanceM != 0 || v.SpeedMps != 0 {
		t.Errorf("first fix should carry no movement data: %+v", v)
	}
	if len(v.Geohash) == 0 {
		t.Error("geohash missing")
	}
}

// Tokyo to Osaka in sixty seconds is not travel.
func TestEvaluateTeleport(t *testing.T) {
	last := &models.LocationRecord{
		Lat:       35.6762,
		Lng:       139.6503,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	report := Report{
		Lat:       34.6937,
		Lng:       135.5023,
		AccuracyM: 10,
		Timestamp: time.Unix(testTimestamp+60, 0),
	}
	v := Evaluate(report, last, testMaxSpeed, testAccuracy)

	if v.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", v.Status)
	}
	if !hasFlag(v, FlagPossibleTeleport) {
		t.Errorf("missing teleport flag, got %v", v.flagNames())
	}
	if !hasFlag(v, FlagSpeedViolation) {
		t.Errorf("a teleport is also a speed violation, got %v", v.flagNames())
	}
	if math.Abs(v.DistanceM-397_000) > 5_000 {
		t.Errorf("distance = %v m, want ~397 km", v.DistanceM)
	}
}

func TestEvaluateSpeedViolation(t *testing.T) {
	// ~1000 m in 10 s: 100 m/s, far over the cap but under teleport distance.
	last := &models.LocationRecord{
		Lat:       35.0,
		Lng:       139.0,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	report := Report{
		Lat:       35.009,
		Lng:       139.0,
		AccuracyM: 10,
		Timestamp: time.Unix(testTimestamp+10, 0),
	}
	v := Evaluate(report, last, testMaxSpeed, testAccuracy)

	if v.Status != StatusSuspicious {
		t.Errorf("status = %q, want suspicious", v.Status)
	}
	if !hasFlag(v, FlagSpeedViolation) {
		t.Errorf("missing speed flag, got %v", v.flagNames())
	}
	if hasFlag(v, FlagPossibleTeleport) {
		t.Error("short hop must not raise teleport")
	}
	if v.SpeedMps <= testMaxSpeed {
		t.Errorf("derived speed %v should exceed the cap", v.SpeedMps)
	}
}

func TestEvaluateLowAccuracy(t *testing.T) {
	report := Report{
		Lat:       35.0,
		Lng:       139.0,
		AccuracyM: 250,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	v := Evaluate(report, nil, testMaxSpeed, testAccuracy)
	if v.Status != StatusSuspicious {
		t.Errorf("status = %q, want suspicious", v.Status)
	}
	if !hasFlag(v, FlagLowAccuracy) {
		t.Errorf("missing accuracy flag, got %v", v.flagNames())
	}
}

func TestEvaluateMockLocation(t *testing.T) {
	report := Report{
		Lat:          35.0,
		Lng:          139.0,
		AccuracyM:    5,
		Timestamp:    time.Unix(testTimestamp, 0),
		MockLocation: true,
	}
	v := Evaluate(report, nil, testMaxSpeed, testAccuracy)
	if v.Status != StatusRejected {
		t.Errorf("mock location must reject, got %q", v.Status)
	}
	if !hasFlag(v, FlagMockLocation) {
		t.Errorf("missing mock flag, got %v", v.flagNames())
	}
}

// Rejections surface as typed policy errors: speed-driven rejections carry
// the speed code, mock-location rejections the generic 403.
func TestRejectionErrorMapping(t *testing.T) {
	last := &models.LocationRecord{
		Lat:       35.6762,
		Lng:       139.6503,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	teleport := Evaluate(Report{
		Lat:       34.6937,
		Lng:       135.5023,
		AccuracyM: 10,
		Timestamp: time.Unix(testTimestamp+60, 0),
	}, last, testMaxSpeed, testAccuracy)
	if err := teleport.RejectionError(); !apperr.Is(err, apperr.ErrSpeedViolation) {
		t.Errorf("teleport rejection error = %v, want speed violation", err)
	}

	mock := Evaluate(Report{
		Lat:          35.0,
		Lng:          139.0,
		AccuracyM:    5,
		Timestamp:    time.Unix(testTimestamp, 0),
		MockLocation: true,
	}, nil, testMaxSpeed, testAccuracy)
	if err := mock.RejectionError(); !apperr.Is(err, apperr.ErrForbidden) {
		t.Errorf("mock rejection error = %v, want forbidden", err)
	}

	suspicious := Evaluate(Report{
		Lat:       35.0,
		Lng:       139.0,
		AccuracyM: 250,
		Timestamp: time.Unix(testTimestamp, 0),
	}, nil, testMaxSpeed, testAccuracy)
	if err := suspicious.RejectionError(); err != nil {
		t.Errorf("suspicious report must not map to an error, got %v", err)
	}
}

func TestEvaluateStaleTimestampSkipsMovement(t *testing.T) {
	// A report not newer than the last fix carries no usable movement.
	last := &models.LocationRecord{
		Lat:       35.0,
		Lng:       139.0,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	report := Report{
		Lat:       36.0,
		Lng:       140.0,
		AccuracyM: 5,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	v := Evaluate(report, last, testMaxSpeed, testAccuracy)
	if v.Status != StatusValid {
		t.Errorf("status = %q, want valid", v.Status)
	}
	if v.DistanceM != 0 || v.SpeedMps != 0 {
		t.Errorf("stale report should derive no movement: %+v", v)
	}
}

func TestEvaluateNormalWalk(t *testing.T) {
	// ~13 m in 10 s, well within human movement.
	last := &models.LocationRecord{
		Lat:       35.0,
		Lng:       139.0,
		Timestamp: time.Unix(testTimestamp, 0),
	}
	report := Report{
		Lat:       35.00012,
		Lng:       139.0,
		AccuracyM: 8,
		Timestamp: time.Unix(testTimestamp+10, 0),
	}
	v := Evaluate(report, last, testMaxSpeed, testAccuracy)
	if v.Status != StatusValid || len(v.Flags) != 0 {
		t.Errorf("normal walk should be clean: %+v", v)
	}
	if v.SpeedMps <= 0 || v.SpeedMps > 3 {
		t.Errorf("walking speed = %v m/s", v.SpeedMps)
	}
}
