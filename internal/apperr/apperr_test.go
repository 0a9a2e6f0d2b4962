package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromTyped(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrCooldown)
	e := From(wrapped)
	if e.Code != "COOLDOWN" || e.Status != http.StatusForbidden {
		t.Errorf("From(wrapped) = %s/%d", e.Code, e.Status)
	}
}

func TestFromUnknown(t *testing.T) {
	e := From(errors.New("disk full"))
	if e.Code != "INTERNAL_ERROR" || e.Status != http.StatusInternalServerError {
		t.Errorf("unknown error mapped to %s/%d", e.Code, e.Status)
	}
	if !errors.Is(e, e) || e.Unwrap() == nil {
		t.Error("cause must survive wrapping")
	}
}

func TestWithfPreservesIdentity(t *testing.T) {
	custom := ErrTooFar.Withf("distance %dm", 120)
	if custom.Message != "distance 120m" {
		t.Errorf("message = %q", custom.Message)
	}
	if custom.Code != ErrTooFar.Code || custom.Status != ErrTooFar.Status {
		t.Error("Withf must not change code or status")
	}
	// The shared sentinel must remain untouched.
	if ErrTooFar.Message != "too far from target" {
		t.Errorf("sentinel mutated: %q", ErrTooFar.Message)
	}
	if !Is(custom, ErrTooFar) {
		t.Error("customized error should still match its sentinel by code")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("capture: %w", ErrTitanExpired.WithCause(errors.New("row gone")))
	if !Is(wrapped, ErrTitanExpired) {
		t.Error("wrapped typed error should match by code")
	}
	if Is(wrapped, ErrTitanNotFound) {
		t.Error("different code must not match")
	}
	if Is(errors.New("plain"), ErrTitanExpired) {
		t.Error("untyped error must not match")
	}
}
