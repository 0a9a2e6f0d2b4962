package capture

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// Token is the short-lived authorization artifact issued by stage A. It is
// never persisted; validity is re-derived from its deterministic signature.
type Token struct {
	Wallet    string    `json:"wallet"`
	TitanID   int64     `json:"titanId"`
	SpeciesID int       `json:"speciesId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Signature string    `json:"signature"`
}

// tokenDigest computes the opaque signature. Expiry is encoded as unix
// seconds so the digest survives timezone and formatting differences.
func tokenDigest(wallet string, titanID int64, speciesID int, expiresAt time.Time, secret string) string {
	payload := fmt.Sprintf("capture:%s:%d:%d:%d%s", wallet, titanID, speciesID, expiresAt.Unix(), secret)
	sum := sha256.Sum256([]byte(payload))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// NewToken issues a capture token expiring after ttl.
func NewToken(wallet string, titanID int64, speciesID int, ttl time.Duration, secret string, now time.Time) *Token {
	expiresAt := now.Add(ttl).Truncate(time.Second)
	return &Token{
		Wallet:    wallet,
		TitanID:   titanID,
		SpeciesID: speciesID,
		ExpiresAt: expiresAt,
		Signature: tokenDigest(wallet, titanID, speciesID, expiresAt, secret),
	}
}

// FromParts rebuilds a token from wire fields. The wallet comes from the
// authenticated session, never from the client payload.
func FromParts(wallet string, titanID int64, speciesID int, expiresAtUnix int64, signature string) *Token {
	return &Token{
		Wallet:    wallet,
		TitanID:   titanID,
		SpeciesID: speciesID,
		ExpiresAt: time.Unix(expiresAtUnix, 0),
		Signature: signature,
	}
}

// Verify reconstructs the signature and checks expiry. Comparison is
// constant-time; the digest embeds a server secret.
func (t *Token) Verify(secret string, now time.Time) error {
	if now.After(t.ExpiresAt) {
		return fmt.Errorf("capture token expired at %s", t.ExpiresAt.Format(time.RFC3339))
	}
	want := tokenDigest(t.Wallet, t.TitanID, t.SpeciesID, t.ExpiresAt, secret)
	if !hmac.Equal([]byte(want), []byte(t.Signature)) {
		return fmt.Errorf("capture token signature mismatch")
	}
	return nil
}
