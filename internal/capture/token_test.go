package capture

import (
	"testing"
	"time"

	"github.com/titanbreach/breach-server/internal/ws"
)

// The hub must remain usable as the broker's announcement surface.
var _ Broadcaster = (*ws.Hub)(nil)

const testSecret = "unit-test-secret"

func TestTokenVerify(t *testing.T) {
	now := time.Unix(1_770_000_000, 0)
	tok := NewToken("WaLLetAddr111", 42, 3105, 5*time.Minute, testSecret, now)

	if err := tok.Verify(testSecret, now); err != nil {
		t.Fatalf("fresh token should verify: %v", err)
	}
	if err := tok.Verify(testSecret, now.Add(4*time.Minute)); err != nil {
		t.Errorf("token inside TTL should verify: %v", err)
	}
	if err := tok.Verify(testSecret, now.Add(6*time.Minute)); err == nil {
		t.Error("expired token must fail")
	}
	if err := tok.Verify("other-secret", now); err == nil {
		t.Error("wrong secret must fail")
	}
}

func TestTokenDeterministic(t *testing.T) {
	now := time.Unix(1_770_000_000, 0)
	a := NewToken("wallet", 7, 2203, time.Minute, testSecret, now)
	b := NewToken("wallet", 7, 2203, time.Minute, testSecret, now)
	if a.Signature != b.Signature {
		t.Error("identical inputs must produce identical signatures")
	}
	c := NewToken("wallet", 8, 2203, time.Minute, testSecret, now)
	if a.Signature == c.Signature {
		t.Error("different titan must change the signature")
	}
}

func TestTokenTamperDetection(t *testing.T) {
	now := time.Unix(1_770_000_000, 0)
	tok := NewToken("wallet", 42, 3105, 5*time.Minute, testSecret, now)

	tests := []struct {
		name   string
		mutate func(*Token)
	}{
		{"wallet swap", func(tk *Token) { tk.Wallet = "attacker" }},
		{"titan swap", func(tk *Token) { tk.TitanID = 99 }},
		{"species swap", func(tk *Token) { tk.SpeciesID = 1101 }},
		{"expiry extension", func(tk *Token) { tk.ExpiresAt = tk.ExpiresAt.Add(time.Hour) }},
		{"signature truncation", func(tk *Token) { tk.Signature = tk.Signature[:10] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copied := *tok
			tt.mutate(&copied)
			if err := copied.Verify(testSecret, now); err == nil {
				t.Error("tampered token must not verify")
			}
		})
	}
}

func TestFromPartsRoundTrip(t *testing.T) {
	now := time.Unix(1_770_000_000, 0)
	issued := NewToken("wallet", 42, 3105, 5*time.Minute, testSecret, now)

	rebuilt := FromParts("wallet", issued.TitanID, issued.SpeciesID, issued.ExpiresAt.Unix(), issued.Signature)
	if err := rebuilt.Verify(testSecret, now); err != nil {
		t.Fatalf("rebuilt token should verify: %v", err)
	}

	// The wallet is taken from the session; a different session cannot
	// replay someone else's token.
	stolen := FromParts("other-wallet", issued.TitanID, issued.SpeciesID, issued.ExpiresAt.Unix(), issued.Signature)
	if err := stolen.Verify(testSecret, now); err == nil {
		t.Error("token replayed under a different wallet must fail")
	}
}

func TestRewardTables(t *testing.T) {
	wantBreach := []int64{100_000_000, 300_000_000, 1_000_000_000, 5_000_000_000, 20_000_000_000}
	wantXP := []int64{50, 100, 200, 400, 800}
	for class := 1; class <= 5; class++ {
		if got := BreachReward(class); got != wantBreach[class-1] {
			t.Errorf("class %d breach reward = %d, want %d", class, got, wantBreach[class-1])
		}
		if got := XPReward(class); got != wantXP[class-1] {
			t.Errorf("class %d xp reward = %d, want %d", class, got, wantXP[class-1])
		}
	}
}
