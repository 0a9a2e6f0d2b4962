package pvp

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/titanbreach/breach-server/pkg/models"
)

func TestEloExpectation(t *testing.T) {
	// Equal ratings are a coin flip.
	if e := EloExpectation(1000, 1000); math.Abs(e-0.5) > 1e-9 {
		t.Errorf("equal ratings expectation = %v, want 0.5", e)
	}
	// 200-point favorite: E ~= 0.7597.
	if e := EloExpectation(1200, 1000); math.Abs(e-0.7597) > 0.001 {
		t.Errorf("favorite expectation = %v, want ~0.7597", e)
	}
}

func TestEloDelta(t *testing.T) {
	tests := []struct {
		winner, loser int
		want          int
	}{
		{1200, 1000, 8},  // favorite wins small
		{1000, 1200, 24}, // upset wins big
		{1000, 1000, 16}, // even match splits K
	}
	for _, tt := range tests {
		if got := EloDelta(tt.winner, tt.loser); got != tt.want {
			t.Errorf("EloDelta(%d, %d) = %d, want %d", tt.winner, tt.loser, got, tt.want)
		}
	}
}

// The ladder is zero-sum: the loser loses exactly what the winner gains.
func TestEloZeroSum(t *testing.T) {
	for _, pair := range [][2]int{{1200, 1000}, {1000, 1400}, {1000, 1000}, {2400, 900}} {
		delta := EloDelta(pair[0], pair[1])
		winnerGain := delta
		loserLoss := -delta
		if winnerGain+loserLoss != 0 {
			t.Errorf("ratings %v: deltas not zero-sum", pair)
		}
	}
}

func TestWinnerRewards(t *testing.T) {
	breach, xp := WinnerRewards(8)
	if breach != 140 || xp != 66 {
		t.Errorf("rewards for delta 8 = (%d, %d), want (140, 66)", breach, xp)
	}
}

func TestBandExpansion(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want int
	}{
		{0, 100},
		{9 * time.Second, 100},
		{10 * time.Second, 150},
		{80 * time.Second, 500},
		{-time.Second, 100},
	}
	for _, tt := range tests {
		if got := Band(tt.wait); got != tt.want {
			t.Errorf("Band(%v) = %d, want %d", tt.wait, got, tt.want)
		}
	}
}

func TestRollDamageRanges(t *testing.T) {
	s := NewServiceAt(nil, nil, rand.New(rand.NewSource(7)), time.Now)

	for i := 0; i < 1000; i++ {
		if d := s.RollDamage(models.ActionAttack); d < 15 || d >= 25 {
			t.Fatalf("attack damage %d out of [15,25)", d)
		}
		if d := s.RollDamage(models.ActionSpecial); d < 25 || d >= 40 {
			t.Fatalf("special damage %d out of [25,40)", d)
		}
	}
	if s.RollDamage(models.ActionDefend) != 0 || s.RollDamage(models.ActionItem) != 0 {
		t.Error("defend and item must deal no damage")
	}
}
