package models

import "testing"

func TestRankFromElo(t *testing.T) {
	tests := []struct {
		elo      int
		wantTier string
	}{
		{0, "bronze"},
		{1000, "bronze"},
		{1099, "bronze"},
		{1100, "silver"},
		{1299, "silver"},
		{1300, "gold"},
		{1500, "platinum"},
		{1800, "diamond"},
		{2199, "diamond"},
		{2200, "apex"},
		{3000, "apex"},
	}
	for _, tt := range tests {
		tier, div := RankFromElo(tt.elo)
		if tier != tt.wantTier {
			t.Errorf("RankFromElo(%d) tier = %q, want %q", tt.elo, tier, tt.wantTier)
		}
		if div < 1 || div > 4 {
			t.Errorf("RankFromElo(%d) division = %d, out of range", tt.elo, div)
		}
	}
}

// Fresh stats rows start at 1000 ELO; the derivation at that rating is the
// value the enrollment defaults must carry.
func TestRankAtStartingRating(t *testing.T) {
	tier, div := RankFromElo(1000)
	if tier != "bronze" || div != 1 {
		t.Errorf("RankFromElo(1000) = %q/%d, want bronze/1", tier, div)
	}
}

func TestRankDivisionsDescendWithinTier(t *testing.T) {
	// Higher rating inside a tier means a lower (better) division number.
	_, low := RankFromElo(1100)
	_, high := RankFromElo(1290)
	if low < high {
		t.Errorf("division should improve with rating: 1100 -> %d, 1290 -> %d", low, high)
	}
	if _, div := RankFromElo(2200); div != 1 {
		t.Errorf("apex is always division 1, got %d", div)
	}
}

func TestBattleActionValid(t *testing.T) {
	for _, a := range []BattleAction{ActionAttack, ActionSpecial, ActionDefend, ActionItem} {
		if !a.Valid() {
			t.Errorf("%q should be valid", a)
		}
	}
	if BattleAction("flee").Valid() {
		t.Error("unknown action should be invalid")
	}
}
