package chain

import (
	"bytes"
	"testing"
)

func TestDerivePDADeterministic(t *testing.T) {
	var program Address
	copy(program[:], bytes.Repeat([]byte{0x11}, 32))

	a := DerivePDA(program, []byte("titan"), le64(42))
	b := DerivePDA(program, []byte("titan"), le64(42))
	if a != b {
		t.Error("same seeds must derive the same address")
	}
	if a == DerivePDA(program, []byte("titan"), le64(43)) {
		t.Error("different seeds must derive different addresses")
	}

	var other Address
	copy(other[:], bytes.Repeat([]byte{0x22}, 32))
	if a == DerivePDA(other, []byte("titan"), le64(42)) {
		t.Error("different programs must derive different addresses")
	}
}

// Seed concatenation must not be ambiguous across the named derivations.
func TestCanonicalPDAsDistinct(t *testing.T) {
	var program, wallet Address
	copy(program[:], bytes.Repeat([]byte{0x11}, 32))
	copy(wallet[:], bytes.Repeat([]byte{0x33}, 32))

	seen := map[Address]string{}
	for name, addr := range map[string]Address{
		"config":  ConfigPDA(program),
		"player":  PlayerPDA(program, wallet),
		"titan":   TitanPDA(program, 1),
		"game":    GameConfigPDA(program),
		"capture": CaptureRecordPDA(program, 1),
		"battle":  BattleRecordPDA(program, 1),
	} {
		if prev, dup := seen[addr]; dup {
			t.Errorf("%s and %s derive the same PDA", name, prev)
		}
		seen[addr] = name
	}
}

func TestAssociatedTokenAddress(t *testing.T) {
	var wallet, mint Address
	copy(wallet[:], bytes.Repeat([]byte{0x44}, 32))
	copy(mint[:], bytes.Repeat([]byte{0x55}, 32))

	ata := AssociatedTokenAddress(TokenProgramID, wallet, mint)
	if ata == AssociatedTokenAddress(TokenProgramID, mint, wallet) {
		t.Error("wallet and mint seeds must not commute")
	}
	if ata != AssociatedTokenAddress(TokenProgramID, wallet, mint) {
		t.Error("ATA derivation must be stable")
	}
}

func TestInstructionLayouts(t *testing.T) {
	tests := []struct {
		name          string
		data          []byte
		wantLen       int
		discriminator uint8
	}{
		{"mint", (&TitanMintData{}).Encode(), 95, TitanIxMint},
		{"level up", (&LevelUpData{}).Encode(), 9, TitanIxLevelUp},
		{"evolve", (&EvolveData{}).Encode(), 3, TitanIxEvolve},
		{"fuse", (&FuseData{}).Encode(), 17, TitanIxFuse},
		{"transfer", (&TransferData{}).Encode(), 9, TitanIxTransfer},
		{"record capture", (&RecordCaptureData{}).Encode(), 27, GameIxRecordCapture},
		{"record battle", (&RecordBattleData{}).Encode(), 34, GameIxRecordBattle},
		{"add experience", (&AddExperienceData{}).Encode(), 13, GameIxAddExperience},
		{"distribute reward", (&DistributeRewardData{}).Encode(), 10, GameIxDistributeReward},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.data) != tt.wantLen {
				t.Errorf("encoded length = %d, want %d", len(tt.data), tt.wantLen)
			}
			if tt.data[0] != tt.discriminator {
				t.Errorf("discriminator = %d, want %d", tt.data[0], tt.discriminator)
			}
		})
	}
}

func TestTitanMintDataEncoding(t *testing.T) {
	d := &TitanMintData{
		SpeciesID:   3105,
		ThreatClass: 2,
		ElementType: 3,
		CaptureLat:  35_676_200,
		CaptureLng:  139_650_300,
		Nonce:       0x0102030405060708,
	}
	raw := d.Encode()

	// Little-endian species id right after the discriminator.
	if raw[1] != byte(3105&0xFF) || raw[2] != byte(3105>>8) {
		t.Errorf("species bytes = %x %x", raw[1], raw[2])
	}
	if raw[3] != 2 || raw[4] != 3 {
		t.Errorf("class/element bytes = %x %x", raw[3], raw[4])
	}
	// Nonce sits at offset 23, after stats, genes and both coordinates.
	if raw[23] != 0x08 || raw[30] != 0x01 {
		t.Errorf("nonce not little-endian at expected offset: % x", raw[23:31])
	}
}

func TestRewardMultiplier(t *testing.T) {
	tests := []struct {
		rewardType uint8
		want       uint64
	}{
		{RewardCapture, 1},
		{RewardBattleWin, 2},
		{RewardDailyBonus, 5},
	}
	for _, tt := range tests {
		got, err := RewardMultiplier(tt.rewardType)
		if err != nil || got != tt.want {
			t.Errorf("RewardMultiplier(%d) = %d, %v, want %d", tt.rewardType, got, err, tt.want)
		}
	}
	if _, err := RewardMultiplier(9); err == nil {
		t.Error("unknown reward type must error")
	}
}
