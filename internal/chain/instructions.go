package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Titan program instruction discriminators.
const (
	TitanIxInitialize uint8 = iota
	TitanIxMint
	TitanIxLevelUp
	TitanIxEvolve
	TitanIxFuse
	TitanIxTransfer
	TitanIxUpdateConfig
	TitanIxSetPaused
)

// Game-Logic program instruction discriminators.
const (
	GameIxInitialize uint8 = iota
	GameIxRecordCapture
	GameIxRecordBattle
	GameIxAddExperience
	GameIxDistributeReward
	GameIxUpdateConfig
	GameIxSetPaused
	GameIxForceUpdateAuthority
)

// Reward types for DistributeReward, with their on-chain multipliers.
const (
	RewardCapture    uint8 = 0 // x1
	RewardBattleWin  uint8 = 1 // x2
	RewardDailyBonus uint8 = 2 // x5
)

// RewardMultiplier returns the multiplier the program applies per type.
func RewardMultiplier(rewardType uint8) (uint64, error) {
	switch rewardType {
	case RewardCapture:
		return 1, nil
	case RewardBattleWin:
		return 2, nil
	case RewardDailyBonus:
		return 5, nil
	}
	return 0, fmt.Errorf("unknown reward type %d", rewardType)
}

// All instruction payloads are packed little-endian with no implicit
// padding; the deployed programs expect these exact byte layouts.

// TitanMintData is the 88-byte mint payload (discriminator 1, titan program).
type TitanMintData struct {
	SpeciesID   uint16
	ThreatClass uint8
	ElementType uint8
	Power       uint8
	Fortitude   uint8
	Velocity    uint8
	Resonance   uint8
	Genes       [6]uint8
	CaptureLat  int32
	CaptureLng  int32
	Nonce       uint64
	Signature   [64]uint8
}

func (d *TitanMintData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(TitanIxMint)
	binary.Write(buf, binary.LittleEndian, d.SpeciesID)
	buf.WriteByte(d.ThreatClass)
	buf.WriteByte(d.ElementType)
	buf.WriteByte(d.Power)
	buf.WriteByte(d.Fortitude)
	buf.WriteByte(d.Velocity)
	buf.WriteByte(d.Resonance)
	buf.Write(d.Genes[:])
	binary.Write(buf, binary.LittleEndian, d.CaptureLat)
	binary.Write(buf, binary.LittleEndian, d.CaptureLng)
	binary.Write(buf, binary.LittleEndian, d.Nonce)
	buf.Write(d.Signature[:])
	return buf.Bytes()
}

// RecordCaptureData (discriminator 1, game program).
type RecordCaptureData struct {
	TitanID            uint64
	LocationLat        int32
	LocationLng        int32
	ThreatClass        uint8
	ElementType        uint8
	SignatureTimestamp int64
}

func (d *RecordCaptureData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(GameIxRecordCapture)
	binary.Write(buf, binary.LittleEndian, d.TitanID)
	binary.Write(buf, binary.LittleEndian, d.LocationLat)
	binary.Write(buf, binary.LittleEndian, d.LocationLng)
	buf.WriteByte(d.ThreatClass)
	buf.WriteByte(d.ElementType)
	binary.Write(buf, binary.LittleEndian, d.SignatureTimestamp)
	return buf.Bytes()
}

// RecordBattleData (discriminator 2, game program).
type RecordBattleData struct {
	TitanAID    uint64
	TitanBID    uint64
	Winner      uint8
	ExpGainedA  uint32
	ExpGainedB  uint32
	LocationLat int32
	LocationLng int32
}

func (d *RecordBattleData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(GameIxRecordBattle)
	binary.Write(buf, binary.LittleEndian, d.TitanAID)
	binary.Write(buf, binary.LittleEndian, d.TitanBID)
	buf.WriteByte(d.Winner)
	binary.Write(buf, binary.LittleEndian, d.ExpGainedA)
	binary.Write(buf, binary.LittleEndian, d.ExpGainedB)
	binary.Write(buf, binary.LittleEndian, d.LocationLat)
	binary.Write(buf, binary.LittleEndian, d.LocationLng)
	return buf.Bytes()
}

// AddExperienceData (discriminator 3, game program).
type AddExperienceData struct {
	TitanID   uint64
	ExpAmount uint32
}

func (d *AddExperienceData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(GameIxAddExperience)
	binary.Write(buf, binary.LittleEndian, d.TitanID)
	binary.Write(buf, binary.LittleEndian, d.ExpAmount)
	return buf.Bytes()
}

// DistributeRewardData (discriminator 4, game program).
type DistributeRewardData struct {
	RewardType uint8
	Amount     uint64
}

func (d *DistributeRewardData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(GameIxDistributeReward)
	buf.WriteByte(d.RewardType)
	binary.Write(buf, binary.LittleEndian, d.Amount)
	return buf.Bytes()
}

// EvolveData (discriminator 3, titan program).
type EvolveData struct {
	NewSpeciesID uint16
}

func (d *EvolveData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(TitanIxEvolve)
	binary.Write(buf, binary.LittleEndian, d.NewSpeciesID)
	return buf.Bytes()
}

// LevelUpData (discriminator 2, titan program).
type LevelUpData struct {
	TitanID uint64
}

func (d *LevelUpData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(TitanIxLevelUp)
	binary.Write(buf, binary.LittleEndian, d.TitanID)
	return buf.Bytes()
}

// FuseData (discriminator 4, titan program).
type FuseData struct {
	TitanAID uint64
	TitanBID uint64
}

func (d *FuseData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(TitanIxFuse)
	binary.Write(buf, binary.LittleEndian, d.TitanAID)
	binary.Write(buf, binary.LittleEndian, d.TitanBID)
	return buf.Bytes()
}

// TransferData (discriminator 5, titan program).
type TransferData struct {
	TitanID uint64
}

func (d *TransferData) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(TitanIxTransfer)
	binary.Write(buf, binary.LittleEndian, d.TitanID)
	return buf.Bytes()
}
