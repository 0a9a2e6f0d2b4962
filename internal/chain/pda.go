package chain

import (
	"crypto/sha256"
	"encoding/binary"
)

// pdaDomainTag separates program-derived addresses from any other use of
// the hash; it mirrors the derivation the deployed programs perform.
const pdaDomainTag = "ProgramDerivedAddress"

// DerivePDA computes the deterministic unowned account address for a seed
// list under a program. The server re-derives these locally so build calls
// never round-trip to the chain.
func DerivePDA(program Address, seeds ...[]byte) Address {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaDomainTag))
	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// Canonical PDAs of the Titan program.

func ConfigPDA(titanProgram Address) Address {
	return DerivePDA(titanProgram, []byte("config"))
}

func PlayerPDA(titanProgram Address, wallet Address) Address {
	return DerivePDA(titanProgram, []byte("player"), wallet[:])
}

func TitanPDA(titanProgram Address, titanID uint64) Address {
	return DerivePDA(titanProgram, []byte("titan"), le64(titanID))
}

// Canonical PDAs of the Game-Logic program.

func GameConfigPDA(gameProgram Address) Address {
	return DerivePDA(gameProgram, []byte("game_config"))
}

func CaptureRecordPDA(gameProgram Address, captureID uint64) Address {
	return DerivePDA(gameProgram, []byte("capture"), le64(captureID))
}

func BattleRecordPDA(gameProgram Address, battleID uint64) Address {
	return DerivePDA(gameProgram, []byte("battle"), le64(battleID))
}

// AssociatedTokenAddress derives a wallet's token account for a mint.
func AssociatedTokenAddress(tokenProgram, wallet, mint Address) Address {
	return DerivePDA(tokenProgram, wallet[:], mint[:])
}
