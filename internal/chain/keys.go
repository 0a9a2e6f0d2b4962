// Package chain is the only component that speaks the wire protocol of the
// Titan and Game-Logic programs' chain. It builds partially-signed
// transactions, co-signs player submissions, broadcasts over JSON-RPC and
// re-derives program addresses locally.
package chain

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Address is a 32-byte ed25519 public key (or PDA), rendered base58.
type Address [32]byte

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, a[:])
	return out
}

// ParseAddress decodes a base58 address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := base58.Decode(s)
	if len(raw) != 32 {
		return a, fmt.Errorf("invalid address %q: decoded to %d bytes, want 32", s, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// Keypair is the server's signing identity (the capture authority).
type Keypair struct {
	pub  Address
	priv ed25519.PrivateKey
}

// LoadKeypair reads a JSON byte-array keypair file (64 bytes: seed||pub).
func LoadKeypair(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	var bytes []byte
	if err := json.Unmarshal(raw, &bytes); err != nil {
		return nil, fmt.Errorf("parse keypair: %w", err)
	}
	if len(bytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair must be %d bytes, got %d", ed25519.PrivateKeySize, len(bytes))
	}
	priv := ed25519.PrivateKey(bytes)
	var pub Address
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{pub: pub, priv: priv}, nil
}

// NewKeypairFromSeed builds a keypair from a 32-byte seed; used by tests.
func NewKeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	var pub Address
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{pub: pub, priv: priv}, nil
}

func (k *Keypair) Public() Address { return k.pub }

// Sign signs arbitrary message bytes.
func (k *Keypair) Sign(msg []byte) [64]byte {
	var sig [64]byte
	copy(sig[:], ed25519.Sign(k.priv, msg))
	return sig
}

// VerifySignature checks an ed25519 signature against a wallet address.
func VerifySignature(wallet Address, msg []byte, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(wallet[:]), msg, sig)
}
