package chain

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
)

// Instruction references accounts by index into the transaction's account
// key vector.
type Instruction struct {
	ProgramIndex   uint8
	AccountIndexes []uint8
	Data           []byte
}

// Transaction is the canonical wire structure: a vector of 64-byte
// signature slots followed by the message. Signature slot i corresponds to
// account key i; the first NumRequiredSigs accounts must sign.
type Transaction struct {
	Signatures      [][64]byte
	NumRequiredSigs uint8
	AccountKeys     []Address
	RecentBlockhash [32]byte
	Instructions    []Instruction
}

// NewTransaction allocates zero-filled signature slots for the required
// signers. Account keys are ordered signers-first.
func NewTransaction(numRequiredSigs uint8, keys []Address, blockhash [32]byte, ixs []Instruction) *Transaction {
	return &Transaction{
		Signatures:      make([][64]byte, numRequiredSigs),
		NumRequiredSigs: numRequiredSigs,
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Instructions:    ixs,
	}
}

// MessageBytes serializes the signable portion: account keys, blockhash and
// instructions, without signatures. This is the exact blob clients sign.
func (tx *Transaction) MessageBytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(tx.NumRequiredSigs)
	buf.WriteByte(uint8(len(tx.AccountKeys)))
	for _, key := range tx.AccountKeys {
		buf.Write(key[:])
	}
	buf.Write(tx.RecentBlockhash[:])
	buf.WriteByte(uint8(len(tx.Instructions)))
	for _, ix := range tx.Instructions {
		buf.WriteByte(ix.ProgramIndex)
		buf.WriteByte(uint8(len(ix.AccountIndexes)))
		buf.Write(ix.AccountIndexes)
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(ix.Data)))
		buf.Write(lenBuf[:])
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

// Serialize produces the full length-prefixed wire encoding.
func (tx *Transaction) Serialize() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		buf.Write(sig[:])
	}
	buf.Write(tx.MessageBytes())
	return buf.Bytes()
}

// SerializeBase64 is the form returned to clients.
func (tx *Transaction) SerializeBase64() string {
	return base64.StdEncoding.EncodeToString(tx.Serialize())
}

// MessageBase64 is the signable blob returned alongside the transaction.
func (tx *Transaction) MessageBase64() string {
	return base64.StdEncoding.EncodeToString(tx.MessageBytes())
}

// Deserialize parses a wire-encoded transaction.
func Deserialize(raw []byte) (*Transaction, error) {
	r := bytes.NewReader(raw)

	sigCount, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("truncated transaction: %w", err)
	}
	sigs := make([][64]byte, sigCount)
	for i := range sigs {
		if _, err := io.ReadFull(r, sigs[i][:]); err != nil {
			return nil, fmt.Errorf("truncated signature %d: %w", i, err)
		}
	}

	numRequired, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("truncated message header: %w", err)
	}
	numKeys, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("truncated account count: %w", err)
	}
	keys := make([]Address, numKeys)
	for i := range keys {
		if _, err := io.ReadFull(r, keys[i][:]); err != nil {
			return nil, fmt.Errorf("truncated account key %d: %w", i, err)
		}
	}

	var blockhash [32]byte
	if _, err := io.ReadFull(r, blockhash[:]); err != nil {
		return nil, fmt.Errorf("truncated blockhash: %w", err)
	}

	ixCount, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("truncated instruction count: %w", err)
	}
	ixs := make([]Instruction, ixCount)
	for i := range ixs {
		programIdx, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("truncated instruction %d: %w", i, err)
		}
		numIdx, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("truncated instruction %d: %w", i, err)
		}
		idxs := make([]uint8, numIdx)
		if _, err := io.ReadFull(r, idxs); err != nil {
			return nil, fmt.Errorf("truncated instruction %d accounts: %w", i, err)
		}
		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("truncated instruction %d length: %w", i, err)
		}
		data := make([]byte, binary.LittleEndian.Uint16(lenBuf[:]))
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("truncated instruction %d data: %w", i, err)
		}
		ixs[i] = Instruction{ProgramIndex: programIdx, AccountIndexes: idxs, Data: data}
	}

	return &Transaction{
		Signatures:      sigs,
		NumRequiredSigs: numRequired,
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Instructions:    ixs,
	}, nil
}

// SignerIndex locates an account's signature slot; -1 if the account is not
// a required signer.
func (tx *Transaction) SignerIndex(addr Address) int {
	for i := 0; i < int(tx.NumRequiredSigs) && i < len(tx.AccountKeys); i++ {
		if tx.AccountKeys[i] == addr {
			return i
		}
	}
	return -1
}

// SetSignature writes a signature into slot i.
func (tx *Transaction) SetSignature(i int, sig [64]byte) error {
	if i < 0 || i >= len(tx.Signatures) {
		return fmt.Errorf("signature slot %d out of range (%d slots)", i, len(tx.Signatures))
	}
	tx.Signatures[i] = sig
	return nil
}
