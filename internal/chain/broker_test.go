package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/titanbreach/breach-server/pkg/models"
)

// stubRPC satisfies RPCClient without a node. Broadcast payloads are kept
// for assertions.
type stubRPC struct {
	blockhash [32]byte
	sent      [][]byte
	exists    bool
	sendErr   error
}

func (s *stubRPC) GetLatestBlockhash(ctx context.Context) ([32]byte, error) {
	return s.blockhash, nil
}

func (s *stubRPC) SendTransaction(ctx context.Context, serialized []byte) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, serialized)
	return fmt.Sprintf("sig-%s", hex.EncodeToString(serialized[:4])), nil
}

func (s *stubRPC) AwaitConfirmation(ctx context.Context, signature string) (*TxStatus, error) {
	return &TxStatus{Slot: 100, Confirmed: true}, nil
}

func (s *stubRPC) GetBalance(ctx context.Context, addr Address) (uint64, error) {
	return 5_000_000_000, nil
}

func (s *stubRPC) GetTokenBalance(ctx context.Context, tokenAccount Address) (uint64, error) {
	return 250_000_000, nil
}

func (s *stubRPC) AccountExists(ctx context.Context, addr Address) (bool, error) {
	return s.exists, nil
}

func (s *stubRPC) GetTxStatus(ctx context.Context, signature string) (*TxStatus, error) {
	return &TxStatus{Slot: 100, Confirmed: true}, nil
}

func testBroker(t *testing.T) (*Broker, *stubRPC, *Keypair) {
	t.Helper()
	rpc := &stubRPC{}
	copy(rpc.blockhash[:], bytes.Repeat([]byte{0xB1}, 32))
	authority := testKeypair(t, 9)
	titanProgram := testKeypair(t, 10).Public()
	gameProgram := testKeypair(t, 11).Public()
	mint := testKeypair(t, 12).Public()
	return NewBrokerWithKeypair(rpc, authority, titanProgram, gameProgram, mint), rpc, authority
}

func testSpawn() *models.TitanSpawn {
	return &models.TitanSpawn{
		ID:          42,
		Lat:         35.6762,
		Lng:         139.6503,
		Element:     models.ElementStorm,
		ThreatClass: 2,
		SpeciesID:   3105,
		Genes:       []byte{120, 80, 200, 40, 10, 99},
		ExpiresAt:   time.Now().Add(time.Hour),
		MaxCaptures: 5,
	}
}

func TestBuildMintTx(t *testing.T) {
	broker, _, authority := testBroker(t)
	player := testKeypair(t, 1)

	built, err := broker.BuildMintTx(context.Background(), player.Public().String(), testSpawn(), 35.676, 139.650, 7)
	if err != nil {
		t.Fatalf("build mint: %v", err)
	}
	if built.OnChainTitanID != 42 {
		t.Errorf("on-chain id = %d, want 42", built.OnChainTitanID)
	}
	for _, key := range []string{"config", "player", "titan"} {
		if built.Addresses[key] == "" {
			t.Errorf("missing %q address", key)
		}
	}

	raw, err := base64.StdEncoding.DecodeString(built.SerializedTx)
	if err != nil {
		t.Fatalf("serialized tx is not base64: %v", err)
	}
	tx, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("serialized tx does not parse: %v", err)
	}

	if tx.NumRequiredSigs != 2 {
		t.Errorf("required sigs = %d, want 2 (player + authority)", tx.NumRequiredSigs)
	}
	if tx.AccountKeys[0] != player.Public() {
		t.Error("player must be the fee payer in slot 0")
	}
	if tx.AccountKeys[1] != authority.Public() {
		t.Error("capture authority must occupy slot 1")
	}
	var zero [64]byte
	for i, sig := range tx.Signatures {
		if sig != zero {
			t.Errorf("built transaction slot %d must be unsigned", i)
		}
	}

	msg, err := base64.StdEncoding.DecodeString(built.MessageToSign)
	if err != nil {
		t.Fatalf("message blob is not base64: %v", err)
	}
	if !bytes.Equal(msg, tx.MessageBytes()) {
		t.Error("message blob must match the transaction's signable bytes")
	}
}

func TestSubmitSignedTx(t *testing.T) {
	broker, rpc, _ := testBroker(t)
	player := testKeypair(t, 1)

	built, err := broker.BuildMintTx(context.Background(), player.Public().String(), testSpawn(), 35.676, 139.650, 7)
	if err != nil {
		t.Fatalf("build mint: %v", err)
	}

	msg, _ := base64.StdEncoding.DecodeString(built.MessageToSign)
	playerSig := player.Sign(msg)
	sigB64 := base64.StdEncoding.EncodeToString(playerSig[:])

	signature, err := broker.SubmitSignedTx(context.Background(), built.SerializedTx, sigB64, player.Public().String())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if signature == "" {
		t.Error("empty chain signature")
	}
	if len(rpc.sent) != 1 {
		t.Fatalf("broadcast count = %d, want 1", len(rpc.sent))
	}

	// The broadcast transaction carries both verified signatures.
	sent, err := Deserialize(rpc.sent[0])
	if err != nil {
		t.Fatalf("broadcast payload does not parse: %v", err)
	}
	if !VerifySignature(player.Public(), sent.MessageBytes(), sent.Signatures[0][:]) {
		t.Error("player signature missing from broadcast transaction")
	}
	if !VerifySignature(broker.Authority(), sent.MessageBytes(), sent.Signatures[1][:]) {
		t.Error("authority co-signature missing from broadcast transaction")
	}
}

func TestSubmitSignedTxRejectsWrongSigner(t *testing.T) {
	broker, rpc, _ := testBroker(t)
	player := testKeypair(t, 1)
	attacker := testKeypair(t, 2)

	built, err := broker.BuildMintTx(context.Background(), player.Public().String(), testSpawn(), 35.676, 139.650, 7)
	if err != nil {
		t.Fatalf("build mint: %v", err)
	}
	msg, _ := base64.StdEncoding.DecodeString(built.MessageToSign)

	// Attacker signs the message but claims the player's wallet.
	badSig := attacker.Sign(msg)
	if _, err := broker.SubmitSignedTx(context.Background(), built.SerializedTx,
		base64.StdEncoding.EncodeToString(badSig[:]), player.Public().String()); err == nil {
		t.Error("foreign signature under the player's wallet must fail")
	}

	// Attacker signs under their own wallet, which holds no signer slot.
	if _, err := broker.SubmitSignedTx(context.Background(), built.SerializedTx,
		base64.StdEncoding.EncodeToString(badSig[:]), attacker.Public().String()); err == nil {
		t.Error("signer outside the transaction's slots must fail")
	}
	if len(rpc.sent) != 0 {
		t.Errorf("rejected submissions must not broadcast, sent %d", len(rpc.sent))
	}
}

func TestDistributeReward(t *testing.T) {
	broker, rpc, _ := testBroker(t)
	recipient := testKeypair(t, 3)

	sig, err := broker.DistributeReward(context.Background(), recipient.Public().String(), RewardBattleWin, 140)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if sig == "" || len(rpc.sent) != 1 {
		t.Fatalf("reward not broadcast")
	}

	sent, err := Deserialize(rpc.sent[0])
	if err != nil {
		t.Fatalf("parse broadcast: %v", err)
	}
	if sent.NumRequiredSigs != 1 {
		t.Errorf("reward path is server-signed only, got %d signers", sent.NumRequiredSigs)
	}
	data := sent.Instructions[0].Data
	if data[0] != GameIxDistributeReward || data[1] != RewardBattleWin {
		t.Errorf("payload header = % x", data[:2])
	}

	if _, err := broker.DistributeReward(context.Background(), recipient.Public().String(), 99, 1); err == nil {
		t.Error("unknown reward type must fail before any RPC")
	}
}

func TestTransferBreachCreatesMissingAccount(t *testing.T) {
	broker, rpc, _ := testBroker(t)
	recipient := testKeypair(t, 4)

	// Recipient has no token account yet: expect the create instruction.
	rpc.exists = false
	if _, err := broker.TransferBreach(context.Background(), recipient.Public().String(), 500); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	sent, _ := Deserialize(rpc.sent[0])
	if len(sent.Instructions) != 2 {
		t.Errorf("expected create + transfer, got %d instructions", len(sent.Instructions))
	}

	// Existing account: transfer only.
	rpc.exists = true
	if _, err := broker.TransferBreach(context.Background(), recipient.Public().String(), 500); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	sent, _ = Deserialize(rpc.sent[1])
	if len(sent.Instructions) != 1 {
		t.Errorf("expected transfer only, got %d instructions", len(sent.Instructions))
	}
}
