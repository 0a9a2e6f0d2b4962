package chain

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/titanbreach/breach-server/internal/config"
	"github.com/titanbreach/breach-server/pkg/models"
)

// TokenProgramID is the well-known fungible token program.
var TokenProgramID = DerivePDA(Address{}, []byte("token_program_v1"))

// RPCClient is the node round-trip surface; stubbed in tests.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context) ([32]byte, error)
	SendTransaction(ctx context.Context, serialized []byte) (string, error)
	AwaitConfirmation(ctx context.Context, signature string) (*TxStatus, error)
	GetBalance(ctx context.Context, addr Address) (uint64, error)
	GetTokenBalance(ctx context.Context, tokenAccount Address) (uint64, error)
	AccountExists(ctx context.Context, addr Address) (bool, error)
	GetTxStatus(ctx context.Context, signature string) (*TxStatus, error)
}

// Broker builds, co-signs and submits program transactions. It never
// retries on its own; callers own retry policy because the deployed
// programs are idempotent by record id.
type Broker struct {
	rpc          RPCClient
	authority    *Keypair
	titanProgram Address
	gameProgram  Address
	breachMint   Address
}

// NewBroker wires the broker from configuration. The backend keypair is the
// capture authority co-signer.
func NewBroker(rpc RPCClient, cfg config.ChainConfig) (*Broker, error) {
	authority, err := LoadKeypair(cfg.BackendKeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load backend keypair: %w", err)
	}
	titanProgram, err := ParseAddress(cfg.TitanProgramID)
	if err != nil {
		return nil, fmt.Errorf("titan program id: %w", err)
	}
	gameProgram, err := ParseAddress(cfg.GameProgramID)
	if err != nil {
		return nil, fmt.Errorf("game program id: %w", err)
	}
	breachMint, err := ParseAddress(cfg.BreachTokenMint)
	if err != nil {
		return nil, fmt.Errorf("breach token mint: %w", err)
	}
	return &Broker{
		rpc:          rpc,
		authority:    authority,
		titanProgram: titanProgram,
		gameProgram:  gameProgram,
		breachMint:   breachMint,
	}, nil
}

// NewBrokerWithKeypair is the test constructor.
func NewBrokerWithKeypair(rpc RPCClient, authority *Keypair, titanProgram, gameProgram, breachMint Address) *Broker {
	return &Broker{
		rpc:          rpc,
		authority:    authority,
		titanProgram: titanProgram,
		gameProgram:  gameProgram,
		breachMint:   breachMint,
	}
}

func (b *Broker) Authority() Address    { return b.authority.Public() }
func (b *Broker) TitanProgram() Address { return b.titanProgram }
func (b *Broker) GameProgram() Address  { return b.gameProgram }

// BuiltTransaction is the dual artifact returned by every build operation:
// the full serialized transaction with zeroed signature slots, plus the
// bare message bytes the client wallet signs. Returning both keeps the
// client decoupled from the server's transaction encoding.
type BuiltTransaction struct {
	SerializedTx    string            `json:"serializedTransaction"`
	MessageToSign   string            `json:"messageToSign"`
	RecentBlockhash string            `json:"recentBlockhash"`
	Addresses       map[string]string `json:"addresses"`
	OnChainTitanID  uint64            `json:"onChainTitanId,omitempty"`
}

// buildDual assembles a two-signer transaction: player fee-payer in slot 0,
// server capture authority in slot 1, both slots zero-filled.
func (b *Broker) buildDual(ctx context.Context, player Address, program Address,
	extraAccounts []Address, data []byte) (*Transaction, error) {

	blockhash, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}

	keys := append([]Address{player, b.authority.Public()}, extraAccounts...)
	keys = append(keys, program)
	programIdx := uint8(len(keys) - 1)

	accountIdxs := make([]uint8, len(keys)-1)
	for i := range accountIdxs {
		accountIdxs[i] = uint8(i)
	}

	return NewTransaction(2, keys, blockhash, []Instruction{{
		ProgramIndex:   programIdx,
		AccountIndexes: accountIdxs,
		Data:           data,
	}}), nil
}

// buildSingle assembles a player-only transaction.
func (b *Broker) buildSingle(ctx context.Context, player Address, program Address,
	extraAccounts []Address, data []byte) (*Transaction, error) {

	blockhash, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}

	keys := append([]Address{player}, extraAccounts...)
	keys = append(keys, program)
	programIdx := uint8(len(keys) - 1)
	accountIdxs := make([]uint8, len(keys)-1)
	for i := range accountIdxs {
		accountIdxs[i] = uint8(i)
	}

	return NewTransaction(1, keys, blockhash, []Instruction{{
		ProgramIndex:   programIdx,
		AccountIndexes: accountIdxs,
		Data:           data,
	}}), nil
}

func (b *Broker) result(tx *Transaction, addrs map[string]string, titanID uint64) *BuiltTransaction {
	return &BuiltTransaction{
		SerializedTx:    tx.SerializeBase64(),
		MessageToSign:   tx.MessageBase64(),
		RecentBlockhash: Address(tx.RecentBlockhash).String(),
		Addresses:       addrs,
		OnChainTitanID:  titanID,
	}
}

// mintAuthSignature is the capture authority's attestation embedded in the
// mint payload; the program verifies it against the configured authority.
func (b *Broker) mintAuthSignature(wallet Address, titanID uint64, speciesID uint16, nonce uint64) [64]byte {
	h := sha256.New()
	h.Write([]byte("titan_mint:"))
	h.Write(wallet[:])
	h.Write(le64(titanID))
	h.Write(le64(uint64(speciesID)))
	h.Write(le64(nonce))
	return b.authority.Sign(h.Sum(nil))
}

// BuildMintTx constructs the co-signed mint for a captured spawn. All
// derived attributes come off the spawn row; stats derive from genes.
func (b *Broker) BuildMintTx(ctx context.Context, playerWallet string, spawn *models.TitanSpawn,
	captureLat, captureLng float64, nonce uint64) (*BuiltTransaction, error) {

	player, err := ParseAddress(playerWallet)
	if err != nil {
		return nil, fmt.Errorf("player wallet: %w", err)
	}

	titanID := uint64(spawn.ID)
	stats := models.DeriveStats(spawn.Genes, spawn.ThreatClass)

	data := TitanMintData{
		SpeciesID:   uint16(spawn.SpeciesID),
		ThreatClass: uint8(spawn.ThreatClass),
		ElementType: uint8(spawn.Element),
		Power:       stats.Power,
		Fortitude:   stats.Fortitude,
		Velocity:    stats.Velocity,
		Resonance:   stats.Resonance,
		CaptureLat:  int32(captureLat * 1e6),
		CaptureLng:  int32(captureLng * 1e6),
		Nonce:       nonce,
		Signature:   b.mintAuthSignature(player, titanID, uint16(spawn.SpeciesID), nonce),
	}
	copy(data.Genes[:], spawn.Genes)

	configPDA := ConfigPDA(b.titanProgram)
	playerPDA := PlayerPDA(b.titanProgram, player)
	titanPDA := TitanPDA(b.titanProgram, titanID)

	tx, err := b.buildDual(ctx, player, b.titanProgram,
		[]Address{configPDA, playerPDA, titanPDA}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{
		"config": configPDA.String(),
		"player": playerPDA.String(),
		"titan":  titanPDA.String(),
	}, titanID), nil
}

func (b *Broker) BuildLevelUpTx(ctx context.Context, playerWallet string, titanID uint64) (*BuiltTransaction, error) {
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return nil, fmt.Errorf("player wallet: %w", err)
	}
	data := LevelUpData{TitanID: titanID}
	titanPDA := TitanPDA(b.titanProgram, titanID)
	tx, err := b.buildSingle(ctx, player, b.titanProgram, []Address{titanPDA}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{"titan": titanPDA.String()}, titanID), nil
}

func (b *Broker) BuildEvolveTx(ctx context.Context, playerWallet string, titanID uint64, newSpeciesID uint16) (*BuiltTransaction, error) {
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return nil, fmt.Errorf("player wallet: %w", err)
	}
	data := EvolveData{NewSpeciesID: newSpeciesID}
	titanPDA := TitanPDA(b.titanProgram, titanID)
	tx, err := b.buildDual(ctx, player, b.titanProgram, []Address{titanPDA}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{"titan": titanPDA.String()}, titanID), nil
}

func (b *Broker) BuildFuseTx(ctx context.Context, playerWallet string, titanA, titanB uint64) (*BuiltTransaction, error) {
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return nil, fmt.Errorf("player wallet: %w", err)
	}
	data := FuseData{TitanAID: titanA, TitanBID: titanB}
	pdaA := TitanPDA(b.titanProgram, titanA)
	pdaB := TitanPDA(b.titanProgram, titanB)
	tx, err := b.buildDual(ctx, player, b.titanProgram, []Address{pdaA, pdaB}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{
		"titanA": pdaA.String(),
		"titanB": pdaB.String(),
	}, 0), nil
}

func (b *Broker) BuildTransferTx(ctx context.Context, fromWallet, toWallet string, titanID uint64) (*BuiltTransaction, error) {
	from, err := ParseAddress(fromWallet)
	if err != nil {
		return nil, fmt.Errorf("from wallet: %w", err)
	}
	to, err := ParseAddress(toWallet)
	if err != nil {
		return nil, fmt.Errorf("to wallet: %w", err)
	}
	data := TransferData{TitanID: titanID}
	titanPDA := TitanPDA(b.titanProgram, titanID)
	tx, err := b.buildSingle(ctx, from, b.titanProgram, []Address{to, titanPDA}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{"titan": titanPDA.String()}, titanID), nil
}

func (b *Broker) BuildRecordCaptureTx(ctx context.Context, playerWallet string, captureID uint64, data RecordCaptureData) (*BuiltTransaction, error) {
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return nil, fmt.Errorf("player wallet: %w", err)
	}
	recordPDA := CaptureRecordPDA(b.gameProgram, captureID)
	gameConfig := GameConfigPDA(b.gameProgram)
	tx, err := b.buildDual(ctx, player, b.gameProgram, []Address{gameConfig, recordPDA}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{
		"gameConfig":    gameConfig.String(),
		"captureRecord": recordPDA.String(),
	}, data.TitanID), nil
}

func (b *Broker) BuildRecordBattleTx(ctx context.Context, playerWallet string, battleID uint64, data RecordBattleData) (*BuiltTransaction, error) {
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return nil, fmt.Errorf("player wallet: %w", err)
	}
	recordPDA := BattleRecordPDA(b.gameProgram, battleID)
	gameConfig := GameConfigPDA(b.gameProgram)
	tx, err := b.buildDual(ctx, player, b.gameProgram, []Address{gameConfig, recordPDA}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{
		"gameConfig":   gameConfig.String(),
		"battleRecord": recordPDA.String(),
	}, 0), nil
}

func (b *Broker) BuildAddExperienceTx(ctx context.Context, playerWallet string, data AddExperienceData) (*BuiltTransaction, error) {
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return nil, fmt.Errorf("player wallet: %w", err)
	}
	gameConfig := GameConfigPDA(b.gameProgram)
	titanPDA := TitanPDA(b.titanProgram, data.TitanID)
	tx, err := b.buildDual(ctx, player, b.gameProgram, []Address{gameConfig, titanPDA}, data.Encode())
	if err != nil {
		return nil, err
	}
	return b.result(tx, map[string]string{
		"gameConfig": gameConfig.String(),
		"titan":      titanPDA.String(),
	}, data.TitanID), nil
}

// SubmitSignedTx is the two-party co-signing path: verify the player's
// signature over the exact message bytes, fill both signature slots,
// broadcast and await confirmation.
func (b *Broker) SubmitSignedTx(ctx context.Context, serializedB64, playerSigB64, playerWallet string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(serializedB64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	tx, err := Deserialize(raw)
	if err != nil {
		return "", fmt.Errorf("parse transaction: %w", err)
	}
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return "", fmt.Errorf("player wallet: %w", err)
	}
	sigRaw, err := base64.StdEncoding.DecodeString(playerSigB64)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}

	msg := tx.MessageBytes()
	if !VerifySignature(player, msg, sigRaw) {
		return "", fmt.Errorf("player signature does not verify against %s", playerWallet)
	}

	playerIdx := tx.SignerIndex(player)
	serverIdx := tx.SignerIndex(b.authority.Public())
	if playerIdx < 0 {
		return "", fmt.Errorf("player %s is not a required signer of this transaction", playerWallet)
	}
	if serverIdx < 0 {
		return "", fmt.Errorf("transaction has no capture-authority signer slot")
	}

	var playerSig [64]byte
	copy(playerSig[:], sigRaw)
	if err := tx.SetSignature(playerIdx, playerSig); err != nil {
		return "", err
	}
	if err := tx.SetSignature(serverIdx, b.authority.Sign(msg)); err != nil {
		return "", err
	}

	signature, err := b.rpc.SendTransaction(ctx, tx.Serialize())
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	if _, err := b.rpc.AwaitConfirmation(ctx, signature); err != nil {
		return signature, err
	}
	return signature, nil
}

// SubmitUserSignedTx is the single-signer path: the player is the only
// required signer.
func (b *Broker) SubmitUserSignedTx(ctx context.Context, serializedB64, playerSigB64, playerWallet string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(serializedB64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	tx, err := Deserialize(raw)
	if err != nil {
		return "", fmt.Errorf("parse transaction: %w", err)
	}
	player, err := ParseAddress(playerWallet)
	if err != nil {
		return "", fmt.Errorf("player wallet: %w", err)
	}
	sigRaw, err := base64.StdEncoding.DecodeString(playerSigB64)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}

	msg := tx.MessageBytes()
	if !VerifySignature(player, msg, sigRaw) {
		return "", fmt.Errorf("player signature does not verify against %s", playerWallet)
	}
	playerIdx := tx.SignerIndex(player)
	if playerIdx < 0 {
		return "", fmt.Errorf("player %s is not a required signer of this transaction", playerWallet)
	}
	var playerSig [64]byte
	copy(playerSig[:], sigRaw)
	if err := tx.SetSignature(playerIdx, playerSig); err != nil {
		return "", err
	}

	signature, err := b.rpc.SendTransaction(ctx, tx.Serialize())
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	if _, err := b.rpc.AwaitConfirmation(ctx, signature); err != nil {
		return signature, err
	}
	return signature, nil
}

// SubmitDualSignedTx is the co-signing path for Game-Logic instructions;
// identical mechanics to SubmitSignedTx.
func (b *Broker) SubmitDualSignedTx(ctx context.Context, serializedB64, playerSigB64, playerWallet string) (string, error) {
	return b.SubmitSignedTx(ctx, serializedB64, playerSigB64, playerWallet)
}

// MintTitanFor is the legacy server-paid single-signer mint; only tests
// exercise it.
func (b *Broker) MintTitanFor(ctx context.Context, playerWallet string, spawn *models.TitanSpawn, nonce uint64) (string, error) {
	built, err := b.BuildMintTx(ctx, playerWallet, spawn, spawn.Lat, spawn.Lng, nonce)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(built.SerializedTx)
	if err != nil {
		return "", err
	}
	tx, err := Deserialize(raw)
	if err != nil {
		return "", err
	}
	// Server pays and signs everything; rebuild with itself as sole signer.
	keys := append([]Address{b.authority.Public()}, tx.AccountKeys[2:]...)
	accountIdxs := make([]uint8, len(keys)-1)
	for i := range accountIdxs {
		accountIdxs[i] = uint8(i)
	}
	solo := NewTransaction(1, keys, tx.RecentBlockhash, []Instruction{{
		ProgramIndex:   uint8(len(keys) - 1),
		AccountIndexes: accountIdxs,
		Data:           tx.Instructions[0].Data,
	}})
	_ = solo.SetSignature(0, b.authority.Sign(solo.MessageBytes()))

	signature, err := b.rpc.SendTransaction(ctx, solo.Serialize())
	if err != nil {
		return "", err
	}
	if _, err := b.rpc.AwaitConfirmation(ctx, signature); err != nil {
		return signature, err
	}
	return signature, nil
}

// TransferBreach sends BREACH from the server treasury, creating the
// recipient's associated token account when missing.
func (b *Broker) TransferBreach(ctx context.Context, toWallet string, amount uint64) (string, error) {
	to, err := ParseAddress(toWallet)
	if err != nil {
		return "", fmt.Errorf("recipient wallet: %w", err)
	}

	blockhash, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch blockhash: %w", err)
	}

	serverATA := AssociatedTokenAddress(TokenProgramID, b.authority.Public(), b.breachMint)
	recipientATA := AssociatedTokenAddress(TokenProgramID, to, b.breachMint)

	keys := []Address{b.authority.Public(), serverATA, recipientATA, to, b.breachMint, TokenProgramID}
	ixs := make([]Instruction, 0, 2)

	exists, err := b.rpc.AccountExists(ctx, recipientATA)
	if err != nil {
		return "", fmt.Errorf("check recipient token account: %w", err)
	}
	if !exists {
		// create_associated_account: payer, ata, owner, mint
		ixs = append(ixs, Instruction{
			ProgramIndex:   5,
			AccountIndexes: []uint8{0, 2, 3, 4},
			Data:           []byte{0},
		})
	}

	transferData := DistributeRewardData{RewardType: RewardCapture, Amount: amount}
	ixs = append(ixs, Instruction{
		ProgramIndex:   5,
		AccountIndexes: []uint8{0, 1, 2},
		Data:           transferData.Encode(),
	})

	tx := NewTransaction(1, keys, blockhash, ixs)
	_ = tx.SetSignature(0, b.authority.Sign(tx.MessageBytes()))

	signature, err := b.rpc.SendTransaction(ctx, tx.Serialize())
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	if _, err := b.rpc.AwaitConfirmation(ctx, signature); err != nil {
		return signature, err
	}
	return signature, nil
}

// DistributeReward is the server-signed reward path through the Game-Logic
// program; the program applies the per-type multiplier on top of amount.
func (b *Broker) DistributeReward(ctx context.Context, toWallet string, rewardType uint8, amount uint64) (string, error) {
	if _, err := RewardMultiplier(rewardType); err != nil {
		return "", err
	}
	to, err := ParseAddress(toWallet)
	if err != nil {
		return "", fmt.Errorf("recipient wallet: %w", err)
	}

	blockhash, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch blockhash: %w", err)
	}

	gameConfig := GameConfigPDA(b.gameProgram)
	recipientATA := AssociatedTokenAddress(TokenProgramID, to, b.breachMint)
	data := DistributeRewardData{RewardType: rewardType, Amount: amount}

	keys := []Address{b.authority.Public(), gameConfig, recipientATA, to, b.gameProgram}
	tx := NewTransaction(1, keys, blockhash, []Instruction{{
		ProgramIndex:   4,
		AccountIndexes: []uint8{0, 1, 2, 3},
		Data:           data.Encode(),
	}})
	_ = tx.SetSignature(0, b.authority.Sign(tx.MessageBytes()))

	signature, err := b.rpc.SendTransaction(ctx, tx.Serialize())
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	if _, err := b.rpc.AwaitConfirmation(ctx, signature); err != nil {
		return signature, err
	}
	log.Printf("[Chain] Distributed reward type %d amount %d to %s (%s)", rewardType, amount, toWallet, signature)
	return signature, nil
}

// GetBalance returns a wallet's native balance.
func (b *Broker) GetBalance(ctx context.Context, wallet string) (uint64, error) {
	addr, err := ParseAddress(wallet)
	if err != nil {
		return 0, err
	}
	return b.rpc.GetBalance(ctx, addr)
}

// GetBreachBalance returns a wallet's BREACH token balance in base units.
func (b *Broker) GetBreachBalance(ctx context.Context, wallet string) (uint64, error) {
	addr, err := ParseAddress(wallet)
	if err != nil {
		return 0, err
	}
	ata := AssociatedTokenAddress(TokenProgramID, addr, b.breachMint)
	return b.rpc.GetTokenBalance(ctx, ata)
}

// GetTxStatus passes through; a nil status means "not seen yet".
func (b *Broker) GetTxStatus(ctx context.Context, signature string) (*TxStatus, error) {
	return b.rpc.GetTxStatus(ctx, signature)
}
