// Package capture implements the four-stage capture protocol: authorize,
// build, submit, reconcile. Every stage re-authenticates; no stage trusts a
// prior client assertion.
package capture

import (
	"context"
	"log"
	"time"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/internal/cache"
	"github.com/titanbreach/breach-server/internal/chain"
	"github.com/titanbreach/breach-server/internal/config"
	"github.com/titanbreach/breach-server/internal/db"
	"github.com/titanbreach/breach-server/internal/geo"
	"github.com/titanbreach/breach-server/internal/ws"
	"github.com/titanbreach/breach-server/pkg/models"
)

// baseReward is 0.1 BREACH in base units (1 BREACH = 10^9).
const baseReward = int64(100_000_000)

// classRewardMultiplier indexes by threat class 1..5.
var classRewardMultiplier = [6]int64{0, 1, 3, 10, 50, 200}

// captureXP awarded per confirmed capture, scaled by class.
var classXPReward = [6]int64{0, 50, 100, 200, 400, 800}

// BreachReward returns the capture payout in base units for a threat class.
func BreachReward(threatClass int) int64 {
	if threatClass < 1 || threatClass > 5 {
		return 0
	}
	return baseReward * classRewardMultiplier[threatClass]
}

// XPReward returns the capture experience for a threat class.
func XPReward(threatClass int) int64 {
	if threatClass < 1 || threatClass > 5 {
		return 0
	}
	return classXPReward[threatClass]
}

// Broadcaster is the regional fan-out surface for capture events. The
// delivered-subscriber count is not consulted here.
type Broadcaster interface {
	BroadcastToNeighbors(geohash string, msg []byte) int
}

// Broker drives the capture protocol end to end.
type Broker struct {
	store  *db.Store
	cache  *cache.Client
	chain  *chain.Broker
	hub    Broadcaster
	game   config.GameConfig
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewBroker(store *db.Store, cacheClient *cache.Client, chainBroker *chain.Broker,
	hub Broadcaster, cfg *config.Config) *Broker {
	return &Broker{
		store:  store,
		cache:  cacheClient,
		chain:  chainBroker,
		hub:    hub,
		game:   cfg.Game,
		secret: cfg.Auth.JWTSecret,
		ttl:    cfg.Auth.CaptureTokenTTL,
		now:    time.Now,
	}
}

// Authorization is the stage-A response.
type Authorization struct {
	Authorized  bool               `json:"authorized"`
	Token       *Token             `json:"token"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	Titan       *models.TitanSpawn `json:"titan"`
	DistanceM   float64            `json:"distanceM"`
	MaxDistance float64            `json:"maxDistanceM"`
}

// Authorize is stage A: validate proximity, availability and cooldown, then
// issue a capture token. No lasting side effects.
func (b *Broker) Authorize(ctx context.Context, player *models.Player, titanID int64,
	playerLat, playerLng float64) (*Authorization, error) {

	now := b.now()
	spawn, err := b.store.GetSpawn(ctx, titanID)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if spawn == nil {
		return nil, apperr.ErrTitanNotFound
	}
	if !now.Before(spawn.ExpiresAt) {
		return nil, apperr.ErrTitanExpired
	}
	if spawn.CaptureCount >= spawn.MaxCaptures {
		return nil, apperr.ErrAlreadyCaptured
	}

	distance := geo.Haversine(playerLat, playerLng, spawn.Lat, spawn.Lng)
	if distance > b.game.CaptureRadiusMeters {
		return nil, apperr.ErrTooFar.Withf("titan is %.0f m away (max %.0f m)",
			distance, b.game.CaptureRadiusMeters)
	}

	if err := b.checkCooldown(ctx, player, now); err != nil {
		return nil, err
	}

	token := NewToken(player.WalletAddress, spawn.ID, spawn.SpeciesID, b.ttl, b.secret, now)
	return &Authorization{
		Authorized:  true,
		Token:       token,
		ExpiresAt:   token.ExpiresAt,
		Titan:       spawn,
		DistanceM:   distance,
		MaxDistance: b.game.CaptureRadiusMeters,
	}, nil
}

// checkCooldown consults the cache fast path first; the DB timestamp stays
// authoritative when the cache is down or cold.
func (b *Broker) checkCooldown(ctx context.Context, player *models.Player, now time.Time) error {
	if b.cache != nil {
		if hot, err := b.cache.OnCaptureCooldown(ctx, player.ID); err == nil && hot {
			return apperr.ErrCooldown
		}
	}
	if player.LastCaptureAt != nil && now.Sub(*player.LastCaptureAt) < b.game.CaptureCooldown {
		remaining := b.game.CaptureCooldown - now.Sub(*player.LastCaptureAt)
		return apperr.ErrCooldown.Withf("%.0f seconds remaining", remaining.Seconds())
	}
	return nil
}

// BuildTransaction is stage B: validate the token, then delegate the
// partially-signed mint construction to the chain broker.
func (b *Broker) BuildTransaction(ctx context.Context, token *Token,
	captureLat, captureLng float64) (*chain.BuiltTransaction, error) {

	if b.chain == nil {
		return nil, apperr.ErrServiceUnavailable.Withf("chain broker offline")
	}
	now := b.now()
	if err := token.Verify(b.secret, now); err != nil {
		return nil, apperr.ErrTokenExpired.WithCause(err)
	}
	spawn, err := b.store.GetSpawn(ctx, token.TitanID)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if spawn == nil {
		return nil, apperr.ErrTitanNotFound
	}
	if !spawn.Available(now) {
		return nil, apperr.ErrTitanExpired
	}

	built, err := b.chain.BuildMintTx(ctx, token.Wallet, spawn, captureLat, captureLng, uint64(now.UnixNano()))
	if err != nil {
		return nil, apperr.ErrServiceUnavailable.WithCause(err)
	}
	return built, nil
}

// CaptureResult is the stage C+D response.
type CaptureResult struct {
	TxSignature       string              `json:"txSignature"`
	Titan             *models.PlayerTitan `json:"titan"`
	BreachReward      int64               `json:"breachReward"`
	XPReward          int64               `json:"xpReward"`
	RemainingCaptures int                 `json:"remainingCaptures"`
}

// Submit is stages C and D: co-sign and broadcast the player-signed mint,
// then reconcile off-chain state once the chain confirms. A chain timeout
// leaves off-chain state untouched; resubmission is safe because the mint is
// idempotent by titan id on chain.
func (b *Broker) Submit(ctx context.Context, player *models.Player, token *Token,
	serializedTx, playerSignature string) (*CaptureResult, error) {

	if b.chain == nil {
		return nil, apperr.ErrServiceUnavailable.Withf("chain broker offline")
	}
	now := b.now()
	if err := token.Verify(b.secret, now); err != nil {
		return nil, apperr.ErrTokenExpired.WithCause(err)
	}
	if token.Wallet != player.WalletAddress {
		return nil, apperr.ErrForbidden.Withf("token issued to a different wallet")
	}

	spawn, err := b.store.GetSpawn(ctx, token.TitanID)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if spawn == nil {
		return nil, apperr.ErrTitanNotFound
	}

	// Stage C. The chain broker verifies the player signature over the
	// message bytes before anything is broadcast.
	sig, err := b.chain.SubmitSignedTx(ctx, serializedTx, playerSignature, player.WalletAddress)
	if err != nil {
		log.Printf("[Capture] Chain submit failed for titan %d player %d: %v", spawn.ID, player.ID, err)
		return nil, apperr.ErrServiceUnavailable.WithCause(err)
	}

	// Stage D. Single DB transaction; on failure the chain is ahead of us
	// and the next read reconciles.
	breach := BreachReward(spawn.ThreatClass)
	xp := XPReward(spawn.ThreatClass)
	mint := chain.TitanPDA(b.chain.TitanProgram(), uint64(spawn.ID)).String()
	titan, remaining, err := b.store.ConfirmCapture(ctx, spawn.ID, player.ID, mint, breach, xp, now)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		if err := b.cache.SetCaptureCooldown(ctx, player.ID, b.game.CaptureCooldown); err != nil {
			log.Printf("[Capture] Cooldown cache write failed for player %d: %v", player.ID, err)
		}
	}

	go b.distributeReward(player.WalletAddress, uint64(breach))

	b.hub.BroadcastToNeighbors(spawn.Geohash, ws.Marshal(ws.TypeTitanCaptured, ws.TitanCapturedPayload{
		TitanID:           spawn.ID,
		CapturedBy:        &player.ID,
		RemainingCaptures: remaining,
	}))

	log.Printf("[Capture] Player %d captured titan %d (class %d, %d remaining, tx %s)",
		player.ID, spawn.ID, spawn.ThreatClass, remaining, sig)
	return &CaptureResult{
		TxSignature:       sig,
		Titan:             titan,
		BreachReward:      breach,
		XPReward:          xp,
		RemainingCaptures: remaining,
	}, nil
}

// distributeReward pays out BREACH off the request path; the ledger entry on
// the player row is already settled, so a failed transfer only delays the
// on-chain balance.
func (b *Broker) distributeReward(wallet string, amount uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if _, err := b.chain.DistributeReward(ctx, wallet, chain.RewardCapture, amount); err != nil {
		log.Printf("[Capture] BREACH distribution to %s failed: %v", wallet, err)
	}
}
