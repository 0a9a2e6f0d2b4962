// Package pvp runs the ranked ladder: matchmaking with expanding ELO bands
// and the turn-based battle state machine.
package pvp

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/internal/chain"
	"github.com/titanbreach/breach-server/internal/db"
	"github.com/titanbreach/breach-server/pkg/models"
)

const (
	eloK          = 32
	readyDeadline = 30 * time.Second
	turnDeadline  = 30 * time.Second
	queueMaxWait  = 5 * time.Minute

	// Band expansion: 100 ELO, widening 50 every 10 seconds of waiting.
	bandBase     = 100
	bandStep     = 50
	bandInterval = 10 * time.Second
)

// EloExpectation is the winner's expected score against the loser.
func EloExpectation(winnerElo, loserElo int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(loserElo-winnerElo)/400.0))
}

// EloDelta returns the winner's rating gain. The loser loses the same
// amount; the ladder is zero-sum per match.
func EloDelta(winnerElo, loserElo int) int {
	return int(math.Round(eloK * (1 - EloExpectation(winnerElo, loserElo))))
}

// WinnerRewards returns the BREACH and XP payout for a rating gain.
func WinnerRewards(eloDelta int) (breach, xp int64) {
	return int64(100 + 5*eloDelta), int64(50 + 2*eloDelta)
}

// Band is the ELO tolerance for an entry that has waited this long.
func Band(wait time.Duration) int {
	if wait < 0 {
		wait = 0
	}
	return bandBase + bandStep*int(wait/bandInterval)
}

// Service wires the matchmaker and battle arbiter. The chain broker is
// optional; without it battles settle off-chain only.
type Service struct {
	store *db.Store
	chain *chain.Broker
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewService(store *db.Store, chainBroker *chain.Broker) *Service {
	return &Service{
		store: store,
		chain: chainBroker,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewServiceAt is the test constructor with a pinned clock and RNG.
func NewServiceAt(store *db.Store, chainBroker *chain.Broker, rng *rand.Rand, now func() time.Time) *Service {
	return &Service{store: store, chain: chainBroker, now: now, rng: rng}
}

// RollDamage draws this turn's damage. Attack hits U[15,25), Special hits
// U[25,40), Defend and Item deal nothing.
func (s *Service) RollDamage(action models.BattleAction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch action {
	case models.ActionAttack:
		return 15 + s.rng.Intn(10)
	case models.ActionSpecial:
		return 25 + s.rng.Intn(15)
	}
	return 0
}

func (s *Service) activeSeason(ctx context.Context) (*models.PvPSeason, error) {
	season, err := s.store.ActiveSeason(ctx)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if season == nil {
		return nil, apperr.ErrServiceUnavailable.Withf("no active season")
	}
	return season, nil
}

// JoinQueue enters (or refreshes) the player's matchmaking entry with the
// chosen titan. The entry's ELO snapshot comes from the season stats row.
func (s *Service) JoinQueue(ctx context.Context, playerID, titanID int64) (*models.QueueEntry, error) {
	titan, err := s.store.GetPlayerTitan(ctx, titanID)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if titan == nil || titan.PlayerID != playerID {
		return nil, apperr.ErrForbidden.Withf("titan %d is not yours", titanID)
	}

	season, err := s.activeSeason(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.GetOrCreateStats(ctx, playerID, season.ID)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}

	entry, err := s.store.UpsertQueueEntry(ctx, playerID, titanID, stats.EloRating, s.now())
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return entry, nil
}

// QueueStatus returns the player's current entry, nil when not queued.
func (s *Service) QueueStatus(ctx context.Context, playerID int64) (*models.QueueEntry, error) {
	entry, err := s.store.GetQueueEntry(ctx, playerID)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return entry, nil
}

// LeaveQueue removes a still-searching entry; matched entries stay.
func (s *Service) LeaveQueue(ctx context.Context, playerID int64) error {
	if err := s.store.LeaveQueue(ctx, playerID); err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	return nil
}

// RunMatchmaking executes one pairing pass: expire stale entries, then pair
// within each entry's expanded band.
func (s *Service) RunMatchmaking(ctx context.Context) ([]*models.PvPMatch, error) {
	now := s.now()
	season, err := s.activeSeason(ctx)
	if err != nil {
		return nil, err
	}

	if expired, err := s.store.ExpireStaleQueueEntries(ctx, now, queueMaxWait); err != nil {
		log.Printf("[PvP] Queue expiry failed: %v", err)
	} else if expired > 0 {
		log.Printf("[PvP] Expired %d stale queue entries", expired)
	}

	matches, err := s.store.PairingCycle(ctx, season.ID, now, Band, readyDeadline)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	for _, m := range matches {
		log.Printf("[PvP] Match %s: player %d vs player %d", m.ID, m.Player1ID, m.Player2ID)
	}
	return matches, nil
}

func (s *Service) GetMatch(ctx context.Context, matchID string) (*models.PvPMatch, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.ErrNotFound.Withf("match not found")
	}
	return m, nil
}

// SelectTitan validates ownership then advances the match FSM.
func (s *Service) SelectTitan(ctx context.Context, matchID string, playerID, titanID int64) (*models.PvPMatch, error) {
	titan, err := s.store.GetPlayerTitan(ctx, titanID)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if titan == nil || titan.PlayerID != playerID {
		return nil, apperr.ErrForbidden.Withf("titan %d is not yours", titanID)
	}
	return s.store.SelectTitan(ctx, matchID, playerID, titanID, s.now(), turnDeadline)
}

// SubmitAction arbitrates one battle turn. Damage is rolled before any I/O.
func (s *Service) SubmitAction(ctx context.Context, matchID string, playerID int64,
	action models.BattleAction) (*models.PvPMatch, error) {

	if !action.Valid() {
		return nil, apperr.ErrValidation.Withf("unknown action %q", action)
	}
	damage := s.RollDamage(action)

	m, err := s.store.ApplyTurn(ctx, matchID, playerID, action, damage, s.now(), turnDeadline)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MatchCompleted {
		if err := s.settle(ctx, m); err != nil {
			log.Printf("[PvP] Settlement failed for match %s: %v", m.ID, err)
		}
	}
	return m, nil
}

// SurrenderMatch forfeits; the opponent wins and the match settles.
func (s *Service) SurrenderMatch(ctx context.Context, matchID string, playerID int64) (*models.PvPMatch, error) {
	m, err := s.store.Surrender(ctx, matchID, playerID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.settle(ctx, m); err != nil {
		log.Printf("[PvP] Settlement failed for match %s: %v", m.ID, err)
	}
	return m, nil
}

// ListTurns returns the match's turn history.
func (s *Service) ListTurns(ctx context.Context, matchID string) ([]*models.BattleTurn, error) {
	return s.store.ListTurns(ctx, matchID)
}

// settle applies ELO, streaks, rank and rewards for a completed match.
func (s *Service) settle(ctx context.Context, m *models.PvPMatch) error {
	if m.WinnerID == nil {
		return nil
	}
	winnerID := *m.WinnerID
	loserID := m.Player1ID
	if winnerID == m.Player1ID {
		loserID = m.Player2ID
	}

	winner, err := s.store.GetOrCreateStats(ctx, winnerID, m.SeasonID)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	loser, err := s.store.GetOrCreateStats(ctx, loserID, m.SeasonID)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}

	delta := EloDelta(winner.EloRating, loser.EloRating)
	breach, xp := WinnerRewards(delta)
	newLoserElo := loser.EloRating - delta
	if newLoserElo < 0 {
		newLoserElo = 0
	}

	if err := s.store.SettleMatch(ctx, m.SeasonID, winnerID, loserID,
		winner.EloRating+delta, newLoserElo, breach, xp, s.now()); err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	log.Printf("[PvP] Match %s settled: winner %d +%d ELO (+%d BREACH, +%d XP)",
		m.ID, winnerID, delta, breach, xp)

	if s.chain != nil {
		go s.recordOnChain(m, winnerID, uint64(breach))
	}
	return nil
}

// recordOnChain pushes the battle result and winner payout to the Game-Logic
// program off the request path. Off-chain state is already settled; a chain
// failure only delays the on-chain mirror.
func (s *Service) recordOnChain(m *models.PvPMatch, winnerID int64, breach uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	winner, err := s.store.GetPlayer(ctx, winnerID)
	if err != nil || winner == nil {
		log.Printf("[PvP] On-chain record skipped for match %s: winner lookup failed: %v", m.ID, err)
		return
	}
	if _, err := s.chain.DistributeReward(ctx, winner.WalletAddress, chain.RewardBattleWin, breach); err != nil {
		log.Printf("[PvP] On-chain reward for match %s failed: %v", m.ID, err)
	}
}
