package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/pkg/models"
)

// ConfirmCapture is the stage-D reconcile: one transaction that claims a
// capture slot on the spawn, mints the off-chain ownership row and settles
// player rewards. The conditional UPDATE is what enforces
// capture_count <= max_captures under concurrent confirmations: losers
// match zero rows and get ALREADY_CAPTURED.
func (s *Store) ConfirmCapture(ctx context.Context, spawnID, playerID int64,
	onChainMint string, breachReward, xpReward int64, now time.Time) (*models.PlayerTitan, int, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, apperr.ErrDatabase.WithCause(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	claimSQL := `
		UPDATE titan_spawns
		SET capture_count = capture_count + 1,
		    captured_by = $2,
		    captured_at = $3
		WHERE id = $1
		  AND capture_count < max_captures
		  AND expires_at > $3
		RETURNING species_id, element, threat_class, genes, capture_count, max_captures`

	var speciesID, threatClass, captureCount, maxCaptures int
	var element models.Element
	var genes []byte
	err = tx.QueryRow(ctx, claimSQL, spawnID, playerID, now).Scan(
		&speciesID, &element, &threatClass, &genes, &captureCount, &maxCaptures)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish expired from exhausted for the wire code.
		spawn, gerr := s.GetSpawn(ctx, spawnID)
		switch {
		case gerr != nil:
			return nil, 0, apperr.ErrDatabase.WithCause(gerr)
		case spawn == nil:
			return nil, 0, apperr.ErrTitanNotFound
		case !now.Before(spawn.ExpiresAt):
			return nil, 0, apperr.ErrTitanExpired
		default:
			return nil, 0, apperr.ErrAlreadyCaptured
		}
	}
	if err != nil {
		return nil, 0, apperr.ErrDatabase.WithCause(err)
	}

	titan := &models.PlayerTitan{
		PlayerID:    playerID,
		OnChainMint: onChainMint,
		SpeciesID:   speciesID,
		Element:     element,
		ThreatClass: threatClass,
		Genes:       genes,
		CapturedAt:  now,
	}
	insertSQL := `
		INSERT INTO player_titans
			(player_id, on_chain_mint, species_id, element, threat_class, genes, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := tx.QueryRow(ctx, insertSQL,
		playerID, onChainMint, speciesID, element, threatClass, genes, now).Scan(&titan.ID); err != nil {
		return nil, 0, apperr.ErrDatabase.WithCause(err)
	}

	rewardSQL := `
		UPDATE players
		SET titans_captured = titans_captured + 1,
		    last_capture_at = $2,
		    breach_earned = breach_earned + $3,
		    experience = experience + $4,
		    level = GREATEST(FLOOR(SQRT((experience + $4) / 100.0))::int, 1)
		WHERE id = $1`
	if _, err := tx.Exec(ctx, rewardSQL, playerID, now, breachReward, xpReward); err != nil {
		return nil, 0, apperr.ErrDatabase.WithCause(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, apperr.ErrDatabase.WithCause(err)
	}
	return titan, maxCaptures - captureCount, nil
}
