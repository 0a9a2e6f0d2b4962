package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/titanbreach/breach-server/pkg/models"
)

const playerColumns = `
	id, wallet_address, username, level, experience, titans_captured,
	battles_won, breach_earned, last_lat, last_lng, last_seen_at,
	last_capture_at, banned, ban_reason, offense_count, created_at`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID, &p.WalletAddress, &p.Username, &p.Level, &p.Experience,
		&p.TitansCaptured, &p.BattlesWon, &p.BreachEarned, &p.LastLat,
		&p.LastLng, &p.LastSeenAt, &p.LastCaptureAt, &p.Banned,
		&p.BanReason, &p.OffenseCount, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreatePlayer provisions a player row on first authenticated request.
func (s *Store) GetOrCreatePlayer(ctx context.Context, wallet string) (*models.Player, error) {
	sql := `
		INSERT INTO players (wallet_address)
		VALUES ($1)
		ON CONFLICT (wallet_address) DO UPDATE SET last_seen_at = NOW()
		RETURNING ` + playerColumns
	return scanPlayer(s.pool.QueryRow(ctx, sql, wallet))
}

func (s *Store) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	sql := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	p, err := scanPlayer(s.pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) GetPlayerByWallet(ctx context.Context, wallet string) (*models.Player, error) {
	sql := `SELECT ` + playerColumns + ` FROM players WHERE wallet_address = $1`
	p, err := scanPlayer(s.pool.QueryRow(ctx, sql, wallet))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// UpdateLastFix stores the player's latest verified GPS fix.
func (s *Store) UpdateLastFix(ctx context.Context, playerID int64, lat, lng float64, at time.Time) error {
	sql := `UPDATE players SET last_lat = $2, last_lng = $3, last_seen_at = $4 WHERE id = $1`
	_, err := s.pool.Exec(ctx, sql, playerID, lat, lng, at)
	return err
}

// AddExperience grants XP and keeps the derived level column in sync.
// Experience is monotonic; negative grants are rejected.
func (s *Store) AddExperience(ctx context.Context, playerID int64, xp int64) (int64, int, error) {
	if xp < 0 {
		return 0, 0, fmt.Errorf("experience grant must be non-negative, got %d", xp)
	}
	sql := `
		UPDATE players
		SET experience = experience + $2,
		    level = FLOOR(SQRT((experience + $2) / 100.0))::int
		WHERE id = $1
		RETURNING experience, GREATEST(level, 1)`
	var total int64
	var level int
	if err := s.pool.QueryRow(ctx, sql, playerID, xp).Scan(&total, &level); err != nil {
		return 0, 0, err
	}
	return total, level, nil
}

// IncrementOffenses bumps the anti-cheat strike counter.
func (s *Store) IncrementOffenses(ctx context.Context, playerID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE players SET offense_count = offense_count + 1 WHERE id = $1`, playerID)
	return err
}

// CountPlayers returns total and recently-active player counts. A player is
// active if they reported a location within the window.
func (s *Store) CountPlayers(ctx context.Context, activeWindow time.Duration) (total, active int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE last_seen_at > NOW() - $1::interval)
		FROM players`, activeWindow).Scan(&total, &active)
	return total, active, err
}
