package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/titanbreach/breach-server/pkg/models"
)

// InsertLocationRecord appends one trail row. Suspicious reports are stored
// too; the trail is the anti-cheat evidence log, not just the happy path.
func (s *Store) InsertLocationRecord(ctx context.Context, rec *models.LocationRecord) error {
	sql := `
		INSERT INTO player_locations
			(player_id, lat, lng, accuracy_m, speed_mps, heading, altitude_m,
			 recorded_at, is_suspicious, flags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	flags := rec.Flags
	if flags == nil {
		flags = []string{}
	}
	_, err := s.pool.Exec(ctx, sql,
		rec.PlayerID, rec.Lat, rec.Lng, rec.AccuracyM, rec.SpeedMps,
		rec.Heading, rec.AltitudeM, rec.Timestamp, rec.IsSuspicious, flags)
	return err
}

// LastLocation returns the most recent trail row for a player, or nil when
// the player has no history yet.
func (s *Store) LastLocation(ctx context.Context, playerID int64) (*models.LocationRecord, error) {
	sql := `
		SELECT player_id, lat, lng, accuracy_m, speed_mps, heading, altitude_m,
		       recorded_at, is_suspicious, flags
		FROM player_locations
		WHERE player_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`
	var rec models.LocationRecord
	err := s.pool.QueryRow(ctx, sql, playerID).Scan(
		&rec.PlayerID, &rec.Lat, &rec.Lng, &rec.AccuracyM, &rec.SpeedMps,
		&rec.Heading, &rec.AltitudeM, &rec.Timestamp, &rec.IsSuspicious, &rec.Flags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteLocationsBefore prunes trail rows past the retention window (30 days).
func (s *Store) DeleteLocationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM player_locations WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
