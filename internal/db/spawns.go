package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/titanbreach/breach-server/pkg/models"
)

const spawnColumns = `
	id, poi_id, lat, lng, geohash, element, threat_class, species_id, genes,
	spawned_at, expires_at, captured_by, captured_at, capture_count, max_captures`

func scanSpawn(row pgx.Row) (*models.TitanSpawn, error) {
	var t models.TitanSpawn
	err := row.Scan(
		&t.ID, &t.POIID, &t.Lat, &t.Lng, &t.Geohash, &t.Element,
		&t.ThreatClass, &t.SpeciesID, &t.Genes, &t.SpawnedAt, &t.ExpiresAt,
		&t.CapturedBy, &t.CapturedAt, &t.CaptureCount, &t.MaxCaptures,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertSpawn persists a freshly generated spawn and backfills its id.
func (s *Store) InsertSpawn(ctx context.Context, t *models.TitanSpawn) error {
	sql := `
		INSERT INTO titan_spawns
			(poi_id, lat, lng, geohash, element, threat_class, species_id,
			 genes, spawned_at, expires_at, max_captures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	return s.pool.QueryRow(ctx, sql,
		t.POIID, t.Lat, t.Lng, t.Geohash, t.Element, t.ThreatClass,
		t.SpeciesID, t.Genes, t.SpawnedAt, t.ExpiresAt, t.MaxCaptures,
	).Scan(&t.ID)
}

func (s *Store) GetSpawn(ctx context.Context, id int64) (*models.TitanSpawn, error) {
	sql := `SELECT ` + spawnColumns + ` FROM titan_spawns WHERE id = $1`
	t, err := scanSpawn(s.pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// POIHasActiveSpawn reports whether a POI currently holds a capturable Titan.
func (s *Store) POIHasActiveSpawn(ctx context.Context, poiID int64, now time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM titan_spawns
			WHERE poi_id = $1 AND expires_at > $2 AND capture_count < max_captures
		)`, poiID, now).Scan(&exists)
	return exists, err
}

// SpawnsNear returns available spawns within radiusM of a point. The rough
// bounding box cut happens in SQL; the exact haversine cut is the caller's.
func (s *Store) SpawnsNear(ctx context.Context, lat, lng, radiusM float64, now time.Time) ([]*models.TitanSpawn, error) {
	dLat := radiusM / 111320.0
	// Near the poles the longitude window degenerates; clamp to a full wrap.
	dLng := 180.0
	if cosLat := cosDeg(lat); cosLat > 0.01 {
		dLng = radiusM / (111320.0 * cosLat)
	}
	sql := `
		SELECT ` + spawnColumns + `
		FROM titan_spawns
		WHERE lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4
		  AND expires_at > $5
		  AND capture_count < max_captures
		ORDER BY spawned_at DESC
		LIMIT 200`
	rows, err := s.pool.Query(ctx, sql, lat-dLat, lat+dLat, lng-dLng, lng+dLng, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spawns := make([]*models.TitanSpawn, 0)
	for rows.Next() {
		t, err := scanSpawn(rows)
		if err != nil {
			return nil, err
		}
		spawns = append(spawns, t)
	}
	return spawns, rows.Err()
}

// RecentlyExpiredSpawns lists spawns that lapsed within the lookback window,
// for TitanExpired broadcasts.
func (s *Store) RecentlyExpiredSpawns(ctx context.Context, now time.Time, lookback time.Duration) ([]*models.TitanSpawn, error) {
	sql := `
		SELECT ` + spawnColumns + `
		FROM titan_spawns
		WHERE expires_at < $1 AND expires_at > $2`
	rows, err := s.pool.Query(ctx, sql, now, now.Add(-lookback))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spawns := make([]*models.TitanSpawn, 0)
	for rows.Next() {
		t, err := scanSpawn(rows)
		if err != nil {
			return nil, err
		}
		spawns = append(spawns, t)
	}
	return spawns, rows.Err()
}

// DeleteSpawnsExpiredBefore removes spawn rows an hour (or more) past expiry.
func (s *Store) DeleteSpawnsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM titan_spawns WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountActiveSpawns is a metrics helper.
func (s *Store) CountActiveSpawns(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM titan_spawns
		WHERE expires_at > $1 AND capture_count < max_captures`, now).Scan(&n)
	return n, err
}
