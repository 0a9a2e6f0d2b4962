package db

import (
	"context"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/titanbreach/breach-server/pkg/models"
)

func cosDeg(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180)
}

const poiColumns = `id, name, category, lat, lng, radius_m, spawn_weight, terrain_type, is_active`

func scanPOI(row pgx.Row) (*models.POI, error) {
	var p models.POI
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Lat, &p.Lng,
		&p.RadiusM, &p.SpawnWeight, &p.TerrainType, &p.IsActive)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActivePOIs loads spawn-eligible POIs, optionally clipped to a bounding box
// (region filter used by targeted spawn cycles).
func (s *Store) ActivePOIs(ctx context.Context, bounds *Bounds) ([]*models.POI, error) {
	sql := `SELECT ` + poiColumns + ` FROM pois WHERE is_active = TRUE`
	args := []any{}
	if bounds != nil {
		sql += ` AND lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4`
		args = append(args, bounds.SWLat, bounds.NELat, bounds.SWLng, bounds.NELng)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pois := make([]*models.POI, 0)
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		pois = append(pois, p)
	}
	return pois, rows.Err()
}

// Bounds is a SW/NE bounding box.
type Bounds struct {
	SWLat, SWLng, NELat, NELng float64
}
