package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/titanbreach/breach-server/pkg/models"
)

const playerTitanColumns = `
	id, player_id, on_chain_mint, species_id, element, threat_class, genes,
	nickname, is_favorite, captured_at, battles_participated, battles_won`

func scanPlayerTitan(row pgx.Row) (*models.PlayerTitan, error) {
	var t models.PlayerTitan
	err := row.Scan(
		&t.ID, &t.PlayerID, &t.OnChainMint, &t.SpeciesID, &t.Element,
		&t.ThreatClass, &t.Genes, &t.Nickname, &t.IsFavorite, &t.CapturedAt,
		&t.BattlesParticipated, &t.BattlesWon)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetPlayerTitan(ctx context.Context, id int64) (*models.PlayerTitan, error) {
	sql := `SELECT ` + playerTitanColumns + ` FROM player_titans WHERE id = $1`
	t, err := scanPlayerTitan(s.pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *Store) ListPlayerTitans(ctx context.Context, playerID int64) ([]*models.PlayerTitan, error) {
	sql := `SELECT ` + playerTitanColumns + `
		FROM player_titans WHERE player_id = $1 ORDER BY captured_at DESC`
	rows, err := s.pool.Query(ctx, sql, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titans := make([]*models.PlayerTitan, 0)
	for rows.Next() {
		t, err := scanPlayerTitan(rows)
		if err != nil {
			return nil, err
		}
		titans = append(titans, t)
	}
	return titans, rows.Err()
}

// RecordBattleResult bumps the participation counters on both titans.
func (s *Store) RecordBattleResult(ctx context.Context, winnerTitan, loserTitan int64) error {
	batchSQL := `
		UPDATE player_titans
		SET battles_participated = battles_participated + 1,
		    battles_won = battles_won + CASE WHEN id = $1 THEN 1 ELSE 0 END
		WHERE id IN ($1, $2)`
	_, err := s.pool.Exec(ctx, batchSQL, winnerTitan, loserTitan)
	return err
}
