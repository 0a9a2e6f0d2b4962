package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/pkg/models"
)

// ActiveSeason returns the singleton active ladder season, or nil.
func (s *Store) ActiveSeason(ctx context.Context) (*models.PvPSeason, error) {
	sql := `SELECT id, name, starts_at, ends_at, is_active
		FROM pvp_seasons WHERE is_active = TRUE ORDER BY starts_at DESC LIMIT 1`
	var season models.PvPSeason
	err := s.pool.QueryRow(ctx, sql).Scan(
		&season.ID, &season.Name, &season.StartsAt, &season.EndsAt, &season.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &season, nil
}

const statsColumns = `
	player_id, season_id, elo_rating, peak_rating, matches_played, matches_won,
	matches_lost, win_streak, max_win_streak, rank_tier, rank_division, last_match_at`

func scanStats(row pgx.Row) (*models.PlayerPvPStats, error) {
	var st models.PlayerPvPStats
	err := row.Scan(
		&st.PlayerID, &st.SeasonID, &st.EloRating, &st.PeakRating,
		&st.MatchesPlayed, &st.MatchesWon, &st.MatchesLost, &st.WinStreak,
		&st.MaxWinStreak, &st.RankTier, &st.RankDivision, &st.LastMatchAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetOrCreateStats returns the player's season row, defaulting a fresh one
// at 1000 ELO.
func (s *Store) GetOrCreateStats(ctx context.Context, playerID, seasonID int64) (*models.PlayerPvPStats, error) {
	sql := `
		INSERT INTO player_pvp_stats (player_id, season_id)
		VALUES ($1, $2)
		ON CONFLICT (player_id, season_id) DO UPDATE SET player_id = EXCLUDED.player_id
		RETURNING ` + statsColumns
	return scanStats(s.pool.QueryRow(ctx, sql, playerID, seasonID))
}

// ──────────────────────────────────────────────────────────────────
// Matchmaking queue
// ──────────────────────────────────────────────────────────────────

// UpsertQueueEntry joins the queue, or refreshes an existing entry back to
// searching with a reset band timer.
func (s *Store) UpsertQueueEntry(ctx context.Context, playerID, titanID int64, elo int, now time.Time) (*models.QueueEntry, error) {
	sql := `
		INSERT INTO matchmaking_queue (player_id, titan_id, elo, search_start, status)
		VALUES ($1, $2, $3, $4, 'searching')
		ON CONFLICT (player_id) DO UPDATE SET
			titan_id = EXCLUDED.titan_id,
			elo = EXCLUDED.elo,
			search_start = EXCLUDED.search_start,
			status = 'searching',
			matched_with = NULL,
			match_id = NULL
		RETURNING id, player_id, titan_id, elo, search_start, status, matched_with, match_id`
	return scanQueueEntry(s.pool.QueryRow(ctx, sql, playerID, titanID, elo, now))
}

func scanQueueEntry(row pgx.Row) (*models.QueueEntry, error) {
	var q models.QueueEntry
	var matchID *uuid.UUID
	err := row.Scan(&q.ID, &q.PlayerID, &q.TitanID, &q.Elo, &q.SearchStart,
		&q.Status, &q.MatchedWith, &matchID)
	if err != nil {
		return nil, err
	}
	if matchID != nil {
		str := matchID.String()
		q.MatchID = &str
	}
	return &q, nil
}

func (s *Store) GetQueueEntry(ctx context.Context, playerID int64) (*models.QueueEntry, error) {
	sql := `SELECT id, player_id, titan_id, elo, search_start, status, matched_with, match_id
		FROM matchmaking_queue WHERE player_id = $1`
	q, err := scanQueueEntry(s.pool.QueryRow(ctx, sql, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (s *Store) LeaveQueue(ctx context.Context, playerID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM matchmaking_queue WHERE player_id = $1 AND status = 'searching'`, playerID)
	return err
}

// ExpireStaleQueueEntries marks entries searching longer than maxWait.
func (s *Store) ExpireStaleQueueEntries(ctx context.Context, now time.Time, maxWait time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE matchmaking_queue SET status = 'expired'
		WHERE status = 'searching' AND search_start < $1`, now.Add(-maxWait))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// queueRow is a locked candidate inside a pairing transaction.
type queueRow struct {
	id          int64
	playerID    int64
	titanID     int64
	elo         int
	searchStart time.Time
}

// PairingCycle runs one matchmaking pass inside a single transaction.
// Candidates are locked with FOR UPDATE SKIP LOCKED so two concurrent
// cyclers can never hand the same entry to two matches. bandFor maps an
// entry's wait time to its current ELO tolerance.
func (s *Store) PairingCycle(ctx context.Context, seasonID int64, now time.Time,
	bandFor func(wait time.Duration) int, readyDeadline time.Duration) ([]*models.PvPMatch, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, player_id, titan_id, elo, search_start
		FROM matchmaking_queue
		WHERE status = 'searching'
		ORDER BY search_start
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return nil, err
	}
	candidates := make([]queueRow, 0)
	for rows.Next() {
		var q queueRow
		if err := rows.Scan(&q.id, &q.playerID, &q.titanID, &q.elo, &q.searchStart); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	taken := make(map[int64]bool)
	matches := make([]*models.PvPMatch, 0)

	for i, a := range candidates {
		if taken[a.id] {
			continue
		}
		band := bandFor(now.Sub(a.searchStart))

		// Best opponent: smallest ELO gap, earliest search_start breaking ties.
		bestIdx := -1
		bestDiff := 0
		for j := i + 1; j < len(candidates); j++ {
			b := candidates[j]
			if taken[b.id] || b.playerID == a.playerID {
				continue
			}
			diff := a.elo - b.elo
			if diff < 0 {
				diff = -diff
			}
			if diff > band {
				continue
			}
			if bestIdx == -1 || diff < bestDiff {
				bestIdx = j
				bestDiff = diff
			}
		}
		if bestIdx == -1 {
			continue
		}
		b := candidates[bestIdx]
		taken[a.id] = true
		taken[b.id] = true

		matchID := uuid.New()
		deadline := now.Add(readyDeadline)
		m := &models.PvPMatch{
			ID:            matchID.String(),
			SeasonID:      seasonID,
			Player1ID:     a.playerID,
			Player2ID:     b.playerID,
			Player1HP:     100,
			Player2HP:     100,
			Status:        models.MatchPreparing,
			ReadyDeadline: &deadline,
			CreatedAt:     now,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO pvp_matches
				(id, season_id, player1_id, player2_id, status, ready_deadline, created_at)
			VALUES ($1, $2, $3, $4, 'preparing', $5, $6)`,
			matchID, seasonID, a.playerID, b.playerID, deadline, now)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE matchmaking_queue
			SET status = 'matched',
			    matched_with = CASE WHEN player_id = $2 THEN $3::bigint ELSE $2::bigint END,
			    match_id = $1
			WHERE id IN ($4, $5)`,
			matchID, a.playerID, b.playerID, a.id, b.id)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return matches, nil
}

// ──────────────────────────────────────────────────────────────────
// Match state machine
// ──────────────────────────────────────────────────────────────────

const matchColumns = `
	id, season_id, player1_id, player2_id, player1_titan, player2_titan,
	player1_hp, player2_hp, status, current_turn, turn_number,
	ready_deadline, turn_deadline, winner_id, end_reason, created_at, completed_at`

func scanMatch(row pgx.Row) (*models.PvPMatch, error) {
	var m models.PvPMatch
	var id uuid.UUID
	err := row.Scan(
		&id, &m.SeasonID, &m.Player1ID, &m.Player2ID, &m.Player1Titan,
		&m.Player2Titan, &m.Player1HP, &m.Player2HP, &m.Status,
		&m.CurrentTurn, &m.TurnNumber, &m.ReadyDeadline, &m.TurnDeadline,
		&m.WinnerID, &m.EndReason, &m.CreatedAt, &m.CompletedAt)
	if err != nil {
		return nil, err
	}
	m.ID = id.String()
	return &m, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (*models.PvPMatch, error) {
	id, err := uuid.Parse(matchID)
	if err != nil {
		return nil, apperr.ErrBadRequest.Withf("invalid match id")
	}
	sql := `SELECT ` + matchColumns + ` FROM pvp_matches WHERE id = $1`
	m, err := scanMatch(s.pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// SelectTitan records a player's titan pick and advances the FSM:
// Preparing -> TitanSelect on first pick, TitanSelect -> Active on second.
// Player1 always moves first when the match activates.
func (s *Store) SelectTitan(ctx context.Context, matchID string, playerID, titanID int64,
	now time.Time, turnDeadline time.Duration) (*models.PvPMatch, error) {

	id, err := uuid.Parse(matchID)
	if err != nil {
		return nil, apperr.ErrBadRequest.Withf("invalid match id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m, err := scanMatch(tx.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM pvp_matches WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound.Withf("match not found")
	}
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}

	if m.Status != models.MatchPreparing && m.Status != models.MatchTitanSelect {
		return nil, apperr.ErrBadRequest.Withf("match is not awaiting titan selection")
	}
	switch playerID {
	case m.Player1ID:
		m.Player1Titan = &titanID
	case m.Player2ID:
		m.Player2Titan = &titanID
	default:
		return nil, apperr.ErrForbidden.Withf("not a participant in this match")
	}

	m.Status = models.MatchTitanSelect
	if m.Player1Titan != nil && m.Player2Titan != nil {
		m.Status = models.MatchActive
		m.CurrentTurn = &m.Player1ID
		deadline := now.Add(turnDeadline)
		m.TurnDeadline = &deadline
	}

	_, err = tx.Exec(ctx, `
		UPDATE pvp_matches
		SET player1_titan = $2, player2_titan = $3, status = $4,
		    current_turn = $5, turn_deadline = $6
		WHERE id = $1`,
		id, m.Player1Titan, m.Player2Titan, m.Status, m.CurrentTurn, m.TurnDeadline)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return m, nil
}

// ApplyTurn arbitrates one turn submission. The match row lock serializes
// racing submissions: the loser of the race observes the flipped
// current_turn and gets "not your turn". Damage is rolled by the caller
// before this call per the RNG discipline.
func (s *Store) ApplyTurn(ctx context.Context, matchID string, playerID int64,
	action models.BattleAction, damage int, now time.Time, turnDeadline time.Duration) (*models.PvPMatch, error) {

	id, err := uuid.Parse(matchID)
	if err != nil {
		return nil, apperr.ErrBadRequest.Withf("invalid match id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m, err := scanMatch(tx.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM pvp_matches WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound.Withf("match not found")
	}
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}

	if m.Status != models.MatchActive {
		return nil, apperr.ErrBadRequest.Withf("match is not active")
	}
	if m.CurrentTurn == nil || *m.CurrentTurn != playerID {
		return nil, apperr.ErrForbidden.Withf("not your turn")
	}

	isPlayer1 := playerID == m.Player1ID
	if isPlayer1 {
		m.Player2HP -= damage
		if m.Player2HP < 0 {
			m.Player2HP = 0
		}
	} else {
		m.Player1HP -= damage
		if m.Player1HP < 0 {
			m.Player1HP = 0
		}
	}

	// Append the turn row; one side's action stays null until they act.
	m.TurnNumber++
	var p1Action, p2Action *models.BattleAction
	p1Damage, p2Damage := 0, 0
	if isPlayer1 {
		p1Action = &action
		p1Damage = damage
	} else {
		p2Action = &action
		p2Damage = damage
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO pvp_battle_turns
			(match_id, turn_number, player1_action, player2_action,
			 player1_damage, player2_damage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, m.TurnNumber, p1Action, p2Action, p1Damage, p2Damage, now)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}

	if m.Player1HP == 0 || m.Player2HP == 0 {
		m.Status = models.MatchCompleted
		winner := m.Player1ID
		if m.Player1HP == 0 {
			winner = m.Player2ID
		}
		reason := "knockout"
		m.WinnerID = &winner
		m.EndReason = &reason
		m.CurrentTurn = nil
		m.TurnDeadline = nil
		m.CompletedAt = &now
	} else {
		next := m.Player1ID
		if isPlayer1 {
			next = m.Player2ID
		}
		m.CurrentTurn = &next
		deadline := now.Add(turnDeadline)
		m.TurnDeadline = &deadline
	}

	_, err = tx.Exec(ctx, `
		UPDATE pvp_matches
		SET player1_hp = $2, player2_hp = $3, status = $4, current_turn = $5,
		    turn_number = $6, turn_deadline = $7, winner_id = $8,
		    end_reason = $9, completed_at = $10
		WHERE id = $1`,
		id, m.Player1HP, m.Player2HP, m.Status, m.CurrentTurn, m.TurnNumber,
		m.TurnDeadline, m.WinnerID, m.EndReason, m.CompletedAt)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return m, nil
}

// Surrender ends an active or selecting match in the opponent's favor.
func (s *Store) Surrender(ctx context.Context, matchID string, playerID int64, now time.Time) (*models.PvPMatch, error) {
	id, err := uuid.Parse(matchID)
	if err != nil {
		return nil, apperr.ErrBadRequest.Withf("invalid match id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m, err := scanMatch(tx.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM pvp_matches WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound.Withf("match not found")
	}
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if m.Status == models.MatchCompleted || m.Status == models.MatchCancelled {
		return nil, apperr.ErrBadRequest.Withf("match already finished")
	}
	if playerID != m.Player1ID && playerID != m.Player2ID {
		return nil, apperr.ErrForbidden.Withf("not a participant in this match")
	}

	winner := m.Player1ID
	if playerID == m.Player1ID {
		winner = m.Player2ID
	}
	reason := "surrender"
	m.Status = models.MatchCompleted
	m.WinnerID = &winner
	m.EndReason = &reason
	m.CurrentTurn = nil
	m.TurnDeadline = nil
	m.CompletedAt = &now

	_, err = tx.Exec(ctx, `
		UPDATE pvp_matches
		SET status = 'completed', current_turn = NULL, turn_deadline = NULL,
		    winner_id = $2, end_reason = 'surrender', completed_at = $3
		WHERE id = $1`, id, winner, now)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return m, nil
}

// CancelLapsedMatches cancels matches whose ready deadline elapsed before
// both players picked a titan.
func (s *Store) CancelLapsedMatches(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pvp_matches
		SET status = 'cancelled', end_reason = 'ready_deadline', completed_at = $1
		WHERE status IN ('preparing', 'titan_select') AND ready_deadline < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SettleMatch applies the ELO deltas, streaks and rank recomputation for a
// completed match, and awards the winner's off-chain BREACH/XP.
func (s *Store) SettleMatch(ctx context.Context, seasonID, winnerID, loserID int64,
	newWinnerElo, newLoserElo int, breachReward, xpReward int64, now time.Time) error {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	winnerTier, winnerDiv := models.RankFromElo(newWinnerElo)
	loserTier, loserDiv := models.RankFromElo(newLoserElo)

	_, err = tx.Exec(ctx, `
		UPDATE player_pvp_stats
		SET elo_rating = $3,
		    peak_rating = GREATEST(peak_rating, $3),
		    matches_played = matches_played + 1,
		    matches_won = matches_won + 1,
		    win_streak = win_streak + 1,
		    max_win_streak = GREATEST(max_win_streak, win_streak + 1),
		    rank_tier = $4, rank_division = $5, last_match_at = $6
		WHERE player_id = $1 AND season_id = $2`,
		winnerID, seasonID, newWinnerElo, winnerTier, winnerDiv, now)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE player_pvp_stats
		SET elo_rating = $3,
		    matches_played = matches_played + 1,
		    matches_lost = matches_lost + 1,
		    win_streak = 0,
		    rank_tier = $4, rank_division = $5, last_match_at = $6
		WHERE player_id = $1 AND season_id = $2`,
		loserID, seasonID, newLoserElo, loserTier, loserDiv, now)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE players
		SET battles_won = battles_won + 1,
		    breach_earned = breach_earned + $2,
		    experience = experience + $3,
		    level = GREATEST(FLOOR(SQRT((experience + $3) / 100.0))::int, 1)
		WHERE id = $1`, winnerID, breachReward, xpReward)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListTurns returns the appended turn history for a match.
func (s *Store) ListTurns(ctx context.Context, matchID string) ([]*models.BattleTurn, error) {
	id, err := uuid.Parse(matchID)
	if err != nil {
		return nil, apperr.ErrBadRequest.Withf("invalid match id")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT match_id, turn_number, player1_action, player2_action,
		       player1_damage, player2_damage, created_at
		FROM pvp_battle_turns WHERE match_id = $1 ORDER BY turn_number`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]*models.BattleTurn, 0)
	for rows.Next() {
		var t models.BattleTurn
		var mid uuid.UUID
		if err := rows.Scan(&mid, &t.TurnNumber, &t.Player1Action, &t.Player2Action,
			&t.Player1Damage, &t.Player2Damage, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.MatchID = mid.String()
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
