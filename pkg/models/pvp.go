package models

import "time"

// Match lifecycle states.
type MatchStatus string

const (
	MatchPreparing   MatchStatus = "preparing"
	MatchTitanSelect MatchStatus = "titan_select"
	MatchActive      MatchStatus = "active"
	MatchCompleted   MatchStatus = "completed"
	MatchCancelled   MatchStatus = "cancelled"
)

// Queue entry states.
type QueueStatus string

const (
	QueueSearching QueueStatus = "searching"
	QueueMatched   QueueStatus = "matched"
	QueueExpired   QueueStatus = "expired"
)

// Battle actions a player may submit on their turn.
type BattleAction string

const (
	ActionAttack  BattleAction = "attack"
	ActionSpecial BattleAction = "special"
	ActionDefend  BattleAction = "defend"
	ActionItem    BattleAction = "item"
)

func (a BattleAction) Valid() bool {
	switch a {
	case ActionAttack, ActionSpecial, ActionDefend, ActionItem:
		return true
	}
	return false
}

// PvPSeason is the singleton active ladder season.
type PvPSeason struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	IsActive bool      `json:"isActive"`
}

// PlayerPvPStats is one player's ladder row for a season.
type PlayerPvPStats struct {
	PlayerID      int64      `json:"playerId"`
	SeasonID      int64      `json:"seasonId"`
	EloRating     int        `json:"eloRating"`
	PeakRating    int        `json:"peakRating"`
	MatchesPlayed int        `json:"matchesPlayed"`
	MatchesWon    int        `json:"matchesWon"`
	MatchesLost   int        `json:"matchesLost"`
	WinStreak     int        `json:"winStreak"`
	MaxWinStreak  int        `json:"maxWinStreak"`
	RankTier      string     `json:"rankTier"`
	RankDivision  int        `json:"rankDivision"`
	LastMatchAt   *time.Time `json:"lastMatchAt,omitempty"`
}

// QueueEntry is a matchmaking queue row.
type QueueEntry struct {
	ID          int64       `json:"id"`
	PlayerID    int64       `json:"playerId"`
	TitanID     int64       `json:"titanId"`
	Elo         int         `json:"elo"`
	SearchStart time.Time   `json:"searchStart"`
	Status      QueueStatus `json:"status"`
	MatchedWith *int64      `json:"matchedWith,omitempty"`
	MatchID     *string     `json:"matchId,omitempty"`
}

// PvPMatch is the battle state machine row.
type PvPMatch struct {
	ID            string       `json:"id"`
	SeasonID      int64        `json:"seasonId"`
	Player1ID     int64        `json:"player1Id"`
	Player2ID     int64        `json:"player2Id"`
	Player1Titan  *int64       `json:"player1Titan,omitempty"`
	Player2Titan  *int64       `json:"player2Titan,omitempty"`
	Player1HP     int          `json:"player1Hp"`
	Player2HP     int          `json:"player2Hp"`
	Status        MatchStatus  `json:"status"`
	CurrentTurn   *int64       `json:"currentTurn,omitempty"`
	TurnNumber    int          `json:"turnNumber"`
	ReadyDeadline *time.Time   `json:"readyDeadline,omitempty"`
	TurnDeadline  *time.Time   `json:"turnDeadline,omitempty"`
	WinnerID      *int64       `json:"winnerId,omitempty"`
	EndReason     *string      `json:"endReason,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

// BattleTurn is one appended turn row; a side's action is nil until they act.
type BattleTurn struct {
	MatchID       string        `json:"matchId"`
	TurnNumber    int           `json:"turnNumber"`
	Player1Action *BattleAction `json:"player1Action,omitempty"`
	Player2Action *BattleAction `json:"player2Action,omitempty"`
	Player1Damage int           `json:"player1Damage"`
	Player2Damage int           `json:"player2Damage"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// RankFromElo maps a rating to tier and division per the fixed ladder table.
func RankFromElo(elo int) (string, int) {
	type band struct {
		tier string
		min  int
	}
	// Divisions within a tier are 100 ELO wide, division 1 highest.
	bands := []band{
		{"apex", 2200},
		{"diamond", 1800},
		{"platinum", 1500},
		{"gold", 1300},
		{"silver", 1100},
		{"bronze", 0},
	}
	for i, b := range bands {
		if elo >= b.min {
			if i == 0 {
				return b.tier, 1
			}
			upper := bands[i-1].min
			span := (upper - b.min) / 4
			if span == 0 {
				span = 100
			}
			div := 4 - (elo-b.min)/span
			if div < 1 {
				div = 1
			}
			if div > 4 {
				div = 4
			}
			return b.tier, div
		}
	}
	return "bronze", 4
}
