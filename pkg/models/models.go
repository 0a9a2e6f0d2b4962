package models

import "time"

// Element is a Titan's elemental affinity.
type Element int

const (
	ElementAbyssal Element = iota + 1
	ElementVolcanic
	ElementStorm
	ElementVoid
	ElementParasitic
	ElementOssified
)

var elementNames = map[Element]string{
	ElementAbyssal:   "abyssal",
	ElementVolcanic:  "volcanic",
	ElementStorm:     "storm",
	ElementVoid:      "void",
	ElementParasitic: "parasitic",
	ElementOssified:  "ossified",
}

func (e Element) String() string {
	if name, ok := elementNames[e]; ok {
		return name
	}
	return "unknown"
}

// Player is the off-chain profile keyed by wallet address.
type Player struct {
	ID             int64      `json:"id"`
	WalletAddress  string     `json:"walletAddress"`
	Username       *string    `json:"username,omitempty"`
	Level          int        `json:"level"`
	Experience     int64      `json:"experience"`
	TitansCaptured int        `json:"titansCaptured"`
	BattlesWon     int        `json:"battlesWon"`
	BreachEarned   int64      `json:"breachEarned"`
	LastLat        *float64   `json:"lastLat,omitempty"`
	LastLng        *float64   `json:"lastLng,omitempty"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
	LastCaptureAt  *time.Time `json:"lastCaptureAt,omitempty"`
	Banned         bool       `json:"banned"`
	BanReason      *string    `json:"banReason,omitempty"`
	OffenseCount   int        `json:"offenseCount"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// LevelFromExperience derives the level from total XP.
// level = floor(sqrt(xp / 100)), clamped to a minimum of 1.
func LevelFromExperience(xp int64) int {
	if xp < 100 {
		return 1
	}
	lvl := 1
	// Integer search avoids float edge cases right at the boundaries.
	for (int64(lvl)+1)*(int64(lvl)+1)*100 <= xp {
		lvl++
	}
	return lvl
}

// ExperienceForLevel is the inverse: minimum XP at which a level is reached.
func ExperienceForLevel(level int) int64 {
	return 100 * int64(level) * int64(level)
}

// TitanSpawn is an ephemeral world Titan awaiting capture.
type TitanSpawn struct {
	ID           int64      `json:"id"`
	POIID        int64      `json:"poiId"`
	Lat          float64    `json:"lat"`
	Lng          float64    `json:"lng"`
	Geohash      string     `json:"geohash"`
	Element      Element    `json:"element"`
	ThreatClass  int        `json:"threatClass"`
	SpeciesID    int        `json:"speciesId"`
	Genes        []byte     `json:"genes"`
	SpawnedAt    time.Time  `json:"spawnedAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	CapturedBy   *int64     `json:"capturedBy,omitempty"`
	CapturedAt   *time.Time `json:"capturedAt,omitempty"`
	CaptureCount int        `json:"captureCount"`
	MaxCaptures  int        `json:"maxCaptures"`
}

// Available reports whether the spawn can still be captured at time now.
func (s *TitanSpawn) Available(now time.Time) bool {
	return now.Before(s.ExpiresAt) && s.CaptureCount < s.MaxCaptures
}

// PlayerTitan is a captured Titan owned by a player (mirrors the on-chain NFT).
type PlayerTitan struct {
	ID                  int64     `json:"id"`
	PlayerID            int64     `json:"playerId"`
	OnChainMint         string    `json:"onChainMint"`
	SpeciesID           int       `json:"speciesId"`
	Element             Element   `json:"element"`
	ThreatClass         int       `json:"threatClass"`
	Genes               []byte    `json:"genes"`
	Nickname            *string   `json:"nickname,omitempty"`
	IsFavorite          bool      `json:"isFavorite"`
	CapturedAt          time.Time `json:"capturedAt"`
	BattlesParticipated int       `json:"battlesParticipated"`
	BattlesWon          int       `json:"battlesWon"`
}

// TitanStats are the derived combat attributes.
type TitanStats struct {
	Power     uint8 `json:"power"`
	Fortitude uint8 `json:"fortitude"`
	Velocity  uint8 `json:"velocity"`
	Resonance uint8 `json:"resonance"`
}

// classStatMultiplier scales gene bytes per threat class (x100 fixed point).
var classStatMultiplier = [6]int{0, 100, 115, 135, 160, 200}

// DeriveStats computes combat stats from the first four gene bytes and the
// threat class. Values saturate at 255.
func DeriveStats(genes []byte, threatClass int) TitanStats {
	if threatClass < 1 || threatClass > 5 {
		threatClass = 1
	}
	mult := classStatMultiplier[threatClass]
	stat := func(idx int) uint8 {
		var g int
		if idx < len(genes) {
			g = int(genes[idx])
		}
		v := (50 + g/2) * mult / 100
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}
	return TitanStats{
		Power:     stat(0),
		Fortitude: stat(1),
		Velocity:  stat(2),
		Resonance: stat(3),
	}
}

// POI is a static spawn anchor loaded from seed data.
type POI struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	RadiusM     float64 `json:"radiusM"`
	SpawnWeight float64 `json:"spawnWeight"`
	TerrainType string  `json:"terrainType"`
	IsActive    bool    `json:"isActive"`
}

// LocationRecord is one row of a player's movement trail.
type LocationRecord struct {
	PlayerID     int64     `json:"playerId"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	AccuracyM    float64   `json:"accuracyM"`
	SpeedMps     *float64  `json:"speedMps,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	AltitudeM    *float64  `json:"altitudeM,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	IsSuspicious bool      `json:"isSuspicious"`
	Flags        []string  `json:"flags,omitempty"`
}
