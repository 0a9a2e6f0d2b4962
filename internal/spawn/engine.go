// Package spawn populates eligible POIs with ephemeral Titans on a periodic
// cycle, weighted by terrain, time of day and POI importance.
package spawn

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/titanbreach/breach-server/internal/db"
	"github.com/titanbreach/breach-server/internal/geo"
	"github.com/titanbreach/breach-server/internal/ws"
	"github.com/titanbreach/breach-server/pkg/models"
)

const baseSpawnChance = 0.30

// class attribute tables indexed by threat class 1..5.
var (
	classLifetimes   = [6]time.Duration{0, 4 * time.Hour, 3 * time.Hour, 2 * time.Hour, time.Hour, 30 * time.Minute}
	classMaxCaptures = [6]int{0, 10, 5, 3, 2, 1}
	baseClassWeights = [5]float64{60, 25, 10, 4, 1}
)

// Broadcaster is the regional fan-out surface the engine announces on. The
// return value is the delivered-subscriber count; announcements ignore it.
type Broadcaster interface {
	BroadcastToNeighbors(geohash string, msg []byte) int
}

// Engine runs the world-generation cycle.
type Engine struct {
	store *db.Store
	hub   Broadcaster
	rng   *rand.Rand
	now   func() time.Time
}

func NewEngine(store *db.Store, hub Broadcaster) *Engine {
	return &Engine{
		store: store,
		hub:   hub,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

// NewEngineAt is the test constructor with a deterministic clock and RNG.
func NewEngineAt(store *db.Store, hub Broadcaster, rng *rand.Rand, now func() time.Time) *Engine {
	return &Engine{store: store, hub: hub, rng: rng, now: now}
}

// TimeMultiplier returns the time-of-day spawn factor.
func TimeMultiplier(hour int) float64 {
	switch {
	case hour >= 6 && hour <= 9:
		return 1.2
	case hour >= 12 && hour <= 14:
		return 1.3
	case hour >= 17 && hour <= 20:
		return 1.5
	case hour >= 22 || hour <= 5:
		return 0.3
	}
	return 1.0
}

// DayMultiplier returns the weekend spawn factor.
func DayMultiplier(day time.Weekday) float64 {
	if day == time.Saturday || day == time.Sunday {
		return 1.3
	}
	return 1.0
}

// SpawnProbability computes the per-cycle spawn chance for a POI.
func SpawnProbability(spawnWeight float64, at time.Time) float64 {
	return baseSpawnChance * (spawnWeight / 3.0) * TimeMultiplier(at.Hour()) * DayMultiplier(at.Weekday())
}

// RollElement maps a uniform roll in [0,100) to an element for a terrain.
// Unknown terrains use the urban distribution.
func RollElement(terrain string, roll float64) models.Element {
	type band struct {
		upto    float64
		element models.Element
	}
	var bands [2]band
	var fallback models.Element
	switch terrain {
	case "water":
		bands = [2]band{{70, models.ElementAbyssal}, {90, models.ElementStorm}}
		fallback = models.ElementParasitic
	case "mountain":
		bands = [2]band{{60, models.ElementVolcanic}, {85, models.ElementStorm}}
		fallback = models.ElementOssified
	case "forest":
		bands = [2]band{{65, models.ElementParasitic}, {85, models.ElementOssified}}
		fallback = models.ElementAbyssal
	case "desert":
		bands = [2]band{{50, models.ElementVolcanic}, {85, models.ElementOssified}}
		fallback = models.ElementVoid
	case "coastal":
		bands = [2]band{{45, models.ElementAbyssal}, {80, models.ElementStorm}}
		fallback = models.ElementVolcanic
	case "arctic":
		bands = [2]band{{60, models.ElementOssified}, {85, models.ElementVoid}}
		fallback = models.ElementStorm
	default: // urban
		bands = [2]band{{40, models.ElementStorm}, {75, models.ElementVoid}}
		fallback = models.ElementParasitic
	}
	if roll < bands[0].upto {
		return bands[0].element
	}
	if roll < bands[1].upto {
		return bands[1].element
	}
	return fallback
}

// ClassWeights returns the threat-class distribution for a POI weight.
// Heavier POIs shift probability mass toward the rare classes.
func ClassWeights(spawnWeight float64) [5]float64 {
	w := baseClassWeights
	switch {
	case spawnWeight >= 4:
		w[2] *= 2
		w[3] *= 3
		w[4] *= 5
	case spawnWeight >= 3:
		w[2] *= 1.5
		w[3] *= 2
		w[4] *= 1
	}
	return w
}

// RollThreatClass maps a uniform roll in [0,1) to a class 1..5.
func RollThreatClass(spawnWeight float64, roll float64) int {
	w := ClassWeights(spawnWeight)
	var total float64
	for _, v := range w {
		total += v
	}
	target := roll * total
	var acc float64
	for i, v := range w {
		acc += v
		if target < acc {
			return i + 1
		}
	}
	return 5
}

// Generate derives a complete spawn for a POI. Every random attribute is
// drawn here, before any I/O, so a suspended insert can never interleave
// RNG state with a concurrent cycle.
func (e *Engine) Generate(poi *models.POI, at time.Time) *models.TitanSpawn {
	element := RollElement(poi.TerrainType, e.rng.Float64()*100)
	class := RollThreatClass(poi.SpawnWeight, e.rng.Float64())

	// sqrt on the radius fraction keeps the point distribution uniform by area.
	bearing := e.rng.Float64() * 360
	dist := poi.RadiusM * math.Sqrt(e.rng.Float64())
	lat, lng := geo.OffsetFlat(poi.Lat, poi.Lng, bearing, dist)

	genes := make([]byte, 6)
	e.rng.Read(genes)

	species := int(element)*1000 + (class-1)*100 + e.rng.Intn(10) + 1

	return &models.TitanSpawn{
		POIID:       poi.ID,
		Lat:         lat,
		Lng:         lng,
		Geohash:     geo.GeohashEncode(lat, lng, geo.DefaultGeohashPrecision),
		Element:     element,
		ThreatClass: class,
		SpeciesID:   species,
		Genes:       genes,
		SpawnedAt:   at,
		ExpiresAt:   at.Add(classLifetimes[class]),
		MaxCaptures: classMaxCaptures[class],
	}
}

// RunCycle walks eligible POIs once and spawns per the probability model.
// Per-POI failures log and continue; the cycle is best-effort.
func (e *Engine) RunCycle(ctx context.Context, bounds *db.Bounds) (int, error) {
	now := e.now()
	pois, err := e.store.ActivePOIs(ctx, bounds)
	if err != nil {
		return 0, fmt.Errorf("load POIs: %w", err)
	}

	spawned := 0
	for _, poi := range pois {
		occupied, err := e.store.POIHasActiveSpawn(ctx, poi.ID, now)
		if err != nil {
			log.Printf("[Spawn] POI %d occupancy check failed: %v", poi.ID, err)
			continue
		}
		if occupied {
			continue
		}
		if e.rng.Float64() >= SpawnProbability(poi.SpawnWeight, now) {
			continue
		}

		titan := e.Generate(poi, now)
		if err := e.store.InsertSpawn(ctx, titan); err != nil {
			log.Printf("[Spawn] Insert failed for POI %d: %v", poi.ID, err)
			continue
		}
		spawned++
		e.announce(titan, poi)
	}

	if spawned > 0 {
		log.Printf("[Spawn] Cycle complete: %d new Titans across %d POIs", spawned, len(pois))
	}
	return spawned, nil
}

func (e *Engine) announce(titan *models.TitanSpawn, poi *models.POI) {
	msg := ws.Marshal(ws.TypeTitanSpawn, ws.TitanSpawnPayload{
		TitanID:     titan.ID,
		POIName:     poi.Name,
		Lat:         titan.Lat,
		Lng:         titan.Lng,
		Element:     titan.Element,
		ThreatClass: titan.ThreatClass,
		SpeciesID:   titan.SpeciesID,
		ExpiresAt:   titan.ExpiresAt,
	})
	e.hub.BroadcastToNeighbors(titan.Geohash, msg)
}
