// Package scheduler runs the fixed-cadence background tasks: world
// generation, expiry sweeps, matchmaking, metrics and connection reaping.
// Every task survives its own errors; a failed tick logs and the next tick
// runs normally.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/titanbreach/breach-server/internal/db"
	"github.com/titanbreach/breach-server/internal/pvp"
	"github.com/titanbreach/breach-server/internal/spawn"
	"github.com/titanbreach/breach-server/internal/ws"
)

const (
	spawnInterval       = time.Hour
	expiryInterval      = 5 * time.Minute
	matchmakingInterval = 5 * time.Second
	metricsInterval     = time.Minute
	wsCleanupInterval   = 30 * time.Second

	// Retention windows for the expiry sweep.
	spawnRetention    = time.Hour
	locationRetention = 30 * 24 * time.Hour
	activePlayerSpan  = 5 * time.Minute
)

type Scheduler struct {
	store  *db.Store
	hub    *ws.Hub
	engine *spawn.Engine
	pvp    *pvp.Service
	now    func() time.Time
}

func New(store *db.Store, hub *ws.Hub, engine *spawn.Engine, pvpService *pvp.Service) *Scheduler {
	return &Scheduler{
		store:  store,
		hub:    hub,
		engine: engine,
		pvp:    pvpService,
		now:    time.Now,
	}
}

// Run starts every task and blocks until the context is cancelled and all
// tasks have drained.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	tasks := []struct {
		name     string
		interval time.Duration
		tick     func(context.Context)
	}{
		{"spawn", spawnInterval, s.spawnTick},
		{"expiry", expiryInterval, s.expiryTick},
		{"matchmaking", matchmakingInterval, s.matchmakingTick},
		{"metrics", metricsInterval, s.metricsTick},
		{"ws-cleanup", wsCleanupInterval, s.wsCleanupTick},
	}

	for _, task := range tasks {
		wg.Add(1)
		go func(name string, interval time.Duration, tick func(context.Context)) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			log.Printf("[Scheduler] Task %s every %s", name, interval)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					tick(ctx)
				}
			}
		}(task.name, task.interval, task.tick)
	}
	wg.Wait()
}

func (s *Scheduler) spawnTick(ctx context.Context) {
	if _, err := s.engine.RunCycle(ctx, nil); err != nil {
		log.Printf("[Scheduler] Spawn cycle failed: %v", err)
	}
}

// expiryTick announces freshly lapsed spawns, then prunes old spawn and
// location rows and cancels matches whose ready deadline lapsed.
func (s *Scheduler) expiryTick(ctx context.Context) {
	now := s.now()

	expired, err := s.store.RecentlyExpiredSpawns(ctx, now, expiryInterval)
	if err != nil {
		log.Printf("[Scheduler] Expiry scan failed: %v", err)
	} else {
		for _, spawnRow := range expired {
			s.hub.BroadcastToNeighbors(spawnRow.Geohash,
				ws.Marshal(ws.TypeTitanExpired, ws.TitanExpiredPayload{TitanID: spawnRow.ID}))
		}
		if len(expired) > 0 {
			log.Printf("[Scheduler] Announced %d expired Titans", len(expired))
		}
	}

	if n, err := s.store.DeleteSpawnsExpiredBefore(ctx, now.Add(-spawnRetention)); err != nil {
		log.Printf("[Scheduler] Spawn pruning failed: %v", err)
	} else if n > 0 {
		log.Printf("[Scheduler] Pruned %d spawn rows", n)
	}

	if n, err := s.store.DeleteLocationsBefore(ctx, now.Add(-locationRetention)); err != nil {
		log.Printf("[Scheduler] Location pruning failed: %v", err)
	} else if n > 0 {
		log.Printf("[Scheduler] Pruned %d location rows", n)
	}

	if n, err := s.store.CancelLapsedMatches(ctx, now); err != nil {
		log.Printf("[Scheduler] Match cancellation failed: %v", err)
	} else if n > 0 {
		log.Printf("[Scheduler] Cancelled %d lapsed matches", n)
	}
}

func (s *Scheduler) matchmakingTick(ctx context.Context) {
	if _, err := s.pvp.RunMatchmaking(ctx); err != nil {
		log.Printf("[Scheduler] Matchmaking cycle failed: %v", err)
	}
}

func (s *Scheduler) metricsTick(ctx context.Context) {
	now := s.now()
	activeTitans, err := s.store.CountActiveSpawns(ctx, now)
	if err != nil {
		log.Printf("[Scheduler] Metrics: spawn count failed: %v", err)
		return
	}
	totalPlayers, activePlayers, err := s.store.CountPlayers(ctx, activePlayerSpan)
	if err != nil {
		log.Printf("[Scheduler] Metrics: player count failed: %v", err)
		return
	}
	log.Printf("[Metrics] titans=%d players=%d active=%d ws=%d",
		activeTitans, totalPlayers, activePlayers, s.hub.TotalConnections())
}

func (s *Scheduler) wsCleanupTick(context.Context) {
	if removed := s.hub.CleanupStale(); len(removed) > 0 {
		log.Printf("[Scheduler] Reaped %d stale subscribers", len(removed))
	}
}
