// Package state is the process-wide dependency container: constructed once
// at startup, injected into every handler and background task.
package state

import (
	"context"
	"log"

	"github.com/titanbreach/breach-server/internal/cache"
	"github.com/titanbreach/breach-server/internal/capture"
	"github.com/titanbreach/breach-server/internal/chain"
	"github.com/titanbreach/breach-server/internal/config"
	"github.com/titanbreach/breach-server/internal/db"
	"github.com/titanbreach/breach-server/internal/location"
	"github.com/titanbreach/breach-server/internal/pvp"
	"github.com/titanbreach/breach-server/internal/spawn"
	"github.com/titanbreach/breach-server/internal/ws"
)

// State holds every long-lived handle. Chain and cache are optional; the
// server degrades to off-chain / DB-authoritative behavior without them.
type State struct {
	Config   *config.Config
	Store    *db.Store
	Cache    *cache.Client
	Hub      *ws.Hub
	Chain    *chain.Broker
	Verifier *location.Verifier
	Spawner  *spawn.Engine
	Capture  *capture.Broker
	PvP      *pvp.Service
}

// New wires the container. Postgres is required; Redis and the chain RPC
// are best-effort at startup.
func New(ctx context.Context, cfg *config.Config) (*State, error) {
	store, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	cacheClient, err := cache.Connect(ctx, cfg.Cache)
	if err != nil {
		log.Printf("[State] Cache unavailable, continuing without it: %v", err)
		cacheClient = nil
	}

	var broker *chain.Broker
	rpc := chain.NewClient(cfg.Chain.RPCURL)
	if err := rpc.Healthcheck(ctx); err != nil {
		log.Printf("[State] Chain RPC unavailable, continuing off-chain only: %v", err)
	} else {
		broker, err = chain.NewBroker(rpc, cfg.Chain)
		if err != nil {
			log.Printf("[State] Chain broker disabled: %v", err)
			broker = nil
		}
	}

	hub := ws.NewHub(cfg.WS.IdleTimeout)
	st := &State{
		Config:   cfg,
		Store:    store,
		Cache:    cacheClient,
		Hub:      hub,
		Chain:    broker,
		Verifier: location.NewVerifier(store, cfg.Game),
		Spawner:  spawn.NewEngine(store, hub),
		PvP:      pvp.NewService(store, broker),
	}
	st.Capture = capture.NewBroker(store, cacheClient, broker, hub, cfg)
	return st, nil
}

// Close releases every held resource.
func (s *State) Close() {
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			log.Printf("[State] Cache close: %v", err)
		}
	}
	s.Store.Close()
}
