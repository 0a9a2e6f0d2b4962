package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/titanbreach/breach-server/internal/api"
	"github.com/titanbreach/breach-server/internal/config"
	"github.com/titanbreach/breach-server/internal/scheduler"
	"github.com/titanbreach/breach-server/internal/state"
)

func main() {
	log.Println("Starting Titan Breach authoritative game server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := state.New(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server state: %v", err)
	}
	defer st.Close()

	sched := scheduler.New(st.Store, st.Hub, st.Spawner, st.PvP)
	go sched.Run(ctx)

	router := api.SetupRouter(st)
	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server running on %s (env %s)", srv.Addr, cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
