package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "arena.yaml", "Path to YAML config (optional)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	clientDir := flag.String("client", "", "Path to client directory (overrides config)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		boot := newLogger(LogConfig{Level: "info"})
		boot.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *clientDir != "" {
		cfg.Server.ClientDir = *clientDir
	}

	log := newLogger(cfg.Log)
	metrics := NewMetrics()

	var (
		db     *DB
		auth   *Auth
		ledger *Ledger
		rec    MatchRecorder
	)
	if cfg.Database.Path != "" {
		db, err = OpenDB(cfg.Database.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("open database")
		}
		defer db.Close()
		auth, err = NewAuth(db, cfg.Auth, componentLogger(log, "auth"))
		if err != nil {
			log.Fatal().Err(err).Msg("init auth")
		}
		ledger = NewLedger(db, componentLogger(log, "ledger"), metrics)
		rec = ledger
	} else {
		log.Warn().Msg("database disabled, matches and accounts are not persisted")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	arena := NewArena(*cfg, componentLogger(log, "arena"), metrics, rec)
	go arena.Run(ctx)

	hub := NewHub(arena, db, auth, cfg.Server, componentLogger(log, "hub"), metrics)
	go hub.Run(ctx.Done())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           SetupRoutes(hub, metrics, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("client", cfg.Server.ClientDir).Msg("server starting")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	server.Shutdown(shutdownCtx)
	arena.Stop()
	if ledger != nil {
		ledger.Stop()
	}
}
