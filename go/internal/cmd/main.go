package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teamaction/geohunt/go/internal/broadcast"
	"github.com/teamaction/geohunt/go/internal/gateway"
	"github.com/teamaction/geohunt/go/internal/recoverystore"
	"github.com/teamaction/geohunt/go/internal/teamstore"
	"github.com/teamaction/geohunt/go/internal/teamsync"
	"github.com/teamaction/geohunt/go/internal/votestore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	var (
		bus      broadcast.Bus
		votes    teamsync.VoteStore
		teams    teamsync.TeamStore
		recovery teamsync.RecoveryStore
		purge    *recoverystore.Repository
	)
	if cfg.Dev {
		log.Warn().Msg("dev mode: in-process bus and stores, state is not durable")
		bus = broadcast.NewMemoryBus()
		votes = votestore.NewMemory()
		teams = teamstore.NewMemory()
		recovery = recoverystore.NewMemory(clockwork.NewRealClock())
	} else {
		db, dsn, err := setupDatabase()
		if err != nil {
			log.Fatal().Err(err).Msg("database setup failed")
		}
		defer db.Close()

		natsCfg := broadcast.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsBus, err := broadcast.NewNATSBus(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("NATS setup failed")
		}
		bus = natsBus

		votes = votestore.NewRepository(db, dsn)
		teams = teamstore.NewRepository(db)
		recoveryRepo := recoverystore.NewRepository(db)
		recovery = recoveryRepo
		purge = recoveryRepo
	}
	defer bus.Close()

	gw := gateway.New(gateway.DefaultConnectionConfig(), cfg.syncConfig(), bus, votes, teams, recovery, cfg.Server.DataDir)
	server := setupServer(cfg, gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if purge != nil {
		go purgeLoop(ctx, purge)
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("sync server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	gw.Shutdown()

	log.Info().Msg("sync server shutdown complete")
}

// purgeLoop drops expired recovery codes every few minutes. Redemption
// never depends on this; it only keeps the table small.
func purgeLoop(ctx context.Context, repo *recoverystore.Repository) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("recovery code purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("expired recovery codes removed")
			}
		case <-ctx.Done():
			return
		}
	}
}
