package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	scoringrepo "agency_portal_backend/internal/scoring/repository"
	scoringservice "agency_portal_backend/internal/scoring/service"
	"agency_portal_backend/internal/scoring/weights"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"
)

// One-off batch recompute for every active client. Useful after changing
// weight tables or importing historical metric snapshots.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	table, err := weights.Load(cfg.WeightsFile)
	if err != nil {
		log.Error("failed to load weight tables", "error", err)
		os.Exit(1)
	}

	repo := scoringrepo.New(pool)
	svc := scoringservice.New(repo, table, nil, log)

	ids, err := repo.ListActiveClientIDs(ctx)
	if err != nil {
		log.Error("failed to list active clients", "error", err)
		os.Exit(1)
	}
	log.Info("score backfill starting", "clients", len(ids))

	updated, failed := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			log.Warn("score backfill interrupted", "updated", updated, "failed", failed)
			return
		}

		score, err := svc.UpdateScore(ctx, id)
		if err != nil {
			failed++
			log.Warn("score backfill failed for client", "client_id", id.String(), "error", err)
			continue
		}
		updated++
		log.Info("score backfill updated client", "client_id", id.String(), "score", score)
	}

	log.Info("score backfill complete", "updated", updated, "failed", failed)
}
