// Command ingestd runs the daily refresh loop: for every registered user it
// executes the collector, then derives today's phase prediction from the
// newest stored cycle data.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/cycletrack/internal/config"
	"example.com/cycletrack/internal/cycle"
	"example.com/cycletrack/internal/domain"
	"example.com/cycletrack/internal/ingest"
	persistence "example.com/cycletrack/internal/persistence/postgres"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}

	runner := ingest.NewRunner(cfg.CollectorBin, repo, logger)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	logger.Info("ingestd started", zap.Duration("interval", cfg.RefreshInterval))
	refreshAll(ctx, repo, runner, logger)

	for {
		select {
		case <-shutdownCh:
			logger.Info("ingestd stopping")
			cancel()
			return
		case <-ticker.C:
			refreshAll(ctx, repo, runner, logger)
		}
	}
}

func refreshAll(ctx context.Context, repo *persistence.Repository, runner *ingest.Runner, logger *zap.Logger) {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		logger.Error("listing users failed", zap.Error(err))
		return
	}
	logger.Info("daily refresh starting", zap.Int("users", len(users)))

	for _, user := range users {
		if ctx.Err() != nil {
			return
		}
		runner.Refresh(ctx, user.Email, user.Password, user.ID)
		if err := recordTodayPhase(ctx, repo, user.ID); err != nil {
			logger.Warn("phase prediction skipped",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}

	logger.Info("daily refresh finished")
}

// recordTodayPhase projects the newest prediction forward to today and
// inserts a row for it. A rerun on the same day violates the
// (user_id, start_date) constraint and is rejected by the store, which is
// the intended dedupe.
func recordTodayPhase(ctx context.Context, repo *persistence.Repository, userID string) error {
	latest, err := repo.LatestPhaseByUser(ctx, userID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	elapsed := int(today.Sub(latest.StartDate.Truncate(24*time.Hour)).Hours() / 24)
	day := latest.CycleDay + elapsed
	if day == latest.CycleDay {
		return nil
	}

	phase, _, err := cycle.Classify(day)
	if err != nil {
		// Past the reference cycle with no new cycle start observed;
		// wraparound is undefined, so leave the gap for the collector.
		return err
	}

	return repo.InsertPhasePrediction(ctx, domain.PhasePrediction{
		UserID:         userID,
		StartDate:      today,
		CycleDay:       day,
		PredictedPhase: string(phase),
	})
}
