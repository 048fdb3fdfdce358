package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/raceresults/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
)

// RecomputeRankingsArgs asks for a race's ranks to be recomputed.
type RecomputeRankingsArgs struct {
	RaceID string `json:"race_id"`
}

// Kind implements river.JobArgs.
func (RecomputeRankingsArgs) Kind() string { return "recompute_rankings" }

// recomputeRanksSQL ranks finished results with a known time. Ties share
// a rank. Every other result of the race loses its ranks.
const recomputeRanksSQL = `
WITH ranked AS (
    SELECT bib_number,
        RANK() OVER (ORDER BY finish_seconds) AS overall,
        CASE WHEN gender <> '' THEN RANK() OVER (PARTITION BY gender ORDER BY finish_seconds) END AS by_gender,
        CASE WHEN category <> '' THEN RANK() OVER (PARTITION BY category ORDER BY finish_seconds) END AS by_category
    FROM race_results
    WHERE race_id = $1::uuid AND status = 'finished' AND finish_seconds IS NOT NULL
)
UPDATE race_results r SET
    overall_rank  = ranked.overall,
    gender_rank   = ranked.by_gender,
    category_rank = ranked.by_category
FROM ranked
WHERE r.race_id = $1::uuid AND r.bib_number = ranked.bib_number`

const clearRanksSQL = `
UPDATE race_results SET overall_rank = NULL, gender_rank = NULL, category_rank = NULL
WHERE race_id = $1::uuid AND (status <> 'finished' OR finish_seconds IS NULL)
    AND (overall_rank IS NOT NULL OR gender_rank IS NOT NULL OR category_rank IS NOT NULL)`

// RecomputeRanks rewrites the overall, gender and category ranks of a race.
// Run it in a transaction.
func RecomputeRanks(ctx context.Context, db DBTX, raceID string) (int64, error) {
	if _, err := db.Exec(ctx, clearRanksSQL, raceID); err != nil {
		return 0, fmt.Errorf("clear ranks: %w", err)
	}
	tag, err := db.Exec(ctx, recomputeRanksSQL, raceID)
	if err != nil {
		return 0, fmt.Errorf("compute ranks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RankingWorker runs RecomputeRankingsArgs jobs.
type RankingWorker struct {
	river.WorkerDefaults[RecomputeRankingsArgs]
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRankingWorker creates a worker that writes ranks through pool.
func NewRankingWorker(pool *pgxpool.Pool, logger *slog.Logger) *RankingWorker {
	return &RankingWorker{pool: pool, logger: logger}
}

// Work implements river.Worker.
func (w *RankingWorker) Work(ctx context.Context, job *river.Job[RecomputeRankingsArgs]) error {
	raceID := job.Args.RaceID
	if err := validateRaceID(raceID); err != nil {
		return river.JobCancel(err)
	}

	start := time.Now()
	var ranked int64
	err := pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		var err error
		ranked, err = RecomputeRanks(ctx, tx, raceID)
		return err
	})
	if err != nil {
		w.logger.Error("ranking failed", "race_id", raceID, "attempt", job.Attempt, "error", err)
		return err
	}

	w.logger.Info("ranks recomputed",
		"race_id", raceID,
		"rows", ranked,
		"duration", time.Since(start),
	)
	return nil
}

// Ranker schedules ranking jobs on River and, when started, works them.
type Ranker struct {
	client *river.Client[pgx.Tx]
	cfg    config.RankingConfig
	logger *slog.Logger
}

var _ RankingTrigger = (*Ranker)(nil)

// NewRanker creates the River client for the ranking queue.
func NewRanker(pool *pgxpool.Pool, cfg config.RankingConfig, logger *slog.Logger) (*Ranker, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewRankingWorker(pool, logger))

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			cfg.Queue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}

	return &Ranker{client: client, cfg: cfg, logger: logger}, nil
}

// MigrateRiver applies River's own schema.
func MigrateRiver(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("migrate river: %w", err)
	}
	return nil
}

// Start begins working ranking jobs.
func (r *Ranker) Start(ctx context.Context) error {
	if err := r.client.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}
	r.logger.Info("ranking queue started", "queue", r.cfg.Queue)
	return nil
}

// Stop waits for running jobs to finish or ctx to end.
func (r *Ranker) Stop(ctx context.Context) error {
	if err := r.client.Stop(ctx); err != nil {
		return fmt.Errorf("stop river client: %w", err)
	}
	return nil
}

// uniqueStates leaves out completed jobs so a later import of the same race
// schedules a fresh job.
var uniqueStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRetryable,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}

// EnqueueRecompute schedules a rank recomputation after Ranking.Delay.
// Jobs are unique by race, so imports in quick succession share one job.
func (r *Ranker) EnqueueRecompute(ctx context.Context, raceID string) error {
	_, err := r.client.Insert(ctx, RecomputeRankingsArgs{RaceID: raceID}, &river.InsertOpts{
		Queue:       r.cfg.Queue,
		ScheduledAt: time.Now().Add(r.cfg.Delay),
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByState: uniqueStates,
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue ranking for race %s: %w", raceID, err)
	}
	return nil
}
