package app

import (
	"context"
	"fmt"

	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/cron"
)

// schedulerModule wraps a *cron.Scheduler to satisfy core.Module,
// core.Starter, and core.Stopper, so background jobs participate in the App
// lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "scheduler"}
}

func (m *schedulerModule) Start() error {
	return m.scheduler.Start()
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// wireJobs creates the scheduler with the embedding backfill job and, when
// enabled, the autosave job, and appends it to the app lifecycle.
// Must be called after the services are wired and before Start.
func (rt *Runtime) wireJobs(appCtx *core.AppContext) error {
	cfg := rt.Config
	logger := rt.Logger.With("component", "cron")
	sched := cron.NewScheduler(logger, rt.Metrics)

	jobs := []cron.Job{&cron.EmbeddingBackfillJob{
		Store:        rt.Store,
		Embedder:     rt.Embedder,
		Metrics:      rt.Metrics,
		Logger:       logger,
		BatchSize:    cfg.Embedding.BackfillBatch,
		ScheduleExpr: cfg.Embedding.BackfillSchedule,
	}}
	if cfg.Autosave.Enabled {
		jobs = append(jobs, &cron.AutosaveJob{
			Exporter:     rt.Codec,
			Dir:          cfg.Autosave.Dir,
			Keep:         cfg.Autosave.Keep,
			Logger:       logger,
			ScheduleExpr: cfg.Autosave.Schedule,
		})
	}
	for _, j := range jobs {
		if err := sched.RegisterJob(j); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	rt.Scheduler = sched
	appCtx.RegisterService(cron.SchedulerService, sched)
	rt.app.AppendModule("scheduler", &schedulerModule{scheduler: sched})
	logger.Info("scheduler wired", "jobs", sched.Jobs())
	return nil
}
