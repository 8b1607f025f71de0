package bootstrap

import (
	"context"
	"os"

	"suggest_server/adapter/in/worker"
	"suggest_server/config"

	"github.com/rs/zerolog"
)

// Worker runs the background refresh scheduler.
type Worker struct {
	scheduler *worker.RefreshScheduler
	deps      *Dependencies
	ctx       context.Context
	cancel    context.CancelFunc
	zlog      zerolog.Logger
}

func NewWorker(cfg *config.Config, deps *Dependencies) *Worker {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	scheduler := worker.NewRefreshScheduler(
		deps.SuggestionService,
		deps.TokenRepo,
		cfg.RefreshInterval(),
		cfg.RefreshTimeBudget(),
		cfg.CatchUpLockTTL(),
		cfg.CatchUpMaxMessages,
	)
	deps.SuggestionService.SetCatchUpScheduler(scheduler)

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		scheduler: scheduler,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		zlog:      zlog,
	}
}

// Scheduler exposes the refresh scheduler so the HTTP layer can wire
// read-triggered catch-up refreshes against the same lock registry.
func (w *Worker) Scheduler() *worker.RefreshScheduler {
	return w.scheduler
}

func (w *Worker) Start() {
	w.scheduler.Start()
	w.zlog.Info().Msg("Started Refresh Scheduler")

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	w.scheduler.Stop()
	w.zlog.Info().Msg("Worker stopped")
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
