package cronrunner

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"productradar/internal/jobs"
	"productradar/internal/logger"
)

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(log *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cl := zapCronLogger{l: logger.OrNop(log)}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  log,
		baseCtx: baseCtx,
	}
}

// Add schedules job under name. Failures are logged; a skipped overlapping
// trigger is not a failure.
func (r *Runner) Add(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		start := time.Now()
		err := job(r.baseCtx)
		log := logger.OrNop(r.logger)
		switch {
		case err == nil:
			log.Debug("cron job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
		case errors.Is(err, jobs.ErrAlreadyRunning):
		case errors.Is(err, context.Canceled):
			log.Info("cron job cancelled", zap.String("job", name))
		default:
			log.Warn("cron job failed", zap.String("job", name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		}
	})
}

func (r *Runner) Len() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	logger.OrNop(r.logger).Info("cron started", zap.Int("entries", r.Len()))
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logger.OrNop(r.logger).Info("cron stopped")
}

// zapCronLogger satisfies cron.Logger.
type zapCronLogger struct {
	l *zap.Logger
}

func (z zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.l.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
