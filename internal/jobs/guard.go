// Package jobs keeps each named job to at most one active execution.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"productradar/internal/lock"
	"productradar/internal/logger"
	"productradar/internal/metrics"
)

var ErrAlreadyRunning = errors.New("job already running")

const defaultLeaseTTL = 2 * time.Minute

type Lease interface {
	Release(ctx context.Context) error
	KeepAlive(ctx context.Context, onLost func(error))
}

// Locker hands out cross-process leases. ErrNotAcquired-style failures must
// be reported as lock.ErrNotAcquired.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

type redisLocker struct {
	l *lock.Locker
}

func (r redisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	lease, err := r.l.Acquire(ctx, name, ttl)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// NewRedisLocker adapts a Redis locker for the guard.
func NewRedisLocker(l *lock.Locker) Locker {
	if l == nil {
		return nil
	}
	return redisLocker{l: l}
}

// Guard runs jobs by name. A job already running in this process, or holding
// the shared lease elsewhere, is skipped with ErrAlreadyRunning.
type Guard struct {
	mu      sync.Mutex
	running map[string]time.Time

	locker   Locker
	leaseTTL time.Duration
	logger   *zap.Logger
}

func NewGuard(locker Locker, leaseTTL time.Duration, logger *zap.Logger) *Guard {
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	return &Guard{
		running:  map[string]time.Time{},
		locker:   locker,
		leaseTTL: leaseTTL,
		logger:   logger,
	}
}

func (g *Guard) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	log := logger.OrNop(g.logger)
	if !g.tryStart(name) {
		metrics.JobsSkippedTotal.WithLabelValues(name).Inc()
		log.Info("job skipped, previous execution still running", zap.String("job", name))
		return ErrAlreadyRunning
	}
	defer g.finish(name)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if g.locker != nil {
		lease, err := g.locker.Acquire(ctx, name, g.leaseTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			metrics.JobsSkippedTotal.WithLabelValues(name).Inc()
			log.Info("job skipped, lease held by another instance", zap.String("job", name))
			return ErrAlreadyRunning
		}
		if err != nil {
			return fmt.Errorf("acquire lease for %s: %w", name, err)
		}
		go lease.KeepAlive(jobCtx, func(err error) {
			log.Warn("job lease lost, cancelling", zap.String("job", name), zap.Error(err))
			cancel()
		})
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("job lease release failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	start := time.Now()
	err := fn(jobCtx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.JobDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	return err
}

// Running lists active jobs with their start time.
func (g *Guard) Running() map[string]time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]time.Time, len(g.running))
	for k, v := range g.running {
		out[k] = v
	}
	return out
}

func (g *Guard) tryStart(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[name]; ok {
		return false
	}
	g.running[name] = time.Now().UTC()
	return true
}

func (g *Guard) finish(name string) {
	g.mu.Lock()
	delete(g.running, name)
	g.mu.Unlock()
}
