package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stayhub/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLockRepository uses the primary until it errors, then serves from
// the fallback and probes the primary again once per recoveryInterval.
type FailoverLockRepository struct {
	primary   domain.LockRepository
	fallback  domain.LockRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLockRepository(primary, fallback domain.LockRepository, logger *zerolog.Logger) *FailoverLockRepository {
	return &FailoverLockRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverLockRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverLockRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary lock repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverLockRepository) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary lock repository recovered")
	}
}

func (r *FailoverLockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if r.usePrimary() {
		token, ok, err := r.primary.Acquire(ctx, key, ttl)
		if err == nil {
			r.markUp()
			return token, ok, nil
		}
		r.markDown(err)
	}

	return r.fallback.Acquire(ctx, key, ttl)
}

// Release tries both stores; the token is only known to the one that issued it.
func (r *FailoverLockRepository) Release(ctx context.Context, key, token string) error {
	if !r.isDown.Load() {
		if err := r.primary.Release(ctx, key, token); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.Release(ctx, key, token)
}

func (r *FailoverLockRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
