package service

import (
	"context"
	"fmt"
	"time"

	"stayhub/internal/domain"
	"stayhub/internal/models"

	"github.com/rs/zerolog"
)

const lockBackoff = 50 * time.Millisecond

// PropertyLocker serializes reservation writes per property across instances.
type PropertyLocker struct {
	locks   domain.LockRepository
	ttl     time.Duration
	retries int
	backoff time.Duration
	logger  *zerolog.Logger
}

func NewPropertyLocker(locks domain.LockRepository, ttl time.Duration, retries int, logger *zerolog.Logger) *PropertyLocker {
	if ttl <= 0 {
		ttl = models.DefaultLockTTL
	}
	if retries <= 0 {
		retries = models.DefaultLockRetries
	}
	return &PropertyLocker{
		locks:   locks,
		ttl:     ttl,
		retries: retries,
		backoff: lockBackoff,
		logger:  logger,
	}
}

func propertyLockKey(propertyID int64) string {
	return fmt.Sprintf("property:%d", propertyID)
}

// WithLock runs fn while holding the property's lock. ErrLockBusy is returned
// when the lock stays taken for every attempt.
func (l *PropertyLocker) WithLock(ctx context.Context, propertyID int64, fn func() error) error {
	if l == nil || l.locks == nil {
		return fn()
	}

	key := propertyLockKey(propertyID)
	var token string
	for attempt := 0; ; attempt++ {
		t, ok, err := l.locks.Acquire(ctx, key, l.ttl)
		if err != nil {
			return fmt.Errorf("acquire property lock: %w", err)
		}
		if ok {
			token = t
			break
		}
		if attempt+1 >= l.retries {
			return ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff):
		}
	}

	defer func() {
		// Release must outlive a cancelled request context.
		if err := l.locks.Release(context.WithoutCancel(ctx), key, token); err != nil {
			l.logger.Warn().Err(err).Int64("property_id", propertyID).Msg("failed to release property lock")
		}
	}()

	return fn()
}
