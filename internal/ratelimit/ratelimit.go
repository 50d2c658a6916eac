// Package ratelimit provides a store-backed fixed-window rate limiter.
//
// Counters live in the database rather than process memory: the functions
// that need throttling run one-request-per-invocation, and separate
// instances never share an in-memory map.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// ErrLimited is returned when a user has exhausted an action's window budget
type ErrLimited struct {
	Action     string
	RetryAfter time.Duration
}

func (e *ErrLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Action, e.RetryAfter.Round(time.Second))
}

// Limiter enforces a per-user, per-action budget over a fixed window
type Limiter struct {
	repo   storage.RateLimitRepository
	window time.Duration
	max    int
	now    func() time.Time
}

// NewLimiter creates a limiter allowing max calls per window per user
func NewLimiter(repo storage.RateLimitRepository, window time.Duration, max int) *Limiter {
	return &Limiter{
		repo:   repo,
		window: window,
		max:    max,
		now:    time.Now,
	}
}

// Allow consumes one unit of the user's budget for the action, returning
// *ErrLimited once the window budget is spent.
func (l *Limiter) Allow(userID, action string) error {
	now := l.now().UTC()
	windowStart := now.Truncate(l.window)

	count, err := l.repo.IncrementRateCounter(userID, action, windowStart)
	if err != nil {
		return fmt.Errorf("incrementing rate counter: %w", err)
	}

	if count > l.max {
		return &ErrLimited{
			Action:     action,
			RetryAfter: windowStart.Add(l.window).Sub(now),
		}
	}
	return nil
}
