package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kerm1977/rifas/internal/logger"
)

const defaultHold = 30 * time.Second

// Redis holds raffle numbers while a claim for them is in flight.
// The database constraint stays authoritative: a held number is still offered
// to the store, so a hold left by a crashed claim never blocks a free number.
type Redis struct {
	Client *redis.Client
	Hold   time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, hold time.Duration, log *logger.Logger) *Redis {
	if hold <= 0 {
		hold = defaultHold
	}
	return &Redis{
		Client: client,
		Hold:   hold,
		Logger: log,
	}
}

func lockKey(raffleID int64, number string) string {
	return fmt.Sprintf("raffle_lock:%d:%s", raffleID, number)
}

// LockNumber holds a single number for owner.
func (r *Redis) LockNumber(ctx context.Context, raffleID int64, number, owner string) (bool, error) {
	return r.Client.SetNX(ctx, lockKey(raffleID, number), owner, r.Hold).Result()
}

// UnlockNumber drops the hold only if owner still has it.
func (r *Redis) UnlockNumber(ctx context.Context, raffleID int64, number, owner string) error {
	key := lockKey(raffleID, number)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		return r.Client.Del(ctx, key).Err()
	}
	return nil
}

// LockNumbers holds every free number for owner. Numbers held by someone else
// are returned in busy. On a Redis error every hold taken so far is dropped.
func (r *Redis) LockNumbers(ctx context.Context, raffleID int64, numbers []string, owner string) (locked []string, busy []string, err error) {
	for _, num := range numbers {
		ok, err := r.LockNumber(ctx, raffleID, num, owner)
		if err != nil {
			_ = r.UnlockNumbers(ctx, raffleID, locked, owner)
			return nil, nil, err
		}
		if !ok {
			busy = append(busy, num)
			continue
		}
		locked = append(locked, num)
	}
	if len(busy) > 0 && r.Logger != nil {
		r.Logger.Debug("REDIS", fmt.Sprintf("raffle %d: numbers %v held by another claim", raffleID, busy))
	}
	return locked, busy, nil
}

// UnlockNumbers drops owner's holds, returning the first error.
func (r *Redis) UnlockNumbers(ctx context.Context, raffleID int64, numbers []string, owner string) error {
	var firstErr error
	for _, num := range numbers {
		if err := r.UnlockNumber(ctx, raffleID, num, owner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Noop is used when Redis is disabled: every number is free.
type Noop struct{}

func (Noop) LockNumbers(_ context.Context, _ int64, numbers []string, _ string) ([]string, []string, error) {
	return numbers, nil, nil
}

func (Noop) UnlockNumbers(context.Context, int64, []string, string) error {
	return nil
}
