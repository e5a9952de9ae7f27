package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another operation currently owns the lock.
var ErrLockHeld = errors.New("resource locked by another operation")

// ReceiptLock serializes receipt creation and approval against one purchase
// order. Concurrent weighted-average updates on the same stock row race unless
// operations on the same PO run one at a time.
type ReceiptLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReceiptLock constructs the lock manager.
func NewReceiptLock(client *redis.Client, ttl time.Duration) *ReceiptLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ReceiptLock{client: client, ttl: ttl}
}

func receiptLockKey(poID uuid.UUID) string {
	return fmt.Sprintf("procurement:po:%s:lock", poID)
}

// Acquire takes the per-PO lock and returns a release function. Returns
// ErrLockHeld when another operation holds it; the caller retries.
func (l *ReceiptLock) Acquire(ctx context.Context, poID uuid.UUID) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := receiptLockKey(poID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		// Release only if we still own the lock.
		const script = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
		_ = l.client.Eval(context.Background(), script, []string{key}, token).Err()
	}
	return release, nil
}
