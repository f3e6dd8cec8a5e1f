package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyProductLock = "storefront:batch_edit:lock:%s"

// releaseIfOwner deletes the lock only while it still carries the lease token,
// so an expired lease never frees a lock taken over by a later edit.
const releaseIfOwner = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var errEmptyProductID = errors.New("product id is empty")

// ProductLocker keeps two batch edits of one product from running at once
// across every instance sharing the Redis database. A lease expires after ttl
// even when its holder never releases it.
type ProductLocker struct {
	client  *redis.Client
	release *redis.Script
	ttl     time.Duration
}

// Lease is a held product lock.
type Lease struct {
	ProductID string
	Holder    string

	locker *ProductLocker
	token  string
}

func NewProductLocker(client *redis.Client, ttl time.Duration) (*ProductLocker, error) {
	if client == nil {
		return nil, errors.New("product lock requires a redis client")
	}
	if ttl <= 0 {
		return nil, errors.New("product lock ttl must be positive")
	}
	return &ProductLocker{
		client:  client,
		release: redis.NewScript(releaseIfOwner),
		ttl:     ttl,
	}, nil
}

func productLockKey(productID string) string {
	return fmt.Sprintf(keyProductLock, productID)
}

// Acquire takes the lock of productID for holder. It returns a nil lease when
// another batch edit holds the lock.
func (l *ProductLocker) Acquire(ctx context.Context, productID, holder string) (*Lease, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errEmptyProductID
	}
	holder = strings.TrimSpace(holder)

	token := holder + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, productLockKey(productID), token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock product %s: %w", productID, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{ProductID: productID, Holder: holder, locker: l, token: token}, nil
}

// HolderOf reports who holds the lock of productID, or "" when it is free.
func (l *ProductLocker) HolderOf(ctx context.Context, productID string) (string, error) {
	token, err := l.client.Get(ctx, productLockKey(strings.TrimSpace(productID))).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	holder, _, _ := strings.Cut(token, "/")
	return holder, nil
}

// Release frees the lock if the lease still owns it. Releasing a nil lease is
// a no-op.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.locker == nil {
		return nil
	}
	return le.locker.release.Run(ctx, le.locker.client, []string{productLockKey(le.ProductID)}, le.token).Err()
}
