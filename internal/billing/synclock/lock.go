// Package synclock serializes ledger sync per invoice across instances.
// The database uniqueness constraint on (invoice_id, item_type,
// reference_id) is the hard guarantee; the lock just avoids wasted work
// when two generation requests race.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func invoiceKey(invoiceID snowflake.ID) string {
	return fmt.Sprintf("billing:sync:%s", invoiceID.String())
}

// TryLockInvoice acquires the sync lock for one invoice. A nil Locker (no
// redis configured) grants the lock unconditionally.
func (l *Locker) TryLockInvoice(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, invoiceKey(invoiceID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, invoiceID snowflake.ID, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{invoiceKey(invoiceID)}, token).Err()
}
