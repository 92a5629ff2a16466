package joblock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "sims:job:"

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrNotConfigured = errors.New("job_lock_not_configured")
	ErrEmptyJob      = errors.New("job_lock_empty_job")
	ErrInvalidTTL    = errors.New("job_lock_invalid_ttl")
)

// Locker keeps two worker processes from running the same job at once.
// A lock is a redis key holding a random token; only the holder of the
// token may release it and an abandoned lock expires after its ttl.
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

func Key(job string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(job))
}

// TryLock returns the lock token and true when the job was free.
func (l *Locker) TryLock(ctx context.Context, job string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrNotConfigured
	}
	if strings.TrimSpace(job) == "" {
		return "", false, ErrEmptyJob
	}
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, Key(job), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, job, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if job == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{Key(job)}, token).Err()
}
