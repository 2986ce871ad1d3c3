package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
)

const DefaultRedisKey = "agent-tools:bridge:references"

// claimScript writes ARGV[2] under field ARGV[1] unless the current entry
// exists and did not end in error, in which case it returns that entry.
const claimScript = `
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current then
	local ok, entry = pcall(cjson.decode, current)
	if not ok or entry.status ~= 'error' then
		return current
	end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return false
`

// hashCommands is the part of the redis client the store uses
type hashCommands interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Close() error
}

// RedisStore keeps entries in one Redis hash so several hosts share the
// same reference id claims
type RedisStore struct {
	client hashCommands
	key    string
}

// NewRedisStore connects to url and checks the connection
func NewRedisStore(ctx context.Context, url, key string) (*RedisStore, error) {
	if url == "" {
		return nil, apperr.New(apperr.KindConfig, "journal", "redis URL is not set (journal.redis_url)")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisStore(rdb, key), nil
}

func newRedisStore(client hashCommands, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Claim records a new in-flight entry. The check and the write run as one
// script so two hosts cannot both reclaim an entry that ended in error.
func (s *RedisStore) Claim(ctx context.Context, entry Entry) error {
	now := time.Now().UTC()
	entry.Status = StatusInFlight
	entry.CreatedAt = now
	entry.UpdatedAt = now

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	current, err := s.client.Eval(ctx, claimScript, []string{s.key}, entry.ReferenceID, data).Text()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to claim reference id: %w", err)
	}

	existing := Entry{ReferenceID: entry.ReferenceID, Status: "unreadable"}
	if err := json.Unmarshal([]byte(current), &existing); err != nil {
		zap.L().Warn("Unreadable journal entry blocks claim",
			zap.String("reference_id", entry.ReferenceID), zap.Error(err))
	}
	return duplicateError(existing)
}

// Update replaces an existing entry
func (s *RedisStore) Update(ctx context.Context, entry Entry) error {
	existing, err := s.Get(ctx, entry.ReferenceID)
	if err != nil {
		return err
	}
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, entry.ReferenceID, data).Err(); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by reference id
func (s *RedisStore) Get(ctx context.Context, referenceID string) (*Entry, error) {
	raw, err := s.client.HGet(ctx, s.key, referenceID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, referenceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// List returns all entries, newest first
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	entries := make([]Entry, 0, len(all))
	for ref, raw := range all {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry %s: %w", ref, err)
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
