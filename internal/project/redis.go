package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/nerrad567/cuelogic-core/internal/container"
)

// DefaultRedisPrefix is the key prefix of a RedisStore.
const DefaultRedisPrefix = "cuelogic:project:"

// defaultExecutionCap bounds the execution list of one project.
const defaultExecutionCap = 1000

// RedisStore keeps snapshots and the execution log in Redis.
//
// Keys, below the prefix:
//
//	snapshot:{name}    JSON snapshot
//	index              sorted set of names, scored by last save
//	executions:{name}  list of JSON execution records, newest first
type RedisStore struct {
	client  *backend.Client
	prefix  string
	execCap int64
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithExecutionCap sets how many execution records are kept per project.
func WithExecutionCap(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.execCap = int64(n)
		}
	}
}

// NewRedisStore connects to Redis at address.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb, opts...)
}

// NewRedisStoreFromClient creates a store on an existing client. Close
// closes the client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  DefaultRedisPrefix,
		execCap: defaultExecutionCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(name string) string {
	return s.prefix + "snapshot:" + name
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) executionsKey(project string) string {
	return s.prefix + "executions:" + project
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, name string, snap *container.Snapshot) error {
	if name == "" {
		return ErrInvalidName
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(name), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().Unix()),
		Member: name,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving to redis: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, name string) (*container.Snapshot, error) {
	val, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading from redis: %w", err)
	}

	var snap container.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	return &snap, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Delete implements Store. The execution log of the project is removed too.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(name), s.executionsKey(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting from redis: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// AppendExecution implements ExecutionLog.
func (s *RedisStore) AppendExecution(ctx context.Context, rec ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling execution: %w", err)
	}

	key := s.executionsKey(rec.Project)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.execCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording execution: %w", err)
	}
	return nil
}

// Executions implements ExecutionLog.
func (s *RedisStore) Executions(ctx context.Context, project, actionAddr string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = defaultExecutionLimit
	}

	// Without a filter only the head of the list is needed.
	stop := int64(-1)
	if actionAddr == "" {
		stop = int64(limit) - 1
	}
	vals, err := s.client.LRange(ctx, s.executionsKey(project), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("reading executions: %w", err)
	}

	var records []ExecutionRecord
	for _, val := range vals {
		var rec ExecutionRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("unmarshalling execution: %w", err)
		}
		if actionAddr != "" && rec.Action != actionAddr {
			continue
		}
		records = append(records, rec)
		if len(records) == limit {
			break
		}
	}
	return records, nil
}
