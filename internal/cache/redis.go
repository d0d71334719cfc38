// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

// DefaultQueueName is the Redis list (queue) name for archived game actions.
const DefaultQueueName = "pokerbank_actions"

const keyPrefix = "pokerbank:game:"

// ConnectRedis opens a client for addr/db and verifies it with a ping.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Store keeps each game's snapshot as a JSON string and announces every write on a Pub/Sub channel.
// It implements store.VersionedStore and store.Watcher.
type Store struct {
	rdb *redis.Client
	// TTL expires abandoned games. Zero keeps snapshots forever.
	TTL time.Duration
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func snapshotKey(code string) string { return keyPrefix + code }

func updatesChannel(code string) string { return keyPrefix + code + ":updates" }

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

func (s *Store) Get(ctx context.Context, code string) (models.GameState, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.GameState{}, store.ErrNotFound
	}
	if err != nil {
		return models.GameState{}, unavailable(err)
	}
	var state models.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.GameState{}, fmt.Errorf("corrupt snapshot for %s: %w", code, err)
	}
	return state, nil
}

func (s *Store) Put(ctx context.Context, state models.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, snapshotKey(state.GameCode), data, s.TTL)
		pipe.Publish(ctx, updatesChannel(state.GameCode), state.LastStateUpdate)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// PutIfVersion writes state only if the stored snapshot's version equals expected, using
// WATCH/MULTI so a concurrent writer aborts the transaction.
func (s *Store) PutIfVersion(ctx context.Context, state models.GameState, expected int64) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	key := snapshotKey(state.GameCode)

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return store.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.TTL)
			pipe.Publish(ctx, updatesChannel(state.GameCode), state.LastStateUpdate)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return store.ErrConflict
	default:
		return unavailable(err)
	}
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		LastStateUpdate int64 `json:"lastStateUpdate"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, err
	}
	return head.LastStateUpdate, nil
}

func (s *Store) Delete(ctx context.Context, code string) error {
	if err := s.rdb.Del(ctx, snapshotKey(code)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Watch subscribes to write notifications for code.
func (s *Store) Watch(ctx context.Context, code string) (<-chan int64, error) {
	sub := s.rdb.Subscribe(ctx, updatesChannel(code))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, unavailable(err)
	}

	out := make(chan int64, 8)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				v, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				select {
				case out <- v:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Publisher queues action records for the historian on a Redis list.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

func NewPublisher(rdb *redis.Client, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// Record serializes the given record to JSON, then pushes it to the Redis queue.
func (p *Publisher) Record(ctx context.Context, record models.ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
