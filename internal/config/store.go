package config

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/cache"
	"github.com/jason-s-yu/pokerbank/internal/database"
	"github.com/jason-s-yu/pokerbank/internal/store"
	"github.com/jason-s-yu/pokerbank/internal/store/httpstore"
)

// Backend is an opened state store plus whatever else the chosen backend offers.
type Backend struct {
	Store store.StateStore
	// Watcher is set when the backend can push change notifications.
	Watcher store.Watcher
	// Recorder publishes action records for the historian; nil when the backend has no queue.
	Recorder *cache.Publisher
	// HTTP is set for the http backend so callers can create games and hold the host token.
	HTTP *httpstore.Client

	closers []func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// OpenBackend connects the store selected by STORE_BACKEND.
func (c Config) OpenBackend(ctx context.Context, logger *logrus.Logger) (*Backend, error) {
	b := &Backend{}
	switch c.StoreBackend {
	case BackendMemory:
		m := store.NewMemory()
		b.Store, b.Watcher = m, m

	case BackendRedis:
		rdb, err := cache.ConnectRedis(c.RedisAddr, c.RedisDB)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { rdb.Close() })
		rs := cache.NewStore(rdb)
		b.Store, b.Watcher = rs, rs
		b.Recorder = cache.NewPublisher(rdb, c.HistorianQueueName)

	case BackendPostgres:
		pool, err := database.ConnectDB(ctx, c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.Store = database.NewStore(pool)

	case BackendHTTP:
		hc := httpstore.New(c.ServerURL)
		b.Store, b.Watcher, b.HTTP = hc, hc, hc

	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	logger.WithField("backend", c.StoreBackend).Info("state store ready")
	return b, nil
}
