// Package historian drains the action-record queue that clients publish to and archives the
// records in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

const (
	DefaultBatchSize  = 20
	DefaultFlushDelay = 500 * time.Millisecond

	// popWait bounds each BLPOP so timed flushes are noticed. Redis rounds anything shorter up to 1s.
	popWait = time.Second
)

// Sink persists a batch of records. database.InsertActionRecords bound to a pool is the production sink.
type Sink func(ctx context.Context, records []models.ActionRecord) error

// Service pops action records from a Redis list and hands them to a Sink, flushing whenever the
// batch is full or the flush delay has passed.
type Service struct {
	rdb        *redis.Client
	queue      string
	sink       Sink
	logger     *logrus.Logger
	batchSize  int
	flushDelay time.Duration

	batchMu   sync.Mutex
	batch     []models.ActionRecord
	lastFlush time.Time
}

// Options tune a Service. Zero values select the defaults.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
}

func NewService(rdb *redis.Client, sink Sink, logger *logrus.Logger, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = DefaultFlushDelay
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:        rdb,
		queue:      opts.Queue,
		sink:       sink,
		logger:     logger,
		batchSize:  opts.BatchSize,
		flushDelay: opts.FlushDelay,
		batch:      make([]models.ActionRecord, 0, opts.BatchSize),
		lastFlush:  time.Now(),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what it still holds.
func (hs *Service) Run(ctx context.Context) error {
	hs.logger.WithField("queue", hs.queue).Info("historian started")

	for {
		if ctx.Err() != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := hs.Flush(flushCtx)
			cancel()
			hs.logger.Info("historian shutting down")
			return err
		}

		res, err := hs.rdb.BLPop(ctx, popWait, hs.queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			if ctx.Err() == nil {
				hs.logger.Errorf("BLPop: %v", err)
				sleep(ctx, popWait)
			}
		case len(res) == 2:
			// res[0] is the queue name and res[1] the payload.
			var record models.ActionRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				hs.logger.Warnf("invalid action record: %v", err)
				break
			}
			hs.append(record)
		}

		if hs.due() {
			if err := hs.Flush(ctx); err != nil && ctx.Err() == nil {
				hs.logger.Errorf("flush: %v", err)
			}
		}
	}
}

func (hs *Service) append(record models.ActionRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.batch = append(hs.batch, record)
}

func (hs *Service) due() bool {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	return len(hs.batch) >= hs.batchSize || (len(hs.batch) > 0 && time.Since(hs.lastFlush) >= hs.flushDelay)
}

// Flush writes the pending batch. On failure the records are kept for the next attempt.
func (hs *Service) Flush(ctx context.Context) error {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.lastFlush = time.Now()
	if len(hs.batch) == 0 {
		return nil
	}
	batchCopy := make([]models.ActionRecord, len(hs.batch))
	copy(batchCopy, hs.batch)

	if err := hs.sink(ctx, batchCopy); err != nil {
		return err
	}
	hs.batch = hs.batch[:0]
	hs.logger.Debugf("Flushed %d actions.", len(batchCopy))
	return nil
}

// Pending reports how many popped records are waiting to be flushed.
func (hs *Service) Pending() int {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	return len(hs.batch)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
