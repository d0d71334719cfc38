package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

// Fallback fronts a remote store with a local cache. Every snapshot read from or written to the
// primary is mirrored into the cache, and reads are served from the cache while the primary is
// unavailable. Writes are never acknowledged from the cache alone.
type Fallback struct {
	Primary StateStore
	Cache   StateStore
	Logger  *logrus.Logger
}

func NewFallback(primary, cache StateStore, logger *logrus.Logger) *Fallback {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fallback{Primary: primary, Cache: cache, Logger: logger}
}

func (f *Fallback) Get(ctx context.Context, code string) (models.GameState, error) {
	s, err := f.Primary.Get(ctx, code)
	if err == nil {
		f.mirror(ctx, s)
		return s, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return s, err
	}
	cached, cerr := f.Cache.Get(ctx, code)
	if cerr != nil {
		f.Logger.WithFields(logrus.Fields{"game": code}).Warnf("primary unavailable and no cached snapshot: %v", cerr)
		return models.GameState{}, err
	}
	f.Logger.WithFields(logrus.Fields{"game": code, "version": cached.LastStateUpdate}).Debug("serving cached snapshot")
	return cached, nil
}

func (f *Fallback) Put(ctx context.Context, state models.GameState) error {
	if err := f.Primary.Put(ctx, state); err != nil {
		return err
	}
	f.mirror(ctx, state)
	return nil
}

// PutIfVersion performs a compare-and-swap when the primary supports it and a plain Put otherwise.
func (f *Fallback) PutIfVersion(ctx context.Context, state models.GameState, expected int64) error {
	vs, ok := f.Primary.(VersionedStore)
	if !ok {
		return f.Put(ctx, state)
	}
	if err := vs.PutIfVersion(ctx, state, expected); err != nil {
		return err
	}
	f.mirror(ctx, state)
	return nil
}

func (f *Fallback) Delete(ctx context.Context, code string) error {
	if err := f.Cache.Delete(ctx, code); err != nil && !errors.Is(err, ErrNotFound) {
		f.Logger.WithFields(logrus.Fields{"game": code}).Warnf("failed to drop cached snapshot: %v", err)
	}
	return f.Primary.Delete(ctx, code)
}

func (f *Fallback) Watch(ctx context.Context, code string) (<-chan int64, error) {
	w, ok := f.Primary.(Watcher)
	if !ok {
		return nil, fmt.Errorf("primary store %T does not support change notifications", f.Primary)
	}
	return w.Watch(ctx, code)
}

func (f *Fallback) mirror(ctx context.Context, s models.GameState) {
	if err := f.Cache.Put(ctx, s); err != nil {
		f.Logger.WithFields(logrus.Fields{"game": s.GameCode}).Warnf("failed to cache snapshot: %v", err)
	}
}
