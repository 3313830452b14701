package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// KV is persistent string storage that outlives a single page. Values stay
// until they are deleted explicitly.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Scoped returns a view of kv whose keys are prefixed with scope. Closing a
// scoped view does not close the underlying store.
func Scoped(kv KV, scope string) KV {
	if scope == "" {
		return kv
	}
	return &scoped{kv: kv, prefix: scope + ":"}
}

type scoped struct {
	kv     KV
	prefix string
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.kv.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.kv.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	return s.kv.Delete(ctx, prefixed...)
}

func (s *scoped) Close() error { return nil }
