package cache

import "context"

// SeenCache remembers canonical feed URLs already written to the Item Store.
// It is a fast path only; the store stays authoritative.
type SeenCache interface {
	IsSeen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url string) error
	Forget(ctx context.Context, url string) error
	Clear(ctx context.Context) error
	Close() error
}
