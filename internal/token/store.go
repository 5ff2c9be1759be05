package token

import (
	"context"
	"time"
)

// Store defines the interface for token persistence. Implementations must
// serialize mutations against each other while allowing concurrent reads.
type Store interface {
	Insert(ctx context.Context, tok *Token) error
	Get(ctx context.Context, id string) (*Token, error)
	List(ctx context.Context) ([]*Token, error)
	Remove(ctx context.Context, id string) error
	RemoveExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}
