package session

import (
	"context"
	"time"
)

// Store persists server-side session payloads keyed by an opaque id.
// database.SessionRepo and RedisStore implement it.
type Store interface {
	// Get returns the payload and expiry stored under id. found is false
	// when there is no such row; err is reserved for backend failures.
	Get(ctx context.Context, id string) (data []byte, expiresAt time.Time, found bool, err error)

	// Set inserts or replaces the row for id
	Set(ctx context.Context, id string, data []byte, expiresAt time.Time) error

	// Delete removes the row for id. Deleting a missing row is not an error.
	Delete(ctx context.Context, id string) error
}
