package storage

import "context"

// Resolver turns stored document keys into time-limited fetchable URLs.
type Resolver interface {
	Presign(ctx context.Context, key string) (string, error)
}

// NoOpResolver passes keys through unchanged; useful when report locations
// are already full URLs.
type NoOpResolver struct{}

func (NoOpResolver) Presign(ctx context.Context, key string) (string, error) {
	return key, nil
}
