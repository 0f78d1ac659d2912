package review

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/electronjoe/DamageReview/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the store selected by cfg. The returned closer releases
// connections held by the backend.
func Open(ctx context.Context, cfg config.Config) (Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file":
		path, err := cfg.StorePath()
		if err != nil {
			return nil, nil, err
		}
		s, err := OpenFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Review state stored in %s", path)
		return s, nopCloser{}, nil
	case "redis":
		s, err := NewRedisStore(ctx, cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
