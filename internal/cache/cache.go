package cache

import (
	"context"
	"time"
)

// TranslationCache stores translated strings keyed by their source text so
// repeat reminders do not hit the translation collaborator again.
type TranslationCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type NoopTranslationCache struct{}

func (NoopTranslationCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopTranslationCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}
