package translation

import (
	"context"
	"time"

	"dukaanpos/backend/internal/cache"
)

const cacheTTL = 24 * time.Hour

// CachedTranslator memoizes name translations. Rewrites pass through
// untouched since they depend on the instruction, not just the text.
type CachedTranslator struct {
	inner Translator
	cache cache.TranslationCache
}

func NewCachedTranslator(inner Translator, c cache.TranslationCache) *CachedTranslator {
	if c == nil {
		c = cache.NoopTranslationCache{}
	}
	return &CachedTranslator{inner: inner, cache: c}
}

func (t *CachedTranslator) ToLocalLanguage(ctx context.Context, text string) (string, error) {
	key := "translate:ur:" + text
	if cached, ok, err := t.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}

	translated, err := t.inner.ToLocalLanguage(ctx, text)
	if err != nil {
		return "", err
	}
	// Cache writes are best effort.
	_ = t.cache.Set(ctx, key, translated, cacheTTL)
	return translated, nil
}

func (t *CachedTranslator) Rewrite(ctx context.Context, message string, instruction string) (string, error) {
	return t.inner.Rewrite(ctx, message, instruction)
}
