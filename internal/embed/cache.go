package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

// WrapLRUCache puts an expirable per-id cache in front of an embedder. Only
// cache misses reach the wrapped embedder, as one batch in original order.
func WrapLRUCache(e IEmbedder, size int, ttl time.Duration) IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Name() string {
	return l.next.Name()
}

func (l *lruEmbedder) Embed(ctx context.Context, ids []string) ([][]float32, error) {
	out := make([][]float32, len(ids))
	missing := make([]string, 0, len(ids))
	missingAt := make([]int, 0, len(ids))
	for i, id := range ids {
		if cached, ok := l.cache.Get(l.cacheKey(id)); ok {
			out[i] = cloneVector(cached)
			continue
		}
		missing = append(missing, id)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit for full batch", zap.Int("batch", len(ids)))
		return out, nil
	}
	fetched, err := l.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d ids", appErr.ErrInvalid, len(fetched), len(missing))
	}
	for j, id := range missing {
		l.cache.Add(l.cacheKey(id), cloneVector(fetched[j]))
		out[missingAt[j]] = fetched[j]
	}
	return out, nil
}

func (l *lruEmbedder) cacheKey(id string) string {
	return l.next.Name() + "|" + id
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
