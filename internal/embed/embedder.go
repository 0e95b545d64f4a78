package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

// IEmbedder maps a batch of entity identifiers to a parallel batch of
// embedding vectors. Implementations must return exactly one vector per
// requested identifier, in request order.
type IEmbedder interface {
	Name() string
	Embed(ctx context.Context, ids []string) ([][]float32, error)
}

type Factory func(args interface{}) (IEmbedder, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewEmbedder(name string, args interface{}) (IEmbedder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedder.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedder provider: %s", name)
	}
	return factory(args)
}

// EmbedAll builds an embedding dictionary for the given identifiers.
// Duplicates collapse to one entry; the embedder sees each distinct id once,
// in first-appearance order. A batch of the wrong length from the embedder is
// a contract violation and fails the whole call.
func EmbedAll(ctx context.Context, ids []string, e IEmbedder) (map[string][]float32, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: embedder not configured", appErr.ErrUnavailable)
	}
	distinct := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	if len(distinct) == 0 {
		return map[string][]float32{}, nil
	}
	vectors, err := e.Embed(ctx, distinct)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(distinct) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d ids", appErr.ErrInvalid, len(vectors), len(distinct))
	}
	out := make(map[string][]float32, len(distinct))
	for i, id := range distinct {
		out[id] = vectors[i]
	}
	return out, nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("embedder config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode embedder config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode embedder config: %w", err)
	}
	return nil
}
