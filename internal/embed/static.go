package embed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

type staticConfig struct {
	Path string `json:"path"`
}

type staticEntry struct {
	ProductID string    `json:"product_id"`
	Embedding []float32 `json:"embedding"`
}

// staticEmbedder serves vectors from a JSON-lines snapshot file. Used for
// offline evaluation and as a test double that exercises the real registry.
type staticEmbedder struct {
	vectors map[string][]float32
}

func init() {
	Register("static", createStaticEmbedder)
}

func createStaticEmbedder(args interface{}) (IEmbedder, error) {
	cfg := &staticConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("static embedder path is required")
	}
	file, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open embedding snapshot: %w", err)
	}
	defer file.Close()

	vectors := make(map[string][]float32)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry staticEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("decode embedding snapshot line %d: %w", line, err)
		}
		vectors[entry.ProductID] = entry.Embedding
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read embedding snapshot: %w", err)
	}
	return &staticEmbedder{vectors: vectors}, nil
}

// NewStaticEmbedder builds a static embedder from an in-memory dictionary.
func NewStaticEmbedder(vectors map[string][]float32) IEmbedder {
	return &staticEmbedder{vectors: vectors}
}

func (e *staticEmbedder) Name() string {
	return "static"
}

func (e *staticEmbedder) Embed(ctx context.Context, ids []string) ([][]float32, error) {
	out := make([][]float32, 0, len(ids))
	for _, id := range ids {
		vec, ok := e.vectors[id]
		if !ok {
			return nil, fmt.Errorf("%w: no embedding for %q in snapshot", appErr.ErrNotFound, id)
		}
		out = append(out, vec)
	}
	return out, nil
}
