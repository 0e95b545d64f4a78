// Package datastore holds the dataset channel files the training platform
// pulls from: local disk for development, S3 for real runs.
package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

type Store interface {
	// Save writes the object under key, replacing any existing content.
	Save(ctx context.Context, key string, r io.Reader) error
	// Open returns the object content; the caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// URI returns the fully-qualified location of key, the form the
	// training platform expects in channel references.
	URI(key string) string
}

type Config struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg Config) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("datastore.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported datastore type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("datastore config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode datastore config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode datastore config: %w", err)
	}
	return nil
}
