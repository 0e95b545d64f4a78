package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopmind/recembed/internal/platform"
)

type endpointConfig struct {
	BaseURL   string `json:"base_url"`
	AuthToken string `json:"auth_token"`
	Endpoint  string `json:"endpoint"`
}

// endpointEmbedder resolves identifiers through a deployed inference
// endpoint on the training platform.
type endpointEmbedder struct {
	client   platform.IPlatform
	endpoint string
}

func init() {
	Register("endpoint", createEndpointEmbedder)
}

func createEndpointEmbedder(args interface{}) (IEmbedder, error) {
	cfg := &endpointConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("embedder endpoint name is required")
	}
	client, err := platform.NewClient(platform.ClientConfig{
		BaseURL:   cfg.BaseURL,
		AuthToken: cfg.AuthToken,
	})
	if err != nil {
		return nil, err
	}
	return &endpointEmbedder{client: client, endpoint: cfg.Endpoint}, nil
}

// NewEndpointEmbedder wraps an existing platform client; used when the
// caller already holds one (training service deploys, then embeds).
func NewEndpointEmbedder(client platform.IPlatform, endpoint string) IEmbedder {
	return &endpointEmbedder{client: client, endpoint: endpoint}
}

func (e *endpointEmbedder) Name() string {
	return "endpoint:" + e.endpoint
}

func (e *endpointEmbedder) Embed(ctx context.Context, ids []string) ([][]float32, error) {
	return e.client.Predict(ctx, e.endpoint, ids)
}
