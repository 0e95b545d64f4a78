package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/shopmind/recembed/internal/pkg/backoff"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

const (
	defaultPollBase = 5 * time.Second
	defaultPollMax  = 2 * time.Minute
)

type ClientConfig struct {
	BaseURL   string        `json:"base_url"`
	AuthToken string        `json:"auth_token"`
	Timeout   time.Duration `json:"-"`
}

// Client is the HTTP+JSON implementation of IPlatform.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform base_url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

type createJobResponse struct {
	JobName string `json:"job_name"`
}

func (c *Client) CreateTrainingJob(ctx context.Context, spec TrainingJobSpec) (string, error) {
	var out createJobResponse
	if err := c.do(ctx, http.MethodPost, "/training-jobs", spec, &out); err != nil {
		return "", err
	}
	if out.JobName == "" {
		return "", fmt.Errorf("platform returned empty job name")
	}
	return out.JobName, nil
}

func (c *Client) DescribeTrainingJob(ctx context.Context, jobName string) (*TrainingJobStatus, error) {
	var out TrainingJobStatus
	if err := c.do(ctx, http.MethodGet, "/training-jobs/"+jobName, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForTrainingJob polls until the job leaves InProgress. Poll spacing
// backs off exponentially with jitter so long jobs do not hammer the API.
func (c *Client) WaitForTrainingJob(ctx context.Context, jobName string) (*TrainingJobStatus, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_name", jobName))
	for attempt := 0; ; attempt++ {
		status, err := c.DescribeTrainingJob(ctx, jobName)
		if err != nil {
			return nil, err
		}
		switch status.State {
		case JobStateCompleted:
			logger.Info("training job completed", zap.String("model_artifact", status.ModelArtifact))
			return status, nil
		case JobStateFailed:
			logger.Error("training job failed", zap.String("reason", status.FailureReason))
			return status, fmt.Errorf("training job %s failed: %s", jobName, status.FailureReason)
		}
		wait := backoff.Exponential(defaultPollBase, defaultPollMax, attempt)
		logger.Debug("training job still running", zap.Duration("next_poll", wait))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type createEndpointRequest struct {
	EndpointName string `json:"endpoint_name"`
	JobName      string `json:"job_name"`
}

func (c *Client) CreateEndpoint(ctx context.Context, endpointName, jobName string) error {
	req := createEndpointRequest{EndpointName: endpointName, JobName: jobName}
	return c.do(ctx, http.MethodPost, "/endpoints", req, nil)
}

func (c *Client) DescribeEndpoint(ctx context.Context, endpointName string) (*EndpointStatus, error) {
	var out EndpointStatus
	if err := c.do(ctx, http.MethodGet, "/endpoints/"+endpointName, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WaitForEndpointInService(ctx context.Context, endpointName string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("endpoint", endpointName))
	for attempt := 0; ; attempt++ {
		status, err := c.DescribeEndpoint(ctx, endpointName)
		if err != nil {
			return err
		}
		switch status.State {
		case EndpointStateInService:
			logger.Info("endpoint in service")
			return nil
		case EndpointStateFailed:
			return fmt.Errorf("endpoint %s failed: %s", endpointName, status.FailureReason)
		}
		wait := backoff.Exponential(defaultPollBase, defaultPollMax, attempt)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DeleteEndpoint tears down an inference endpoint. Deleting an endpoint that
// is already gone is not an error.
func (c *Client) DeleteEndpoint(ctx context.Context, endpointName string) error {
	err := c.do(ctx, http.MethodDelete, "/endpoints/"+endpointName, nil, nil)
	if err != nil && appErr.IsNotFound(err) {
		return nil
	}
	return err
}

type predictRequest struct {
	IDs []string `json:"ids"`
}

type predictResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Predict maps a batch of identifiers to a parallel batch of vectors via a
// deployed endpoint. A response batch of the wrong length is surfaced as an
// invalid-input failure, never truncated or padded.
func (c *Client) Predict(ctx context.Context, endpointName string, ids []string) ([][]float32, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty id batch", appErr.ErrInvalid)
	}
	var out predictResponse
	if err := c.do(ctx, http.MethodPost, "/endpoints/"+endpointName+"/predict", predictRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	if len(out.Vectors) != len(ids) {
		return nil, fmt.Errorf("%w: predict returned %d vectors for %d ids", appErr.ErrInvalid, len(out.Vectors), len(ids))
	}
	return out.Vectors, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", appErr.ErrNotFound, method, path)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("platform request failed: %s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
