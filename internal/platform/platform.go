// Package platform talks to the managed embedding-learning service. The
// service is opaque: it takes labeled (user, product) pairs and hands back a
// trained model, an inference endpoint, and per-identifier vectors. Nothing
// here knows how the model works.
package platform

import (
	"context"
	"strconv"
)

const (
	JobStateInProgress = "InProgress"
	JobStateCompleted  = "Completed"
	JobStateFailed     = "Failed"

	EndpointStateCreating  = "Creating"
	EndpointStateInService = "InService"
	EndpointStateFailed    = "Failed"
)

// HyperParams is the explicit form of the training configuration. The
// platform wants a flat string map; ToMap does the conversion.
type HyperParams struct {
	EncDim             int     `json:"enc_dim"`
	Enc0VocabSize      int     `json:"enc0_vocab_size"`
	Enc1VocabSize      int     `json:"enc1_vocab_size"`
	Epochs             int     `json:"epochs"`
	LearningRate       float64 `json:"learning_rate"`
	MiniBatchSize      int     `json:"mini_batch_size"`
	Dropout            float64 `json:"dropout"`
	NumNegativeSamples int     `json:"num_negative_samples"`
	OutputLayer        string  `json:"output_layer"`
}

func DefaultHyperParams() HyperParams {
	return HyperParams{
		EncDim:             128,
		Epochs:             10,
		LearningRate:       0.01,
		MiniBatchSize:      1024,
		Dropout:            0.2,
		NumNegativeSamples: 3,
		OutputLayer:        "mean_squared_error",
	}
}

func (h HyperParams) ToMap() map[string]string {
	return map[string]string{
		"enc_dim":              strconv.Itoa(h.EncDim),
		"enc0_vocab_size":      strconv.Itoa(h.Enc0VocabSize),
		"enc1_vocab_size":      strconv.Itoa(h.Enc1VocabSize),
		"epochs":               strconv.Itoa(h.Epochs),
		"learning_rate":        strconv.FormatFloat(h.LearningRate, 'f', -1, 64),
		"mini_batch_size":      strconv.Itoa(h.MiniBatchSize),
		"dropout":              strconv.FormatFloat(h.Dropout, 'f', -1, 64),
		"num_negative_samples": strconv.Itoa(h.NumNegativeSamples),
		"output_layer":         h.OutputLayer,
	}
}

// TrainingJobSpec describes one training submission. Channels are dataset
// store keys the platform pulls samples from.
type TrainingJobSpec struct {
	JobName      string            `json:"job_name"`
	HyperParams  map[string]string `json:"hyper_params"`
	TrainChannel string            `json:"train_channel"`
	ValChannel   string            `json:"validation_channel"`
	OutputPath   string            `json:"output_path"`
}

type TrainingJobStatus struct {
	JobName       string `json:"job_name"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	ModelArtifact string `json:"model_artifact"`
}

type EndpointStatus struct {
	EndpointName  string `json:"endpoint_name"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
}

// IPlatform is the full surface the rest of the service needs from the
// training platform.
type IPlatform interface {
	CreateTrainingJob(ctx context.Context, spec TrainingJobSpec) (string, error)
	DescribeTrainingJob(ctx context.Context, jobName string) (*TrainingJobStatus, error)
	WaitForTrainingJob(ctx context.Context, jobName string) (*TrainingJobStatus, error)
	CreateEndpoint(ctx context.Context, endpointName, jobName string) error
	DescribeEndpoint(ctx context.Context, endpointName string) (*EndpointStatus, error)
	WaitForEndpointInService(ctx context.Context, endpointName string) error
	DeleteEndpoint(ctx context.Context, endpointName string) error
	Predict(ctx context.Context, endpointName string, ids []string) ([][]float32, error)
}
