package job

import (
	"context"
	"time"

	"github.com/shopmind/recembed/internal/service"
)

type EndpointReaperJob struct {
	training *service.TrainingService
	ttl      time.Duration
}

func NewEndpointReaperJob(training *service.TrainingService, ttl time.Duration) *EndpointReaperJob {
	return &EndpointReaperJob{training: training, ttl: ttl}
}

func (j *EndpointReaperJob) Name() string {
	return "endpoint_reaper"
}

func (j *EndpointReaperJob) Run(ctx context.Context) error {
	if j.training == nil || j.ttl <= 0 {
		return nil
	}
	_, err := j.training.ReapIdleEndpoints(ctx, j.ttl)
	return err
}
