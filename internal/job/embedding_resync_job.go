package job

import (
	"context"

	"github.com/shopmind/recembed/internal/service"
)

type EmbeddingResyncJob struct {
	sync  *service.SyncService
	batch int
}

func NewEmbeddingResyncJob(sync *service.SyncService, batch int) *EmbeddingResyncJob {
	return &EmbeddingResyncJob{sync: sync, batch: batch}
}

func (j *EmbeddingResyncJob) Name() string {
	return "embedding_resync"
}

func (j *EmbeddingResyncJob) Run(ctx context.Context) error {
	if j.sync == nil {
		return nil
	}
	_, err := j.sync.SyncStale(ctx, j.batch)
	return err
}
