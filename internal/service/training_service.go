package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/shopmind/recembed/internal/dataset"
	"github.com/shopmind/recembed/internal/datastore"
	"github.com/shopmind/recembed/internal/embed"
	"github.com/shopmind/recembed/internal/model"
	"github.com/shopmind/recembed/internal/platform"
)

// RunStore is the slice of the training-run repository the service needs.
type RunStore interface {
	Create(ctx context.Context, run *model.TrainingRun) error
	UpdateState(ctx context.Context, id, state, endpointName, failReason string) error
	Get(ctx context.Context, id string) (*model.TrainingRun, error)
	ListServingBefore(ctx context.Context, cutoff int64) ([]model.TrainingRun, error)
}

type TrainRequest struct {
	Purchases      []model.Purchase
	Catalog        []model.Product
	HyperParams    platform.HyperParams
	NegPerPositive int
	TrainFrac      float64
	ValFrac        float64
	Seed           int64
	Deploy         bool
}

type TrainingService struct {
	platform platform.IPlatform
	store    datastore.Store
	runs     RunStore
	sync     *SyncService
}

// NewTrainingService builds the training orchestrator. sync may be nil;
// when set, a successful deploy is followed by an embedding refresh of the
// request's catalog through the new endpoint.
func NewTrainingService(p platform.IPlatform, store datastore.Store, runs RunStore, sync *SyncService) *TrainingService {
	return &TrainingService{platform: p, store: store, runs: runs, sync: sync}
}

// Train runs the full pipeline: build labeled pairs, split into channels,
// upload them, submit the training job, wait for it, and optionally deploy
// an inference endpoint. Every state change lands in the run record.
func (s *TrainingService) Train(ctx context.Context, req TrainRequest) (*model.TrainingRun, error) {
	if req.TrainFrac == 0 {
		req.TrainFrac = 0.8
	}
	if req.ValFrac == 0 {
		req.ValFrac = 0.1
	}
	logger := logutil.GetLogger(ctx).With(
		zap.Int("purchases", len(req.Purchases)),
		zap.Int("catalog", len(req.Catalog)),
	)

	pairs, err := dataset.BuildPairs(req.Purchases, req.Catalog, req.NegPerPositive, req.Seed)
	if err != nil {
		return nil, err
	}
	// vocab sizes come from the data, not the operator
	req.HyperParams.Enc0VocabSize = countDistinctUsers(pairs)
	req.HyperParams.Enc1VocabSize = len(req.Catalog)

	split, err := dataset.Split(pairs, req.TrainFrac, req.ValFrac, req.Seed)
	if err != nil {
		return nil, err
	}

	runID := newID()
	trainKey := fmt.Sprintf("runs/%s/train.jsonl", runID)
	valKey := fmt.Sprintf("runs/%s/validation.jsonl", runID)
	if err := s.uploadChannel(ctx, trainKey, split.Train); err != nil {
		return nil, err
	}
	if err := s.uploadChannel(ctx, valKey, split.Val); err != nil {
		return nil, err
	}
	logger.Info("channels uploaded",
		zap.Int("train_samples", len(split.Train)),
		zap.Int("val_samples", len(split.Val)),
		zap.Int("test_samples", len(split.Test)),
	)

	hpJSON, err := json.Marshal(req.HyperParams)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	run := &model.TrainingRun{
		ID:           runID,
		JobName:      "recembed-" + runID[:12],
		State:        model.TrainingRunStatePending,
		HyperParams:  string(hpJSON),
		TrainChannel: s.store.URI(trainKey),
		ValChannel:   s.store.URI(valKey),
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	jobName, err := s.platform.CreateTrainingJob(ctx, platform.TrainingJobSpec{
		JobName:      run.JobName,
		HyperParams:  req.HyperParams.ToMap(),
		TrainChannel: run.TrainChannel,
		ValChannel:   run.ValChannel,
		OutputPath:   s.store.URI(fmt.Sprintf("runs/%s/output", runID)),
	})
	if err != nil {
		s.markFailed(ctx, run, err)
		return run, err
	}
	run.JobName = jobName
	run.State = model.TrainingRunStateTraining
	if err := s.runs.UpdateState(ctx, run.ID, run.State, "", ""); err != nil {
		return run, err
	}

	if _, err := s.platform.WaitForTrainingJob(ctx, jobName); err != nil {
		s.markFailed(ctx, run, err)
		return run, err
	}
	if !req.Deploy {
		run.State = model.TrainingRunStateDeleted
		return run, s.runs.UpdateState(ctx, run.ID, run.State, "", "")
	}

	endpointName := "recembed-ep-" + runID[:12]
	run.State = model.TrainingRunStateDeploying
	if err := s.runs.UpdateState(ctx, run.ID, run.State, endpointName, ""); err != nil {
		return run, err
	}
	if err := s.platform.CreateEndpoint(ctx, endpointName, jobName); err != nil {
		s.markFailed(ctx, run, err)
		return run, err
	}
	if err := s.platform.WaitForEndpointInService(ctx, endpointName); err != nil {
		s.markFailed(ctx, run, err)
		return run, err
	}
	run.State = model.TrainingRunStateServing
	run.EndpointName = endpointName
	if s.sync != nil && len(req.Catalog) > 0 {
		embedder := embed.NewEndpointEmbedder(s.platform, endpointName)
		if _, err := s.sync.SyncProductsWith(ctx, embedder, endpointName, req.Catalog); err != nil {
			logger.Warn("post-deploy embedding sync failed", zap.Error(err))
		}
	}
	logger.Info("training run serving", zap.String("run_id", run.ID), zap.String("endpoint", endpointName))
	return run, s.runs.UpdateState(ctx, run.ID, run.State, endpointName, "")
}

// Teardown deletes a run's inference endpoint and marks the run deleted.
func (s *TrainingService) Teardown(ctx context.Context, runID string) error {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run.EndpointName != "" {
		if err := s.platform.DeleteEndpoint(ctx, run.EndpointName); err != nil {
			return err
		}
	}
	logutil.GetLogger(ctx).Info("endpoint torn down",
		zap.String("run_id", runID), zap.String("endpoint", run.EndpointName))
	return s.runs.UpdateState(ctx, runID, model.TrainingRunStateDeleted, "", "")
}

func (s *TrainingService) GetRun(ctx context.Context, runID string) (*model.TrainingRun, error) {
	return s.runs.Get(ctx, runID)
}

// ReapIdleEndpoints tears down endpoints of serving runs that have not
// changed state within ttl. Returns the number of endpoints deleted.
func (s *TrainingService) ReapIdleEndpoints(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl).UnixMilli()
	runs, err := s.runs.ListServingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, run := range runs {
		if run.EndpointName != "" {
			if err := s.platform.DeleteEndpoint(ctx, run.EndpointName); err != nil {
				return reaped, err
			}
		}
		if err := s.runs.UpdateState(ctx, run.ID, model.TrainingRunStateDeleted, "", ""); err != nil {
			return reaped, err
		}
		logutil.GetLogger(ctx).Info("idle endpoint reaped",
			zap.String("run_id", run.ID), zap.String("endpoint", run.EndpointName))
		reaped++
	}
	return reaped, nil
}

func (s *TrainingService) uploadChannel(ctx context.Context, key string, pairs []model.PairSample) error {
	var buf bytes.Buffer
	if err := dataset.WriteJSONLines(&buf, pairs); err != nil {
		return err
	}
	return s.store.Save(ctx, key, &buf)
}

func (s *TrainingService) markFailed(ctx context.Context, run *model.TrainingRun, cause error) {
	run.State = model.TrainingRunStateFailed
	run.FailReason = cause.Error()
	if err := s.runs.UpdateState(ctx, run.ID, run.State, "", run.FailReason); err != nil {
		logutil.GetLogger(ctx).Error("mark run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func countDistinctUsers(pairs []model.PairSample) int {
	users := make(map[string]struct{})
	for _, pair := range pairs {
		users[pair.UserID] = struct{}{}
	}
	return len(users)
}

func newID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
