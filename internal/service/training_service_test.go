package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shopmind/recembed/internal/datastore"
	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
	"github.com/shopmind/recembed/internal/platform"
)

type fakePlatform struct {
	failTraining     bool
	createdJobs      []platform.TrainingJobSpec
	createdEndpoints []string
	deletedEndpoints []string
}

func (f *fakePlatform) CreateTrainingJob(ctx context.Context, spec platform.TrainingJobSpec) (string, error) {
	f.createdJobs = append(f.createdJobs, spec)
	return spec.JobName, nil
}

func (f *fakePlatform) DescribeTrainingJob(ctx context.Context, jobName string) (*platform.TrainingJobStatus, error) {
	return &platform.TrainingJobStatus{JobName: jobName, State: platform.JobStateCompleted}, nil
}

func (f *fakePlatform) WaitForTrainingJob(ctx context.Context, jobName string) (*platform.TrainingJobStatus, error) {
	if f.failTraining {
		return nil, fmt.Errorf("training job %s failed: loss diverged", jobName)
	}
	return &platform.TrainingJobStatus{JobName: jobName, State: platform.JobStateCompleted}, nil
}

func (f *fakePlatform) CreateEndpoint(ctx context.Context, endpointName, jobName string) error {
	f.createdEndpoints = append(f.createdEndpoints, endpointName)
	return nil
}

func (f *fakePlatform) DescribeEndpoint(ctx context.Context, endpointName string) (*platform.EndpointStatus, error) {
	return &platform.EndpointStatus{EndpointName: endpointName, State: platform.EndpointStateInService}, nil
}

func (f *fakePlatform) WaitForEndpointInService(ctx context.Context, endpointName string) error {
	return nil
}

func (f *fakePlatform) DeleteEndpoint(ctx context.Context, endpointName string) error {
	f.deletedEndpoints = append(f.deletedEndpoints, endpointName)
	return nil
}

func (f *fakePlatform) Predict(ctx context.Context, endpointName string, ids []string) ([][]float32, error) {
	out := make([][]float32, len(ids))
	for i := range ids {
		out[i] = []float32{0, 0}
	}
	return out, nil
}

type memoryRunStore struct {
	runs map[string]*model.TrainingRun
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: map[string]*model.TrainingRun{}}
}

func (m *memoryRunStore) Create(ctx context.Context, run *model.TrainingRun) error {
	if _, ok := m.runs[run.ID]; ok {
		return appErr.ErrConflict
	}
	clone := *run
	m.runs[run.ID] = &clone
	return nil
}

func (m *memoryRunStore) UpdateState(ctx context.Context, id, state, endpointName, failReason string) error {
	run, ok := m.runs[id]
	if !ok {
		return appErr.ErrNotFound
	}
	run.State = state
	if endpointName != "" {
		run.EndpointName = endpointName
	}
	if failReason != "" {
		run.FailReason = failReason
	}
	run.Mtime = time.Now().UnixMilli()
	return nil
}

func (m *memoryRunStore) Get(ctx context.Context, id string) (*model.TrainingRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	clone := *run
	return &clone, nil
}

func (m *memoryRunStore) ListServingBefore(ctx context.Context, cutoff int64) ([]model.TrainingRun, error) {
	out := make([]model.TrainingRun, 0)
	for _, run := range m.runs {
		if run.State == model.TrainingRunStateServing && run.Mtime < cutoff {
			out = append(out, *run)
		}
	}
	return out, nil
}

func testTrainRequest() TrainRequest {
	purchases := []model.Purchase{
		{UserID: "u1", ProductID: "p1", Quantity: 1},
		{UserID: "u1", ProductID: "p2", Quantity: 1},
		{UserID: "u2", ProductID: "p2", Quantity: 2},
		{UserID: "u2", ProductID: "p3", Quantity: 1},
		{UserID: "u3", ProductID: "p1", Quantity: 1},
		{UserID: "u3", ProductID: "p3", Quantity: 1},
		{UserID: "u4", ProductID: "p4", Quantity: 1},
		{UserID: "u4", ProductID: "p1", Quantity: 3},
		{UserID: "u5", ProductID: "p2", Quantity: 1},
		{UserID: "u5", ProductID: "p4", Quantity: 1},
	}
	catalog := []model.Product{
		{ID: "p1", Title: "One"},
		{ID: "p2", Title: "Two"},
		{ID: "p3", Title: "Three"},
		{ID: "p4", Title: "Four"},
	}
	return TrainRequest{
		Purchases:      purchases,
		Catalog:        catalog,
		HyperParams:    platform.DefaultHyperParams(),
		NegPerPositive: 1,
		Seed:           42,
	}
}

func newTestStore(t *testing.T) datastore.Store {
	t.Helper()
	store, err := datastore.New(datastore.Config{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)
	return store
}

func TestTrainingService_TrainAndDeploy(t *testing.T) {
	fake := &fakePlatform{}
	runs := newMemoryRunStore()
	svc := NewTrainingService(fake, newTestStore(t), runs, nil)

	req := testTrainRequest()
	req.Deploy = true
	run, err := svc.Train(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.TrainingRunStateServing, run.State)
	require.NotEmpty(t, run.EndpointName)

	require.Len(t, fake.createdJobs, 1)
	spec := fake.createdJobs[0]
	require.True(t, strings.HasSuffix(spec.TrainChannel, "train.jsonl"))
	require.True(t, strings.HasSuffix(spec.ValChannel, "validation.jsonl"))
	require.Equal(t, "4", spec.HyperParams["enc1_vocab_size"])
	require.Len(t, fake.createdEndpoints, 1)

	stored, err := runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.TrainingRunStateServing, stored.State)
}

func TestTrainingService_DeployRefreshesEmbeddings(t *testing.T) {
	fake := &fakePlatform{}
	saver := newMemoryEmbeddingSaver()
	sync := NewSyncService(saver, newMemoryProductSaver(), nil, nil, "")
	svc := NewTrainingService(fake, newTestStore(t), newMemoryRunStore(), sync)

	req := testTrainRequest()
	req.Deploy = true
	run, err := svc.Train(context.Background(), req)
	require.NoError(t, err)

	// every catalog product gets a vector from the fresh endpoint
	require.Len(t, saver.saved, len(req.Catalog))
	require.Equal(t, run.EndpointName, saver.saved["p1"].ModelVersion)
}

func TestTrainingService_TrainWithoutDeploy(t *testing.T) {
	fake := &fakePlatform{}
	svc := NewTrainingService(fake, newTestStore(t), newMemoryRunStore(), nil)

	run, err := svc.Train(context.Background(), testTrainRequest())
	require.NoError(t, err)
	require.Empty(t, run.EndpointName)
	require.Empty(t, fake.createdEndpoints)
}

func TestTrainingService_FailureMarksRun(t *testing.T) {
	fake := &fakePlatform{failTraining: true}
	runs := newMemoryRunStore()
	svc := NewTrainingService(fake, newTestStore(t), runs, nil)

	run, err := svc.Train(context.Background(), testTrainRequest())
	require.Error(t, err)
	require.NotNil(t, run)
	require.Equal(t, model.TrainingRunStateFailed, run.State)
	require.Contains(t, run.FailReason, "loss diverged")

	stored, err := runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.TrainingRunStateFailed, stored.State)
	require.Contains(t, stored.FailReason, "loss diverged")
}

func TestTrainingService_Teardown(t *testing.T) {
	fake := &fakePlatform{}
	runs := newMemoryRunStore()
	svc := NewTrainingService(fake, newTestStore(t), runs, nil)

	req := testTrainRequest()
	req.Deploy = true
	run, err := svc.Train(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, svc.Teardown(context.Background(), run.ID))
	require.Equal(t, []string{run.EndpointName}, fake.deletedEndpoints)

	stored, err := runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.TrainingRunStateDeleted, stored.State)
}

func TestTrainingService_ReapIdleEndpoints(t *testing.T) {
	fake := &fakePlatform{}
	runs := newMemoryRunStore()
	svc := NewTrainingService(fake, newTestStore(t), runs, nil)

	stale := &model.TrainingRun{
		ID:           "stale-run",
		State:        model.TrainingRunStateServing,
		EndpointName: "ep-stale",
		Mtime:        time.Now().Add(-48 * time.Hour).UnixMilli(),
	}
	require.NoError(t, runs.Create(context.Background(), stale))
	fresh := &model.TrainingRun{
		ID:           "fresh-run",
		State:        model.TrainingRunStateServing,
		EndpointName: "ep-fresh",
		Mtime:        time.Now().UnixMilli(),
	}
	require.NoError(t, runs.Create(context.Background(), fresh))

	reaped, err := svc.ReapIdleEndpoints(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)
	require.Equal(t, []string{"ep-stale"}, fake.deletedEndpoints)

	kept, err := runs.Get(context.Background(), "fresh-run")
	require.NoError(t, err)
	require.Equal(t, model.TrainingRunStateServing, kept.State)
}
