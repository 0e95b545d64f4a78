package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/shopmind/recembed/internal/model"
	"github.com/shopmind/recembed/internal/pkg/dbutil"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

type TrainingRunRepo struct {
	db *sql.DB
}

func NewTrainingRunRepo(db *sql.DB) *TrainingRunRepo {
	return &TrainingRunRepo{db: db}
}

var trainingRunColumns = []string{
	"id", "job_name", "state", "hyper_params", "train_channel",
	"val_channel", "endpoint_name", "fail_reason", "ctime", "mtime",
}

func (r *TrainingRunRepo) Create(ctx context.Context, run *model.TrainingRun) error {
	data := map[string]interface{}{
		"id":            run.ID,
		"job_name":      run.JobName,
		"state":         run.State,
		"hyper_params":  run.HyperParams,
		"train_channel": run.TrainChannel,
		"val_channel":   run.ValChannel,
		"endpoint_name": run.EndpointName,
		"fail_reason":   run.FailReason,
		"ctime":         run.Ctime,
		"mtime":         run.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("training_runs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil && dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *TrainingRunRepo) UpdateState(ctx context.Context, id, state, endpointName, failReason string) error {
	update := map[string]interface{}{
		"state": state,
		"mtime": time.Now().UnixMilli(),
	}
	if endpointName != "" {
		update["endpoint_name"] = endpointName
	}
	if failReason != "" {
		update["fail_reason"] = failReason
	}
	sqlStr, args, err := builder.BuildUpdate("training_runs", map[string]interface{}{"id": id}, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *TrainingRunRepo) Get(ctx context.Context, id string) (*model.TrainingRun, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("training_runs", where, trainingRunColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	run, err := scanTrainingRun(row)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return run, err
}

// ListServingBefore returns serving runs whose last state change is older
// than the cutoff; the endpoint reaper uses it to find idle endpoints.
func (r *TrainingRunRepo) ListServingBefore(ctx context.Context, cutoff int64) ([]model.TrainingRun, error) {
	where := map[string]interface{}{
		"state":    model.TrainingRunStateServing,
		"mtime <":  cutoff,
		"_orderby": "mtime asc",
	}
	sqlStr, args, err := builder.BuildSelect("training_runs", where, trainingRunColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.TrainingRun
	for rows.Next() {
		run, err := scanTrainingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrainingRun(row rowScanner) (*model.TrainingRun, error) {
	var run model.TrainingRun
	err := row.Scan(
		&run.ID, &run.JobName, &run.State, &run.HyperParams, &run.TrainChannel,
		&run.ValChannel, &run.EndpointName, &run.FailReason, &run.Ctime, &run.Mtime,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
