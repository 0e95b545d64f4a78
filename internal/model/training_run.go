package model

const (
	TrainingRunStatePending   = "pending"
	TrainingRunStateTraining  = "training"
	TrainingRunStateDeploying = "deploying"
	TrainingRunStateServing   = "serving"
	TrainingRunStateFailed    = "failed"
	TrainingRunStateDeleted   = "deleted"
)

type TrainingRun struct {
	ID           string `json:"id"`
	JobName      string `json:"job_name"`
	State        string `json:"state"`
	HyperParams  string `json:"hyper_params"`
	TrainChannel string `json:"train_channel"`
	ValChannel   string `json:"val_channel"`
	EndpointName string `json:"endpoint_name"`
	FailReason   string `json:"fail_reason"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}
