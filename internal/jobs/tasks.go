package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeReconcileUser  = "reconcile:user"
	TaskTypeReconcileSweep = "reconcile:sweep"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

type ReconcileUserPayload struct {
	UserID int64 `json:"user_id"`
}

func NewReconcileUserTask(userID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcileUserPayload{UserID: userID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeReconcileUser, payload, asynq.Queue(QueueDefault)), nil
}

func NewReconcileSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReconcileSweep, nil, asynq.Queue(QueueLow))
}
