package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeReconcileBroker = "quota:reconcile"
	TypeReconcileAll    = "quota:reconcile_all"
)

// QueueMaintenance runs reconciliation, away from latency-sensitive work.
const QueueMaintenance = "low"

// ReconcileBrokerPayload names the broker whose usage counters are rebuilt.
type ReconcileBrokerPayload struct {
	BrokerID uuid.UUID `json:"broker_id"`
}

func NewReconcileBrokerTask(brokerID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(ReconcileBrokerPayload{BrokerID: brokerID})
	if err != nil {
		return nil, err
	}
	// Unique keeps a burst of manual triggers for one broker to a single task.
	return asynq.NewTask(TypeReconcileBroker, data,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(3),
		asynq.Unique(time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// ReconcileAll is empty; the handler walks every active broker.
func NewReconcileAllTask() *asynq.Task {
	return asynq.NewTask(TypeReconcileAll, nil,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(1),
	)
}
