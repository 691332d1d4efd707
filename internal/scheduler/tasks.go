package scheduler

import (
	"encoding/json"

	"sales_crm_backend/internal/webhook"

	"github.com/hibiken/asynq"
)

const TaskWebhookDeliver = "webhook:deliver"

// WebhookDeliverPayload carries one event to the delivery worker. The
// destination config is looked up again at delivery time, so a tenant that
// disables its webhook while tasks are queued stops receiving calls.
type WebhookDeliverPayload struct {
	Event webhook.Event `json:"event"`
}

func NewWebhookDeliverTask(payload WebhookDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	// Retrying is the deliverer's job, with its own attempt budget and
	// backoff; a failed task must not be retried a second time by asynq.
	return asynq.NewTask(TaskWebhookDeliver, data, asynq.MaxRetry(0)), nil
}

func ParseWebhookDeliverPayload(task *asynq.Task) (WebhookDeliverPayload, error) {
	var payload WebhookDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WebhookDeliverPayload{}, err
	}
	return payload, nil
}
