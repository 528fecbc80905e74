package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeDocumentIndex   = "document:index"
	TypeSubmissionGrade = "submission:grade"
)

// Queue names, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

var taskOptions = map[string][]asynq.Option{
	TypeDocumentIndex:   {asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(10 * time.Minute)},
	TypeSubmissionGrade: {asynq.Queue(QueueCritical), asynq.MaxRetry(3), asynq.Timeout(5 * time.Minute)},
}

// NewIDTask builds a task whose payload is the bare entity ID.
func NewIDTask(taskType string, id uuid.UUID) *asynq.Task {
	return asynq.NewTask(taskType, []byte(id.String()))
}

// ParseID reads the entity ID from a task payload. A malformed payload can
// never succeed, so the error wraps asynq.SkipRetry.
func ParseID(t *asynq.Task) (uuid.UUID, error) {
	id, err := uuid.ParseBytes(t.Payload())
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse %s payload %q: %v: %w", t.Type(), t.Payload(), err, asynq.SkipRetry)
	}
	return id, nil
}
