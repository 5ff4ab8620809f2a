package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TaskAnalysis      = "analysis"
	TaskPruneSessions = "prune_sessions"
)

var ErrNoQueue = errors.New("task queue not configured")

// Task is the envelope written to the stream. Fields are flattened into the
// stream entry so they stay readable with XRANGE.
type Task struct {
	Type       string `json:"type"`
	AnalysisID string `json:"analysisId,omitempty"`
}

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

// Enqueue appends the task to the stream and returns the entry id.
func (p *Producer) Enqueue(ctx context.Context, task Task) (string, error) {
	if p == nil || p.client == nil {
		return "", ErrNoQueue
	}
	if task.Type == "" {
		return "", errors.New("task type required")
	}

	values, err := taskValues(task)
	if err != nil {
		return "", err
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}

func taskValues(task Task) (map[string]any, error) {
	raw, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// DecodeTask reads a Task back from stream entry values.
func DecodeTask(values map[string]interface{}) (Task, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}
