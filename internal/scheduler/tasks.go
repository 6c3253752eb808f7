package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScoreRecompute = "scoring.recompute"

type ScoreRecomputePayload struct {
	ClientID string `json:"clientId"`
}

func NewScoreRecomputeTask(payload ScoreRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreRecompute, data), nil
}

func ParseScoreRecomputePayload(task *asynq.Task) (ScoreRecomputePayload, error) {
	var payload ScoreRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreRecomputePayload{}, err
	}
	return payload, nil
}
