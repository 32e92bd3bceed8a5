package models

import "time"

type ExecutionStatus string

const (
	ExecutionStatusNew     ExecutionStatus = "new"
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusError   ExecutionStatus = "error"
	ExecutionStatusWaiting ExecutionStatus = "waiting"
)

// ExecutionSummary describes a workflow execution the editor can attach to.
type ExecutionSummary struct {
	ID         string          `json:"id"         validate:"required"`
	WorkflowID string          `json:"workflowId" validate:"required"`
	Mode       string          `json:"mode"`
	Status     ExecutionStatus `json:"status"`
	Finished   bool            `json:"finished"`
	StartedAt  time.Time       `json:"startedAt"`
	StoppedAt  *time.Time      `json:"stoppedAt,omitempty"`
}
