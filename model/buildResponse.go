package model

import "time"

type (
	BuildResponse struct {
		RunID       string         `json:"runID"`
		ServiceName string         `json:"serviceName"`
		Version     string         `json:"version"`
		Environment string         `json:"environment"`
		Image       string         `json:"image"`
		Status      ResponseStatus `json:"status"` // success | skipped | failed
		FailedStage Stage          `json:"failedStage,omitempty"`
		Message     string         `json:"message,omitempty"`
		FinishedAt  time.Time      `json:"finishedAt"`
	}

	// Outcome is what a pipeline run ends with.
	Outcome struct {
		Status      ResponseStatus
		FailedStage Stage
		Err         error
	}
)

type ResponseStatus string

const (
	ResponseStatusSuccess ResponseStatus = "success"
	ResponseStatusSkipped ResponseStatus = "skipped"
	ResponseStatusFailed  ResponseStatus = "failed"
)

// ExitCode maps the outcome to the process exit status.
func (o Outcome) ExitCode() int {
	if o.Status == ResponseStatusFailed {
		return 1
	}
	return 0
}
