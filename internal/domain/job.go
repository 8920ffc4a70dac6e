package domain

import (
	"fmt"
	"time"
)

// JobTypeGenerateSignal is the only job type the worker pool handles.
const JobTypeGenerateSignal = "GENERATE_SIGNAL"

// Job is one unit of queued work: decide for (event, deployment, token).
// LowConfidenceTolerant and ImpactFactor are snapshotted at enqueue time; a
// nil value means the payload predates them and the stored rows are used.
type Job struct {
	ID                    string    `json:"id"`
	Type                  string    `json:"type"`
	EventID               string    `json:"eventId"`
	AgentID               string    `json:"agentId"`
	DeploymentID          string    `json:"deploymentId"`
	Token                 string    `json:"token"`
	LowConfidenceTolerant *bool     `json:"lowConfidenceTolerant,omitempty"`
	ImpactFactor          *int      `json:"impactFactor,omitempty"`
	Attempts              int       `json:"attempts"`
	EnqueuedAt            time.Time `json:"enqueuedAt"`
}

// JobID is the deterministic identifier of the job for a combination.
func JobID(eventID, deploymentID, token string) string {
	return fmt.Sprintf("%s:%s:%s", eventID, deploymentID, NormalizeToken(token))
}

// Delivery is a job handed to a consumer, tagged with its queue receipt.
type Delivery struct {
	Receipt string
	Job     Job
}

// QueueStats are the queue depth counters reported on the health endpoint.
type QueueStats struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Failed  int64 `json:"failed"`
}

// JobOutcome is the terminal result of processing one job.
type JobOutcome string

const (
	OutcomeOpened         JobOutcome = "opened"
	OutcomeClosed         JobOutcome = "closed"
	OutcomeFlipped        JobOutcome = "flipped"
	OutcomeSkipped        JobOutcome = "skipped"
	OutcomeDuplicate      JobOutcome = "duplicate"
	OutcomeQuotaExhausted JobOutcome = "quota_exhausted"
	OutcomeRejected       JobOutcome = "rejected"
)
