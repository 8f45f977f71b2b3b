package model

import "time"

const (
	RunKindBackup  = "backup"
	RunKindRestore = "restore"
)

// Run status transitions are monotonic: pending -> running -> succeeded or
// failed. Terminal runs are immutable.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// TriggerManual marks a run started by an operator without a schedule.
const TriggerManual = "manual"

// Run is one backup or restore execution attempt. It is owned exclusively by
// the orchestrator that created it until it reaches a terminal status.
type Run struct {
	ID                string     `json:"id"`
	Kind              string     `json:"kind"`
	TargetID          string     `json:"target_id"`
	DestinationID     *string    `json:"destination_id,omitempty"`
	TriggeredBy       string     `json:"triggered_by"`
	Status            string     `json:"status"`
	ErrorKind         *string    `json:"error_kind,omitempty"`
	ErrorDetail       *string    `json:"error_detail,omitempty"`
	ArtifactName      *string    `json:"artifact_name,omitempty"`
	ArtifactSizeBytes int64      `json:"artifact_size_bytes"`
	SafetyBackupRunID *string    `json:"safety_backup_run_id,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Terminal reports whether the run has reached a final status.
func (r *Run) Terminal() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed
}
