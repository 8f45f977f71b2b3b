package request

// CreateBackup is the request body for triggering a manual backup run.
type CreateBackup struct {
	DestinationID string `json:"destination_id"`
	Compress      bool   `json:"compress"`
	UseBulkExport bool   `json:"use_bulk_export"`
}

// CreateRestore is the request body for triggering a restore run from a
// stored artifact. SkipSafetyBackup opts out of the pre-restore safety
// backup; without it the restore aborts when the safety backup fails.
type CreateRestore struct {
	DestinationID    string `json:"destination_id"`
	ArtifactName     string `json:"artifact_name" validate:"required"`
	SkipSafetyBackup bool   `json:"skip_safety_backup"`
}
