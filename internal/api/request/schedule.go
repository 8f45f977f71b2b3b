package request

// CreateSchedule is the request body for creating a recurring backup
// schedule. DestinationID defaults to the implicit local destination.
type CreateSchedule struct {
	Name          string `json:"name" validate:"required,slug"`
	TargetID      string `json:"target_id" validate:"required"`
	DestinationID string `json:"destination_id"`
	Interval      string `json:"interval" validate:"required"`
	RetentionDays int    `json:"retention_days" validate:"min=0"`
}

// UpdateSchedule is the request body for updating a schedule.
type UpdateSchedule struct {
	Name          *string `json:"name" validate:"omitempty,slug"`
	TargetID      *string `json:"target_id"`
	DestinationID *string `json:"destination_id"`
	Interval      *string `json:"interval"`
	RetentionDays *int    `json:"retention_days" validate:"omitempty,min=0"`
	Active        *bool   `json:"active"`
}
