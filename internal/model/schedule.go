package model

import "time"

// Symbolic schedule intervals. Anything else must be a standard 5-field cron
// expression.
const (
	IntervalHourly  = "hourly"
	IntervalDaily   = "daily"
	IntervalWeekly  = "weekly"
	IntervalMonthly = "monthly"
)

// Schedule binds one Target to one Destination with a recurring interval and
// a retention policy.
type Schedule struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	TargetID      string     `json:"target_id"`
	DestinationID string     `json:"destination_id"`
	Interval      string     `json:"interval"`
	RetentionDays int        `json:"retention_days"`
	Active        bool       `json:"active"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
