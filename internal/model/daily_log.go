package model

import "time"

type ValidationResult string

const (
	ResultSuccess ValidationResult = "success"
	ResultFailure ValidationResult = "failure"
)

// DailyLog is the daily state for one (mission, child, date) triple. Rows are
// uniquely keyed by that triple and written with upsert semantics: the child
// writes ChildCompleted and ValidationRequested, the parent writes
// ParentValidated and ValidationResult. The two field sets never overlap.
type DailyLog struct {
	ID                  int64             `json:"id"`
	MissionID           int64             `json:"mission_id"`
	ProfileID           int64             `json:"profile_id"`
	Date                string            `json:"date"`
	ChildCompleted      bool              `json:"child_completed"`
	ParentValidated     bool              `json:"parent_validated"`
	ValidationRequested bool              `json:"validation_requested"`
	ValidationResult    *ValidationResult `json:"validation_result"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// HasResult reports whether the day this log belongs to has been closed.
func (l DailyLog) HasResult() bool {
	return l.ValidationResult != nil
}
