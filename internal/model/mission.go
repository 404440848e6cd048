package model

import "time"

// MaxReminderTimes is the maximum number of reminder times a mission may carry.
const MaxReminderTimes = 2

type Mission struct {
	ID            int64     `json:"id"`
	FamilyID      int64     `json:"family_id"`
	Title         string    `json:"title"`
	Icon          string    `json:"icon"`
	AssignedTo    *int64    `json:"assigned_to"`
	ReminderTimes []string  `json:"reminder_times"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AppliesTo reports whether the mission belongs on the given child's daily list.
// A nil AssignedTo means the mission applies to every child in the family.
func (m Mission) AppliesTo(profileID int64) bool {
	return m.AssignedTo == nil || *m.AssignedTo == profileID
}
