package model

import "time"

// Notification type constants
const (
	NotifTypeReviewRequested = "review_requested"
	NotifTypeDayOutcome      = "day_outcome"
	NotifTypeMissionReminder = "mission_reminder"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	FamilyID   int64     `json:"family_id"`
	ProfileID  int64     `json:"profile_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
