package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

type Profile struct {
	ID         int64     `json:"id"`
	FamilyID   int64     `json:"family_id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Color      string    `json:"color"`
	HasPIN     bool      `json:"has_pin"`
	InviteCode string    `json:"invite_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
