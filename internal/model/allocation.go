package model

import "time"

// Allocation records units of a component checked out to a holder.
type Allocation struct {
	ID           int64      `json:"id"`
	ComponentID  int64      `json:"component_id"`
	AssignedType string     `json:"assigned_type"`
	AssignedTo   int64      `json:"assigned_to"`
	Quantity     int        `json:"quantity"`
	Note         string     `json:"note,omitempty"`
	CreatedBy    *int64     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`

	// Joined fields (not always populated).
	ComponentName string `json:"component_name,omitempty"`
}

// Holder types.
const (
	AssignedToAsset = "asset"
	AssignedToUser  = "user"
)

// Assignment describes a checkout request.
type Assignment struct {
	AssignedType string `json:"assigned_type"`
	AssignedTo   int64  `json:"assigned_to"`
	Quantity     int    `json:"quantity"`
	Note         string `json:"note"`
}
