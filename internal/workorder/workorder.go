// Package workorder manages maintenance work orders: the central record of
// the system, carrying ownership and assignment information that the
// authorisation policy depends on.
package workorder

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a work order.
type Status string

// Status constants.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusOnHold     Status = "on_hold"
	StatusDone       Status = "done"
)

// Statuses is the closed set of valid statuses.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusOnHold, StatusDone}

// IsValidStatus returns true if the status belongs to the closed set.
func IsValidStatus(s Status) bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority represents how urgently a work order needs attention.
type Priority string

// Priority constants.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValidPriority returns true if the priority is one of the known levels.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// WorkOrder represents a single maintenance work order.
type WorkOrder struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Equipment   string    `json:"equipment,omitempty"`
	Assignee    string    `json:"assignee_id,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerID returns the creator, satisfying the ownership policy interface.
func (w *WorkOrder) OwnerID() string { return w.CreatedBy }

// AssigneeID returns the assigned identity, empty if unassigned.
func (w *WorkOrder) AssigneeID() string { return w.Assignee }

// Sentinel errors.
var (
	ErrNotFound        = errors.New("work order not found")
	ErrInvalidStatus   = errors.New("invalid work order status")
	ErrInvalidPriority = errors.New("invalid work order priority")
)
