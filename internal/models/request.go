package models

import "time"

// RequestStatus is the lifecycle state of a join request. Pending requests
// move to approved or rejected exactly once; both are terminal.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// JoinRequest relates one profile to one private group. At most one pending
// request exists per (group, user) pair.
type JoinRequest struct {
	ID         string        `json:"id" db:"id"`
	GroupID    string        `json:"group_id" db:"group_id"`
	UserID     string        `json:"user_id" db:"user_id"`
	Status     RequestStatus `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	Profile    *Profile      `json:"profile,omitempty"`
}

// IsPending returns true while the request awaits a decision.
func (r *JoinRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}
