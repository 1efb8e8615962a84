package models

import "time"

// MemberRole is the role a profile holds inside a group.
type MemberRole string

const (
	MemberRoleCreator MemberRole = "creator"
	MemberRoleMember  MemberRole = "member"
)

// Membership relates one profile to one group. The (group_id, user_id) pair
// is unique; inserting it twice is a no-op, never an error.
type Membership struct {
	GroupID  string     `json:"group_id" db:"group_id"`
	UserID   string     `json:"user_id" db:"user_id"`
	Role     MemberRole `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
	Profile  *Profile   `json:"profile,omitempty"`
}
