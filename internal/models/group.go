package models

import "time"

// GroupKind distinguishes the two access models a group can have.
type GroupKind string

const (
	// GroupKindUniversal is a public, subject-scoped group anyone may join.
	GroupKindUniversal GroupKind = "universal"
	// GroupKindPrivate is an invite-gated circle owned by its creator.
	GroupKindPrivate GroupKind = "private"
)

// Group represents a study group. At most one universal group exists per
// subject code; private groups have no such uniqueness constraint and carry
// the creator who arbitrates join requests.
type Group struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	Kind         GroupKind `json:"kind" db:"kind"`
	SubjectCode  string    `json:"subject_code,omitempty" db:"subject_code"`
	CreatorID    string    `json:"creator_id,omitempty" db:"creator_id"`
	MotherTongue string    `json:"mother_tongue,omitempty" db:"mother_tongue"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsUniversal returns true for subject-scoped public groups.
func (g *Group) IsUniversal() bool {
	return g.Kind == GroupKindUniversal
}

// IsCreator reports whether the given user owns this group. Universal groups
// have no creator and nobody arbitrates their membership.
func (g *Group) IsCreator(userID string) bool {
	return g.CreatorID != "" && g.CreatorID == userID
}
