package repository

import (
	"context"
	"errors"

	"github.com/rahulvtu/studycircle/internal/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// Callers decide whether that means "already done, fine" (memberships,
// universal groups) or a rejected retry (pending join requests).
var ErrDuplicate = errors.New("duplicate row")

// ProfileRepository defines the interface for profile data operations.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// GroupRepository defines the interface for group data operations.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	GetByID(ctx context.Context, id string) (*models.Group, error)
	GetUniversalBySubject(ctx context.Context, subjectCode string) (*models.Group, error)
	ListPrivate(ctx context.Context) ([]*models.Group, error)
}

// MembershipRepository defines the interface for membership data operations.
type MembershipRepository interface {
	// Add inserts the membership; inserting an existing (group, user) pair
	// is a no-op, not an error.
	Add(ctx context.Context, membership *models.Membership) error
	Exists(ctx context.Context, groupID, userID string) (bool, error)
	ListByGroup(ctx context.Context, groupID string) ([]*models.Membership, error)
	ListGroupIDsByUser(ctx context.Context, userID string) ([]string, error)
}

// RequestRepository defines the interface for join request operations.
type RequestRepository interface {
	// Create inserts a pending request; a second pending request for the
	// same (group, user) pair fails with ErrDuplicate.
	Create(ctx context.Context, request *models.JoinRequest) (*models.JoinRequest, error)
	GetByID(ctx context.Context, id string) (*models.JoinRequest, error)
	ListPending(ctx context.Context, groupID string) ([]*models.JoinRequest, error)
	ListPendingGroupIDsByUser(ctx context.Context, userID string) ([]string, error)
	// Resolve flips a pending request to a terminal status. It reports
	// resolved=false when the request was no longer pending, which is how
	// a second resolution attempt from another device loses the race.
	Resolve(ctx context.Context, id string, status models.RequestStatus) (resolved bool, err error)
	// Approve flips a pending request to approved and inserts the
	// membership in the same transaction. A lost compare-and-set leaves
	// nothing behind: resolved=false and no membership row.
	Approve(ctx context.Context, id string, membership *models.Membership) (resolved bool, err error)
}

// MessageRepository defines the interface for the message log.
type MessageRepository interface {
	// Append persists the message and fills in the server-assigned id, seq
	// and creation time.
	Append(ctx context.Context, message *models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// ListByGroup returns messages in seq order, oldest first. sinceSeq 0
	// means the full history; otherwise only messages with seq > sinceSeq.
	ListByGroup(ctx context.Context, groupID string, sinceSeq int64) ([]*models.Message, error)
}
