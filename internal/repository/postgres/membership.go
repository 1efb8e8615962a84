package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
)

type membershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new membership repository.
func NewMembershipRepository(db *sql.DB) repository.MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Add(ctx context.Context, membership *models.Membership) error {
	query := `
		INSERT INTO group_members (group_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id) DO NOTHING`

	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		membership.GroupID,
		membership.UserID,
		membership.Role,
		membership.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}

	return nil
}

func (r *membershipRepository) Exists(ctx context.Context, groupID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}

func (r *membershipRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.Membership, error) {
	query := `
		SELECT m.group_id, m.user_id, m.role, m.joined_at,
		       p.id, p.full_name, p.usn, p.branch, p.semester, p.mother_tongue, p.avatar_url, p.created_at, p.updated_at
		FROM group_members m
		INNER JOIN profiles p ON p.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.joined_at ASC`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		m := &models.Membership{Profile: &models.Profile{}}
		if err := rows.Scan(
			&m.GroupID,
			&m.UserID,
			&m.Role,
			&m.JoinedAt,
			&m.Profile.ID,
			&m.Profile.FullName,
			&m.Profile.USN,
			&m.Profile.Branch,
			&m.Profile.Semester,
			&m.Profile.MotherTongue,
			&m.Profile.AvatarURL,
			&m.Profile.CreatedAt,
			&m.Profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (r *membershipRepository) ListGroupIDsByUser(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT group_id FROM group_members WHERE user_id = $1`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships by user: %w", err)
	}
	defer rows.Close()

	var groupIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		groupIDs = append(groupIDs, id)
	}

	return groupIDs, rows.Err()
}
