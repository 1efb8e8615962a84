package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
)

type requestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new join request repository.
func NewRequestRepository(db *sql.DB) repository.RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, request *models.JoinRequest) (*models.JoinRequest, error) {
	query := `
		INSERT INTO group_requests (id, group_id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.RequestStatusPending
	request.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		request.ID,
		request.GroupID,
		request.UserID,
		request.Status,
		request.CreatedAt,
	).Scan(&request.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create join request: %w", err)
	}

	return request, nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.JoinRequest, error) {
	query := `
		SELECT id, group_id, user_id, status, created_at, resolved_at
		FROM group_requests
		WHERE id = $1`

	request := &models.JoinRequest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&request.ID,
		&request.GroupID,
		&request.UserID,
		&request.Status,
		&request.CreatedAt,
		&request.ResolvedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get join request by ID: %w", err)
	}

	return request, nil
}

func (r *requestRepository) ListPending(ctx context.Context, groupID string) ([]*models.JoinRequest, error) {
	query := `
		SELECT q.id, q.group_id, q.user_id, q.status, q.created_at, q.resolved_at,
		       p.id, p.full_name, p.usn, p.branch, p.semester, p.mother_tongue, p.avatar_url, p.created_at, p.updated_at
		FROM group_requests q
		INNER JOIN profiles p ON p.id = q.user_id
		WHERE q.group_id = $1 AND q.status = 'pending'
		ORDER BY q.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.JoinRequest
	for rows.Next() {
		req := &models.JoinRequest{Profile: &models.Profile{}}
		if err := rows.Scan(
			&req.ID,
			&req.GroupID,
			&req.UserID,
			&req.Status,
			&req.CreatedAt,
			&req.ResolvedAt,
			&req.Profile.ID,
			&req.Profile.FullName,
			&req.Profile.USN,
			&req.Profile.Branch,
			&req.Profile.Semester,
			&req.Profile.MotherTongue,
			&req.Profile.AvatarURL,
			&req.Profile.CreatedAt,
			&req.Profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func (r *requestRepository) ListPendingGroupIDsByUser(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT group_id FROM group_requests WHERE user_id = $1 AND status = 'pending'`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests by user: %w", err)
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

func (r *requestRepository) Resolve(ctx context.Context, id string, status models.RequestStatus) (bool, error) {
	// The WHERE status = 'pending' clause makes resolution a compare-and-set:
	// when two devices resolve the same request, exactly one update succeeds.
	query := `
		UPDATE group_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to resolve join request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *requestRepository) Approve(ctx context.Context, id string, membership *models.Membership) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin approval transaction: %w", err)
	}
	defer tx.Rollback()

	// Same compare-and-set as Resolve; losing it rolls the whole
	// transaction back so a concurrent reject never leaves a membership.
	result, err := tx.ExecContext(ctx, `
		UPDATE group_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'`,
		id, models.RequestStatusApproved, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to approve join request: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id) DO NOTHING`,
		membership.GroupID, membership.UserID, membership.Role, membership.JoinedAt,
	); err != nil {
		return false, fmt.Errorf("failed to add approved member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit approval: %w", err)
	}
	return true, nil
}
