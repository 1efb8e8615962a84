package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type groupRepository struct {
	db *sql.DB
}

// NewGroupRepository creates a new group repository.
func NewGroupRepository(db *sql.DB) repository.GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	query := `
		INSERT INTO groups (id, name, description, kind, subject_code, creator_id, mother_tongue, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		RETURNING created_at`

	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		group.ID,
		group.Name,
		group.Description,
		group.Kind,
		group.SubjectCode,
		group.CreatorID,
		group.MotherTongue,
		group.CreatedAt,
	).Scan(&group.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return group, nil
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	query := `
		SELECT id, name, description, kind, COALESCE(subject_code, ''), COALESCE(creator_id::text, ''), mother_tongue, created_at
		FROM groups
		WHERE id = $1`

	return r.scanGroup(r.db.QueryRowContext(ctx, query, id), "get group by ID")
}

func (r *groupRepository) GetUniversalBySubject(ctx context.Context, subjectCode string) (*models.Group, error) {
	query := `
		SELECT id, name, description, kind, COALESCE(subject_code, ''), COALESCE(creator_id::text, ''), mother_tongue, created_at
		FROM groups
		WHERE kind = 'universal' AND subject_code = $1`

	return r.scanGroup(r.db.QueryRowContext(ctx, query, subjectCode), "get universal group")
}

func (r *groupRepository) ListPrivate(ctx context.Context) ([]*models.Group, error) {
	query := `
		SELECT id, name, description, kind, COALESCE(subject_code, ''), COALESCE(creator_id::text, ''), mother_tongue, created_at
		FROM groups
		WHERE kind = 'private'
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query private groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Description,
			&group.Kind,
			&group.SubjectCode,
			&group.CreatorID,
			&group.MotherTongue,
			&group.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

func (r *groupRepository) scanGroup(row *sql.Row, op string) (*models.Group, error) {
	group := &models.Group{}
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.Kind,
		&group.SubjectCode,
		&group.CreatorID,
		&group.MotherTongue,
		&group.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return group, nil
}
