package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
)

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *sql.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Upsert(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (id, full_name, usn, branch, semester, mother_tongue, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (id) DO UPDATE SET
			full_name = $2, usn = $3, branch = $4, semester = $5,
			mother_tongue = $6, avatar_url = $7, updated_at = $8
		RETURNING created_at, updated_at`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		profile.ID,
		profile.FullName,
		profile.USN,
		profile.Branch,
		profile.Semester,
		profile.MotherTongue,
		profile.AvatarURL,
		now,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return profile, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, full_name, usn, branch, semester, mother_tongue, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = $1`

	profile := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.FullName,
		&profile.USN,
		&profile.Branch,
		&profile.Semester,
		&profile.MotherTongue,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile by ID: %w", err)
	}

	return profile, nil
}
