package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

var ErrProfileNotFound = errors.New("profile not found")

func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, "SELECT * FROM user_profiles WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ListProfiles returns profiles newest first. An empty role returns everyone.
func (r *Repository) ListProfiles(ctx context.Context, role model.Role) ([]model.Profile, error) {
	profiles := []model.Profile{}
	var err error
	if role != "" {
		err = r.db.SelectContext(ctx, &profiles,
			"SELECT * FROM user_profiles WHERE role = $1 ORDER BY created_at DESC", role)
	} else {
		err = r.db.SelectContext(ctx, &profiles, "SELECT * FROM user_profiles ORDER BY created_at DESC")
	}
	return profiles, err
}
