package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

var (
	ErrReferralNotFound = errors.New("referral not found")
	ErrReferralExists   = errors.New("referral already exists for this influencer and email")
)

const referralWithLinkSelect = `
	SELECT r.*, l.title AS link_title, l.platform AS link_platform, l.referral_code AS link_code
	FROM referrals r
	INNER JOIN referral_links l ON l.id = r.referral_link_id`

func (r *Repository) GetReferral(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.GetContext(ctx, &referral, "SELECT * FROM referrals WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return &referral, nil
}

func (r *Repository) GetReferralByInfluencerEmail(ctx context.Context, influencerID uuid.UUID, email string) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.GetContext(ctx, &referral,
		"SELECT * FROM referrals WHERE influencer_id = $1 AND lower(email) = lower($2)", influencerID, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return &referral, nil
}

func (r *Repository) CreateReferral(ctx context.Context, referral *model.Referral) error {
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	if referral.Metadata == nil {
		referral.Metadata = model.Metadata{}
	}
	query := `
		INSERT INTO referrals (id, influencer_id, referral_link_id, name, email, discord_id, age,
			status, source_platform, conversion_value, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		referral.ID,
		referral.InfluencerID,
		referral.ReferralLinkID,
		referral.Name,
		referral.Email,
		referral.DiscordID,
		referral.Age,
		referral.Status,
		referral.SourcePlatform,
		referral.ConversionValue,
		referral.Metadata,
	).Scan(&referral.CreatedAt, &referral.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrReferralExists
	}
	return err
}

// UpdateReferralStatus overwrites the status and, when given, the conversion value.
func (r *Repository) UpdateReferralStatus(ctx context.Context, id uuid.UUID, status model.ReferralStatus, conversionValue *decimal.Decimal) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.GetContext(ctx, &referral, `
		UPDATE referrals SET
			status = $2,
			conversion_value = COALESCE($3, conversion_value),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *`, id, status, conversionValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return &referral, nil
}

func (r *Repository) DeleteReferral(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM referrals WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrReferralNotFound
	}
	return nil
}

func (r *Repository) ListReferralsByInfluencer(ctx context.Context, influencerID uuid.UUID) ([]model.ReferralWithLink, error) {
	referrals := []model.ReferralWithLink{}
	err := r.db.SelectContext(ctx, &referrals,
		referralWithLinkSelect+` WHERE r.influencer_id = $1 ORDER BY r.created_at DESC`, influencerID)
	return referrals, err
}

func (r *Repository) ListReferralsByLinks(ctx context.Context, linkIDs []uuid.UUID) ([]model.ReferralWithLink, error) {
	referrals := []model.ReferralWithLink{}
	if len(linkIDs) == 0 {
		return referrals, nil
	}
	query, args, err := sqlx.In(referralWithLinkSelect+` WHERE r.referral_link_id IN (?) ORDER BY r.created_at DESC`, linkIDs)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &referrals, r.db.Rebind(query), args...)
	return referrals, err
}
