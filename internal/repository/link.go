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
	ErrLinkNotFound      = errors.New("referral link not found")
	ErrReferralCodeTaken = errors.New("referral code already exists")
)

func (r *Repository) GetLink(ctx context.Context, id uuid.UUID) (*model.ReferralLink, error) {
	var link model.ReferralLink
	err := r.db.GetContext(ctx, &link, "SELECT * FROM referral_links WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *Repository) GetLinkByCode(ctx context.Context, code string) (*model.ReferralLink, error) {
	var link model.ReferralLink
	err := r.db.GetContext(ctx, &link, "SELECT * FROM referral_links WHERE referral_code = $1", code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *Repository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM referral_links WHERE referral_code = $1", code)
	return count > 0, err
}

func (r *Repository) CreateLink(ctx context.Context, link *model.ReferralLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	query := `
		INSERT INTO referral_links (id, influencer_id, campaign_id, title, description, platform,
			original_url, referral_code, referral_url, thumbnail_url, is_active, expires_at)
		VALUES (:id, :influencer_id, :campaign_id, :title, :description, :platform,
			:original_url, :referral_code, :referral_url, :thumbnail_url, :is_active, :expires_at)
		RETURNING clicks, conversions, earnings, conversion_rate, created_at, updated_at`

	rows, err := r.db.NamedQueryContext(ctx, query, link)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReferralCodeTaken
		}
		return err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&link.Clicks, &link.Conversions, &link.Earnings, &link.ConversionRate, &link.CreatedAt, &link.UpdatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpdateLink writes the editable fields of a link. Counters are left alone.
func (r *Repository) UpdateLink(ctx context.Context, link *model.ReferralLink) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE referral_links SET
			campaign_id = :campaign_id,
			title = :title,
			description = :description,
			platform = :platform,
			original_url = :original_url,
			thumbnail_url = :thumbnail_url,
			is_active = :is_active,
			expires_at = :expires_at,
			updated_at = NOW()
		WHERE id = :id
	`, link)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *Repository) DeleteLink(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM referral_links WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// ListLinks returns links newest first, optionally restricted to one influencer.
func (r *Repository) ListLinks(ctx context.Context, influencerID *uuid.UUID) ([]model.ReferralLink, error) {
	links := []model.ReferralLink{}
	var err error
	if influencerID != nil {
		err = r.db.SelectContext(ctx, &links, `
			SELECT * FROM referral_links
			WHERE influencer_id = $1
			ORDER BY created_at DESC`, *influencerID)
	} else {
		err = r.db.SelectContext(ctx, &links, `SELECT * FROM referral_links ORDER BY created_at DESC`)
	}
	return links, err
}

// ListLinksByCampaigns returns the links attached to any of the campaigns.
func (r *Repository) ListLinksByCampaigns(ctx context.Context, campaignIDs []uuid.UUID) ([]model.ReferralLink, error) {
	links := []model.ReferralLink{}
	if len(campaignIDs) == 0 {
		return links, nil
	}
	query, args, err := sqlx.In(`
		SELECT * FROM referral_links
		WHERE campaign_id IN (?)
		ORDER BY created_at DESC`, campaignIDs)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &links, r.db.Rebind(query), args...)
	return links, err
}

// IncrementLinkClicks adds one click and recomputes the stored rate in a
// single statement so concurrent clicks never lose an update.
func (r *Repository) IncrementLinkClicks(ctx context.Context, id uuid.UUID) (*model.LinkCounters, error) {
	var counters model.LinkCounters
	err := r.db.GetContext(ctx, &counters, `
		UPDATE referral_links SET
			clicks = clicks + 1,
			conversion_rate = ROUND(conversions * 100.0 / (clicks + 1), 2),
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, clicks, conversions, earnings, conversion_rate`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &counters, nil
}

// IncrementLinkConversions adds one conversion and the given earnings.
func (r *Repository) IncrementLinkConversions(ctx context.Context, id uuid.UUID, earnings decimal.Decimal) (*model.LinkCounters, error) {
	var counters model.LinkCounters
	err := r.db.GetContext(ctx, &counters, `
		UPDATE referral_links SET
			conversions = conversions + 1,
			earnings = earnings + $2,
			conversion_rate = CASE WHEN clicks > 0
				THEN ROUND((conversions + 1) * 100.0 / clicks, 2)
				ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, clicks, conversions, earnings, conversion_rate`, id, earnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &counters, nil
}

// ReconcileLinkCounters raises every link's counters to what its event log
// implies. Counters already ahead of the log are kept.
func (r *Repository) ReconcileLinkCounters(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		WITH derived AS (
			SELECT link_id,
				COUNT(*) FILTER (WHERE event_type = 'click') AS clicks,
				COUNT(*) FILTER (WHERE event_type = 'conversion') AS conversions,
				COALESCE(SUM(conversion_value) FILTER (WHERE event_type = 'conversion'), 0) AS earnings
			FROM referral_analytics
			GROUP BY link_id
		)
		UPDATE referral_links l SET
			clicks = GREATEST(l.clicks, d.clicks),
			conversions = GREATEST(l.conversions, d.conversions),
			earnings = GREATEST(l.earnings, d.earnings),
			conversion_rate = CASE WHEN GREATEST(l.clicks, d.clicks) > 0
				THEN ROUND(GREATEST(l.conversions, d.conversions) * 100.0 / GREATEST(l.clicks, d.clicks), 2)
				ELSE 0 END,
			updated_at = NOW()
		FROM derived d
		WHERE d.link_id = l.id
			AND (l.clicks < d.clicks OR l.conversions < d.conversions OR l.earnings < d.earnings)`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
