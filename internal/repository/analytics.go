package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

// InsertAnalyticsEvent appends one event. Events are never updated.
func (r *Repository) InsertAnalyticsEvent(ctx context.Context, event *model.AnalyticsEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Metadata == nil {
		event.Metadata = model.Metadata{}
	}
	query := `
		INSERT INTO referral_analytics (id, link_id, event_type, user_agent, ip_address, referrer,
			device_type, browser, country, conversion_value, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	return r.db.QueryRowContext(ctx, query,
		event.ID,
		event.LinkID,
		event.EventType,
		event.UserAgent,
		event.IPAddress,
		event.Referrer,
		event.DeviceType,
		event.Browser,
		event.Country,
		event.ConversionValue,
		event.Metadata,
	).Scan(&event.CreatedAt)
}

// ListAnalyticsEvents returns events of the filtered links, newest first.
func (r *Repository) ListAnalyticsEvents(ctx context.Context, filter model.AnalyticsFilter) ([]model.AnalyticsEvent, error) {
	events := []model.AnalyticsEvent{}
	if len(filter.LinkIDs) == 0 {
		return events, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM referral_analytics
		WHERE link_id IN (?) AND created_at >= ? AND created_at <= ?
		ORDER BY created_at DESC`, filter.LinkIDs, filter.Since, filter.Until)
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &events, r.db.Rebind(query), args...)
	return events, err
}
