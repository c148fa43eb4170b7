package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTypeClick      EventType = "click"
	EventTypeConversion EventType = "conversion"
)

// Metadata is an open key-value bag stored as jsonb.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("metadata: unsupported scan type")
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// AnalyticsEvent is an append-only click or conversion record.
type AnalyticsEvent struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	LinkID          uuid.UUID       `json:"link_id" db:"link_id"`
	EventType       EventType       `json:"event_type" db:"event_type"`
	UserAgent       *string         `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress       *string         `json:"ip_address,omitempty" db:"ip_address"`
	Referrer        *string         `json:"referrer,omitempty" db:"referrer"`
	DeviceType      *string         `json:"device_type,omitempty" db:"device_type"`
	Browser         *string         `json:"browser,omitempty" db:"browser"`
	Country         *string         `json:"country,omitempty" db:"country"`
	ConversionValue decimal.Decimal `json:"conversion_value" db:"conversion_value"`
	Metadata        Metadata        `json:"metadata" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// AnalyticsFilter selects events of a set of links inside [Since, Until].
type AnalyticsFilter struct {
	LinkIDs []uuid.UUID
	Since   time.Time
	Until   time.Time
}

type BreakdownItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DailyPoint struct {
	Date        string `json:"date"`
	Label       string `json:"label"`
	Clicks      int    `json:"clicks"`
	Conversions int    `json:"conversions"`
}

type AnalyticsSummary struct {
	TotalClicks      int             `json:"total_clicks"`
	TotalConversions int             `json:"total_conversions"`
	ConversionRate   float64         `json:"conversion_rate"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
}

type AnalyticsReport struct {
	WindowDays       int              `json:"window_days"`
	Summary          AnalyticsSummary `json:"summary"`
	Daily            []DailyPoint     `json:"daily"`
	DeviceBreakdown  []BreakdownItem  `json:"device_breakdown"`
	BrowserBreakdown []BreakdownItem  `json:"browser_breakdown"`
	TopReferrers     []BreakdownItem  `json:"top_referrers"`
	RecentActivity   []AnalyticsEvent `json:"recent_activity"`
	GeneratedAt      time.Time        `json:"generated_at"`
}
