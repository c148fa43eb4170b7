// Package events publishes referral lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeClickRecorded      Type = "referral.click.recorded"
	TypeConversionRecorded Type = "referral.conversion.recorded"
	TypeSignupRecorded     Type = "referral.signup.recorded"
)

// Event is the payload written for every recorded attribution.
type Event struct {
	Type            Type            `json:"type"`
	LinkID          uuid.UUID       `json:"link_id"`
	InfluencerID    uuid.UUID       `json:"influencer_id"`
	ReferralCode    string          `json:"referral_code"`
	ReferralID      *uuid.UUID      `json:"referral_id,omitempty"`
	Clicks          int             `json:"clicks"`
	Conversions     int             `json:"conversions"`
	Earnings        decimal.Decimal `json:"earnings"`
	ConversionValue decimal.Decimal `json:"conversion_value"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
