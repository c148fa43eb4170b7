package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusActive    ReferralStatus = "active"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusInactive  ReferralStatus = "inactive"
)

// referralTransitions lists the statuses reachable from each status.
// Completed is terminal.
var referralTransitions = map[ReferralStatus][]ReferralStatus{
	ReferralStatusPending:   {ReferralStatusActive, ReferralStatusInactive, ReferralStatusCompleted},
	ReferralStatusActive:    {ReferralStatusCompleted, ReferralStatusInactive},
	ReferralStatusInactive:  {ReferralStatusPending, ReferralStatusActive},
	ReferralStatusCompleted: nil,
}

func (s ReferralStatus) Valid() bool {
	_, ok := referralTransitions[s]
	return ok
}

// CanTransitionTo reports whether a referral may move from s to next.
// Staying on the same status is always allowed.
func (s ReferralStatus) CanTransitionTo(next ReferralStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range referralTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Referral struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	InfluencerID    uuid.UUID       `json:"influencer_id" db:"influencer_id"`
	ReferralLinkID  uuid.UUID       `json:"referral_link_id" db:"referral_link_id"`
	Name            string          `json:"name" db:"name"`
	Email           string          `json:"email" db:"email"`
	DiscordID       *string         `json:"discord_id,omitempty" db:"discord_id"`
	Age             *int            `json:"age,omitempty" db:"age"`
	Status          ReferralStatus  `json:"status" db:"status"`
	SourcePlatform  Platform        `json:"source_platform" db:"source_platform"`
	ConversionValue decimal.Decimal `json:"conversion_value" db:"conversion_value"`
	Metadata        Metadata        `json:"metadata" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// ReferralWithLink carries the link fields shown next to a referral.
type ReferralWithLink struct {
	Referral
	LinkTitle    string   `json:"link_title" db:"link_title"`
	LinkPlatform Platform `json:"link_platform" db:"link_platform"`
	LinkCode     string   `json:"link_code" db:"link_code"`
}

type ReferralSummary struct {
	Total          int                    `json:"total"`
	ByStatus       map[ReferralStatus]int `json:"by_status"`
	TotalEarnings  decimal.Decimal        `json:"total_earnings"`
	ConversionRate float64                `json:"conversion_rate"`
	TopPlatform    Platform               `json:"top_platform,omitempty"`
	PlatformCounts map[Platform]int       `json:"platform_counts"`
}
