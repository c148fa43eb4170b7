package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Platform string

const (
	PlatformYouTube   Platform = "YouTube"
	PlatformInstagram Platform = "Instagram"
	PlatformTikTok    Platform = "TikTok"
	PlatformTwitter   Platform = "Twitter"
	PlatformFacebook  Platform = "Facebook"
	PlatformLinkedIn  Platform = "LinkedIn"
	PlatformOther     Platform = "Other"
)

var platforms = map[Platform]bool{
	PlatformYouTube:   true,
	PlatformInstagram: true,
	PlatformTikTok:    true,
	PlatformTwitter:   true,
	PlatformFacebook:  true,
	PlatformLinkedIn:  true,
	PlatformOther:     true,
}

func (p Platform) Valid() bool {
	return platforms[p]
}

type ReferralLink struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	InfluencerID   uuid.UUID       `json:"influencer_id" db:"influencer_id"`
	CampaignID     *uuid.UUID      `json:"campaign_id,omitempty" db:"campaign_id"`
	Title          string          `json:"title" db:"title"`
	Description    *string         `json:"description,omitempty" db:"description"`
	Platform       Platform        `json:"platform" db:"platform"`
	OriginalURL    string          `json:"original_url" db:"original_url"`
	ReferralCode   string          `json:"referral_code" db:"referral_code"`
	ReferralURL    string          `json:"referral_url" db:"referral_url"`
	ThumbnailURL   *string         `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	Clicks         int             `json:"clicks" db:"clicks"`
	Conversions    int             `json:"conversions" db:"conversions"`
	Earnings       decimal.Decimal `json:"earnings" db:"earnings"`
	ConversionRate decimal.Decimal `json:"conversion_rate" db:"conversion_rate"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// IsExpired reports whether the link has an expiry at or before now.
func (l *ReferralLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// LinkCounters is the state of a link's running totals after an increment.
type LinkCounters struct {
	LinkID         uuid.UUID       `json:"link_id" db:"id"`
	Clicks         int             `json:"clicks" db:"clicks"`
	Conversions    int             `json:"conversions" db:"conversions"`
	Earnings       decimal.Decimal `json:"earnings" db:"earnings"`
	ConversionRate decimal.Decimal `json:"conversion_rate" db:"conversion_rate"`
}

// ConversionRate returns conversions/clicks*100 rounded to two places, or
// zero when there are no clicks.
func ConversionRate(conversions, clicks int) decimal.Decimal {
	if clicks <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(conversions)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(clicks))).
		Round(2)
}
