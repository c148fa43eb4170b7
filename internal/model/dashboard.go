package model

import "time"

type StatLabels struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Tertiary   string `json:"tertiary"`
	Quaternary string `json:"quaternary"`
}

type DashboardStats struct {
	Primary        float64    `json:"primary"`
	Secondary      float64    `json:"secondary"`
	Tertiary       float64    `json:"tertiary"`
	Quaternary     float64    `json:"quaternary"`
	ConversionRate float64    `json:"conversion_rate"`
	Labels         StatLabels `json:"labels"`
}

type ListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	Value     float64   `json:"value"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ActivityItem struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	TimeAgo     string    `json:"time_ago"`
}

type DashboardMetadata struct {
	Role           Role      `json:"role"`
	GeneratedAt    time.Time `json:"generated_at"`
	PrimaryTitle   string    `json:"primary_title"`
	SecondaryTitle string    `json:"secondary_title"`
}

type UnifiedDashboardData struct {
	Stats          DashboardStats    `json:"stats"`
	PrimaryList    []ListItem        `json:"primary_list"`
	SecondaryList  []ListItem        `json:"secondary_list"`
	RecentActivity []ActivityItem    `json:"recent_activity"`
	Metadata       DashboardMetadata `json:"metadata"`
}

// RawDashboardData holds the per-role query results before transformation.
// Only the slices relevant to the viewer's role are populated.
type RawDashboardData struct {
	Links     []ReferralLink
	Referrals []ReferralWithLink
	Clients   []Client
	Bots      []Bot
	Users     []Profile
	Campaigns []Campaign
}
