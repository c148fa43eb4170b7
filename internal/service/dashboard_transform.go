package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

const (
	dashboardListLimit     = 10
	dashboardActivityLimit = 5
)

// roleMapping says how one role's raw rows become the unified shape.
type roleMapping struct {
	labels         model.StatLabels
	primaryTitle   string
	secondaryTitle string
	stats          [4]func(model.RawDashboardData) float64
	rate           func(model.RawDashboardData) float64
	primary        func(model.RawDashboardData) []model.ListItem
	secondary      func(model.RawDashboardData) []model.ListItem
	activity       []func(model.RawDashboardData) []model.ActivityItem
}

var roleMappings = map[model.Role]roleMapping{
	model.RoleInfluencer: {
		labels: model.StatLabels{
			Primary:    "Total Clicks",
			Secondary:  "Conversions",
			Tertiary:   "Earnings",
			Quaternary: "Active Links",
		},
		primaryTitle:   "Referral Links",
		secondaryTitle: "Recent Referrals",
		stats: [4]func(model.RawDashboardData) float64{
			func(r model.RawDashboardData) float64 { return float64(sumClicks(r.Links)) },
			func(r model.RawDashboardData) float64 { return float64(sumConversions(r.Links)) },
			func(r model.RawDashboardData) float64 { return sumEarnings(r.Links).InexactFloat64() },
			func(r model.RawDashboardData) float64 { return float64(countActiveLinks(r.Links)) },
		},
		rate:      linkConversionRate,
		primary:   linkItems,
		secondary: referralItems,
		activity:  []func(model.RawDashboardData) []model.ActivityItem{referralActivity, linkActivity},
	},
	model.RoleAdmin: {
		labels: model.StatLabels{
			Primary:    "Clients",
			Secondary:  "Bots",
			Tertiary:   "Users",
			Quaternary: "Active Bots",
		},
		primaryTitle:   "Clients",
		secondaryTitle: "Bots",
		stats: [4]func(model.RawDashboardData) float64{
			func(r model.RawDashboardData) float64 { return float64(len(r.Clients)) },
			func(r model.RawDashboardData) float64 { return float64(len(r.Bots)) },
			func(r model.RawDashboardData) float64 { return float64(len(r.Users)) },
			func(r model.RawDashboardData) float64 { return float64(countOnlineBots(r.Bots)) },
		},
		rate: func(r model.RawDashboardData) float64 {
			return percent(countOnlineBots(r.Bots), len(r.Bots))
		},
		primary:   clientItems,
		secondary: botItems,
		activity:  []func(model.RawDashboardData) []model.ActivityItem{clientActivity, botActivity},
	},
	model.RoleClient: {
		labels: model.StatLabels{
			Primary:    "Campaigns",
			Secondary:  "Active Influencers",
			Tertiary:   "Conversions",
			Quaternary: "Revenue",
		},
		primaryTitle:   "Campaigns",
		secondaryTitle: "Influencers",
		stats: [4]func(model.RawDashboardData) float64{
			func(r model.RawDashboardData) float64 { return float64(len(r.Campaigns)) },
			func(r model.RawDashboardData) float64 { return float64(countActiveInfluencers(r.Links)) },
			func(r model.RawDashboardData) float64 { return float64(sumConversions(r.Links)) },
			func(r model.RawDashboardData) float64 { return sumEarnings(r.Links).InexactFloat64() },
		},
		rate:      linkConversionRate,
		primary:   campaignItems,
		secondary: influencerItems,
		activity:  []func(model.RawDashboardData) []model.ActivityItem{referralActivity, campaignActivity},
	},
}

// Transform reshapes a role's raw rows into the unified dashboard shape.
// It performs no I/O and depends only on its arguments.
func Transform(role model.Role, raw model.RawDashboardData, now time.Time) (*model.UnifiedDashboardData, error) {
	m, ok := roleMappings[role]
	if !ok {
		return nil, validationError("unknown role %q", role)
	}

	stats := model.DashboardStats{
		Primary:        m.stats[0](raw),
		Secondary:      m.stats[1](raw),
		Tertiary:       m.stats[2](raw),
		Quaternary:     m.stats[3](raw),
		ConversionRate: m.rate(raw),
		Labels:         m.labels,
	}

	var activity []model.ActivityItem
	for _, source := range m.activity {
		activity = append(activity, source(raw)...)
	}
	sort.SliceStable(activity, func(i, j int) bool {
		return activity[i].Timestamp.After(activity[j].Timestamp)
	})
	activity = capActivity(activity, dashboardActivityLimit)
	for i := range activity {
		activity[i].TimeAgo = TimeAgo(activity[i].Timestamp, now)
	}

	return &model.UnifiedDashboardData{
		Stats:          stats,
		PrimaryList:    capList(m.primary(raw), dashboardListLimit),
		SecondaryList:  capList(m.secondary(raw), dashboardListLimit),
		RecentActivity: activity,
		Metadata: model.DashboardMetadata{
			Role:           role,
			GeneratedAt:    now,
			PrimaryTitle:   m.primaryTitle,
			SecondaryTitle: m.secondaryTitle,
		},
	}, nil
}

// TimeAgo renders the distance from ts to now with floor thresholds at
// 1, 60 and 1440 minutes.
func TimeAgo(ts, now time.Time) string {
	minutes := int(now.Sub(ts) / time.Minute)
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%d min ago", minutes)
	case minutes < 1440:
		return plural(minutes/60, "hour")
	default:
		return plural(minutes/1440, "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func capList(items []model.ListItem, limit int) []model.ListItem {
	if items == nil {
		return []model.ListItem{}
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func capActivity(items []model.ActivityItem, limit int) []model.ActivityItem {
	if items == nil {
		return []model.ActivityItem{}
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

// --- stat selectors ---

func sumClicks(links []model.ReferralLink) int {
	n := 0
	for _, l := range links {
		n += l.Clicks
	}
	return n
}

func sumConversions(links []model.ReferralLink) int {
	n := 0
	for _, l := range links {
		n += l.Conversions
	}
	return n
}

func sumEarnings(links []model.ReferralLink) decimal.Decimal {
	total := decimal.Zero
	for _, l := range links {
		total = total.Add(l.Earnings)
	}
	return total
}

func countActiveLinks(links []model.ReferralLink) int {
	n := 0
	for _, l := range links {
		if l.IsActive {
			n++
		}
	}
	return n
}

func countOnlineBots(bots []model.Bot) int {
	n := 0
	for i := range bots {
		if bots[i].IsOnline() {
			n++
		}
	}
	return n
}

func countActiveInfluencers(links []model.ReferralLink) int {
	seen := map[uuid.UUID]bool{}
	for _, l := range links {
		if l.IsActive {
			seen[l.InfluencerID] = true
		}
	}
	return len(seen)
}

func linkConversionRate(r model.RawDashboardData) float64 {
	return percent(sumConversions(r.Links), sumClicks(r.Links))
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(whole))
}

// --- list builders ---

func linkItems(r model.RawDashboardData) []model.ListItem {
	items := make([]model.ListItem, 0, len(r.Links))
	for _, l := range r.Links {
		status := "inactive"
		if l.IsActive {
			status = "active"
		}
		items = append(items, model.ListItem{
			ID:        l.ID.String(),
			Title:     l.Title,
			Subtitle:  string(l.Platform),
			Value:     float64(l.Clicks),
			Status:    status,
			CreatedAt: l.CreatedAt,
		})
	}
	return items
}

func referralItems(r model.RawDashboardData) []model.ListItem {
	items := make([]model.ListItem, 0, len(r.Referrals))
	for _, ref := range r.Referrals {
		items = append(items, model.ListItem{
			ID:        ref.ID.String(),
			Title:     ref.Name,
			Subtitle:  ref.LinkTitle,
			Value:     ref.ConversionValue.InexactFloat64(),
			Status:    string(ref.Status),
			CreatedAt: ref.CreatedAt,
		})
	}
	return items
}

func clientItems(r model.RawDashboardData) []model.ListItem {
	items := make([]model.ListItem, 0, len(r.Clients))
	for _, c := range r.Clients {
		items = append(items, model.ListItem{
			ID:        c.ID.String(),
			Title:     c.Name,
			Subtitle:  c.Industry,
			Value:     float64(c.Bots),
			Status:    string(c.Status),
			CreatedAt: c.CreatedAt,
		})
	}
	return items
}

func botItems(r model.RawDashboardData) []model.ListItem {
	items := make([]model.ListItem, 0, len(r.Bots))
	for _, b := range r.Bots {
		items = append(items, model.ListItem{
			ID:        b.ID.String(),
			Title:     b.Name,
			Subtitle:  string(b.Template),
			Value:     float64(b.Servers),
			Status:    string(b.Status),
			CreatedAt: b.CreatedAt,
		})
	}
	return items
}

func campaignItems(r model.RawDashboardData) []model.ListItem {
	items := make([]model.ListItem, 0, len(r.Campaigns))
	for _, c := range r.Campaigns {
		items = append(items, model.ListItem{
			ID:        c.ID.String(),
			Title:     c.Name,
			Subtitle:  string(c.Status),
			Value:     c.Budget.InexactFloat64(),
			Status:    string(c.Status),
			CreatedAt: c.CreatedAt,
		})
	}
	return items
}

// influencerItems groups campaign links by influencer, most conversions first.
func influencerItems(r model.RawDashboardData) []model.ListItem {
	names := map[uuid.UUID]string{}
	for _, p := range r.Users {
		names[p.ID] = p.FullName
	}

	type agg struct {
		id          uuid.UUID
		links       int
		conversions int
		active      bool
		first       time.Time
	}
	byID := map[uuid.UUID]*agg{}
	var order []uuid.UUID
	for _, l := range r.Links {
		a, ok := byID[l.InfluencerID]
		if !ok {
			a = &agg{id: l.InfluencerID, first: l.CreatedAt}
			byID[l.InfluencerID] = a
			order = append(order, l.InfluencerID)
		}
		a.links++
		a.conversions += l.Conversions
		a.active = a.active || l.IsActive
		if l.CreatedAt.Before(a.first) {
			a.first = l.CreatedAt
		}
	}

	items := make([]model.ListItem, 0, len(order))
	for _, id := range order {
		a := byID[id]
		title := names[id]
		if title == "" {
			title = id.String()
		}
		status := "inactive"
		if a.active {
			status = "active"
		}
		items = append(items, model.ListItem{
			ID:        id.String(),
			Title:     title,
			Subtitle:  linkCount(a.links),
			Value:     float64(a.conversions),
			Status:    status,
			CreatedAt: a.first,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Value > items[j].Value
	})
	return items
}

func linkCount(n int) string {
	if n == 1 {
		return "1 link"
	}
	return fmt.Sprintf("%d links", n)
}

// --- activity sources ---

func referralActivity(r model.RawDashboardData) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, len(r.Referrals))
	for _, ref := range r.Referrals {
		items = append(items, model.ActivityItem{
			ID:          ref.ID.String(),
			Type:        "referral",
			Description: fmt.Sprintf("New referral: %s via %s", ref.Name, ref.LinkTitle),
			Timestamp:   ref.CreatedAt,
		})
	}
	return items
}

func linkActivity(r model.RawDashboardData) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, len(r.Links))
	for _, l := range r.Links {
		items = append(items, model.ActivityItem{
			ID:          l.ID.String(),
			Type:        "link",
			Description: fmt.Sprintf("Created link: %s", l.Title),
			Timestamp:   l.CreatedAt,
		})
	}
	return items
}

func clientActivity(r model.RawDashboardData) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, len(r.Clients))
	for _, c := range r.Clients {
		items = append(items, model.ActivityItem{
			ID:          c.ID.String(),
			Type:        "client",
			Description: fmt.Sprintf("New client: %s", c.Name),
			Timestamp:   c.CreatedAt,
		})
	}
	return items
}

func botActivity(r model.RawDashboardData) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, len(r.Bots))
	for _, b := range r.Bots {
		items = append(items, model.ActivityItem{
			ID:          b.ID.String(),
			Type:        "bot",
			Description: fmt.Sprintf("Bot %s is %s", b.Name, b.Status),
			Timestamp:   b.UpdatedAt,
		})
	}
	return items
}

func campaignActivity(r model.RawDashboardData) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, len(r.Campaigns))
	for _, c := range r.Campaigns {
		items = append(items, model.ActivityItem{
			ID:          c.ID.String(),
			Type:        "campaign",
			Description: fmt.Sprintf("Campaign created: %s", c.Name),
			Timestamp:   c.CreatedAt,
		})
	}
	return items
}
