package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/cache"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365

	topReferrersLimit   = 5
	recentActivityLimit = 10

	unknownBucket = "Unknown"
	directBucket  = "Direct"
)

type AnalyticsService struct {
	links  LinkStore
	events AnalyticsStore
	cache  cache.Cache
	ttl    time.Duration
	loc    *time.Location
	nowFn  func() time.Time
}

func NewAnalyticsService(links LinkStore, analytics AnalyticsStore, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsService{
		links:  links,
		events: analytics,
		cache:  cache.Nop{},
		loc:    loc,
		nowFn:  time.Now,
	}
}

// SetCache enables report caching for ttl.
func (s *AnalyticsService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.ttl = ttl
}

// NormalizeWindow defaults a missing window to 30 days and clamps it to [1, 365].
func NormalizeWindow(days int) int {
	switch {
	case days == 0:
		return DefaultWindowDays
	case days < 1:
		return 1
	case days > MaxWindowDays:
		return MaxWindowDays
	}
	return days
}

// ComputeLinkAnalytics builds the report for a single link.
func (s *AnalyticsService) ComputeLinkAnalytics(ctx context.Context, viewer model.Viewer, linkID uuid.UUID, days int) (*model.AnalyticsReport, error) {
	link, err := s.links.GetLink(ctx, linkID)
	if err != nil {
		return nil, lookupError(err, repository.ErrLinkNotFound, "link")
	}
	if !canManageLink(viewer, link) {
		return nil, ErrForbidden
	}

	days = NormalizeWindow(days)
	key := fmt.Sprintf("analytics:link:%s:%d", linkID, days)
	return s.cached(ctx, key, func() (*model.AnalyticsReport, error) {
		return s.compute(ctx, []uuid.UUID{linkID}, days)
	})
}

// ComputeInfluencerAnalytics builds one report over every link an
// influencer owns.
func (s *AnalyticsService) ComputeInfluencerAnalytics(ctx context.Context, influencerID uuid.UUID, days int) (*model.AnalyticsReport, error) {
	days = NormalizeWindow(days)
	key := fmt.Sprintf("analytics:influencer:%s:%d", influencerID, days)
	return s.cached(ctx, key, func() (*model.AnalyticsReport, error) {
		links, err := s.links.ListLinks(ctx, &influencerID)
		if err != nil {
			return nil, storageError("list links", err)
		}
		ids := make([]uuid.UUID, len(links))
		for i, l := range links {
			ids[i] = l.ID
		}
		return s.compute(ctx, ids, days)
	})
}

// InvalidateLinkReports drops cached link and influencer reports for every
// window size.
func (s *AnalyticsService) InvalidateLinkReports(ctx context.Context, link *model.ReferralLink) {
	for _, prefix := range []string{
		fmt.Sprintf("analytics:link:%s:", link.ID),
		fmt.Sprintf("analytics:influencer:%s:", link.InfluencerID),
	} {
		if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
			log.Printf("[Analytics] Cache invalidate %s failed: %v", prefix, err)
		}
	}
}

func (s *AnalyticsService) compute(ctx context.Context, linkIDs []uuid.UUID, days int) (*model.AnalyticsReport, error) {
	now := s.nowFn()
	events := []model.AnalyticsEvent{}
	if len(linkIDs) > 0 {
		var err error
		events, err = s.events.ListAnalyticsEvents(ctx, model.AnalyticsFilter{
			LinkIDs: linkIDs,
			Since:   now.AddDate(0, 0, -days),
			Until:   now,
		})
		if err != nil {
			return nil, storageError("list analytics events", err)
		}
	}
	report := Aggregate(events, days, now, s.loc)
	return &report, nil
}

func (s *AnalyticsService) cached(ctx context.Context, key string, build func() (*model.AnalyticsReport, error)) (*model.AnalyticsReport, error) {
	var report model.AnalyticsReport
	hit, err := s.cache.Get(ctx, key, &report)
	if err != nil {
		log.Printf("[Analytics] Cache get %s failed: %v", key, err)
	}
	if hit {
		return &report, nil
	}

	built, err := build()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, built, s.ttl); err != nil {
		log.Printf("[Analytics] Cache set %s failed: %v", key, err)
	}
	return built, nil
}

// Aggregate derives a report from events that already fall inside the
// window. It is pure; day buckets are calendar days in loc, oldest first,
// ending with the day containing now.
func Aggregate(events []model.AnalyticsEvent, windowDays int, now time.Time, loc *time.Location) model.AnalyticsReport {
	windowDays = NormalizeWindow(windowDays)
	if loc == nil {
		loc = time.Local
	}

	var clicks, conversions []model.AnalyticsEvent
	earnings := decimal.Zero
	for _, e := range events {
		switch e.EventType {
		case model.EventTypeClick:
			clicks = append(clicks, e)
		case model.EventTypeConversion:
			conversions = append(conversions, e)
			earnings = earnings.Add(e.ConversionValue)
		}
	}

	report := model.AnalyticsReport{
		WindowDays: windowDays,
		Summary: model.AnalyticsSummary{
			TotalClicks:      len(clicks),
			TotalConversions: len(conversions),
			TotalEarnings:    earnings,
		},
		Daily:            dailySeries(clicks, conversions, windowDays, now, loc),
		DeviceBreakdown:  breakdown(clicks, func(e model.AnalyticsEvent) string { return valueOr(e.DeviceType, unknownBucket) }, 0),
		BrowserBreakdown: breakdown(clicks, func(e model.AnalyticsEvent) string { return valueOr(e.Browser, unknownBucket) }, 0),
		TopReferrers:     breakdown(clicks, referrerName, topReferrersLimit),
		RecentActivity:   recentEvents(events, recentActivityLimit),
		GeneratedAt:      now,
	}
	if len(clicks) > 0 {
		report.Summary.ConversionRate = float64(len(conversions)) / float64(len(clicks)) * 100
	}
	return report
}

func dailySeries(clicks, conversions []model.AnalyticsEvent, days int, now time.Time, loc *time.Location) []model.DailyPoint {
	local := now.In(loc)
	points := make([]model.DailyPoint, days)
	for i := 0; i < days; i++ {
		start := time.Date(local.Year(), local.Month(), local.Day()-(days-1-i), 0, 0, 0, 0, loc)
		end := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
		points[i] = model.DailyPoint{
			Date:        start.Format("2006-01-02"),
			Label:       start.Format("Jan 2"),
			Clicks:      countBetween(clicks, start, end),
			Conversions: countBetween(conversions, start, end),
		}
	}
	return points
}

func countBetween(events []model.AnalyticsEvent, start, end time.Time) int {
	n := 0
	for _, e := range events {
		if !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			n++
		}
	}
	return n
}

// breakdown groups events by key, most frequent first with ties ordered by
// name. limit <= 0 keeps every group.
func breakdown(events []model.AnalyticsEvent, key func(model.AnalyticsEvent) string, limit int) []model.BreakdownItem {
	counts := map[string]int{}
	for _, e := range events {
		counts[key(e)]++
	}
	items := make([]model.BreakdownItem, 0, len(counts))
	for name, count := range counts {
		items = append(items, model.BreakdownItem{Name: name, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func referrerName(e model.AnalyticsEvent) string {
	if e.Referrer == nil || *e.Referrer == "" {
		return directBucket
	}
	if u, err := url.Parse(*e.Referrer); err == nil && u.Host != "" {
		return u.Hostname()
	}
	return *e.Referrer
}

func recentEvents(events []model.AnalyticsEvent, limit int) []model.AnalyticsEvent {
	sorted := make([]model.AnalyticsEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
