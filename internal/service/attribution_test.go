package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/cache"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/events"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/metrics"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository/memory"
)

const testSiteURL = "https://virion.test"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type recordingRecorder struct {
	mu          sync.Mutex
	clicks      []string
	conversions []string
	signups     []string
}

func (r *recordingRecorder) ObserveClick(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, outcome)
}

func (r *recordingRecorder) ObserveConversion(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversions = append(r.conversions, result)
}

func (r *recordingRecorder) ObserveSignup(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signups = append(r.signups, result)
}

type attributionFixture struct {
	store     *memory.Store
	links     *LinkService
	svc       *AttributionService
	publisher *recordingPublisher
	recorder  *recordingRecorder
}

func newAttributionFixture(t *testing.T) *attributionFixture {
	t.Helper()
	store := memory.New()
	f := &attributionFixture{
		store:     store,
		links:     NewLinkService(store, store, "https://virion.test/r"),
		svc:       NewAttributionService(store, store, store, testSiteURL),
		publisher: &recordingPublisher{},
		recorder:  &recordingRecorder{},
	}
	f.svc.SetPublisher(f.publisher)
	f.svc.SetRecorder(f.recorder)
	return f
}

func (f *attributionFixture) createLink(t *testing.T, in CreateLinkInput) *model.ReferralLink {
	t.Helper()
	if in.Title == "" {
		in.Title = "Summer Launch"
	}
	if in.OriginalURL == "" {
		in.OriginalURL = "https://example.com/x"
	}
	link, err := f.links.CreateLink(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	return link
}

func (f *attributionFixture) reload(t *testing.T, id uuid.UUID) *model.ReferralLink {
	t.Helper()
	link, err := f.store.GetLink(context.Background(), id)
	require.NoError(t, err)
	return link
}

func TestRecordClickRedirectsAndCounts(t *testing.T) {
	f := newAttributionFixture(t)
	link := f.createLink(t, CreateLinkInput{Platform: model.PlatformInstagram})

	res := f.svc.RecordClick(context.Background(), link.ReferralCode, RequestContext{
		UserAgent: "Mozilla/5.0 (iPhone) Mobile Safari",
		Referrer:  "https://www.instagram.com/p/abc",
		IPAddress: "203.0.113.7",
	})
	require.Equal(t, "https://example.com/x", res.Target)
	require.Equal(t, metrics.OutcomeRedirected, res.Outcome)
	require.Equal(t, link.ID, res.LinkID)

	got := f.reload(t, link.ID)
	require.Equal(t, 1, got.Clicks)

	evs, err := f.store.ListAnalyticsEvents(context.Background(), model.AnalyticsFilter{
		LinkIDs: []uuid.UUID{link.ID},
		Until:   time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, model.EventTypeClick, evs[0].EventType)
	require.Equal(t, DeviceMobile, *evs[0].DeviceType)
	require.Equal(t, "Safari", *evs[0].Browser)

	require.Len(t, f.publisher.events, 1)
	require.Equal(t, events.TypeClickRecorded, f.publisher.events[0].Type)
	require.Equal(t, 1, f.publisher.events[0].Clicks)
	require.Equal(t, []string{metrics.OutcomeRedirected}, f.recorder.clicks)
}

func TestRecordClickFallsBackToSite(t *testing.T) {
	f := newAttributionFixture(t)
	ctx := context.Background()

	inactive := false
	off := f.createLink(t, CreateLinkInput{Title: "Off", IsActive: &inactive})
	past := time.Now().Add(-time.Hour)
	expired := f.createLink(t, CreateLinkInput{Title: "Old", ExpiresAt: &past})

	tests := []struct {
		name    string
		code    string
		outcome string
	}{
		{"unknown code", "does-not-exist", metrics.OutcomeNotFound},
		{"inactive link", off.ReferralCode, metrics.OutcomeNotFound},
		{"expired link", expired.ReferralCode, metrics.OutcomeExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.svc.RecordClick(ctx, tt.code, RequestContext{})
			require.Equal(t, testSiteURL, res.Target)
			require.Equal(t, tt.outcome, res.Outcome)
		})
	}

	require.Zero(t, f.reload(t, off.ID).Clicks)
	require.Zero(t, f.reload(t, expired.ID).Clicks)
	require.Empty(t, f.publisher.events)
}

func TestRecordClickSurvivesPublisherFailure(t *testing.T) {
	f := newAttributionFixture(t)
	f.publisher.err = errors.New("broker down")
	link := f.createLink(t, CreateLinkInput{})

	res := f.svc.RecordClick(context.Background(), link.ReferralCode, RequestContext{})
	require.Equal(t, metrics.OutcomeRedirected, res.Outcome)
	require.Equal(t, 1, f.reload(t, link.ID).Clicks)
}

func TestConcurrentClicksAreAllCounted(t *testing.T) {
	f := newAttributionFixture(t)
	link := f.createLink(t, CreateLinkInput{})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.RecordClick(context.Background(), link.ReferralCode, RequestContext{})
		}()
	}
	wg.Wait()

	require.Equal(t, n, f.reload(t, link.ID).Clicks)
}

func TestRecordConversionAccumulatesEarnings(t *testing.T) {
	f := newAttributionFixture(t)
	link := f.createLink(t, CreateLinkInput{})
	ctx := context.Background()
	value := decimal.RequireFromString("9.99")

	res, err := f.svc.RecordConversion(ctx, ConversionInput{ReferralCode: link.ReferralCode, ConversionValue: &value}, RequestContext{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Conversions)
	require.True(t, res.Earnings.Equal(decimal.RequireFromString("9.99")))

	res, err = f.svc.RecordConversion(ctx, ConversionInput{ReferralCode: link.ReferralCode, ConversionValue: &value}, RequestContext{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Conversions)
	require.True(t, res.Earnings.Equal(decimal.RequireFromString("19.98")), "got %s", res.Earnings)

	got := f.reload(t, link.ID)
	require.Equal(t, 2, got.Conversions)
	require.Equal(t, "19.98", got.Earnings.StringFixed(2))
	require.Equal(t, []string{"ok", "ok"}, f.recorder.conversions)
}

func TestRecordConversionErrors(t *testing.T) {
	f := newAttributionFixture(t)
	ctx := context.Background()

	inactive := false
	off := f.createLink(t, CreateLinkInput{Title: "Off", IsActive: &inactive})
	past := time.Now().Add(-time.Minute)
	expired := f.createLink(t, CreateLinkInput{Title: "Old", ExpiresAt: &past})
	live := f.createLink(t, CreateLinkInput{Title: "Live"})
	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name string
		in   ConversionInput
		want error
	}{
		{"missing code", ConversionInput{}, ErrValidation},
		{"unknown code", ConversionInput{ReferralCode: "nope"}, ErrNotFound},
		{"inactive link", ConversionInput{ReferralCode: off.ReferralCode}, ErrNotFound},
		{"expired link", ConversionInput{ReferralCode: expired.ReferralCode}, ErrExpired},
		{"negative value", ConversionInput{ReferralCode: live.ReferralCode, ConversionValue: &negative}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordConversion(ctx, tt.in, RequestContext{})
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.Zero(t, f.reload(t, expired.ID).Conversions)
	require.Zero(t, f.reload(t, live.ID).Conversions)
}

func TestRecordSignup(t *testing.T) {
	f := newAttributionFixture(t)
	ctx := context.Background()
	link := f.createLink(t, CreateLinkInput{Platform: model.PlatformTikTok})

	in := SignupInput{ReferralCode: link.ReferralCode, Name: "Ada", Email: "ada@example.com"}
	ref, err := f.svc.RecordSignup(ctx, in, RequestContext{UserAgent: "Mozilla/5.0 Chrome/120"})
	require.NoError(t, err)
	require.Equal(t, model.ReferralStatusPending, ref.Status)
	require.Equal(t, link.InfluencerID, ref.InfluencerID)
	require.Equal(t, model.PlatformTikTok, ref.SourcePlatform)
	require.Equal(t, "referral_link", ref.Metadata["signup_source"])

	got := f.reload(t, link.ID)
	require.Equal(t, 1, got.Conversions)
	require.True(t, got.Earnings.IsZero())

	// Same email, different case: still a duplicate.
	in.Email = "ADA@example.com"
	_, err = f.svc.RecordSignup(ctx, in, RequestContext{})
	require.ErrorIs(t, err, ErrDuplicate)

	refs, err := f.store.ListReferralsByInfluencer(ctx, link.InfluencerID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, 1, f.reload(t, link.ID).Conversions)

	in.Email = "grace@example.com"
	_, err = f.svc.RecordSignup(ctx, in, RequestContext{})
	require.NoError(t, err)

	require.Equal(t, []string{"ok", "duplicate", "ok"}, f.recorder.signups)
	require.Equal(t, events.TypeSignupRecorded, f.publisher.events[len(f.publisher.events)-1].Type)
}

func TestRecordSignupErrors(t *testing.T) {
	f := newAttributionFixture(t)
	ctx := context.Background()

	inactive := false
	off := f.createLink(t, CreateLinkInput{Title: "Off", IsActive: &inactive})
	past := time.Now().Add(-time.Minute)
	expired := f.createLink(t, CreateLinkInput{Title: "Old", ExpiresAt: &past})
	live := f.createLink(t, CreateLinkInput{Title: "Live"})
	age := -3

	tests := []struct {
		name string
		in   SignupInput
		want error
	}{
		{"missing fields", SignupInput{ReferralCode: live.ReferralCode}, ErrValidation},
		{"bad email", SignupInput{ReferralCode: live.ReferralCode, Name: "A", Email: "not-an-email"}, ErrValidation},
		{"negative age", SignupInput{ReferralCode: live.ReferralCode, Name: "A", Email: "a@example.com", Age: &age}, ErrValidation},
		{"unknown code", SignupInput{ReferralCode: "nope", Name: "A", Email: "a@example.com"}, ErrNotFound},
		{"inactive link", SignupInput{ReferralCode: off.ReferralCode, Name: "A", Email: "a@example.com"}, ErrInactive},
		{"expired link", SignupInput{ReferralCode: expired.ReferralCode, Name: "A", Email: "a@example.com"}, ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordSignup(ctx, tt.in, RequestContext{})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecordedEventsRefreshCachedReports(t *testing.T) {
	f := newAttributionFixture(t)
	ctx := context.Background()
	link := f.createLink(t, CreateLinkInput{})
	owner := model.Viewer{UserID: link.InfluencerID, Role: model.RoleInfluencer}

	analytics := NewAnalyticsService(f.store, f.store, time.UTC)
	analytics.SetCache(cache.NewMemory(), time.Minute)
	f.svc.SetReportInvalidator(analytics)

	f.svc.RecordClick(ctx, link.ReferralCode, RequestContext{})
	report, err := analytics.ComputeLinkAnalytics(ctx, owner, link.ID, 30)
	require.NoError(t, err)
	require.Equal(t, 1, report.Summary.TotalClicks)
	agg, err := analytics.ComputeInfluencerAnalytics(ctx, owner.UserID, 7)
	require.NoError(t, err)
	require.Equal(t, 1, agg.Summary.TotalClicks)

	f.svc.RecordClick(ctx, link.ReferralCode, RequestContext{})
	report, err = analytics.ComputeLinkAnalytics(ctx, owner, link.ID, 30)
	require.NoError(t, err)
	require.Equal(t, 2, report.Summary.TotalClicks)
	require.Equal(t, f.reload(t, link.ID).Clicks, report.Summary.TotalClicks)

	value := decimal.NewFromInt(4)
	_, err = f.svc.RecordConversion(ctx, ConversionInput{ReferralCode: link.ReferralCode, ConversionValue: &value}, RequestContext{})
	require.NoError(t, err)
	_, err = f.svc.RecordSignup(ctx, SignupInput{ReferralCode: link.ReferralCode, Name: "Ada", Email: "ada@example.com"}, RequestContext{})
	require.NoError(t, err)

	report, err = analytics.ComputeLinkAnalytics(ctx, owner, link.ID, 30)
	require.NoError(t, err)
	require.Equal(t, 2, report.Summary.TotalConversions)
	agg, err = analytics.ComputeInfluencerAnalytics(ctx, owner.UserID, 7)
	require.NoError(t, err)
	require.Equal(t, 2, agg.Summary.TotalClicks)
	require.Equal(t, 2, agg.Summary.TotalConversions)
}

type failingEventStore struct {
	*memory.Store
	fail bool
}

func (s *failingEventStore) InsertAnalyticsEvent(ctx context.Context, event *model.AnalyticsEvent) error {
	if s.fail {
		return errors.New("analytics table unavailable")
	}
	return s.Store.InsertAnalyticsEvent(ctx, event)
}

func TestRecordSignupRollsBackWhenEventFails(t *testing.T) {
	f := newAttributionFixture(t)
	ctx := context.Background()
	link := f.createLink(t, CreateLinkInput{})

	eventStore := &failingEventStore{Store: f.store, fail: true}
	svc := NewAttributionService(f.store, eventStore, f.store, testSiteURL)
	in := SignupInput{ReferralCode: link.ReferralCode, Name: "Ada", Email: "ada@example.com"}

	_, err := svc.RecordSignup(ctx, in, RequestContext{})
	require.ErrorIs(t, err, ErrStorage)

	refs, err := f.store.ListReferralsByInfluencer(ctx, link.InfluencerID)
	require.NoError(t, err)
	require.Empty(t, refs)
	require.Zero(t, f.reload(t, link.ID).Conversions)

	eventStore.fail = false
	ref, err := svc.RecordSignup(ctx, in, RequestContext{})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", ref.Email)
	require.Equal(t, 1, f.reload(t, link.ID).Conversions)
}
