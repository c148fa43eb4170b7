package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository/memory"
)

var transformNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestTransformInfluencer(t *testing.T) {
	raw := model.RawDashboardData{}
	for i, n := range []int{10, 20, 30} {
		raw.Links = append(raw.Links, model.ReferralLink{
			ID:          uuid.New(),
			Title:       "Link",
			Platform:    model.PlatformYouTube,
			Clicks:      n,
			Conversions: n / 10,
			Earnings:    decimal.NewFromInt(int64(n)),
			IsActive:    i != 2,
			CreatedAt:   transformNow.Add(-time.Duration(i+1) * time.Hour),
		})
	}

	data, err := Transform(model.RoleInfluencer, raw, transformNow)
	require.NoError(t, err)

	require.Equal(t, 60.0, data.Stats.Primary)
	require.Equal(t, 6.0, data.Stats.Secondary)
	require.Equal(t, 60.0, data.Stats.Tertiary)
	require.Equal(t, 2.0, data.Stats.Quaternary)
	require.InDelta(t, 10.0, data.Stats.ConversionRate, 1e-9)
	require.Equal(t, "Total Clicks", data.Stats.Labels.Primary)
	require.Equal(t, model.RoleInfluencer, data.Metadata.Role)

	require.Len(t, data.PrimaryList, 3)
	require.NotNil(t, data.SecondaryList)
	require.Empty(t, data.SecondaryList)

	require.Len(t, data.RecentActivity, 3)
	require.Equal(t, "1 hour ago", data.RecentActivity[0].TimeAgo)
	require.Equal(t, "3 hours ago", data.RecentActivity[2].TimeAgo)
}

func TestTransformAdmin(t *testing.T) {
	raw := model.RawDashboardData{
		Clients: []model.Client{{ID: uuid.New(), Name: "Acme", CreatedAt: transformNow.Add(-time.Minute)}},
		Bots: []model.Bot{
			{ID: uuid.New(), Name: "A", Status: model.BotStatusOnline, CreatedAt: transformNow.Add(-2 * time.Minute)},
			{ID: uuid.New(), Name: "B", Status: model.BotStatusOffline, CreatedAt: transformNow.Add(-3 * time.Minute)},
		},
		Users: []model.Profile{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}},
	}

	data, err := Transform(model.RoleAdmin, raw, transformNow)
	require.NoError(t, err)
	require.Equal(t, 1.0, data.Stats.Primary)
	require.Equal(t, 2.0, data.Stats.Secondary)
	require.Equal(t, 3.0, data.Stats.Tertiary)
	require.Equal(t, 1.0, data.Stats.Quaternary)
	require.Equal(t, 50.0, data.Stats.ConversionRate)
	require.Len(t, data.SecondaryList, 2)
}

func TestTransformClient(t *testing.T) {
	campaign := model.Campaign{ID: uuid.New(), Name: "Spring", Status: model.CampaignStatusActive, CreatedAt: transformNow.Add(-time.Hour)}
	alice, bob := uuid.New(), uuid.New()
	raw := model.RawDashboardData{
		Campaigns: []model.Campaign{campaign},
		Users: []model.Profile{
			{ID: alice, FullName: "Alice", Role: model.RoleInfluencer},
			{ID: bob, FullName: "Bob", Role: model.RoleInfluencer},
		},
		Links: []model.ReferralLink{
			{ID: uuid.New(), InfluencerID: alice, CampaignID: &campaign.ID, Clicks: 10, Conversions: 1, Earnings: decimal.NewFromInt(5), IsActive: true},
			{ID: uuid.New(), InfluencerID: bob, CampaignID: &campaign.ID, Clicks: 10, Conversions: 4, Earnings: decimal.NewFromInt(20), IsActive: true},
			{ID: uuid.New(), InfluencerID: bob, CampaignID: &campaign.ID, Clicks: 0, Conversions: 0, IsActive: false},
		},
	}

	data, err := Transform(model.RoleClient, raw, transformNow)
	require.NoError(t, err)
	require.Equal(t, 1.0, data.Stats.Primary)
	require.Equal(t, 2.0, data.Stats.Secondary)
	require.Equal(t, 5.0, data.Stats.Tertiary)
	require.Equal(t, 25.0, data.Stats.Quaternary)
	require.Equal(t, 25.0, data.Stats.ConversionRate)

	require.Len(t, data.SecondaryList, 2)
	require.Equal(t, "Bob", data.SecondaryList[0].Title)
	require.Equal(t, "2 links", data.SecondaryList[0].Subtitle)
	require.Equal(t, "1 link", data.SecondaryList[1].Subtitle)
}

func TestTransformCapsLists(t *testing.T) {
	raw := model.RawDashboardData{}
	for i := 0; i < 15; i++ {
		raw.Links = append(raw.Links, model.ReferralLink{ID: uuid.New(), CreatedAt: transformNow.Add(-time.Duration(i) * time.Minute)})
	}
	data, err := Transform(model.RoleInfluencer, raw, transformNow)
	require.NoError(t, err)
	require.Len(t, data.PrimaryList, 10)
	require.Len(t, data.RecentActivity, 5)
	require.Zero(t, data.Stats.ConversionRate)
}

func TestTransformUnknownRole(t *testing.T) {
	_, err := Transform("guest", model.RawDashboardData{}, transformNow)
	require.ErrorIs(t, err, ErrValidation)
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "Just now"},
		{59 * time.Second, "Just now"},
		{time.Minute, "1 min ago"},
		{59 * time.Minute, "59 min ago"},
		{60 * time.Minute, "1 hour ago"},
		{5*time.Hour + 59*time.Minute, "5 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, TimeAgo(transformNow.Add(-tt.ago), transformNow), tt.ago.String())
	}
}

// blockingStore blocks the first ListLinks call until its context ends and
// fails the next failures calls with a transient error.
type blockingStore struct {
	*memory.Store
	block    bool
	entered  chan struct{}
	failures int32
	calls    int32
}

func (s *blockingStore) ListLinks(ctx context.Context, influencerID *uuid.UUID) ([]model.ReferralLink, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if s.block && n == 1 {
		close(s.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= s.failures {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListLinks(ctx, influencerID)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveDashboardLoad(_, result string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func TestDashboardLoadSupersedesInflight(t *testing.T) {
	store := &blockingStore{Store: memory.New(), block: true, entered: make(chan struct{})}
	svc := NewDashboardService(store)
	observer := &recordingObserver{}
	svc.SetObserver(observer)
	viewer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}

	type outcome struct {
		data *model.UnifiedDashboardData
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		data, err := svc.Load(context.Background(), viewer)
		first <- outcome{data, err}
	}()
	<-store.entered

	second, err := svc.Load(context.Background(), viewer)
	require.NoError(t, err)
	require.NotNil(t, second)

	got := <-first
	require.ErrorIs(t, got.err, context.Canceled)
	require.Nil(t, got.data)

	latest, ok := svc.Latest(viewer.UserID)
	require.True(t, ok)
	require.Same(t, second, latest)
	require.ElementsMatch(t, []string{"ok", "canceled"}, observer.results)
}

func TestDashboardLoadRetriesTransientErrors(t *testing.T) {
	store := &blockingStore{Store: memory.New(), failures: 2}
	svc := NewDashboardService(store)
	svc.Configure(time.Second, 2, time.Millisecond)
	viewer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}

	data, err := svc.Load(context.Background(), viewer)
	require.NoError(t, err)
	require.Equal(t, model.RoleInfluencer, data.Metadata.Role)
	require.EqualValues(t, 3, atomic.LoadInt32(&store.calls))
}

func TestDashboardLoadGivesUp(t *testing.T) {
	store := &blockingStore{Store: memory.New(), failures: 100}
	svc := NewDashboardService(store)
	svc.Configure(time.Second, 1, time.Millisecond)
	viewer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}

	_, err := svc.Load(context.Background(), viewer)
	require.ErrorIs(t, err, ErrStorage)
	require.EqualValues(t, 2, atomic.LoadInt32(&store.calls))

	_, ok := svc.Latest(viewer.UserID)
	require.False(t, ok)
}

func TestDashboardLoadClient(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	client := store.AddClient(model.Client{Name: "Acme"})
	campaign := store.AddCampaign(model.Campaign{ClientID: client.ID, Name: "Spring"})
	influencer := store.AddProfile(model.Profile{FullName: "Alice", Role: model.RoleInfluencer})
	user := store.AddProfile(model.Profile{FullName: "Client User", Role: model.RoleClient, ClientID: &client.ID})
	orphan := store.AddProfile(model.Profile{FullName: "No Client", Role: model.RoleClient})

	link := &model.ReferralLink{
		InfluencerID: influencer.ID,
		CampaignID:   &campaign.ID,
		Title:        "Spring link",
		ReferralCode: "spring-link-aaaaaa",
		OriginalURL:  "https://example.com",
		IsActive:     true,
	}
	require.NoError(t, store.CreateLink(ctx, link))
	_, err := store.IncrementLinkConversions(ctx, link.ID, decimal.NewFromInt(40))
	require.NoError(t, err)

	svc := NewDashboardService(store)
	data, err := svc.Load(ctx, model.Viewer{UserID: user.ID, Role: model.RoleClient})
	require.NoError(t, err)
	require.Equal(t, 1.0, data.Stats.Primary)
	require.Equal(t, 1.0, data.Stats.Secondary)
	require.Equal(t, 40.0, data.Stats.Quaternary)
	require.Equal(t, "Alice", data.SecondaryList[0].Title)

	_, err = svc.Load(ctx, model.Viewer{UserID: orphan.ID, Role: model.RoleClient})
	require.ErrorIs(t, err, ErrForbidden)
}
