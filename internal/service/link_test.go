package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository/memory"
)

var codePattern = regexp.MustCompile(`^[a-z0-9-]+-[a-z0-9]{6}$`)

func newLinkService(t *testing.T) (*LinkService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewLinkService(store, store, "https://virion.test/r/"), store
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Summer Launch", "summer-launch"},
		{"  Hello,   World!! ", "hello-world"},
		{"Already-slugged", "already-slugged"},
		{"Ünïcode Tïtle 2024", "n-code-t-tle-2024"},
		{"!!!", "link"},
		{"", "link"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestCreateLinkGeneratesUniqueCodes(t *testing.T) {
	svc, _ := newLinkService(t)
	ctx := context.Background()
	owner := uuid.New()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		link, err := svc.CreateLink(ctx, owner, CreateLinkInput{
			Title:       "Summer Launch",
			Platform:    model.PlatformInstagram,
			OriginalURL: "https://example.com/x",
		})
		require.NoError(t, err)
		require.Regexp(t, codePattern, link.ReferralCode)
		require.Equal(t, "https://virion.test/r/"+link.ReferralCode, link.ReferralURL)
		require.False(t, seen[link.ReferralCode], "duplicate code %s", link.ReferralCode)
		seen[link.ReferralCode] = true

		require.True(t, link.IsActive)
		require.Zero(t, link.Clicks)
		require.Zero(t, link.Conversions)
		require.True(t, link.Earnings.IsZero())
	}
}

func TestCreateLinkRetriesOnCollision(t *testing.T) {
	svc, _ := newLinkService(t)
	ctx := context.Background()

	suffixes := []string{"aaaaaa", "aaaaaa", "bbbbbb"}
	svc.suffixFn = func() string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}

	in := CreateLinkInput{Title: "Promo", OriginalURL: "https://example.com"}
	first, err := svc.CreateLink(ctx, uuid.New(), in)
	require.NoError(t, err)
	require.Equal(t, "promo-aaaaaa", first.ReferralCode)

	second, err := svc.CreateLink(ctx, uuid.New(), in)
	require.NoError(t, err)
	require.Equal(t, "promo-bbbbbb", second.ReferralCode)
}

func TestCreateLinkGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, _ := newLinkService(t)
	ctx := context.Background()
	svc.suffixFn = func() string { return "zzzzzz" }

	in := CreateLinkInput{Title: "Promo", OriginalURL: "https://example.com"}
	_, err := svc.CreateLink(ctx, uuid.New(), in)
	require.NoError(t, err)

	_, err = svc.CreateLink(ctx, uuid.New(), in)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateLinkValidation(t *testing.T) {
	svc, _ := newLinkService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateLinkInput
	}{
		{"missing title", CreateLinkInput{OriginalURL: "https://example.com"}},
		{"missing url", CreateLinkInput{Title: "x"}},
		{"relative url", CreateLinkInput{Title: "x", OriginalURL: "/path"}},
		{"bad scheme", CreateLinkInput{Title: "x", OriginalURL: "ftp://example.com"}},
		{"bad platform", CreateLinkInput{Title: "x", OriginalURL: "https://example.com", Platform: "MySpace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLink(ctx, uuid.New(), tt.in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateLinkRoundTrip(t *testing.T) {
	svc, _ := newLinkService(t)
	ctx := context.Background()
	owner := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}

	link, err := svc.CreateLink(ctx, owner.UserID, CreateLinkInput{
		Title:       "Original",
		Platform:    model.PlatformYouTube,
		OriginalURL: "https://example.com/a",
	})
	require.NoError(t, err)

	title := "Renamed"
	target := "https://example.com/b"
	platform := model.PlatformTikTok
	updated, err := svc.UpdateLink(ctx, owner, link.ID, LinkPatch{
		Title:       &title,
		OriginalURL: &target,
		Platform:    &platform,
	})
	require.NoError(t, err)
	require.Equal(t, link.ReferralCode, updated.ReferralCode)

	got, err := svc.GetLink(ctx, owner, link.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Title)
	require.Equal(t, "https://example.com/b", got.OriginalURL)
	require.Equal(t, model.PlatformTikTok, got.Platform)
	require.Equal(t, link.ReferralCode, got.ReferralCode)

	toggled, err := svc.ToggleActive(ctx, owner, link.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)
}

func TestLinkOwnership(t *testing.T) {
	svc, _ := newLinkService(t)
	ctx := context.Background()
	owner := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}
	other := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}
	admin := model.Viewer{UserID: uuid.New(), Role: model.RoleAdmin}

	link, err := svc.CreateLink(ctx, owner.UserID, CreateLinkInput{Title: "Mine", OriginalURL: "https://example.com"})
	require.NoError(t, err)

	_, err = svc.GetLink(ctx, other, link.ID)
	require.ErrorIs(t, err, ErrForbidden)
	require.ErrorIs(t, svc.DeleteLink(ctx, other, link.ID), ErrForbidden)

	links, err := svc.ListLinks(ctx, other)
	require.NoError(t, err)
	require.Empty(t, links)

	links, err = svc.ListLinks(ctx, admin)
	require.NoError(t, err)
	require.Len(t, links, 1)

	_, err = svc.ListLinks(ctx, model.Viewer{UserID: uuid.New(), Role: model.RoleClient})
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeleteLink(ctx, admin, link.ID))
	_, err = svc.GetLink(ctx, owner, link.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
