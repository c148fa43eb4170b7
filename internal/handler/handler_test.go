package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/config"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/middleware"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository/memory"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
)

const (
	testSecret  = "handler-test-secret"
	testSiteURL = "https://virion.test"
)

type testServer struct {
	app   *fiber.App
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}}
	store := memory.New()

	attributionSvc := service.NewAttributionService(store, store, store, testSiteURL)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, cfg, Handlers{
		Health:    NewHealthHandler(store),
		Referral:  NewReferralHandler(attributionSvc, service.NewReferralService(store, store)),
		Link:      NewLinkHandler(service.NewLinkService(store, store, "https://virion.test/r"), service.NewAnalyticsService(store, store, time.UTC)),
		Dashboard: NewDashboardHandler(service.NewDashboardService(store)),
		Bot:       NewBotHandler(service.NewBotService(store, store, store, store)),
		Admin:     NewAdminHandler(service.NewAuditService(store)),
	})
	return &testServer{app: app, store: store}
}

func token(t *testing.T, viewer model.Viewer) string {
	t.Helper()
	tok, err := middleware.SignToken([]byte(testSecret), viewer, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, viewer *model.Viewer) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if viewer != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *viewer))
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func (s *testServer) createLink(t *testing.T, owner model.Viewer) model.ReferralLink {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/links", map[string]interface{}{
		"title":        "Summer Launch",
		"platform":     "Instagram",
		"original_url": "https://example.com/x",
	}, &owner)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var link model.ReferralLink
	decode(t, resp, &link)
	return link
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateLinkAndClickRedirects(t *testing.T) {
	s := newTestServer(t)
	influencer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}

	link := s.createLink(t, influencer)
	require.Regexp(t, regexp.MustCompile(`^[a-z0-9-]+-[a-z0-9]{6}$`), link.ReferralCode)
	require.Equal(t, influencer.UserID, link.InfluencerID)

	resp := s.do(t, http.MethodGet, "/referral/"+link.ReferralCode, nil, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "https://example.com/x", resp.Header.Get("Location"))

	resp = s.do(t, http.MethodGet, "/api/links/"+link.ID.String(), nil, &influencer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.ReferralLink
	decode(t, resp, &got)
	require.Equal(t, 1, got.Clicks)
}

func TestClickUnknownCodeRedirectsToSite(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/referral/nothing-here", nil, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, testSiteURL, resp.Header.Get("Location"))
}

func TestConversionAccumulates(t *testing.T) {
	s := newTestServer(t)
	link := s.createLink(t, model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer})

	type conversionResponse struct {
		Success bool                     `json:"success"`
		Data    service.ConversionResult `json:"data"`
	}

	body := map[string]interface{}{"referral_code": link.ReferralCode, "conversion_value": 9.99}
	resp := s.do(t, http.MethodPost, "/referral/conversion", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first conversionResponse
	decode(t, resp, &first)
	require.True(t, first.Success)
	require.Equal(t, 1, first.Data.Conversions)
	require.True(t, first.Data.Earnings.Equal(decimal.RequireFromString("9.99")))

	resp = s.do(t, http.MethodPost, "/referral/conversion", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second conversionResponse
	decode(t, resp, &second)
	require.Equal(t, 2, second.Data.Conversions)
	require.True(t, second.Data.Earnings.Equal(decimal.RequireFromString("19.98")))
}

func TestConversionErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	expired := &model.ReferralLink{
		InfluencerID: uuid.New(),
		Title:        "Old",
		OriginalURL:  "https://example.com",
		ReferralCode: "old-aaaaaa",
		IsActive:     true,
		ExpiresAt:    &past,
	}
	require.NoError(t, s.store.CreateLink(ctx, expired))

	resp := s.do(t, http.MethodPost, "/referral/conversion", map[string]interface{}{"referral_code": "old-aaaaaa"}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/referral/conversion", map[string]interface{}{"referral_code": "missing"}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/referral/conversion", map[string]interface{}{}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	influencer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}
	link := s.createLink(t, influencer)

	body := map[string]interface{}{
		"referral_code": link.ReferralCode,
		"name":          "Ada",
		"email":         "ada@example.com",
	}
	resp := s.do(t, http.MethodPost, "/referral/signup", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Success    bool      `json:"success"`
		ReferralID uuid.UUID `json:"referral_id"`
	}
	decode(t, resp, &created)
	require.True(t, created.Success)
	require.NotEqual(t, uuid.Nil, created.ReferralID)

	resp = s.do(t, http.MethodPost, "/referral/signup", body, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/referrals", nil, &influencer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Referrals []model.ReferralWithLink `json:"referrals"`
		Summary   model.ReferralSummary    `json:"summary"`
	}
	decode(t, resp, &listed)
	require.Len(t, listed.Referrals, 1)
	require.Equal(t, 1, listed.Summary.Total)
	require.Equal(t, link.Title, listed.Referrals[0].LinkTitle)
}

func TestBotControl(t *testing.T) {
	s := newTestServer(t)
	admin := model.Viewer{UserID: uuid.New(), Role: model.RoleAdmin}
	client := s.store.AddClient(model.Client{Name: "Acme"})
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bot := s.store.AddBot(model.Bot{ClientID: client.ID, Name: "Helper", Status: model.BotStatusOnline, LastOnline: &earlier})

	type controlResponse struct {
		Success bool      `json:"success"`
		Bot     model.Bot `json:"bot"`
	}
	path := fmt.Sprintf("/bots/%s/control", bot.ID)

	resp := s.do(t, http.MethodPost, path, map[string]string{"action": "stop"}, &admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stopped controlResponse
	decode(t, resp, &stopped)
	require.Equal(t, model.BotStatusOffline, stopped.Bot.Status)
	require.True(t, stopped.Bot.LastOnline.Equal(earlier))

	before := time.Now().Add(-time.Second)
	resp = s.do(t, http.MethodPost, path, map[string]string{"action": "start"}, &admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started controlResponse
	decode(t, resp, &started)
	require.Equal(t, model.BotStatusOnline, started.Bot.Status)
	require.True(t, started.Bot.LastOnline.After(before))

	resp = s.do(t, http.MethodPost, path, map[string]string{"action": "explode"}, &admin)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, fmt.Sprintf("/bots/%s/control", uuid.New()), map[string]string{"action": "start"}, &admin)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	influencer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}
	resp = s.do(t, http.MethodPost, path, map[string]string{"action": "start"}, &influencer)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/links", "/api/dashboard", "/bots", "/api/audit-logs"} {
		resp := s.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	influencer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}
	resp := s.do(t, http.MethodGet, "/api/audit-logs", nil, &influencer)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDashboardEndpoint(t *testing.T) {
	s := newTestServer(t)
	influencer := model.Viewer{UserID: uuid.New(), Role: model.RoleInfluencer}
	s.createLink(t, influencer)

	resp := s.do(t, http.MethodGet, "/api/dashboard", nil, &influencer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data model.UnifiedDashboardData
	decode(t, resp, &data)
	require.Equal(t, model.RoleInfluencer, data.Metadata.Role)
	require.Equal(t, "Total Clicks", data.Stats.Labels.Primary)
	require.Len(t, data.PrimaryList, 1)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: title", service.ErrValidation), http.StatusBadRequest},
		{service.ErrUnknownAction, http.StatusBadRequest},
		{service.ErrInactive, http.StatusBadRequest},
		{service.ErrExpired, http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: link", service.ErrNotFound), http.StatusNotFound},
		{service.ErrDuplicate, http.StatusConflict},
		{service.ErrInvalidTransition, http.StatusConflict},
		{context.Canceled, http.StatusRequestTimeout},
		{service.ErrStorage, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(clientIP(c))
	})

	tests := []struct {
		headers map[string]string
		want    string
	}{
		{map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "203.0.113.1"},
		{map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "198.51.100.2"}, "203.0.113.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range tt.headers {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, tt.want, string(body))
	}
}
