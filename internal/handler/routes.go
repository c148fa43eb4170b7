package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/config"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/middleware"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

type Handlers struct {
	Health    *HealthHandler
	Referral  *ReferralHandler
	Link      *LinkHandler
	Dashboard *DashboardHandler
	Bot       *BotHandler
	Admin     *AdminHandler
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, h Handlers) {
	// Health check
	app.Get("/health", h.Health.Health)

	// Public attribution endpoints (no auth required)
	app.Get("/referral/:code", h.Referral.Click)
	app.Post("/referral/conversion", h.Referral.Conversion)
	app.Post("/referral/signup", h.Referral.Signup)

	auth := middleware.JWTAuth(cfg)

	// Bots (admins and clients)
	bots := app.Group("/bots", auth, middleware.RequireRole(model.RoleAdmin, model.RoleClient))
	bots.Get("/", h.Bot.GetBots)
	bots.Get("/stats", h.Bot.GetStats)
	bots.Post("/:id/control", h.Bot.ControlBot)

	// Management API
	api := app.Group("/api", auth)
	api.Get("/dashboard", h.Dashboard.GetDashboard)

	creators := middleware.RequireRole(model.RoleAdmin, model.RoleInfluencer)

	// Links
	api.Get("/links", creators, h.Link.ListLinks)
	api.Post("/links", creators, h.Link.CreateLink)
	api.Get("/links/:id", creators, h.Link.GetLink)
	api.Patch("/links/:id", creators, h.Link.UpdateLink)
	api.Delete("/links/:id", creators, h.Link.DeleteLink)
	api.Post("/links/:id/toggle", creators, h.Link.ToggleLink)
	api.Get("/links/:id/analytics", creators, h.Link.LinkAnalytics)
	api.Get("/analytics", creators, h.Link.InfluencerAnalytics)

	// Referrals
	api.Get("/referrals", creators, h.Referral.ListReferrals)
	api.Patch("/referrals/:id/status", creators, h.Referral.UpdateStatus)
	api.Delete("/referrals/:id", creators, h.Referral.DeleteReferral)

	// Admin
	admin := middleware.RequireRole(model.RoleAdmin)
	api.Post("/bots", admin, h.Bot.CreateBot)
	api.Delete("/bots/:id", admin, h.Bot.DeleteBot)
	api.Get("/audit-logs", admin, h.Admin.GetAuditLogs)
}
