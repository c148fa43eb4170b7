package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

// Storage ports. Both the Postgres repository and the in-memory store
// implement all of them.

type LinkStore interface {
	GetLink(ctx context.Context, id uuid.UUID) (*model.ReferralLink, error)
	GetLinkByCode(ctx context.Context, code string) (*model.ReferralLink, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	CreateLink(ctx context.Context, link *model.ReferralLink) error
	UpdateLink(ctx context.Context, link *model.ReferralLink) error
	DeleteLink(ctx context.Context, id uuid.UUID) error
	ListLinks(ctx context.Context, influencerID *uuid.UUID) ([]model.ReferralLink, error)
	ListLinksByCampaigns(ctx context.Context, campaignIDs []uuid.UUID) ([]model.ReferralLink, error)
	IncrementLinkClicks(ctx context.Context, id uuid.UUID) (*model.LinkCounters, error)
	IncrementLinkConversions(ctx context.Context, id uuid.UUID, earnings decimal.Decimal) (*model.LinkCounters, error)
}

type AnalyticsStore interface {
	InsertAnalyticsEvent(ctx context.Context, event *model.AnalyticsEvent) error
	ListAnalyticsEvents(ctx context.Context, filter model.AnalyticsFilter) ([]model.AnalyticsEvent, error)
}

type ReferralStore interface {
	GetReferral(ctx context.Context, id uuid.UUID) (*model.Referral, error)
	GetReferralByInfluencerEmail(ctx context.Context, influencerID uuid.UUID, email string) (*model.Referral, error)
	CreateReferral(ctx context.Context, referral *model.Referral) error
	UpdateReferralStatus(ctx context.Context, id uuid.UUID, status model.ReferralStatus, conversionValue *decimal.Decimal) (*model.Referral, error)
	DeleteReferral(ctx context.Context, id uuid.UUID) error
	ListReferralsByInfluencer(ctx context.Context, influencerID uuid.UUID) ([]model.ReferralWithLink, error)
	ListReferralsByLinks(ctx context.Context, linkIDs []uuid.UUID) ([]model.ReferralWithLink, error)
}

type BotStore interface {
	GetBot(ctx context.Context, id uuid.UUID) (*model.Bot, error)
	ListBots(ctx context.Context, clientID *uuid.UUID) ([]model.Bot, error)
	CreateBot(ctx context.Context, bot *model.Bot) error
	DeleteBot(ctx context.Context, id uuid.UUID) error
	UpdateBotStatus(ctx context.Context, id uuid.UUID, status model.BotStatus, lastOnline *time.Time) (*model.Bot, error)
}

type ClientStore interface {
	GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	ListCampaignsByClient(ctx context.Context, clientID uuid.UUID) ([]model.Campaign, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	ListProfiles(ctx context.Context, role model.Role) ([]model.Profile, error)
}

type AuditStore interface {
	LogAction(ctx context.Context, actorID *uuid.UUID, action, targetType string, targetID uuid.UUID, details interface{}) error
	GetAuditLogs(ctx context.Context, limit, offset int) ([]model.AuditLog, error)
}

type CounterReconciler interface {
	ReconcileLinkCounters(ctx context.Context) (int64, error)
}

// Store is everything the server wires from one storage driver.
type Store interface {
	LinkStore
	AnalyticsStore
	ReferralStore
	BotStore
	ClientStore
	ProfileStore
	AuditStore
	CounterReconciler
	Ping(ctx context.Context) error
	Close() error
}
