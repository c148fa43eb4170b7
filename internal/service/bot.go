package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/cache"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
)

const botStatsKeyPrefix = "bots:stats:"

type CreateBotInput struct {
	ClientID     uuid.UUID         `json:"client_id"`
	Name         string            `json:"name"`
	Template     model.BotTemplate `json:"template"`
	Prefix       string            `json:"prefix"`
	Description  *string           `json:"description"`
	DiscordBotID *string           `json:"discord_bot_id"`
	InviteURL    *string           `json:"invite_url"`
	WebhookURL   *string           `json:"webhook_url"`
}

// BotService simulates bot lifecycle control by flipping status flags.
type BotService struct {
	bots     BotStore
	clients  ClientStore
	profiles ProfileStore
	audit    AuditStore
	notifier Notifier
	cache    cache.Cache
	ttl      time.Duration
	nowFn    func() time.Time
}

func NewBotService(bots BotStore, clients ClientStore, profiles ProfileStore, audit AuditStore) *BotService {
	return &BotService{
		bots:     bots,
		clients:  clients,
		profiles: profiles,
		audit:    audit,
		notifier: nopNotifier{},
		cache:    cache.Nop{},
		nowFn:    time.Now,
	}
}

// SetNotifier sets the ops alert channel (Telegram in production)
func (s *BotService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetCache enables stats caching for ttl.
func (s *BotService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.ttl = ttl
}

// ControlBot applies a control action. start and restart bring the bot
// Online and stamp last_online; stop takes it Offline and keeps last_online.
func (s *BotService) ControlBot(ctx context.Context, viewer model.Viewer, id uuid.UUID, action model.BotAction) (*model.Bot, error) {
	var (
		status      model.BotStatus
		lastOnline  *time.Time
		auditAction string
	)
	switch action {
	case model.BotActionStart, model.BotActionRestart:
		now := s.nowFn()
		status, lastOnline = model.BotStatusOnline, &now
		auditAction = model.AuditActionBotStart
		if action == model.BotActionRestart {
			auditAction = model.AuditActionBotRestart
		}
	case model.BotActionStop:
		status = model.BotStatusOffline
		auditAction = model.AuditActionBotStop
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	current, err := s.GetBot(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	bot, err := s.bots.UpdateBotStatus(ctx, id, status, lastOnline)
	if err != nil {
		return nil, lookupError(err, repository.ErrBotNotFound, "bot")
	}

	recordAudit(ctx, s.audit, viewer.UserID, auditAction, "bot", id, map[string]interface{}{
		"from": current.Status,
		"to":   bot.Status,
	})
	s.invalidateStats(ctx, bot.ClientID)
	if err := s.notifier.NotifyBotAction(bot, action); err != nil {
		log.Printf("[Bots] Failed to send alert for bot %s: %v", id, err)
	}

	return bot, nil
}

func (s *BotService) GetBot(ctx context.Context, viewer model.Viewer, id uuid.UUID) (*model.Bot, error) {
	scope, err := s.scope(ctx, viewer)
	if err != nil {
		return nil, err
	}
	bot, err := s.bots.GetBot(ctx, id)
	if err != nil {
		return nil, lookupError(err, repository.ErrBotNotFound, "bot")
	}
	if scope != nil && bot.ClientID != *scope {
		return nil, fmt.Errorf("%w: bot", ErrNotFound)
	}
	return bot, nil
}

// ListBots returns bots visible to the viewer. Admins may filter by client.
func (s *BotService) ListBots(ctx context.Context, viewer model.Viewer, clientID *uuid.UUID) ([]model.Bot, error) {
	scope, err := s.scope(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if scope != nil {
		clientID = scope
	}
	bots, err := s.bots.ListBots(ctx, clientID)
	if err != nil {
		return nil, storageError("list bots", err)
	}
	return bots, nil
}

func (s *BotService) CreateBot(ctx context.Context, viewer model.Viewer, in CreateBotInput) (*model.Bot, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if in.ClientID == uuid.Nil {
		return nil, validationError("client_id is required")
	}
	template := in.Template
	if template == "" {
		template = model.BotTemplateStandard
	}
	if !template.Valid() {
		return nil, validationError("unknown template %q", template)
	}
	prefix := strings.TrimSpace(in.Prefix)
	if prefix == "" {
		prefix = "!"
	}

	if _, err := s.clients.GetClient(ctx, in.ClientID); err != nil {
		return nil, lookupError(err, repository.ErrClientNotFound, "client")
	}

	bot := &model.Bot{
		ClientID:     in.ClientID,
		Name:         name,
		DiscordBotID: in.DiscordBotID,
		Status:       model.BotStatusOffline,
		Template:     template,
		Prefix:       prefix,
		Description:  in.Description,
		InviteURL:    in.InviteURL,
		WebhookURL:   in.WebhookURL,
	}
	if err := s.bots.CreateBot(ctx, bot); err != nil {
		return nil, storageError("create bot", err)
	}

	recordAudit(ctx, s.audit, viewer.UserID, model.AuditActionBotCreate, "bot", bot.ID, map[string]interface{}{
		"name":      bot.Name,
		"client_id": bot.ClientID,
	})
	s.invalidateStats(ctx, bot.ClientID)
	return bot, nil
}

func (s *BotService) DeleteBot(ctx context.Context, viewer model.Viewer, id uuid.UUID) error {
	bot, err := s.GetBot(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := s.bots.DeleteBot(ctx, id); err != nil {
		return lookupError(err, repository.ErrBotNotFound, "bot")
	}
	recordAudit(ctx, s.audit, viewer.UserID, model.AuditActionBotDelete, "bot", id, map[string]interface{}{
		"name": bot.Name,
	})
	s.invalidateStats(ctx, bot.ClientID)
	return nil
}

// StatsFor returns fleet statistics over the bots visible to the viewer.
func (s *BotService) StatsFor(ctx context.Context, viewer model.Viewer) (*model.BotStats, error) {
	scope, err := s.scope(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return s.stats(ctx, scope)
}

// Stats returns statistics over every bot.
func (s *BotService) Stats(ctx context.Context) (*model.BotStats, error) {
	return s.stats(ctx, nil)
}

func (s *BotService) stats(ctx context.Context, clientID *uuid.UUID) (*model.BotStats, error) {
	key := statsKey(clientID)
	var cached model.BotStats
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Printf("[Bots] Cache get %s failed: %v", key, err)
	} else if hit {
		return &cached, nil
	}

	bots, err := s.bots.ListBots(ctx, clientID)
	if err != nil {
		return nil, storageError("list bots", err)
	}
	stats := ComputeBotStats(bots)
	if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
		log.Printf("[Bots] Cache set %s failed: %v", key, err)
	}
	return &stats, nil
}

func (s *BotService) invalidateStats(ctx context.Context, clientID uuid.UUID) {
	if err := s.cache.Delete(ctx, statsKey(nil), statsKey(&clientID)); err != nil {
		log.Printf("[Bots] Cache invalidate failed: %v", err)
	}
}

// scope returns the client a viewer is restricted to, or nil for admins.
func (s *BotService) scope(ctx context.Context, viewer model.Viewer) (*uuid.UUID, error) {
	switch viewer.Role {
	case model.RoleAdmin:
		return nil, nil
	case model.RoleClient:
		profile, err := s.profiles.GetProfile(ctx, viewer.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				return nil, ErrForbidden
			}
			return nil, storageError("get profile", err)
		}
		if profile.ClientID == nil {
			return nil, ErrForbidden
		}
		return profile.ClientID, nil
	}
	return nil, ErrForbidden
}

func statsKey(clientID *uuid.UUID) string {
	if clientID == nil {
		return botStatsKeyPrefix + "all"
	}
	return botStatsKeyPrefix + clientID.String()
}

// ComputeBotStats aggregates reported bot metrics. Every field is zero when
// there are no bots.
func ComputeBotStats(bots []model.Bot) model.BotStats {
	var stats model.BotStats
	stats.TotalBots = len(bots)
	if stats.TotalBots == 0 {
		return stats
	}

	var uptime float64
	for i := range bots {
		b := &bots[i]
		if b.IsOnline() {
			stats.OnlineBots++
		}
		stats.TotalServers += b.Servers
		stats.TotalUsers += b.Users
		stats.TotalCommands += b.CommandsUsed
		uptime += b.UptimePercentage
	}

	n := float64(stats.TotalBots)
	stats.AvgUptime = round2(uptime / n)
	stats.OnlinePercentage = round2(float64(stats.OnlineBots) * 100 / n)
	stats.AvgServersPerBot = round2(float64(stats.TotalServers) / n)
	stats.AvgUsersPerBot = round2(float64(stats.TotalUsers) / n)
	return stats
}
