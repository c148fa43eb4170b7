// Package memory is an in-process implementation of the repository used for
// local development (STORAGE_DRIVER=memory) and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
)

type Store struct {
	mu        sync.RWMutex
	links     map[uuid.UUID]*model.ReferralLink
	events    []model.AnalyticsEvent
	referrals map[uuid.UUID]*model.Referral
	bots      map[uuid.UUID]*model.Bot
	clients   map[uuid.UUID]*model.Client
	campaigns map[uuid.UUID]*model.Campaign
	profiles  map[uuid.UUID]*model.Profile
	audit     []model.AuditLog
	nowFn     func() time.Time
}

func New() *Store {
	return &Store{
		links:     make(map[uuid.UUID]*model.ReferralLink),
		referrals: make(map[uuid.UUID]*model.Referral),
		bots:      make(map[uuid.UUID]*model.Bot),
		clients:   make(map[uuid.UUID]*model.Client),
		campaigns: make(map[uuid.UUID]*model.Campaign),
		profiles:  make(map[uuid.UUID]*model.Profile),
		nowFn:     time.Now,
	}
}

// SetClock overrides the time source used for created_at/updated_at.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// --- Seeding ---

func (s *Store) AddClient(c model.Client) model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := s.nowFn()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.JoinDate.IsZero() {
		c.JoinDate = c.CreatedAt
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.ClientStatusActive
	}
	s.clients[c.ID] = &c
	return c
}

func (s *Store) AddCampaign(c model.Campaign) model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.nowFn()
	}
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}
	s.campaigns[c.ID] = &c
	return c
}

func (s *Store) AddProfile(p model.Profile) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.nowFn()
	}
	p.UpdatedAt = p.CreatedAt
	s.profiles[p.ID] = &p
	return p
}

// AddBot stores a bot as-is without touching client counters.
func (s *Store) AddBot(b model.Bot) model.Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.nowFn()
	}
	b.UpdatedAt = b.CreatedAt
	s.bots[b.ID] = &b
	return b
}

// AddEvent appends an event keeping its created_at when set.
func (s *Store) AddEvent(e model.AnalyticsEvent) model.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.nowFn()
	}
	if e.Metadata == nil {
		e.Metadata = model.Metadata{}
	}
	s.events = append(s.events, e)
	return e
}

// --- Links ---

func (s *Store) GetLink(_ context.Context, id uuid.UUID) (*model.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (s *Store) GetLinkByCode(_ context.Context, code string) (*model.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links {
		if link.ReferralCode == code {
			out := *link
			return &out, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (s *Store) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := s.GetLinkByCode(ctx, code)
	if err == repository.ErrLinkNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) CreateLink(_ context.Context, link *model.ReferralLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.ReferralCode == link.ReferralCode {
			return repository.ErrReferralCodeTaken
		}
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	now := s.nowFn()
	link.Clicks, link.Conversions = 0, 0
	link.Earnings, link.ConversionRate = decimal.Zero, decimal.Zero
	link.CreatedAt, link.UpdatedAt = now, now
	stored := *link
	s.links[link.ID] = &stored
	return nil
}

func (s *Store) UpdateLink(_ context.Context, link *model.ReferralLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.links[link.ID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	stored.CampaignID = link.CampaignID
	stored.Title = link.Title
	stored.Description = link.Description
	stored.Platform = link.Platform
	stored.OriginalURL = link.OriginalURL
	stored.ThumbnailURL = link.ThumbnailURL
	stored.IsActive = link.IsActive
	stored.ExpiresAt = link.ExpiresAt
	stored.UpdatedAt = s.nowFn()
	link.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Store) DeleteLink(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[id]; !ok {
		return repository.ErrLinkNotFound
	}
	delete(s.links, id)
	return nil
}

func (s *Store) ListLinks(_ context.Context, influencerID *uuid.UUID) ([]model.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := []model.ReferralLink{}
	for _, link := range s.links {
		if influencerID != nil && link.InfluencerID != *influencerID {
			continue
		}
		links = append(links, *link)
	}
	sortLinks(links)
	return links, nil
}

func (s *Store) ListLinksByCampaigns(_ context.Context, campaignIDs []uuid.UUID) ([]model.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := idSet(campaignIDs)
	links := []model.ReferralLink{}
	for _, link := range s.links {
		if link.CampaignID != nil && wanted[*link.CampaignID] {
			links = append(links, *link)
		}
	}
	sortLinks(links)
	return links, nil
}

func (s *Store) IncrementLinkClicks(_ context.Context, id uuid.UUID) (*model.LinkCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link.Clicks++
	link.ConversionRate = model.ConversionRate(link.Conversions, link.Clicks)
	link.UpdatedAt = s.nowFn()
	return counters(link), nil
}

func (s *Store) IncrementLinkConversions(_ context.Context, id uuid.UUID, earnings decimal.Decimal) (*model.LinkCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link.Conversions++
	link.Earnings = link.Earnings.Add(earnings)
	link.ConversionRate = model.ConversionRate(link.Conversions, link.Clicks)
	link.UpdatedAt = s.nowFn()
	return counters(link), nil
}

// SetLinkCounters overwrites a link's counters, standing in for an
// administrative correction.
func (s *Store) SetLinkCounters(id uuid.UUID, clicks, conversions int, earnings decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link, ok := s.links[id]; ok {
		link.Clicks, link.Conversions, link.Earnings = clicks, conversions, earnings
		link.ConversionRate = model.ConversionRate(conversions, clicks)
	}
}

func (s *Store) ReconcileLinkCounters(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type derived struct {
		clicks, conversions int
		earnings            decimal.Decimal
	}
	byLink := map[uuid.UUID]*derived{}
	for _, e := range s.events {
		d, ok := byLink[e.LinkID]
		if !ok {
			d = &derived{}
			byLink[e.LinkID] = d
		}
		switch e.EventType {
		case model.EventTypeClick:
			d.clicks++
		case model.EventTypeConversion:
			d.conversions++
			d.earnings = d.earnings.Add(e.ConversionValue)
		}
	}

	var updated int64
	for id, d := range byLink {
		link, ok := s.links[id]
		if !ok {
			continue
		}
		if link.Clicks >= d.clicks && link.Conversions >= d.conversions && link.Earnings.GreaterThanOrEqual(d.earnings) {
			continue
		}
		link.Clicks = maxInt(link.Clicks, d.clicks)
		link.Conversions = maxInt(link.Conversions, d.conversions)
		link.Earnings = decimal.Max(link.Earnings, d.earnings)
		link.ConversionRate = model.ConversionRate(link.Conversions, link.Clicks)
		link.UpdatedAt = s.nowFn()
		updated++
	}
	return updated, nil
}

// --- Analytics ---

func (s *Store) InsertAnalyticsEvent(_ context.Context, event *model.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[event.LinkID]; !ok {
		return repository.ErrLinkNotFound
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Metadata == nil {
		event.Metadata = model.Metadata{}
	}
	event.CreatedAt = s.nowFn()
	s.events = append(s.events, *event)
	return nil
}

func (s *Store) ListAnalyticsEvents(_ context.Context, filter model.AnalyticsFilter) ([]model.AnalyticsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := idSet(filter.LinkIDs)
	events := []model.AnalyticsEvent{}
	for _, e := range s.events {
		if !wanted[e.LinkID] || e.CreatedAt.Before(filter.Since) || e.CreatedAt.After(filter.Until) {
			continue
		}
		events = append(events, e)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

// --- Referrals ---

func (s *Store) GetReferral(_ context.Context, id uuid.UUID) (*model.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.referrals[id]
	if !ok {
		return nil, repository.ErrReferralNotFound
	}
	out := *ref
	return &out, nil
}

func (s *Store) GetReferralByInfluencerEmail(_ context.Context, influencerID uuid.UUID, email string) (*model.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ref := range s.referrals {
		if ref.InfluencerID == influencerID && strings.EqualFold(ref.Email, email) {
			out := *ref
			return &out, nil
		}
	}
	return nil, repository.ErrReferralNotFound
}

func (s *Store) CreateReferral(_ context.Context, referral *model.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range s.referrals {
		if ref.InfluencerID == referral.InfluencerID && strings.EqualFold(ref.Email, referral.Email) {
			return repository.ErrReferralExists
		}
	}
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	if referral.Metadata == nil {
		referral.Metadata = model.Metadata{}
	}
	now := s.nowFn()
	referral.CreatedAt, referral.UpdatedAt = now, now
	stored := *referral
	s.referrals[referral.ID] = &stored
	return nil
}

func (s *Store) UpdateReferralStatus(_ context.Context, id uuid.UUID, status model.ReferralStatus, conversionValue *decimal.Decimal) (*model.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.referrals[id]
	if !ok {
		return nil, repository.ErrReferralNotFound
	}
	ref.Status = status
	if conversionValue != nil {
		ref.ConversionValue = *conversionValue
	}
	ref.UpdatedAt = s.nowFn()
	out := *ref
	return &out, nil
}

func (s *Store) DeleteReferral(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referrals[id]; !ok {
		return repository.ErrReferralNotFound
	}
	delete(s.referrals, id)
	return nil
}

func (s *Store) ListReferralsByInfluencer(_ context.Context, influencerID uuid.UUID) ([]model.ReferralWithLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.referralsWhere(func(r *model.Referral) bool { return r.InfluencerID == influencerID }), nil
}

func (s *Store) ListReferralsByLinks(_ context.Context, linkIDs []uuid.UUID) ([]model.ReferralWithLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := idSet(linkIDs)
	return s.referralsWhere(func(r *model.Referral) bool { return wanted[r.ReferralLinkID] }), nil
}

// referralsWhere joins matching referrals with their link. Caller holds mu.
func (s *Store) referralsWhere(match func(*model.Referral) bool) []model.ReferralWithLink {
	out := []model.ReferralWithLink{}
	for _, ref := range s.referrals {
		if !match(ref) {
			continue
		}
		link, ok := s.links[ref.ReferralLinkID]
		if !ok {
			continue
		}
		out = append(out, model.ReferralWithLink{
			Referral:     *ref,
			LinkTitle:    link.Title,
			LinkPlatform: link.Platform,
			LinkCode:     link.ReferralCode,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// --- Bots ---

func (s *Store) GetBot(_ context.Context, id uuid.UUID) (*model.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bot, ok := s.bots[id]
	if !ok {
		return nil, repository.ErrBotNotFound
	}
	out := *bot
	return &out, nil
}

func (s *Store) ListBots(_ context.Context, clientID *uuid.UUID) ([]model.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bots := []model.Bot{}
	for _, bot := range s.bots {
		if clientID != nil && bot.ClientID != *clientID {
			continue
		}
		bots = append(bots, *bot)
	}
	sort.SliceStable(bots, func(i, j int) bool {
		return bots[i].CreatedAt.After(bots[j].CreatedAt)
	})
	return bots, nil
}

func (s *Store) CreateBot(_ context.Context, bot *model.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot.ID = uuid.New()
	now := s.nowFn()
	bot.CreatedAt, bot.UpdatedAt = now, now
	stored := *bot
	s.bots[bot.ID] = &stored
	if client, ok := s.clients[bot.ClientID]; ok {
		client.Bots++
	}
	return nil
}

func (s *Store) DeleteBot(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot, ok := s.bots[id]
	if !ok {
		return repository.ErrBotNotFound
	}
	delete(s.bots, id)
	if client, ok := s.clients[bot.ClientID]; ok && client.Bots > 0 {
		client.Bots--
	}
	return nil
}

func (s *Store) UpdateBotStatus(_ context.Context, id uuid.UUID, status model.BotStatus, lastOnline *time.Time) (*model.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot, ok := s.bots[id]
	if !ok {
		return nil, repository.ErrBotNotFound
	}
	bot.Status = status
	if lastOnline != nil {
		t := *lastOnline
		bot.LastOnline = &t
	}
	bot.UpdatedAt = s.nowFn()
	out := *bot
	return &out, nil
}

// --- Clients, campaigns, profiles ---

func (s *Store) GetClient(_ context.Context, id uuid.UUID) (*model.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[id]
	if !ok {
		return nil, repository.ErrClientNotFound
	}
	out := *client
	return &out, nil
}

func (s *Store) ListClients(context.Context) ([]model.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := []model.Client{}
	for _, c := range s.clients {
		clients = append(clients, *c)
	}
	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

func (s *Store) ListCampaignsByClient(_ context.Context, clientID uuid.UUID) ([]model.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaigns := []model.Campaign{}
	for _, c := range s.campaigns {
		if c.ClientID == clientID {
			campaigns = append(campaigns, *c)
		}
	}
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	return campaigns, nil
}

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) ListProfiles(_ context.Context, role model.Role) ([]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profiles := []model.Profile{}
	for _, p := range s.profiles {
		if role == "" || p.Role == role {
			profiles = append(profiles, *p)
		}
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.After(profiles[j].CreatedAt)
	})
	return profiles, nil
}

// --- Audit ---

func (s *Store) LogAction(_ context.Context, actorID *uuid.UUID, action, targetType string, targetID uuid.UUID, details interface{}) error {
	var raw []byte
	if details != nil {
		var err error
		if raw, err = json.Marshal(details); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, model.AuditLog{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    raw,
		CreatedAt:  s.nowFn(),
	})
	return nil
}

func (s *Store) GetAuditLogs(_ context.Context, limit, offset int) ([]model.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := []model.AuditLog{}
	for i := len(s.audit) - 1; i >= 0; i-- {
		logs = append(logs, s.audit[i])
	}
	if offset >= len(logs) {
		return []model.AuditLog{}, nil
	}
	logs = logs[offset:]
	if limit > 0 && limit < len(logs) {
		logs = logs[:limit]
	}
	return logs, nil
}

func counters(link *model.ReferralLink) *model.LinkCounters {
	return &model.LinkCounters{
		LinkID:         link.ID,
		Clicks:         link.Clicks,
		Conversions:    link.Conversions,
		Earnings:       link.Earnings,
		ConversionRate: link.ConversionRate,
	}
}

func sortLinks(links []model.ReferralLink) {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
