package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
)

const (
	DefaultDashboardTimeout = 10 * time.Second
	DefaultDashboardRetries = 2
	DefaultDashboardBackoff = time.Second
)

// LoadObserver receives dashboard load latencies.
type LoadObserver interface {
	ObserveDashboardLoad(role, result string, seconds float64)
}

type loadHandle struct {
	cancel     context.CancelFunc
	superseded bool
}

// DashboardService loads a viewer's raw rows in parallel and transforms
// them. Starting a load cancels the viewer's previous in-flight load; only
// the newest load may store its result as the viewer's latest snapshot.
type DashboardService struct {
	links     LinkStore
	referrals ReferralStore
	bots      BotStore
	clients   ClientStore
	profiles  ProfileStore

	timeout  time.Duration
	backoff  Backoff
	observer LoadObserver
	nowFn    func() time.Time

	mu       sync.Mutex
	inflight map[uuid.UUID]*loadHandle
	latest   map[uuid.UUID]*model.UnifiedDashboardData
}

func NewDashboardService(store interface {
	LinkStore
	ReferralStore
	BotStore
	ClientStore
	ProfileStore
}) *DashboardService {
	return &DashboardService{
		links:     store,
		referrals: store,
		bots:      store,
		clients:   store,
		profiles:  store,
		timeout:   DefaultDashboardTimeout,
		backoff:   NewBackoff(DefaultDashboardBackoff, DefaultDashboardRetries),
		nowFn:     time.Now,
		inflight:  make(map[uuid.UUID]*loadHandle),
		latest:    make(map[uuid.UUID]*model.UnifiedDashboardData),
	}
}

// Configure sets the per-load timeout and the read retry policy.
func (s *DashboardService) Configure(timeout time.Duration, maxRetries int, backoff time.Duration) {
	if timeout > 0 {
		s.timeout = timeout
	}
	s.backoff = NewBackoff(backoff, maxRetries)
}

func (s *DashboardService) SetObserver(o LoadObserver) {
	s.observer = o
}

// Latest returns the last snapshot stored for the user.
func (s *DashboardService) Latest(userID uuid.UUID) (*model.UnifiedDashboardData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.latest[userID]
	return data, ok
}

func (s *DashboardService) Load(ctx context.Context, viewer model.Viewer) (*model.UnifiedDashboardData, error) {
	if !viewer.Role.Valid() {
		return nil, validationError("unknown role %q", viewer.Role)
	}

	start := time.Now()
	ctx, handle := s.begin(ctx, viewer.UserID)
	defer s.end(viewer.UserID, handle)

	data, err := s.load(ctx, viewer)
	if err == nil && !s.store(viewer.UserID, handle, data) {
		data, err = nil, context.Canceled
	}

	if s.observer != nil {
		s.observer.ObserveDashboardLoad(string(viewer.Role), loadResult(err), time.Since(start).Seconds())
	}
	return data, err
}

func (s *DashboardService) load(ctx context.Context, viewer model.Viewer) (*model.UnifiedDashboardData, error) {
	var (
		raw       model.RawDashboardData
		permanent error
	)
	err := s.backoff.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			log.Printf("[Dashboard] Retrying load for %s (attempt %d)", viewer.UserID, attempt+1)
		}
		r, err := s.fetchRaw(ctx, viewer)
		if err != nil {
			if errors.Is(err, ErrForbidden) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
				permanent = err
				return nil
			}
			return err
		}
		raw = r
		return nil
	})
	if permanent != nil {
		return nil, permanent
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: dashboard load timed out", ErrStorage)
		}
		return nil, storageError("load dashboard", err)
	}
	return Transform(viewer.Role, raw, s.nowFn())
}

func (s *DashboardService) begin(parent context.Context, userID uuid.UUID) (context.Context, *loadHandle) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	handle := &loadHandle{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.inflight[userID]; ok {
		prev.superseded = true
		prev.cancel()
	}
	s.inflight[userID] = handle
	s.mu.Unlock()

	return ctx, handle
}

func (s *DashboardService) end(userID uuid.UUID, handle *loadHandle) {
	s.mu.Lock()
	if s.inflight[userID] == handle {
		delete(s.inflight, userID)
	}
	s.mu.Unlock()
	handle.cancel()
}

// store keeps data as the latest snapshot unless a newer load superseded
// this one.
func (s *DashboardService) store(userID uuid.UUID, handle *loadHandle, data *model.UnifiedDashboardData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle.superseded {
		return false
	}
	s.latest[userID] = data
	return true
}

func (s *DashboardService) fetchRaw(ctx context.Context, viewer model.Viewer) (model.RawDashboardData, error) {
	switch viewer.Role {
	case model.RoleInfluencer:
		return s.fetchInfluencer(ctx, viewer.UserID)
	case model.RoleAdmin:
		return s.fetchAdmin(ctx)
	case model.RoleClient:
		return s.fetchClient(ctx, viewer.UserID)
	}
	return model.RawDashboardData{}, validationError("unknown role %q", viewer.Role)
}

func (s *DashboardService) fetchInfluencer(ctx context.Context, userID uuid.UUID) (model.RawDashboardData, error) {
	var raw model.RawDashboardData
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		links, err := s.links.ListLinks(ctx, &userID)
		raw.Links = links
		return err
	})
	g.Go(func() error {
		refs, err := s.referrals.ListReferralsByInfluencer(ctx, userID)
		raw.Referrals = refs
		return err
	})
	return raw, g.Wait()
}

func (s *DashboardService) fetchAdmin(ctx context.Context) (model.RawDashboardData, error) {
	var raw model.RawDashboardData
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clients, err := s.clients.ListClients(ctx)
		raw.Clients = clients
		return err
	})
	g.Go(func() error {
		bots, err := s.bots.ListBots(ctx, nil)
		raw.Bots = bots
		return err
	})
	g.Go(func() error {
		users, err := s.profiles.ListProfiles(ctx, "")
		raw.Users = users
		return err
	})
	return raw, g.Wait()
}

func (s *DashboardService) fetchClient(ctx context.Context, userID uuid.UUID) (model.RawDashboardData, error) {
	var raw model.RawDashboardData

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return raw, fmt.Errorf("%w: profile", ErrNotFound)
		}
		return raw, err
	}
	if profile.ClientID == nil {
		return raw, fmt.Errorf("%w: profile is not attached to a client", ErrForbidden)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		campaigns, err := s.clients.ListCampaignsByClient(gctx, *profile.ClientID)
		raw.Campaigns = campaigns
		return err
	})
	g.Go(func() error {
		users, err := s.profiles.ListProfiles(gctx, model.RoleInfluencer)
		raw.Users = users
		return err
	})
	if err := g.Wait(); err != nil {
		return raw, err
	}

	campaignIDs := make([]uuid.UUID, len(raw.Campaigns))
	for i, c := range raw.Campaigns {
		campaignIDs[i] = c.ID
	}
	if raw.Links, err = s.links.ListLinksByCampaigns(ctx, campaignIDs); err != nil {
		return raw, err
	}

	linkIDs := make([]uuid.UUID, len(raw.Links))
	for i, l := range raw.Links {
		linkIDs[i] = l.ID
	}
	if raw.Referrals, err = s.referrals.ListReferralsByLinks(ctx, linkIDs); err != nil {
		return raw, err
	}
	return raw, nil
}

func loadResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
