package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
)

const (
	codeSuffixLength = 6
	codeAttempts     = 5
	codeCharset      = "abcdefghijklmnopqrstuvwxyz0123456789"
)

type CreateLinkInput struct {
	Title        string         `json:"title"`
	Description  *string        `json:"description"`
	Platform     model.Platform `json:"platform"`
	OriginalURL  string         `json:"original_url"`
	ThumbnailURL *string        `json:"thumbnail_url"`
	CampaignID   *uuid.UUID     `json:"campaign_id"`
	ExpiresAt    *time.Time     `json:"expires_at"`
	IsActive     *bool          `json:"is_active"`
}

// LinkPatch holds the editable fields of a link. Nil fields are left as is.
type LinkPatch struct {
	Title        *string         `json:"title"`
	Description  *string         `json:"description"`
	Platform     *model.Platform `json:"platform"`
	OriginalURL  *string         `json:"original_url"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	CampaignID   *uuid.UUID      `json:"campaign_id"`
	IsActive     *bool           `json:"is_active"`
	ExpiresAt    *time.Time      `json:"expires_at"`
	ClearExpiry  bool            `json:"clear_expiry"`
}

type LinkService struct {
	links    LinkStore
	audit    AuditStore
	baseURL  string
	suffixFn func() string
}

func NewLinkService(links LinkStore, audit AuditStore, baseURL string) *LinkService {
	return &LinkService{
		links:    links,
		audit:    audit,
		baseURL:  strings.TrimRight(baseURL, "/"),
		suffixFn: func() string { return generateRandomCode(codeSuffixLength) },
	}
}

func (s *LinkService) CreateLink(ctx context.Context, ownerID uuid.UUID, in CreateLinkInput) (*model.ReferralLink, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	if err := validateTargetURL(in.OriginalURL); err != nil {
		return nil, err
	}
	platform := in.Platform
	if platform == "" {
		platform = model.PlatformOther
	}
	if !platform.Valid() {
		return nil, validationError("unknown platform %q", platform)
	}

	link := &model.ReferralLink{
		InfluencerID: ownerID,
		CampaignID:   in.CampaignID,
		Title:        title,
		Description:  in.Description,
		Platform:     platform,
		OriginalURL:  strings.TrimSpace(in.OriginalURL),
		ThumbnailURL: in.ThumbnailURL,
		IsActive:     true,
		ExpiresAt:    in.ExpiresAt,
	}
	if in.IsActive != nil {
		link.IsActive = *in.IsActive
	}

	slug := Slugify(title)
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := slug + "-" + s.suffixFn()
		exists, err := s.links.ReferralCodeExists(ctx, code)
		if err != nil {
			return nil, storageError("check referral code", err)
		}
		if exists {
			continue
		}

		link.ID = uuid.New()
		link.ReferralCode = code
		link.ReferralURL = s.baseURL + "/" + code
		err = s.links.CreateLink(ctx, link)
		if errors.Is(err, repository.ErrReferralCodeTaken) {
			continue
		}
		if err != nil {
			return nil, storageError("create link", err)
		}
		return link, nil
	}
	return nil, fmt.Errorf("%w: could not generate a unique referral code", ErrDuplicate)
}

func (s *LinkService) GetLink(ctx context.Context, viewer model.Viewer, id uuid.UUID) (*model.ReferralLink, error) {
	link, err := s.links.GetLink(ctx, id)
	if err != nil {
		return nil, lookupError(err, repository.ErrLinkNotFound, "link")
	}
	if !canManageLink(viewer, link) {
		return nil, ErrForbidden
	}
	return link, nil
}

// ListLinks returns the viewer's links, or every link for admins.
func (s *LinkService) ListLinks(ctx context.Context, viewer model.Viewer) ([]model.ReferralLink, error) {
	var owner *uuid.UUID
	switch viewer.Role {
	case model.RoleAdmin:
	case model.RoleInfluencer:
		owner = &viewer.UserID
	default:
		return nil, ErrForbidden
	}
	links, err := s.links.ListLinks(ctx, owner)
	if err != nil {
		return nil, storageError("list links", err)
	}
	return links, nil
}

func (s *LinkService) UpdateLink(ctx context.Context, viewer model.Viewer, id uuid.UUID, patch LinkPatch) (*model.ReferralLink, error) {
	link, err := s.GetLink(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, validationError("title is required")
		}
		link.Title = title
	}
	if patch.Description != nil {
		link.Description = patch.Description
	}
	if patch.Platform != nil {
		if !patch.Platform.Valid() {
			return nil, validationError("unknown platform %q", *patch.Platform)
		}
		link.Platform = *patch.Platform
	}
	if patch.OriginalURL != nil {
		if err := validateTargetURL(*patch.OriginalURL); err != nil {
			return nil, err
		}
		link.OriginalURL = strings.TrimSpace(*patch.OriginalURL)
	}
	if patch.ThumbnailURL != nil {
		link.ThumbnailURL = patch.ThumbnailURL
	}
	if patch.CampaignID != nil {
		link.CampaignID = patch.CampaignID
	}
	if patch.IsActive != nil {
		link.IsActive = *patch.IsActive
	}
	if patch.ClearExpiry {
		link.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		link.ExpiresAt = patch.ExpiresAt
	}

	if err := s.links.UpdateLink(ctx, link); err != nil {
		return nil, lookupError(err, repository.ErrLinkNotFound, "link")
	}
	return link, nil
}

func (s *LinkService) ToggleActive(ctx context.Context, viewer model.Viewer, id uuid.UUID) (*model.ReferralLink, error) {
	link, err := s.GetLink(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	active := !link.IsActive
	return s.UpdateLink(ctx, viewer, id, LinkPatch{IsActive: &active})
}

func (s *LinkService) DeleteLink(ctx context.Context, viewer model.Viewer, id uuid.UUID) error {
	link, err := s.GetLink(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := s.links.DeleteLink(ctx, id); err != nil {
		return lookupError(err, repository.ErrLinkNotFound, "link")
	}
	recordAudit(ctx, s.audit, viewer.UserID, model.AuditActionLinkDelete, "referral_link", id, map[string]interface{}{
		"referral_code": link.ReferralCode,
		"clicks":        link.Clicks,
		"conversions":   link.Conversions,
	})
	return nil
}

func canManageLink(viewer model.Viewer, link *model.ReferralLink) bool {
	return viewer.Role == model.RoleAdmin ||
		(viewer.Role == model.RoleInfluencer && link.InfluencerID == viewer.UserID)
}

// Slugify lowercases s and collapses every run of characters outside
// [a-z0-9] into one hyphen. An empty result becomes "link".
func Slugify(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingHyphen = false
			sb.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if sb.Len() == 0 {
		return "link"
	}
	return sb.String()
}

func validateTargetURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return validationError("original_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validationError("original_url must be an absolute http(s) URL")
	}
	return nil
}

// generateRandomCode generates a random lowercase alphanumeric code
func generateRandomCode(length int) string {
	var sb strings.Builder
	sb.Grow(length)

	for i := 0; i < length; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		sb.WriteByte(codeCharset[n.Int64()])
	}

	return sb.String()
}
