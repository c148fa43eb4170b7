package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
)

type ReferralService struct {
	referrals ReferralStore
	audit     AuditStore
}

func NewReferralService(referrals ReferralStore, audit AuditStore) *ReferralService {
	return &ReferralService{referrals: referrals, audit: audit}
}

// UpdateStatus moves a referral to status, optionally setting its
// conversion value. Writing the current status again is a no-op unless a
// value is supplied.
func (s *ReferralService) UpdateStatus(ctx context.Context, viewer model.Viewer, id uuid.UUID, status model.ReferralStatus, conversionValue *decimal.Decimal) (*model.Referral, error) {
	if !status.Valid() {
		return nil, validationError("unknown status %q", status)
	}
	if conversionValue != nil && conversionValue.IsNegative() {
		return nil, validationError("conversion_value must not be negative")
	}

	current, err := s.get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	if current.Status == status && conversionValue == nil {
		return current, nil
	}

	updated, err := s.referrals.UpdateReferralStatus(ctx, id, status, conversionValue)
	if err != nil {
		return nil, lookupError(err, repository.ErrReferralNotFound, "referral")
	}

	details := map[string]interface{}{
		"from": current.Status,
		"to":   status,
	}
	if conversionValue != nil {
		details["conversion_value"] = conversionValue.String()
	}
	recordAudit(ctx, s.audit, viewer.UserID, model.AuditActionReferralStatus, "referral", id, details)

	return updated, nil
}

func (s *ReferralService) DeleteReferral(ctx context.Context, viewer model.Viewer, id uuid.UUID) error {
	current, err := s.get(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := s.referrals.DeleteReferral(ctx, id); err != nil {
		return lookupError(err, repository.ErrReferralNotFound, "referral")
	}
	recordAudit(ctx, s.audit, viewer.UserID, model.AuditActionReferralDelete, "referral", id, map[string]interface{}{
		"email":  current.Email,
		"status": current.Status,
	})
	return nil
}

func (s *ReferralService) ListByInfluencer(ctx context.Context, influencerID uuid.UUID) ([]model.ReferralWithLink, error) {
	refs, err := s.referrals.ListReferralsByInfluencer(ctx, influencerID)
	if err != nil {
		return nil, storageError("list referrals", err)
	}
	return refs, nil
}

func (s *ReferralService) get(ctx context.Context, viewer model.Viewer, id uuid.UUID) (*model.Referral, error) {
	ref, err := s.referrals.GetReferral(ctx, id)
	if err != nil {
		return nil, lookupError(err, repository.ErrReferralNotFound, "referral")
	}
	if viewer.Role != model.RoleAdmin && ref.InfluencerID != viewer.UserID {
		return nil, ErrForbidden
	}
	return ref, nil
}

// Summarize computes totals over a set of referrals. The conversion rate is
// the share of completed referrals; the top platform is the most common
// source platform, ties broken by name.
func Summarize(refs []model.ReferralWithLink) model.ReferralSummary {
	summary := model.ReferralSummary{
		Total:          len(refs),
		ByStatus:       map[model.ReferralStatus]int{},
		TotalEarnings:  decimal.Zero,
		PlatformCounts: map[model.Platform]int{},
	}
	for _, st := range []model.ReferralStatus{
		model.ReferralStatusPending,
		model.ReferralStatusActive,
		model.ReferralStatusCompleted,
		model.ReferralStatusInactive,
	} {
		summary.ByStatus[st] = 0
	}

	for _, r := range refs {
		summary.ByStatus[r.Status]++
		summary.TotalEarnings = summary.TotalEarnings.Add(r.ConversionValue)
		if r.SourcePlatform != "" {
			summary.PlatformCounts[r.SourcePlatform]++
		}
	}

	if summary.Total > 0 {
		summary.ConversionRate = round2(float64(summary.ByStatus[model.ReferralStatusCompleted]) * 100 / float64(summary.Total))
	}

	platforms := make([]model.Platform, 0, len(summary.PlatformCounts))
	for p := range summary.PlatformCounts {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool {
		ci, cj := summary.PlatformCounts[platforms[i]], summary.PlatformCounts[platforms[j]]
		if ci != cj {
			return ci > cj
		}
		return platforms[i] < platforms[j]
	})
	if len(platforms) > 0 {
		summary.TopPlatform = platforms[0]
	}
	return summary
}
