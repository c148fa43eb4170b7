package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/events"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/metrics"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
)

// RequestContext is what the transport knows about the inbound request.
type RequestContext struct {
	UserAgent string
	Referrer  string
	IPAddress string
	URL       string
}

type ClickResult struct {
	Target  string
	Outcome string
	LinkID  uuid.UUID
}

type ConversionInput struct {
	ReferralCode    string           `json:"referral_code"`
	ConversionValue *decimal.Decimal `json:"conversion_value"`
	Metadata        model.Metadata   `json:"metadata"`
}

type ConversionResult struct {
	LinkID          uuid.UUID       `json:"link_id"`
	Conversions     int             `json:"conversions"`
	Earnings        decimal.Decimal `json:"earnings"`
	ConversionValue decimal.Decimal `json:"conversion_value"`
}

type SignupInput struct {
	ReferralCode string  `json:"referral_code"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	DiscordID    *string `json:"discord_id"`
	Age          *int    `json:"age"`
	UserAgent    string  `json:"user_agent"`
	IPAddress    string  `json:"ip_address"`
}

type AttributionService struct {
	links     LinkStore
	events    AnalyticsStore
	referrals ReferralStore
	publisher events.Publisher
	recorder  Recorder
	reports   ReportInvalidator
	siteURL   string
	nowFn     func() time.Time
}

func NewAttributionService(links LinkStore, analytics AnalyticsStore, referrals ReferralStore, siteURL string) *AttributionService {
	if siteURL == "" {
		siteURL = "/"
	}
	return &AttributionService{
		links:     links,
		events:    analytics,
		referrals: referrals,
		publisher: events.NopPublisher{},
		recorder:  nopRecorder{},
		reports:   nopInvalidator{},
		siteURL:   siteURL,
		nowFn:     time.Now,
	}
}

// SetPublisher sets the event publisher (Kafka in production)
func (s *AttributionService) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// SetRecorder sets the metrics recorder
func (s *AttributionService) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetReportInvalidator sets the hook that drops cached analytics after writes
func (s *AttributionService) SetReportInvalidator(r ReportInvalidator) {
	s.reports = r
}

// RecordClick resolves a code and records a click. It never fails: every
// problem degrades to a redirect to the site root, and Outcome says why.
// Analytics or counter write failures still send the visitor to the link.
func (s *AttributionService) RecordClick(ctx context.Context, code string, rc RequestContext) ClickResult {
	result := ClickResult{Target: s.siteURL}

	link, err := s.links.GetLinkByCode(ctx, code)
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		result.Outcome = metrics.OutcomeNotFound
	case err != nil:
		log.Printf("[Attribution] Failed to resolve code %q: %v", code, err)
		result.Outcome = metrics.OutcomeStorageError
	case !link.IsActive:
		result.Outcome = metrics.OutcomeNotFound
	case link.IsExpired(s.nowFn()):
		result.Outcome = metrics.OutcomeExpired
	}
	if result.Outcome != "" {
		s.recorder.ObserveClick(result.Outcome)
		return result
	}

	result.LinkID = link.ID
	result.Target = link.OriginalURL
	result.Outcome = metrics.OutcomeRedirected

	now := s.nowFn()
	device, browser := ParseUserAgent(rc.UserAgent)
	event := &model.AnalyticsEvent{
		LinkID:     link.ID,
		EventType:  model.EventTypeClick,
		UserAgent:  optional(rc.UserAgent),
		IPAddress:  optional(rc.IPAddress),
		Referrer:   optional(rc.Referrer),
		DeviceType: &device,
		Browser:    &browser,
		Metadata: model.Metadata{
			"timestamp": now.UTC().Format(time.RFC3339),
			"url":       rc.URL,
		},
	}
	if err := s.events.InsertAnalyticsEvent(ctx, event); err != nil {
		log.Printf("[Attribution] Failed to record click for link %s: %v", link.ID, err)
		result.Outcome = metrics.OutcomeStorageError
	}

	counters, err := s.links.IncrementLinkClicks(ctx, link.ID)
	if err != nil {
		log.Printf("[Attribution] Failed to increment clicks for link %s: %v", link.ID, err)
		result.Outcome = metrics.OutcomeStorageError
	} else {
		s.publish(ctx, link, events.TypeClickRecorded, counters, decimal.Zero, nil)
	}
	s.reports.InvalidateLinkReports(ctx, link)

	s.recorder.ObserveClick(result.Outcome)
	return result
}

// RecordConversion appends a conversion event and adds its value to the link.
// Inactive links resolve as not found; expired links fail with ErrExpired.
func (s *AttributionService) RecordConversion(ctx context.Context, in ConversionInput, rc RequestContext) (*ConversionResult, error) {
	res, err := s.recordConversion(ctx, in, rc)
	s.recorder.ObserveConversion(resultLabel(err))
	return res, err
}

func (s *AttributionService) recordConversion(ctx context.Context, in ConversionInput, rc RequestContext) (*ConversionResult, error) {
	code := strings.TrimSpace(in.ReferralCode)
	if code == "" {
		return nil, validationError("referral_code is required")
	}
	value := decimal.Zero
	if in.ConversionValue != nil {
		value = *in.ConversionValue
	}
	if value.IsNegative() {
		return nil, validationError("conversion_value must not be negative")
	}

	link, err := s.links.GetLinkByCode(ctx, code)
	if err != nil {
		return nil, lookupError(err, repository.ErrLinkNotFound, "referral link")
	}
	if !link.IsActive {
		return nil, fmt.Errorf("%w: referral link", ErrNotFound)
	}
	if link.IsExpired(s.nowFn()) {
		return nil, ErrExpired
	}

	metadata := model.Metadata{
		"timestamp": s.nowFn().UTC().Format(time.RFC3339),
	}
	for k, v := range in.Metadata {
		metadata[k] = v
	}

	device, browser := ParseUserAgent(rc.UserAgent)
	event := &model.AnalyticsEvent{
		LinkID:          link.ID,
		EventType:       model.EventTypeConversion,
		UserAgent:       optional(rc.UserAgent),
		IPAddress:       optional(rc.IPAddress),
		Referrer:        optional(rc.Referrer),
		DeviceType:      &device,
		Browser:         &browser,
		ConversionValue: value,
		Metadata:        metadata,
	}
	if err := s.events.InsertAnalyticsEvent(ctx, event); err != nil {
		return nil, storageError("record conversion event", err)
	}
	s.reports.InvalidateLinkReports(ctx, link)

	counters, err := s.links.IncrementLinkConversions(ctx, link.ID, value)
	if err != nil {
		return nil, storageError("increment conversions", err)
	}

	s.publish(ctx, link, events.TypeConversionRecorded, counters, value, nil)

	return &ConversionResult{
		LinkID:          link.ID,
		Conversions:     counters.Conversions,
		Earnings:        counters.Earnings,
		ConversionValue: value,
	}, nil
}

// RecordSignup registers a lead for the link's influencer and counts it as
// a zero-value conversion.
func (s *AttributionService) RecordSignup(ctx context.Context, in SignupInput, rc RequestContext) (*model.Referral, error) {
	ref, err := s.recordSignup(ctx, in, rc)
	s.recorder.ObserveSignup(resultLabel(err))
	return ref, err
}

func (s *AttributionService) recordSignup(ctx context.Context, in SignupInput, rc RequestContext) (*model.Referral, error) {
	code := strings.TrimSpace(in.ReferralCode)
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if code == "" || name == "" || email == "" {
		return nil, validationError("referral_code, name and email are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("invalid email")
	}
	if in.Age != nil && *in.Age < 0 {
		return nil, validationError("age must not be negative")
	}

	link, err := s.links.GetLinkByCode(ctx, code)
	if err != nil {
		return nil, lookupError(err, repository.ErrLinkNotFound, "referral link")
	}
	if !link.IsActive {
		return nil, ErrInactive
	}
	if link.IsExpired(s.nowFn()) {
		return nil, ErrExpired
	}

	_, err = s.referrals.GetReferralByInfluencerEmail(ctx, link.InfluencerID, email)
	if err == nil {
		return nil, fmt.Errorf("%w: referral with this email", ErrDuplicate)
	}
	if !errors.Is(err, repository.ErrReferralNotFound) {
		return nil, storageError("check referral", err)
	}

	userAgent := firstNonEmpty(in.UserAgent, rc.UserAgent)
	ipAddress := firstNonEmpty(in.IPAddress, rc.IPAddress)
	now := s.nowFn()

	referral := &model.Referral{
		ID:              uuid.New(),
		InfluencerID:    link.InfluencerID,
		ReferralLinkID:  link.ID,
		Name:            name,
		Email:           email,
		DiscordID:       in.DiscordID,
		Age:             in.Age,
		Status:          model.ReferralStatusPending,
		SourcePlatform:  link.Platform,
		ConversionValue: decimal.Zero,
		Metadata: model.Metadata{
			"signup_source":    "referral_link",
			"user_agent":       userAgent,
			"ip_address":       ipAddress,
			"signup_timestamp": now.UTC().Format(time.RFC3339),
		},
	}
	if err := s.referrals.CreateReferral(ctx, referral); err != nil {
		if errors.Is(err, repository.ErrReferralExists) {
			return nil, fmt.Errorf("%w: referral with this email", ErrDuplicate)
		}
		return nil, storageError("create referral", err)
	}

	device, browser := ParseUserAgent(userAgent)
	event := &model.AnalyticsEvent{
		LinkID:          link.ID,
		EventType:       model.EventTypeConversion,
		UserAgent:       optional(userAgent),
		IPAddress:       optional(ipAddress),
		Referrer:        optional(rc.Referrer),
		DeviceType:      &device,
		Browser:         &browser,
		ConversionValue: decimal.Zero,
		Metadata: model.Metadata{
			"event":       "signup",
			"referral_id": referral.ID.String(),
			"email":       email,
		},
	}
	if err := s.events.InsertAnalyticsEvent(ctx, event); err != nil {
		// A lead is only kept together with its signup event.
		if derr := s.referrals.DeleteReferral(ctx, referral.ID); derr != nil {
			log.Printf("[Attribution] Failed to roll back referral %s: %v", referral.ID, derr)
		}
		return nil, storageError("record signup event", err)
	}
	s.reports.InvalidateLinkReports(ctx, link)

	counters, err := s.links.IncrementLinkConversions(ctx, link.ID, decimal.Zero)
	if err != nil {
		return nil, storageError("increment conversions", err)
	}

	s.publish(ctx, link, events.TypeSignupRecorded, counters, decimal.Zero, &referral.ID)

	return referral, nil
}

// publish never fails the caller; broker problems are only logged.
func (s *AttributionService) publish(ctx context.Context, link *model.ReferralLink, typ events.Type, counters *model.LinkCounters, value decimal.Decimal, referralID *uuid.UUID) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:            typ,
		LinkID:          link.ID,
		InfluencerID:    link.InfluencerID,
		ReferralCode:    link.ReferralCode,
		ReferralID:      referralID,
		Clicks:          counters.Clicks,
		Conversions:     counters.Conversions,
		Earnings:        counters.Earnings,
		ConversionValue: value,
		OccurredAt:      s.nowFn().UTC(),
	})
	if err != nil {
		log.Printf("[Attribution] Failed to publish %s for link %s: %v", typ, link.ID, err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	default:
		return "storage_error"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
