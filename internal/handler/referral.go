package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
)

// ReferralHandler serves the public attribution endpoints and referral
// management.
type ReferralHandler struct {
	attributionSvc *service.AttributionService
	referralSvc    *service.ReferralService
}

func NewReferralHandler(attributionSvc *service.AttributionService, referralSvc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		attributionSvc: attributionSvc,
		referralSvc:    referralSvc,
	}
}

// --- Public Endpoints ---

// Click records a visit and redirects. It never answers with an error.
func (h *ReferralHandler) Click(c *fiber.Ctx) error {
	result := h.attributionSvc.RecordClick(c.UserContext(), c.Params("code"), requestContext(c))
	return c.Redirect(result.Target, fiber.StatusFound)
}

func (h *ReferralHandler) Conversion(c *fiber.Ctx) error {
	var req service.ConversionInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.attributionSvc.RecordConversion(c.UserContext(), req, requestContext(c))
	if err != nil {
		// An expired link is reported like a missing one on this path.
		if errors.Is(err, service.ErrExpired) {
			return errorWithStatus(c, fiber.StatusNotFound, err)
		}
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func (h *ReferralHandler) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	referral, err := h.attributionSvc.RecordSignup(c.UserContext(), req, requestContext(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":     true,
		"referral_id": referral.ID,
		"message":     "Referral signup recorded successfully",
	})
}

// --- Management Endpoints ---

// ListReferrals returns the caller's referrals with a summary. Admins pass
// influencer_id to look at one influencer.
func (h *ReferralHandler) ListReferrals(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}

	influencerID := viewer.UserID
	if viewer.Role == model.RoleAdmin {
		id, err := uuid.Parse(c.Query("influencer_id"))
		if err != nil {
			return badRequest(c, "influencer_id is required")
		}
		influencerID = id
	}

	referrals, err := h.referralSvc.ListByInfluencer(c.UserContext(), influencerID)
	if err != nil {
		return errorResponse(c, err)
	}

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filtered := referrals[:0]
		for _, r := range referrals {
			if string(r.Status) == status {
				filtered = append(filtered, r)
			}
		}
		referrals = filtered
	}

	return c.JSON(fiber.Map{
		"referrals": referrals,
		"summary":   service.Summarize(referrals),
	})
}

type UpdateReferralStatusRequest struct {
	Status          model.ReferralStatus `json:"status"`
	ConversionValue *decimal.Decimal     `json:"conversion_value,omitempty"`
}

func (h *ReferralHandler) UpdateStatus(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid referral id")
	}

	var req UpdateReferralStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	referral, err := h.referralSvc.UpdateStatus(c.UserContext(), viewer, id, req.Status, req.ConversionValue)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"referral": referral})
}

func (h *ReferralHandler) DeleteReferral(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid referral id")
	}

	if err := h.referralSvc.DeleteReferral(c.UserContext(), viewer, id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
