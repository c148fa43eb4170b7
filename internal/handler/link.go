package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
)

type LinkHandler struct {
	linkSvc      *service.LinkService
	analyticsSvc *service.AnalyticsService
}

func NewLinkHandler(linkSvc *service.LinkService, analyticsSvc *service.AnalyticsService) *LinkHandler {
	return &LinkHandler{
		linkSvc:      linkSvc,
		analyticsSvc: analyticsSvc,
	}
}

func (h *LinkHandler) ListLinks(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	links, err := h.linkSvc.ListLinks(c.UserContext(), viewer)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"links": links, "total": len(links)})
}

type CreateLinkRequest struct {
	service.CreateLinkInput
	InfluencerID *uuid.UUID `json:"influencer_id,omitempty"`
}

// CreateLink creates a link owned by the caller. Admins may create one on
// behalf of an influencer.
func (h *LinkHandler) CreateLink(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}

	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	owner := viewer.UserID
	if viewer.Role == model.RoleAdmin && req.InfluencerID != nil {
		owner = *req.InfluencerID
	}

	link, err := h.linkSvc.CreateLink(c.UserContext(), owner, req.CreateLinkInput)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

func (h *LinkHandler) GetLink(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid link id")
	}

	link, err := h.linkSvc.GetLink(c.UserContext(), viewer, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(link)
}

func (h *LinkHandler) UpdateLink(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid link id")
	}

	var patch service.LinkPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}

	link, err := h.linkSvc.UpdateLink(c.UserContext(), viewer, id, patch)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(link)
}

func (h *LinkHandler) ToggleLink(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid link id")
	}

	link, err := h.linkSvc.ToggleActive(c.UserContext(), viewer, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(link)
}

func (h *LinkHandler) DeleteLink(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid link id")
	}

	if err := h.linkSvc.DeleteLink(c.UserContext(), viewer, id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// --- Analytics ---

func (h *LinkHandler) LinkAnalytics(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid link id")
	}

	report, err := h.analyticsSvc.ComputeLinkAnalytics(c.UserContext(), viewer, id, c.QueryInt("days", service.DefaultWindowDays))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(report)
}

// InfluencerAnalytics aggregates over all of an influencer's links. Admins
// pass influencer_id.
func (h *LinkHandler) InfluencerAnalytics(c *fiber.Ctx) error {
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

	report, err := h.analyticsSvc.ComputeInfluencerAnalytics(c.UserContext(), influencerID, c.QueryInt("days", service.DefaultWindowDays))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(report)
}
