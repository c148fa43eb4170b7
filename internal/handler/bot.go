package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
)

// BotHandler handles bot-related requests
type BotHandler struct {
	botSvc *service.BotService
}

// NewBotHandler creates a new bot handler
func NewBotHandler(botSvc *service.BotService) *BotHandler {
	return &BotHandler{botSvc: botSvc}
}

// GetBots lists bots, optionally filtered by client_id
func (h *BotHandler) GetBots(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	clientID, err := parseOptionalUUID(c.Query("client_id"))
	if err != nil {
		return badRequest(c, "invalid client_id")
	}

	bots, err := h.botSvc.ListBots(c.UserContext(), viewer, clientID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"bots": bots, "total": len(bots)})
}

// GetStats returns fleet statistics
func (h *BotHandler) GetStats(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}

	stats, err := h.botSvc.StatsFor(c.UserContext(), viewer)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

type ControlBotRequest struct {
	Action model.BotAction `json:"action"`
}

var controlMessages = map[model.BotAction]string{
	model.BotActionStart:   "Bot started successfully",
	model.BotActionStop:    "Bot stopped successfully",
	model.BotActionRestart: "Bot restarted successfully",
}

// ControlBot starts, stops or restarts a bot
func (h *BotHandler) ControlBot(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid bot id")
	}

	var req ControlBotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	bot, err := h.botSvc.ControlBot(c.UserContext(), viewer, id, req.Action)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"bot":     bot,
		"action":  req.Action,
		"message": controlMessages[req.Action],
	})
}

// --- Admin Endpoints ---

// CreateBot registers a bot record for a client
func (h *BotHandler) CreateBot(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}

	var req service.CreateBotInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	bot, err := h.botSvc.CreateBot(c.UserContext(), viewer, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bot)
}

// DeleteBot removes a bot record
func (h *BotHandler) DeleteBot(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid bot id")
	}

	if err := h.botSvc.DeleteBot(c.UserContext(), viewer, id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
