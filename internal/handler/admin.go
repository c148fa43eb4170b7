package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
)

type AdminHandler struct {
	auditSvc *service.AuditService
}

func NewAdminHandler(auditSvc *service.AuditService) *AdminHandler {
	return &AdminHandler{auditSvc: auditSvc}
}

// GetAuditLogs returns audited actions, newest first
func (h *AdminHandler) GetAuditLogs(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}

	logs, err := h.auditSvc.ListAuditLogs(c.UserContext(), viewer, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"logs": logs})
}
