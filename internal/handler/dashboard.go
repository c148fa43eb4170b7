package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
)

type DashboardHandler struct {
	dashboardSvc *service.DashboardService
}

func NewDashboardHandler(dashboardSvc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// GetDashboard loads the caller's unified dashboard. With cached=true the
// last stored snapshot is returned when there is one.
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	viewer, err := viewerOf(c)
	if err != nil {
		return err
	}

	if c.QueryBool("cached") {
		if data, ok := h.dashboardSvc.Latest(viewer.UserID); ok {
			return c.JSON(data)
		}
	}

	data, err := h.dashboardSvc.Load(c.UserContext(), viewer)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(data)
}
