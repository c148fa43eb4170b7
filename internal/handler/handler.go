package handler

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/middleware"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
)

// Pinger reports storage liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	if err := h.store.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  "storage unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, service.ErrInactive),
		errors.Is(err, service.ErrExpired):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrDuplicate),
		errors.Is(err, service.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, context.Canceled):
		return fiber.StatusRequestTimeout
	}
	return fiber.StatusInternalServerError
}

func errorResponse(c *fiber.Ctx, err error) error {
	return errorWithStatus(c, StatusFor(err), err)
}

func errorWithStatus(c *fiber.Ctx, status int, err error) error {
	msg := err.Error()
	if status >= fiber.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
		msg = "internal server error"
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// ErrorHandler renders errors that escape handlers, including fiber's own.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fe.Message,
		})
	}
	return errorResponse(c, err)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func viewerOf(c *fiber.Ctx) (model.Viewer, error) {
	viewer, ok := middleware.GetViewer(c)
	if !ok {
		return model.Viewer{}, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return viewer, nil
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(param))
	return id, err == nil
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// clientIP prefers the first x-forwarded-for hop, then x-real-ip, then the
// socket address.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return c.IP()
}

func requestContext(c *fiber.Ctx) service.RequestContext {
	return service.RequestContext{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referrer:  c.Get(fiber.HeaderReferer),
		IPAddress: clientIP(c),
		URL:       c.BaseURL() + c.OriginalURL(),
	}
}
