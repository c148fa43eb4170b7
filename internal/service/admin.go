package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

type AuditService struct {
	audit AuditStore
}

func NewAuditService(audit AuditStore) *AuditService {
	return &AuditService{audit: audit}
}

// ListAuditLogs retrieves audited actions, newest first
func (s *AuditService) ListAuditLogs(ctx context.Context, viewer model.Viewer, limit, offset int) ([]model.AuditLog, error) {
	if viewer.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := s.audit.GetAuditLogs(ctx, limit, offset)
	if err != nil {
		return nil, storageError("list audit logs", err)
	}
	return logs, nil
}

// recordAudit writes an audit entry. A failed write is logged and never
// fails the audited action.
func recordAudit(ctx context.Context, audit AuditStore, actorID uuid.UUID, action, targetType string, targetID uuid.UUID, details interface{}) {
	if err := audit.LogAction(ctx, &actorID, action, targetType, targetID, details); err != nil {
		log.Printf("[Audit] Failed to log %s on %s %s: %v", action, targetType, targetID, err)
	}
}
