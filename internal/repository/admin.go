package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

// CreateAuditLog creates an audit log entry
func (r *Repository) CreateAuditLog(ctx context.Context, log *model.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (actor_id, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5)`,
		log.ActorID, log.Action, log.TargetType, log.TargetID, log.Details)
	return err
}

// LogAction is a helper to create an audit log with JSON details
func (r *Repository) LogAction(ctx context.Context, actorID *uuid.UUID, action, targetType string, targetID uuid.UUID, details interface{}) error {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return err
		}
	}
	return r.CreateAuditLog(ctx, &model.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    detailsJSON,
	})
}

// GetAuditLogs retrieves audit logs newest first
func (r *Repository) GetAuditLogs(ctx context.Context, limit, offset int) ([]model.AuditLog, error) {
	logs := []model.AuditLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	return logs, err
}
