package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	TargetType string          `json:"target_type" db:"target_type"`
	TargetID   uuid.UUID       `json:"target_id" db:"target_id"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Audited actions
const (
	AuditActionBotStart       = "bot_start"
	AuditActionBotStop        = "bot_stop"
	AuditActionBotRestart     = "bot_restart"
	AuditActionBotCreate      = "bot_create"
	AuditActionBotDelete      = "bot_delete"
	AuditActionReferralStatus = "referral_status"
	AuditActionReferralDelete = "referral_delete"
	AuditActionLinkDelete     = "link_delete"
)
