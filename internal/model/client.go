package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "Active"
	ClientStatusInactive ClientStatus = "Inactive"
	ClientStatusPending  ClientStatus = "Pending"
)

type Client struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Industry     string       `json:"industry" db:"industry"`
	ContactName  *string      `json:"contact_name,omitempty" db:"contact_name"`
	ContactEmail *string      `json:"contact_email,omitempty" db:"contact_email"`
	Website      *string      `json:"website,omitempty" db:"website"`
	Bots         int          `json:"bots" db:"bots"`
	Influencers  int          `json:"influencers" db:"influencers"`
	Status       ClientStatus `json:"status" db:"status"`
	JoinDate     time.Time    `json:"join_date" db:"join_date"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

type CampaignStatus string

const (
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
	CampaignStatusEnded  CampaignStatus = "ended"
)

type Campaign struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ClientID    uuid.UUID       `json:"client_id" db:"client_id"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	Status      CampaignStatus  `json:"status" db:"status"`
	Budget      decimal.Decimal `json:"budget" db:"budget"`
	StartDate   *time.Time      `json:"start_date,omitempty" db:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty" db:"end_date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
