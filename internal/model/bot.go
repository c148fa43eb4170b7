package model

import (
	"time"

	"github.com/google/uuid"
)

type BotStatus string

const (
	BotStatusOnline      BotStatus = "Online"
	BotStatusOffline     BotStatus = "Offline"
	BotStatusMaintenance BotStatus = "Maintenance"
	BotStatusError       BotStatus = "Error"
)

type BotTemplate string

const (
	BotTemplateStandard BotTemplate = "standard"
	BotTemplateAdvanced BotTemplate = "advanced"
	BotTemplateCustom   BotTemplate = "custom"
)

func (t BotTemplate) Valid() bool {
	switch t {
	case BotTemplateStandard, BotTemplateAdvanced, BotTemplateCustom:
		return true
	}
	return false
}

type BotAction string

const (
	BotActionStart   BotAction = "start"
	BotActionStop    BotAction = "stop"
	BotActionRestart BotAction = "restart"
)

type Bot struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	ClientID         uuid.UUID   `json:"client_id" db:"client_id"`
	Name             string      `json:"name" db:"name"`
	DiscordBotID     *string     `json:"discord_bot_id,omitempty" db:"discord_bot_id"`
	DiscordToken     *string     `json:"-" db:"discord_token"`
	Status           BotStatus   `json:"status" db:"status"`
	Template         BotTemplate `json:"template" db:"template"`
	Prefix           string      `json:"prefix" db:"prefix"`
	Description      *string     `json:"description,omitempty" db:"description"`
	Servers          int         `json:"servers" db:"servers"`
	Users            int         `json:"users" db:"users"`
	CommandsUsed     int         `json:"commands_used" db:"commands_used"`
	UptimePercentage float64     `json:"uptime_percentage" db:"uptime_percentage"`
	LastOnline       *time.Time  `json:"last_online,omitempty" db:"last_online"`
	InviteURL        *string     `json:"invite_url,omitempty" db:"invite_url"`
	WebhookURL       *string     `json:"webhook_url,omitempty" db:"webhook_url"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// IsOnline returns true if the bot reports Online status
func (b *Bot) IsOnline() bool {
	return b.Status == BotStatusOnline
}

type BotStats struct {
	TotalBots        int     `json:"totalBots"`
	OnlineBots       int     `json:"onlineBots"`
	TotalServers     int     `json:"totalServers"`
	TotalUsers       int     `json:"totalUsers"`
	TotalCommands    int     `json:"totalCommands"`
	AvgUptime        float64 `json:"avgUptime"`
	OnlinePercentage float64 `json:"onlinePercentage"`
	AvgServersPerBot float64 `json:"avgServersPerBot"`
	AvgUsersPerBot   float64 `json:"avgUsersPerBot"`
}
