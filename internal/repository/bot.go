package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

var ErrBotNotFound = errors.New("bot not found")

// GetBot returns a bot by ID
func (r *Repository) GetBot(ctx context.Context, id uuid.UUID) (*model.Bot, error) {
	var bot model.Bot
	err := r.db.GetContext(ctx, &bot, `
		SELECT * FROM bots WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return &bot, nil
}

// ListBots returns bots newest first, optionally for a single client
func (r *Repository) ListBots(ctx context.Context, clientID *uuid.UUID) ([]model.Bot, error) {
	bots := []model.Bot{}
	var err error
	if clientID != nil {
		err = r.db.SelectContext(ctx, &bots, `
			SELECT * FROM bots
			WHERE client_id = $1
			ORDER BY created_at DESC
		`, *clientID)
	} else {
		err = r.db.SelectContext(ctx, &bots, `
			SELECT * FROM bots
			ORDER BY created_at DESC
		`)
	}
	if err != nil {
		return nil, err
	}
	return bots, nil
}

// CreateBot inserts a bot record and bumps the owning client's bot counter
func (r *Repository) CreateBot(ctx context.Context, bot *model.Bot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bot.ID = uuid.New()
	rows, err := tx.NamedQuery(`
		INSERT INTO bots (id, client_id, name, discord_bot_id, discord_token, status, template,
			prefix, description, invite_url, webhook_url)
		VALUES (:id, :client_id, :name, :discord_bot_id, :discord_token, :status, :template,
			:prefix, :description, :invite_url, :webhook_url)
		RETURNING created_at, updated_at
	`, bot)
	if err != nil {
		return err
	}
	if rows.Next() {
		if err := rows.Scan(&bot.CreatedAt, &bot.UpdatedAt); err != nil {
			rows.Close()
			return err
		}
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `
		UPDATE clients SET bots = bots + 1, updated_at = NOW() WHERE id = $1
	`, bot.ClientID); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteBot deletes a bot and decrements the owning client's bot counter
func (r *Repository) DeleteBot(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var clientID uuid.UUID
	err = tx.GetContext(ctx, &clientID, `DELETE FROM bots WHERE id = $1 RETURNING client_id`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBotNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE clients SET bots = GREATEST(bots - 1, 0), updated_at = NOW() WHERE id = $1
	`, clientID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateBotStatus sets the bot status. A nil lastOnline keeps the stored value.
func (r *Repository) UpdateBotStatus(ctx context.Context, id uuid.UUID, status model.BotStatus, lastOnline *time.Time) (*model.Bot, error) {
	var bot model.Bot
	err := r.db.GetContext(ctx, &bot, `
		UPDATE bots
		SET status = $2, last_online = COALESCE($3, last_online), updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, status, lastOnline)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return &bot, nil
}
