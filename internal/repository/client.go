package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

var ErrClientNotFound = errors.New("client not found")

func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	err := r.db.GetContext(ctx, &client, "SELECT * FROM clients WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (r *Repository) ListClients(ctx context.Context) ([]model.Client, error) {
	clients := []model.Client{}
	err := r.db.SelectContext(ctx, &clients, "SELECT * FROM clients ORDER BY created_at DESC")
	return clients, err
}

func (r *Repository) ListCampaignsByClient(ctx context.Context, clientID uuid.UUID) ([]model.Campaign, error) {
	campaigns := []model.Campaign{}
	err := r.db.SelectContext(ctx, &campaigns, `
		SELECT * FROM campaigns
		WHERE client_id = $1
		ORDER BY created_at DESC`, clientID)
	return campaigns, err
}
