package db

import (
	"context"

	"teamdesk/internal/model"
)

const clientColumns = `c.id, c.agent_id, c.name, c.phone, c.email, c.insurance_type, c.notes, c.created_at`

// ClientFilter narrows ListClients to one agent or to a manager's team.
// Zero fields are ignored.
type ClientFilter struct {
	AgentID   int64
	ManagerID int64
	Limit     int
}

func scanClient(row rowScanner) (model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.AgentID, &c.Name, &c.Phone, &c.Email, &c.InsuranceType, &c.Notes, &c.CreatedAt)
	return c, translate(err)
}

func (s *Store) CreateClient(ctx context.Context, client model.Client) (model.Client, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO clients AS c (agent_id, name, phone, email, insurance_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+clientColumns,
		client.AgentID, client.Name, client.Phone, client.Email, client.InsuranceType, client.Notes)
	return scanClient(row)
}

func (s *Store) ListClients(ctx context.Context, filter ClientFilter) ([]model.Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients c
		JOIN users u ON u.id = c.agent_id
		WHERE ($1 = 0 OR c.agent_id = $1)
		  AND ($2 = 0 OR u.manager_id = $2)
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $3
	`, filter.AgentID, filter.ManagerID, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
