package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadsTable holds captured buyer inquiries.
const LeadsTable = "admin.leads"

// LeadRecord represents a row in the leads table.
type LeadRecord struct {
	LeadID        uuid.UUID  `db:"lead_id"`
	PropertyID    uuid.UUID  `db:"property_id"`
	BuyerID       *uuid.UUID `db:"buyer_id"`
	AssignedAgent *uuid.UUID `db:"assigned_agent_id"`
	Message       string     `db:"message"`
	Status        string     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
}

// LeadStore provides access to the leads table.
type LeadStore struct {
	pool *pgxpool.Pool
}

// NewLeadStore creates a store; assumes migrations already created the table.
func NewLeadStore(ctx context.Context, pool *pgxpool.Pool) (*LeadStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &LeadStore{pool: pool}, nil
}

// Create inserts a new lead.
func (s *LeadStore) Create(ctx context.Context, rec LeadRecord) (LeadRecord, error) {
	if rec.LeadID == uuid.Nil {
		return LeadRecord{}, errors.New("lead id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (lead_id, property_id, buyer_id, assigned_agent_id, message, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING lead_id, property_id, buyer_id, assigned_agent_id, message, status, created_at
    `, LeadsTable)

	return scanLeadRecord(s.pool.QueryRow(ctx, query,
		rec.LeadID, rec.PropertyID, rec.BuyerID, rec.AssignedAgent, rec.Message, rec.Status))
}

// ListByAgent returns leads assigned to the agent, newest first.
func (s *LeadStore) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]LeadRecord, error) {
	query := fmt.Sprintf(`
        SELECT lead_id, property_id, buyer_id, assigned_agent_id, message, status, created_at
        FROM %s WHERE assigned_agent_id = $1
        ORDER BY created_at DESC
    `, LeadsTable)

	rows, err := s.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []LeadRecord
	for rows.Next() {
		rec, err := scanLeadRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanLeadRecord(row pgx.Row) (LeadRecord, error) {
	var rec LeadRecord
	if err := row.Scan(&rec.LeadID, &rec.PropertyID, &rec.BuyerID, &rec.AssignedAgent,
		&rec.Message, &rec.Status, &rec.CreatedAt); err != nil {
		return LeadRecord{}, err
	}
	return rec, nil
}
