package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/leads/be/service"
	"github.com/brickline/brickline-saas/platform/go/persistence"
)

// PostgresRepository implements the leads repository on the shared
// persistence layer.
type PostgresRepository struct {
	leads      *persistence.LeadStore
	properties *persistence.PropertyStore
	accounts   *persistence.AccountStore
}

// NewPostgresRepository constructs a repository backed by the lead, property,
// and account stores.
func NewPostgresRepository(leads *persistence.LeadStore, properties *persistence.PropertyStore, accounts *persistence.AccountStore) *PostgresRepository {
	if leads == nil {
		panic("lead store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	if accounts == nil {
		panic("account store is required")
	}
	return &PostgresRepository{leads: leads, properties: properties, accounts: accounts}
}

func (r *PostgresRepository) Create(ctx context.Context, lead service.Lead) (service.Lead, error) {
	rec, err := r.leads.Create(ctx, persistence.LeadRecord{
		LeadID:        lead.ID,
		PropertyID:    lead.PropertyID,
		BuyerID:       lead.BuyerID,
		AssignedAgent: lead.AssignedAgent,
		Message:       lead.Message,
		Status:        lead.Status,
	})
	if err != nil {
		return service.Lead{}, err
	}
	return toServiceLead(rec), nil
}

func (r *PostgresRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]service.Lead, error) {
	records, err := r.leads.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	out := make([]service.Lead, 0, len(records))
	for _, rec := range records {
		out = append(out, toServiceLead(rec))
	}
	return out, nil
}

func (r *PostgresRepository) GetProperty(ctx context.Context, propertyID uuid.UUID) (service.Property, error) {
	rec, err := r.properties.Get(ctx, propertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return service.Property{}, service.ErrPropertyNotFound
		}
		return service.Property{}, err
	}
	return service.Property{ID: rec.PropertyID, OwnerID: rec.OwnerID, Title: rec.Title}, nil
}

func (r *PostgresRepository) GetContact(ctx context.Context, accountID uuid.UUID) (service.Contact, error) {
	rec, err := r.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, persistence.ErrAccountNotFound) {
			return service.Contact{}, service.ErrContactNotFound
		}
		return service.Contact{}, err
	}
	return service.Contact{
		Email:          rec.Email,
		FirstName:      rec.FirstName,
		WhatsappNumber: rec.WhatsappNumber,
	}, nil
}

func toServiceLead(rec persistence.LeadRecord) service.Lead {
	return service.Lead{
		ID:            rec.LeadID,
		PropertyID:    rec.PropertyID,
		BuyerID:       rec.BuyerID,
		AssignedAgent: rec.AssignedAgent,
		Message:       rec.Message,
		Status:        rec.Status,
		CreatedAt:     rec.CreatedAt,
	}
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
