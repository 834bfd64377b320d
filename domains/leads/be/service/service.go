// Package service captures buyer inquiries and routes them to the listing
// agent.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/platform/go/notify"
)

// Domain sentinel errors.
var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrContactNotFound  = errors.New("contact not found")
)

// Lead statuses.
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusClosed    = "closed"
)

// Lead represents a captured inquiry.
type Lead struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	BuyerID       *uuid.UUID
	AssignedAgent *uuid.UUID
	Message       string
	Status        string
	CreatedAt     time.Time
}

// Property is the subset of listing data the leads flow needs.
type Property struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Title   string
}

// Contact carries the delivery addresses for lead notifications. Both the
// assigned agent and the inquiring buyer resolve through it.
type Contact struct {
	Email          string
	FirstName      string
	WhatsappNumber *string
}

// CreateInput represents the request to capture a lead.
type CreateInput struct {
	PropertyID uuid.UUID
	BuyerID    *uuid.UUID
	Message    string
}

// Repository abstracts lead persistence and the lookups the flow needs.
type Repository interface {
	Create(ctx context.Context, lead Lead) (Lead, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]Lead, error)
	GetProperty(ctx context.Context, propertyID uuid.UUID) (Property, error)
	GetContact(ctx context.Context, accountID uuid.UUID) (Contact, error)
}

// Notifier queues a notification for background delivery.
type Notifier interface {
	Enqueue(msg notify.Message) error
}

// Service provides lead capture and listing.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	if repo == nil {
		panic("leads repo is required")
	}
	if notifier == nil {
		panic("notifier is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Create captures a lead for the property. The listing owner becomes the
// assigned agent and is notified over email, plus WhatsApp when a number is
// on file; an identified buyer gets a confirmation email. Notification
// failures never fail the capture.
func (s *Service) Create(ctx context.Context, input CreateInput) (Lead, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return Lead{}, errors.New("message is required")
	}

	property, err := s.repo.GetProperty(ctx, input.PropertyID)
	if err != nil {
		return Lead{}, err
	}

	agentID := property.OwnerID
	lead, err := s.repo.Create(ctx, Lead{
		ID:            uuid.New(),
		PropertyID:    property.ID,
		BuyerID:       input.BuyerID,
		AssignedAgent: &agentID,
		Message:       message,
		Status:        StatusNew,
	})
	if err != nil {
		return Lead{}, err
	}

	s.notifyAgent(ctx, lead, property)
	s.notifyBuyer(ctx, lead, property)
	return lead, nil
}

// ListForAgent returns the agent's leads, newest first.
func (s *Service) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]Lead, error) {
	return s.repo.ListByAgent(ctx, agentID)
}

func (s *Service) notifyAgent(ctx context.Context, lead Lead, property Property) {
	contact, err := s.repo.GetContact(ctx, *lead.AssignedAgent)
	if err != nil {
		s.logger.Error("agent contact lookup failed",
			zap.String("lead_id", lead.ID.String()), zap.Error(err))
		return
	}

	data := map[string]string{
		"first_name":     contact.FirstName,
		"property_title": property.Title,
		"message":        lead.Message,
	}

	if err := s.notifier.Enqueue(notify.Message{
		Channel:   notify.ChannelEmail,
		Recipient: contact.Email,
		Subject:   "New lead for " + property.Title,
		Template:  "new_lead",
		Data:      data,
	}); err != nil {
		s.logger.Warn("lead email not queued", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	}

	if contact.WhatsappNumber == nil {
		return
	}
	if err := s.notifier.Enqueue(notify.Message{
		Channel:   notify.ChannelWhatsApp,
		Recipient: *contact.WhatsappNumber,
		Template:  "new_lead",
		Data: map[string]string{
			"body": "New lead for " + property.Title + ": " + lead.Message,
		},
	}); err != nil {
		s.logger.Warn("lead whatsapp not queued", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	}
}

func (s *Service) notifyBuyer(ctx context.Context, lead Lead, property Property) {
	if lead.BuyerID == nil {
		return
	}
	contact, err := s.repo.GetContact(ctx, *lead.BuyerID)
	if err != nil {
		s.logger.Warn("buyer contact lookup failed",
			zap.String("lead_id", lead.ID.String()), zap.Error(err))
		return
	}

	if err := s.notifier.Enqueue(notify.Message{
		Channel:   notify.ChannelEmail,
		Recipient: contact.Email,
		Subject:   "We sent your inquiry about " + property.Title,
		Template:  "lead_received",
		Data: map[string]string{
			"first_name":     contact.FirstName,
			"property_title": property.Title,
		},
	}); err != nil {
		s.logger.Warn("buyer confirmation not queued", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	}
}
