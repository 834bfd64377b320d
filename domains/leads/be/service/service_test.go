package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/leads/be/repo"
	"github.com/brickline/brickline-saas/domains/leads/be/service"
	"github.com/brickline/brickline-saas/platform/go/notify"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail bool
}

func (f *fakeNotifier) Enqueue(msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return notify.ErrQueueFull
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) byChannel(channel notify.Channel) []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Message
	for _, msg := range f.msgs {
		if msg.Channel == channel {
			out = append(out, msg)
		}
	}
	return out
}

func setup(t *testing.T) (*service.Service, *repo.MemoryRepository, *fakeNotifier, service.Property, uuid.UUID) {
	t.Helper()

	r := repo.NewMemoryRepository()
	notifier := &fakeNotifier{}
	svc := service.New(r, notifier, zap.NewNop())

	agentID := uuid.New()
	property := service.Property{ID: uuid.New(), OwnerID: agentID, Title: "Sunny Flat"}
	r.AddProperty(property)

	whatsapp := "+2348012345678"
	r.AddContact(agentID, service.Contact{
		Email:          "agent@x.com",
		FirstName:      "Ada",
		WhatsappNumber: &whatsapp,
	})

	return svc, r, notifier, property, agentID
}

func TestCreateAssignsListingOwner(t *testing.T) {
	svc, _, _, property, agentID := setup(t)

	lead, err := svc.Create(context.Background(), service.CreateInput{
		PropertyID: property.ID,
		Message:    "Is it still available?",
	})
	require.NoError(t, err)

	require.NotNil(t, lead.AssignedAgent)
	require.Equal(t, agentID, *lead.AssignedAgent)
	require.Equal(t, service.StatusNew, lead.Status)
}

func TestCreateNotifiesAgentOnBothChannels(t *testing.T) {
	svc, _, notifier, property, _ := setup(t)

	_, err := svc.Create(context.Background(), service.CreateInput{
		PropertyID: property.ID,
		Message:    "Is it still available?",
	})
	require.NoError(t, err)

	emails := notifier.byChannel(notify.ChannelEmail)
	require.Len(t, emails, 1)
	require.Equal(t, "agent@x.com", emails[0].Recipient)
	require.Equal(t, "new_lead", emails[0].Template)
	require.Equal(t, "Sunny Flat", emails[0].Data["property_title"])

	whatsapps := notifier.byChannel(notify.ChannelWhatsApp)
	require.Len(t, whatsapps, 1)
	require.Equal(t, "+2348012345678", whatsapps[0].Recipient)
}

func TestCreateConfirmsIdentifiedBuyer(t *testing.T) {
	svc, r, notifier, property, _ := setup(t)

	buyerID := uuid.New()
	r.AddContact(buyerID, service.Contact{Email: "buyer@x.com", FirstName: "Bola"})

	_, err := svc.Create(context.Background(), service.CreateInput{
		PropertyID: property.ID,
		BuyerID:    &buyerID,
		Message:    "Is it still available?",
	})
	require.NoError(t, err)

	emails := notifier.byChannel(notify.ChannelEmail)
	require.Len(t, emails, 2)
	require.Equal(t, "buyer@x.com", emails[1].Recipient)
	require.Equal(t, "lead_received", emails[1].Template)
	require.Equal(t, "Sunny Flat", emails[1].Data["property_title"])
}

func TestCreateSkipsWhatsAppWithoutNumber(t *testing.T) {
	r := repo.NewMemoryRepository()
	notifier := &fakeNotifier{}
	svc := service.New(r, notifier, zap.NewNop())

	agentID := uuid.New()
	property := service.Property{ID: uuid.New(), OwnerID: agentID, Title: "Sunny Flat"}
	r.AddProperty(property)
	r.AddContact(agentID, service.Contact{Email: "agent@x.com", FirstName: "Ada"})

	_, err := svc.Create(context.Background(), service.CreateInput{
		PropertyID: property.ID,
		Message:    "Still available?",
	})
	require.NoError(t, err)

	require.Len(t, notifier.byChannel(notify.ChannelEmail), 1)
	require.Empty(t, notifier.byChannel(notify.ChannelWhatsApp))
}

func TestCreateSucceedsWhenNotificationsFail(t *testing.T) {
	svc, r, notifier, property, agentID := setup(t)
	notifier.fail = true

	lead, err := svc.Create(context.Background(), service.CreateInput{
		PropertyID: property.ID,
		Message:    "Still available?",
	})
	require.NoError(t, err)

	stored, err := r.ListByAgent(context.Background(), agentID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, lead.ID, stored[0].ID)
}

func TestCreateUnknownProperty(t *testing.T) {
	svc, _, _, _, _ := setup(t)

	_, err := svc.Create(context.Background(), service.CreateInput{
		PropertyID: uuid.New(),
		Message:    "Still available?",
	})
	require.ErrorIs(t, err, service.ErrPropertyNotFound)
}

func TestListForAgentFiltersByAssignment(t *testing.T) {
	svc, r, _, property, agentID := setup(t)
	ctx := context.Background()

	otherAgent := uuid.New()
	otherProperty := service.Property{ID: uuid.New(), OwnerID: otherAgent, Title: "Other Flat"}
	r.AddProperty(otherProperty)
	r.AddContact(otherAgent, service.Contact{Email: "other@x.com", FirstName: "Eve"})

	_, err := svc.Create(ctx, service.CreateInput{PropertyID: property.ID, Message: "One"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, service.CreateInput{PropertyID: otherProperty.ID, Message: "Two"})
	require.NoError(t, err)

	mine, err := svc.ListForAgent(ctx, agentID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "One", mine[0].Message)
}
