package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []Message
	failures int
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("transport down")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) delivered() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatcherDeliversEnqueuedMessages(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, zap.NewNop(), nil, DispatcherConfig{QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	msg := Message{Channel: ChannelEmail, Recipient: "a@x.com", Template: "verify_email"}
	require.NoError(t, d.Enqueue(msg))

	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
	require.Equal(t, msg, sender.delivered()[0])
}

func TestDispatcherRetriesOnceThenSucceeds(t *testing.T) {
	sender := &recordingSender{failures: 1}
	d := NewDispatcher(sender, zap.NewNop(), nil, DispatcherConfig{
		QueueSize:  4,
		RetryDelay: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Enqueue(Message{Channel: ChannelWhatsApp, Recipient: "+15550001111"}))
	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
}

func TestDispatcherDropsAfterSecondFailure(t *testing.T) {
	sender := &recordingSender{failures: 2}
	d := NewDispatcher(sender, zap.NewNop(), nil, DispatcherConfig{
		QueueSize:  4,
		RetryDelay: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Enqueue(Message{Channel: ChannelEmail, Recipient: "a@x.com"}))
	require.NoError(t, d.Enqueue(Message{Channel: ChannelEmail, Recipient: "b@x.com"}))

	// Only the second message survives; the first is dropped after its retry.
	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
	require.Equal(t, "b@x.com", sender.delivered()[0].Recipient)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, zap.NewNop(), nil, DispatcherConfig{QueueSize: 1})

	require.NoError(t, d.Enqueue(Message{Channel: ChannelEmail}))
	require.ErrorIs(t, d.Enqueue(Message{Channel: ChannelEmail}), ErrQueueFull)
}

func TestRouterPicksSenderByChannel(t *testing.T) {
	email := &recordingSender{}
	whatsapp := &recordingSender{}
	router := NewRouter(map[Channel]Sender{
		ChannelEmail:    email,
		ChannelWhatsApp: whatsapp,
	})

	require.NoError(t, router.Send(context.Background(), Message{Channel: ChannelWhatsApp, Recipient: "+15550001111"}))
	require.Empty(t, email.delivered())
	require.Len(t, whatsapp.delivered(), 1)

	err := router.Send(context.Background(), Message{Channel: "pigeon"})
	require.Error(t, err)
}
