package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/assistant/be/repo"
	"github.com/brickline/brickline-saas/domains/assistant/be/service"
)

// fakeAI embeds by keyword lookup so similarity is fully deterministic.
type fakeAI struct {
	vectors     map[string][]float64
	embedErr    error
	failOn      string
	completeErr error
	completions []string
	reply       string
}

func (f *fakeAI) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.failOn != "" {
		for _, text := range texts {
			if strings.Contains(text, f.failOn) {
				return nil, errors.New("embedding rejected")
			}
		}
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float64{1, 0, 0}
		}
	}
	return out, nil
}

func (f *fakeAI) Complete(_ context.Context, _, user string) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	f.completions = append(f.completions, user)
	if f.reply == "" {
		return "generated answer", nil
	}
	return f.reply, nil
}

func setup(t *testing.T, ai *fakeAI) (*service.Service, *repo.MemoryRepository, uuid.UUID) {
	t.Helper()
	r := repo.NewMemoryRepository()
	propertyID := uuid.New()
	r.AddProperty(propertyID)
	return service.New(r, ai, zap.NewNop(), 400), r, propertyID
}

func TestIngestChunksAndStores(t *testing.T) {
	ai := &fakeAI{}
	svc, r, propertyID := setup(t, ai)

	document := strings.Repeat("The flat has three bedrooms and a balcony. ", 20)
	count, err := svc.Ingest(context.Background(), propertyID, document)
	require.NoError(t, err)
	require.Greater(t, count, 1)

	stored, err := r.ListEmbeddings(context.Background(), propertyID)
	require.NoError(t, err)
	require.Len(t, stored, count)
}

func TestIngestSkipsChunksThatFailToEmbed(t *testing.T) {
	ai := &fakeAI{failOn: "heating"}
	r := repo.NewMemoryRepository()
	propertyID := uuid.New()
	r.AddProperty(propertyID)
	svc := service.New(r, ai, zap.NewNop(), 30)

	document := "The garden is large. The heating is gas. Parking for two."
	count, err := svc.Ingest(context.Background(), propertyID, document)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	stored, err := r.ListEmbeddings(context.Background(), propertyID)
	require.NoError(t, err)
	for _, e := range stored {
		require.NotContains(t, e.Chunk, "heating")
	}
}

func TestIngestFailsWhenNothingEmbeds(t *testing.T) {
	ai := &fakeAI{embedErr: errors.New("service down")}
	svc, _, propertyID := setup(t, ai)

	_, err := svc.Ingest(context.Background(), propertyID, "Some text.")
	require.Error(t, err)
}

func TestIngestUnknownProperty(t *testing.T) {
	svc, _, _ := setup(t, &fakeAI{})

	_, err := svc.Ingest(context.Background(), uuid.New(), "Some text.")
	require.ErrorIs(t, err, service.ErrPropertyNotFound)
}

func TestAnswerUsesBestMatchingChunks(t *testing.T) {
	ai := &fakeAI{
		vectors: map[string][]float64{
			"The garden is large.":    {0, 1, 0},
			"Parking for two cars.":   {0, 0, 1},
			"The roof was redone.":    {1, 0, 0},
			"Heating is gas powered.": {0.5, 0.5, 0},
			"How big is the garden?":  {0, 1, 0},
		},
	}
	svc, r, propertyID := setup(t, ai)
	ctx := context.Background()

	require.NoError(t, r.ReplaceEmbeddings(ctx, propertyID, []service.Embedding{
		{Chunk: "The garden is large.", Vector: []float64{0, 1, 0}},
		{Chunk: "Parking for two cars.", Vector: []float64{0, 0, 1}},
		{Chunk: "The roof was redone.", Vector: []float64{1, 0, 0}},
		{Chunk: "Heating is gas powered.", Vector: []float64{0.5, 0.5, 0}},
	}))

	answer, err := svc.Answer(ctx, propertyID, nil, "How big is the garden?")
	require.NoError(t, err)
	require.Equal(t, "generated answer", answer)

	require.Len(t, ai.completions, 1)
	prompt := ai.completions[0]
	// Best match first; only three of the four chunks make the prompt.
	require.Contains(t, prompt, "The garden is large.")
	require.Less(t,
		strings.Index(prompt, "The garden is large."),
		strings.Index(prompt, "Heating is gas powered."))
	require.NotContains(t, prompt, "The roof was redone.")
}

func TestAnswerBreaksTiesByIngestionOrder(t *testing.T) {
	ai := &fakeAI{
		vectors: map[string][]float64{"question": {0, 1, 0}},
	}
	svc, r, propertyID := setup(t, ai)
	ctx := context.Background()

	// Four chunks with identical vectors: only the first three make the prompt.
	same := []float64{0, 1, 0}
	require.NoError(t, r.ReplaceEmbeddings(ctx, propertyID, []service.Embedding{
		{Chunk: "first", Vector: same},
		{Chunk: "second", Vector: same},
		{Chunk: "third", Vector: same},
		{Chunk: "fourth", Vector: same},
	}))

	_, err := svc.Answer(ctx, propertyID, nil, "question")
	require.NoError(t, err)

	prompt := ai.completions[0]
	require.Contains(t, prompt, "first")
	require.Contains(t, prompt, "second")
	require.Contains(t, prompt, "third")
	require.NotContains(t, prompt, "fourth")
}

func TestAnswerWithoutEmbeddings(t *testing.T) {
	svc, r, propertyID := setup(t, &fakeAI{})

	_, err := svc.Answer(context.Background(), propertyID, nil, "Anything?")
	require.ErrorIs(t, err, service.ErrNoDocument)

	// Nothing answered, so nothing recorded.
	require.Empty(t, r.Chats())
}

func TestAnswerWhenQuestionEmbeddingFails(t *testing.T) {
	ai := &fakeAI{embedErr: errors.New("api down")}
	svc, r, propertyID := setup(t, ai)
	ctx := context.Background()

	require.NoError(t, r.ReplaceEmbeddings(ctx, propertyID, []service.Embedding{
		{Chunk: "chunk", Vector: []float64{1, 0, 0}},
	}))

	_, err := svc.Answer(ctx, propertyID, nil, "Anything?")
	require.ErrorIs(t, err, service.ErrEmbeddingFailed)
	require.Empty(t, r.Chats())
}

func TestAnswerFallsBackWhenCompletionFails(t *testing.T) {
	ai := &fakeAI{completeErr: errors.New("api down")}
	svc, r, propertyID := setup(t, ai)
	ctx := context.Background()

	require.NoError(t, r.ReplaceEmbeddings(ctx, propertyID, []service.Embedding{
		{Chunk: "chunk", Vector: []float64{1, 0, 0}},
	}))

	answer, err := svc.Answer(ctx, propertyID, nil, "Anything?")
	require.NoError(t, err)
	require.Equal(t, service.FallbackAnswer, answer)

	// The fallback reply is still a reply, so the chat is recorded.
	chats := r.Chats()
	require.Len(t, chats, 1)
	require.Equal(t, service.FallbackAnswer, chats[0].Answer)
}

func TestAnswerUnknownProperty(t *testing.T) {
	svc, _, _ := setup(t, &fakeAI{})

	_, err := svc.Answer(context.Background(), uuid.New(), nil, "Anything?")
	require.ErrorIs(t, err, service.ErrPropertyNotFound)
}
