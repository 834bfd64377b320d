// Package service answers buyer questions about a property from its ingested
// description chunks.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/assistant/be/chunker"
)

// Domain sentinel errors.
var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrNoDocument       = errors.New("property has no ingested document")
	ErrEmbeddingFailed  = errors.New("question embedding failed")
)

// FallbackAnswer is returned when the completion model cannot produce a
// reply. Missing data and embedding failures surface as errors instead.
const FallbackAnswer = "I don't have enough information about this property yet. " +
	"Please contact the listing agent for details."

// topChunks is how many best-matching chunks feed the completion prompt.
const topChunks = 3

// Embedding pairs a stored chunk with its vector. Order reflects ingestion
// order and is used to break similarity ties.
type Embedding struct {
	Chunk  string
	Vector []float64
}

// Chat is one recorded question and answer.
type Chat struct {
	PropertyID uuid.UUID
	AccountID  *uuid.UUID
	Question   string
	Answer     string
}

// Repository abstracts embedding and chat persistence.
type Repository interface {
	PropertyExists(ctx context.Context, propertyID uuid.UUID) (bool, error)
	ReplaceEmbeddings(ctx context.Context, propertyID uuid.UUID, embeddings []Embedding) error
	ListEmbeddings(ctx context.Context, propertyID uuid.UUID) ([]Embedding, error)
	RecordChat(ctx context.Context, chat Chat) error
}

// AI abstracts the model provider.
type AI interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service provides document ingestion and question answering.
type Service struct {
	repo     Repository
	ai       AI
	logger   *zap.Logger
	chunkLen int
}

// New constructs a Service with required dependencies.
func New(repo Repository, ai AI, logger *zap.Logger, chunkLen int) *Service {
	if repo == nil {
		panic("assistant repo is required")
	}
	if ai == nil {
		panic("ai client is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if chunkLen <= 0 {
		chunkLen = chunker.DefaultMaxLen
	}
	return &Service{repo: repo, ai: ai, logger: logger, chunkLen: chunkLen}
}

// Ingest chunks the document, embeds every chunk, and replaces whatever was
// stored for the property before. Returns the number of stored chunks.
func (s *Service) Ingest(ctx context.Context, propertyID uuid.UUID, document string) (int, error) {
	exists, err := s.repo.PropertyExists(ctx, propertyID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrPropertyNotFound
	}

	chunks := chunker.Split(document, s.chunkLen)
	if len(chunks) == 0 {
		return 0, ErrNoDocument
	}

	// Embed chunk by chunk so one bad chunk cannot sink the whole document.
	embeddings := make([]Embedding, 0, len(chunks))
	for _, chunk := range chunks {
		vectors, err := s.ai.Embed(ctx, []string{chunk})
		if err != nil || len(vectors) != 1 {
			s.logger.Warn("chunk embedding skipped",
				zap.String("property_id", propertyID.String()), zap.Error(err))
			continue
		}
		embeddings = append(embeddings, Embedding{Chunk: chunk, Vector: vectors[0]})
	}
	if len(embeddings) == 0 {
		return 0, errors.New("embed document: every chunk failed")
	}

	if err := s.repo.ReplaceEmbeddings(ctx, propertyID, embeddings); err != nil {
		return 0, err
	}
	return len(embeddings), nil
}

// Answer replies to a question about the property. A property without
// ingested vectors yields ErrNoDocument and a failed question embedding
// yields ErrEmbeddingFailed; only a completion failure degrades to the
// fallback answer. The chat is recorded whenever a reply is produced.
func (s *Service) Answer(ctx context.Context, propertyID uuid.UUID, accountID *uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is required")
	}

	exists, err := s.repo.PropertyExists(ctx, propertyID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrPropertyNotFound
	}

	answer, err := s.answerFromEmbeddings(ctx, propertyID, question)
	if err != nil {
		return "", err
	}

	if err := s.repo.RecordChat(ctx, Chat{
		PropertyID: propertyID,
		AccountID:  accountID,
		Question:   question,
		Answer:     answer,
	}); err != nil {
		s.logger.Warn("chat record failed",
			zap.String("property_id", propertyID.String()), zap.Error(err))
	}

	return answer, nil
}

func (s *Service) answerFromEmbeddings(ctx context.Context, propertyID uuid.UUID, question string) (string, error) {
	embeddings, err := s.repo.ListEmbeddings(ctx, propertyID)
	if err != nil {
		return "", fmt.Errorf("load embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		return "", ErrNoDocument
	}

	vectors, err := s.ai.Embed(ctx, []string{question})
	if err != nil || len(vectors) != 1 {
		s.logger.Error("question embedding failed",
			zap.String("property_id", propertyID.String()), zap.Error(err))
		return "", ErrEmbeddingFailed
	}

	best := rankChunks(embeddings, vectors[0], topChunks)
	prompt := fmt.Sprintf("Property details:\n%s\n\nQuestion: %s", strings.Join(best, "\n"), question)

	answer, err := s.ai.Complete(ctx,
		"You are a real estate assistant. Answer only from the property details given. "+
			"If the details do not cover the question, say you do not know.",
		prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		s.logger.Error("completion failed", zap.Error(err))
		return FallbackAnswer, nil
	}
	return answer, nil
}

// rankChunks returns the text of the top-k chunks by cosine similarity.
// The sort is stable over ingestion order, so equal scores keep the earlier
// chunk first.
func rankChunks(embeddings []Embedding, query []float64, k int) []string {
	type scored struct {
		chunk string
		score float64
	}

	scoredChunks := make([]scored, 0, len(embeddings))
	for _, e := range embeddings {
		scoredChunks = append(scoredChunks, scored{chunk: e.Chunk, score: cosine(e.Vector, query)})
	}

	sort.SliceStable(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].score > scoredChunks[j].score
	})

	if k > len(scoredChunks) {
		k = len(scoredChunks)
	}
	out := make([]string, 0, k)
	for _, sc := range scoredChunks[:k] {
		out = append(out, sc.chunk)
	}
	return out
}

// cosine returns the cosine similarity of two vectors, 0 for mismatched or
// zero-magnitude input.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
