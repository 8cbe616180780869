package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mockview/mockview/internal/observe"
	"github.com/mockview/mockview/internal/store"
	"github.com/mockview/mockview/pkg/provider/embeddings"
	"github.com/mockview/mockview/pkg/provider/llm"
	"github.com/mockview/mockview/pkg/types"
)

// ErrEmptyResume is returned when the submitted résumé has no content.
var ErrEmptyResume = errors.New("resume: empty résumé text")

// summarySystemPrompt drives the one-shot structured CV summary the
// candidate persona speaks from.
const summarySystemPrompt = `You summarise résumés for interview preparation. Produce a concise, structured summary of the candidate's profile with these sections: professional headline, years of experience, key skills, notable roles and companies, education, and standout achievements. Write in the third person, plain text, no markdown. Keep it under 250 words.`

// IngestorConfig assembles an Ingestor. Embedder, Index, Sessions, and LLM
// are required.
type IngestorConfig struct {
	Chunker  *Chunker
	Embedder embeddings.Provider
	Index    store.ResumeIndex
	Sessions store.Sessions
	LLM      llm.Provider

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Ingestor runs the résumé pipeline for a session: chunk, embed, index,
// summarise. Safe for concurrent use.
type Ingestor struct {
	chunker  *Chunker
	embedder embeddings.Provider
	index    store.ResumeIndex
	sessions store.Sessions
	llm      llm.Provider
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// NewIngestor creates an Ingestor.
func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	switch {
	case cfg.Embedder == nil:
		return nil, errors.New("resume: config: embedder is required")
	case cfg.Index == nil:
		return nil, errors.New("resume: config: index is required")
	case cfg.Sessions == nil:
		return nil, errors.New("resume: config: sessions store is required")
	case cfg.LLM == nil:
		return nil, errors.New("resume: config: llm provider is required")
	}
	if cfg.Chunker == nil {
		cfg.Chunker = NewChunker()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Ingestor{
		chunker:  cfg.Chunker,
		embedder: cfg.Embedder,
		index:    cfg.Index,
		sessions: cfg.Sessions,
		llm:      cfg.LLM,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Ingest chunks and indexes the résumé for sessionID, then generates and
// stores the CV summary. Chunk IDs are derived from the session and chunk
// position, so re-ingesting replaces the previous index instead of
// duplicating it.
//
// The summary stage is best-effort: a generation failure leaves the index
// intact, logs a warning, and returns an empty summary with a nil error.
func (i *Ingestor) Ingest(ctx context.Context, sessionID, resumeText string) (string, error) {
	pieces := i.chunker.Split(resumeText)
	if len(pieces) == 0 {
		return "", ErrEmptyResume
	}

	embedStart := time.Now()
	vectors, err := i.embedder.EmbedBatch(ctx, pieces)
	i.metrics.EmbeddingDuration.Record(ctx, time.Since(embedStart).Seconds())
	if err != nil {
		return "", fmt.Errorf("resume: embed %d chunks: %w", len(pieces), err)
	}
	if len(vectors) != len(pieces) {
		return "", fmt.Errorf("resume: embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	chunks := make([]store.ResumeChunk, len(pieces))
	for n, piece := range pieces {
		chunks[n] = store.ResumeChunk{
			ID:        fmt.Sprintf("%s-cv-%04d", sessionID, n),
			SessionID: sessionID,
			Content:   piece,
			Embedding: vectors[n],
			Seq:       n,
		}
	}
	if err := i.index.IndexChunks(ctx, chunks); err != nil {
		return "", fmt.Errorf("resume: index chunks: %w", err)
	}
	i.logger.Info("résumé indexed", "session_id", sessionID, "chunks", len(chunks), "model", i.embedder.ModelID())

	summary, err := i.summarise(ctx, resumeText)
	if err != nil {
		i.logger.Warn("cv summary generation failed", "session_id", sessionID, "error", err)
		return "", nil
	}
	if err := i.sessions.SetCVSummary(ctx, sessionID, summary); err != nil {
		i.logger.Warn("cv summary not persisted", "session_id", sessionID, "error", err)
	}
	return summary, nil
}

func (i *Ingestor) summarise(ctx context.Context, resumeText string) (string, error) {
	resp, err := i.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: resumeText},
		},
		Temperature: 0.2,
		MaxTokens:   512,
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", errors.New("model returned an empty summary")
	}
	return summary, nil
}
