// Package candidate builds the prompts behind both conversation pipelines
// and drives the LLM: the first-person candidate persona that answers
// interviewer questions, and the coaching assistant behind the freeform
// review chat. Each reply is grounded in the résumé via the session's
// vector index.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mockview/mockview/internal/interview"
	"github.com/mockview/mockview/internal/observe"
	"github.com/mockview/mockview/internal/store"
	"github.com/mockview/mockview/pkg/provider/embeddings"
	"github.com/mockview/mockview/pkg/provider/llm"
	"github.com/mockview/mockview/pkg/types"
)

const (
	defaultTopK        = 4
	defaultMaxTokens   = 700
	defaultTemperature = 0.7
)

// Config assembles a Generator. LLM is required; Embedder and Index are
// optional as a pair — without them replies are generated from the CV
// summary and history alone.
type Config struct {
	LLM      llm.Provider
	Embedder embeddings.Provider
	Index    store.ResumeIndex

	// TopK is how many résumé chunks are retrieved per question. Default 4.
	TopK int

	// MaxTokens caps each reply. Default 700.
	MaxTokens int

	// Temperature for generation. Default 0.7.
	Temperature float64

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Generator implements [interview.Generator]. Safe for concurrent use.
type Generator struct {
	llm         llm.Provider
	embedder    embeddings.Provider
	index       store.ResumeIndex
	topK        int
	maxTokens   int
	temperature float64
	logger      *slog.Logger
	metrics     *observe.Metrics
}

var _ interview.Generator = (*Generator)(nil)

// New creates a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.LLM == nil {
		return nil, errors.New("candidate: config: llm provider is required")
	}
	if (cfg.Embedder == nil) != (cfg.Index == nil) {
		return nil, errors.New("candidate: config: embedder and index must be set together")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Generator{
		llm:         cfg.LLM,
		embedder:    cfg.Embedder,
		index:       cfg.Index,
		topK:        cfg.TopK,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}, nil
}

// Reply implements [interview.Generator]. Résumé retrieval is best-effort:
// an index failure degrades the answer, it does not fail the turn.
func (g *Generator) Reply(ctx context.Context, req interview.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", errors.New("candidate: empty question")
	}

	excerpts := g.retrieve(ctx, req)

	creq := llm.CompletionRequest{
		SystemPrompt: g.systemPrompt(req, excerpts),
		Messages:     append(historyMessages(req.History), types.Message{Role: "user", Content: req.Question}),
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
	}

	resp, err := g.llm.Complete(ctx, creq)
	if err != nil {
		g.metrics.RecordProviderError(ctx, "llm", string(req.Pipeline))
		return "", fmt.Errorf("candidate: completion: %w", err)
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", errors.New("candidate: model returned an empty reply")
	}
	return reply, nil
}

// retrieve embeds the question and pulls the closest résumé chunks for the
// session. Any failure is logged and returns no excerpts.
func (g *Generator) retrieve(ctx context.Context, req interview.GenerationRequest) []string {
	if g.embedder == nil || g.index == nil {
		return nil
	}

	start := time.Now()
	vec, err := g.embedder.Embed(ctx, req.Question)
	g.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.logger.Warn("question embedding failed, replying without résumé context",
			"session_id", req.SessionID, "error", err)
		return nil
	}

	results, err := g.index.SearchChunks(ctx, req.SessionID, vec, g.topK)
	if err != nil {
		g.logger.Warn("résumé retrieval failed, replying without résumé context",
			"session_id", req.SessionID, "error", err)
		return nil
	}

	excerpts := make([]string, 0, len(results))
	for _, r := range results {
		excerpts = append(excerpts, r.Chunk.Content)
	}
	return excerpts
}

// systemPrompt renders the pipeline-specific instruction.
func (g *Generator) systemPrompt(req interview.GenerationRequest, excerpts []string) string {
	var sb strings.Builder

	switch req.Pipeline {
	case types.PipelineLiveQA:
		fmt.Fprintf(&sb, "You are a job candidate in a mock interview for the position of %s at %s. ",
			fallback(req.Role, "the advertised role"), fallback(req.Company, "the company"))
		sb.WriteString("Answer the interviewer's question in the first person, as the candidate. ")
		sb.WriteString("Be specific and conversational, draw on the candidate profile below, and keep answers under two minutes of spoken time. ")
		sb.WriteString("Never mention that this is a simulation.")
	default:
		fmt.Fprintf(&sb, "You are an interview coach helping a candidate prepare for a %s interview at %s. ",
			fallback(req.Role, "job"), fallback(req.Company, "their target company"))
		sb.WriteString("Answer their questions directly, give honest feedback on their answers so far, and suggest concrete improvements.")
	}

	if req.CVSummary != "" {
		sb.WriteString("\n\nCandidate profile:\n")
		sb.WriteString(req.CVSummary)
	}
	if len(excerpts) > 0 {
		sb.WriteString("\n\nRelevant résumé excerpts:\n")
		for _, e := range excerpts {
			sb.WriteString("- ")
			sb.WriteString(e)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// historyMessages maps ledger entries onto LLM conversation roles: the
// asking side of either pipeline becomes "user", the responding side
// "assistant".
func historyMessages(history []types.Entry) []types.Message {
	msgs := make([]types.Message, 0, len(history))
	for _, e := range history {
		role := "user"
		if e.Role.IsAnswer() {
			role = "assistant"
		}
		msgs = append(msgs, types.Message{Role: role, Content: e.Text})
	}
	return msgs
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
