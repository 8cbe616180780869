// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. The résumé
// index stores these vectors in pgvector and ranks CV chunks against a
// question embedding at generation time, so every vector a provider
// returns must live in one model's space.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors from one Provider instance share the dimensionality
// reported by Dimensions; vectors from different instances must never be
// compared unless the caller knows both use the same model.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns the vector for a single text. The text is passed
	// through verbatim; any model-specific formatting (query prefixes
	// and the like) is the caller's job.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one backend call. The result
	// has the same length and order as texts. No partial results: on
	// error the whole slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed vector length this provider produces,
	// constant for the provider's lifetime.
	Dimensions() int

	// ModelID names the underlying model ("text-embedding-3-small"),
	// recorded alongside stored vectors so stale index rows from an
	// earlier model can be detected.
	ModelID() string
}
