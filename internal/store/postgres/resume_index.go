package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mockview/mockview/internal/store"
)

// IndexChunks implements [store.ResumeIndex]. Chunks are upserted; a chunk
// with an existing ID is completely replaced.
func (s *Store) IndexChunks(ctx context.Context, chunks []store.ResumeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const q = `
		INSERT INTO resume_chunks (id, session_id, content, embedding, seq)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    session_id = EXCLUDED.session_id,
		    content    = EXCLUDED.content,
		    embedding  = EXCLUDED.embedding,
		    seq        = EXCLUDED.seq`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("resume index: index chunks: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		vec := pgvector.NewVector(c.Embedding)
		if _, err := tx.Exec(ctx, q, c.ID, c.SessionID, c.Content, vec, c.Seq); err != nil {
			return fmt.Errorf("resume index: index chunk %q: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("resume index: index chunks: commit: %w", err)
	}
	return nil
}

// SearchChunks implements [store.ResumeIndex]. It finds the topK chunks for
// the session whose embeddings are closest (cosine distance) to the supplied
// query embedding, most similar first.
func (s *Store) SearchChunks(ctx context.Context, sessionID string, embedding []float32, topK int) ([]store.ChunkResult, error) {
	const q = `
		SELECT id, session_id, content, embedding, seq,
		       embedding <=> $1 AS distance
		FROM   resume_chunks
		WHERE  session_id = $2
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), sessionID, topK)
	if err != nil {
		return nil, fmt.Errorf("resume index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ChunkResult, error) {
		var (
			cr  store.ChunkResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&cr.Chunk.ID,
			&cr.Chunk.SessionID,
			&cr.Chunk.Content,
			&vec,
			&cr.Chunk.Seq,
			&cr.Distance,
		); err != nil {
			return store.ChunkResult{}, err
		}
		cr.Chunk.Embedding = vec.Slice()
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resume index: scan rows: %w", err)
	}
	if results == nil {
		results = []store.ChunkResult{}
	}
	return results, nil
}
