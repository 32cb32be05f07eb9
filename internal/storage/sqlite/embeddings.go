package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kgraphd/kgraphd/internal/storage"
)

// encodeVector serializes a []float32 to a little-endian byte blob, the
// same layout the teacher uses for its other fixed-width binary columns.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// Put upserts the (entityID, modelName) embedding row, deriving dimensions
// from the vector's length. Regeneration goes through this same upsert: an
// existing row has its dimensions, vector and created_at overwritten.
func (s *Store) Put(ctx context.Context, entityID int64, modelName string, vector []float32) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings(entity_id, model_name, dimensions, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, model_name) DO UPDATE SET
			dimensions = excluded.dimensions,
			embedding = excluded.embedding,
			created_at = excluded.created_at`,
		entityID, modelName, len(vector), encodeVector(vector), now)
	if err != nil {
		return wrapDBError("vector_put", err)
	}
	return nil
}

// BatchPut upserts every entry in one transaction.
func (s *Store) BatchPut(ctx context.Context, entries []storage.VectorEntry) error {
	return s.runTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, e := range entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO embeddings(entity_id, model_name, dimensions, embedding, created_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(entity_id, model_name) DO UPDATE SET
					dimensions = excluded.dimensions,
					embedding = excluded.embedding,
					created_at = excluded.created_at`,
				e.EntityID, e.ModelName, len(e.Vector), encodeVector(e.Vector), now)
			if err != nil {
				return wrapDBError("vector_batch_put", err)
			}
		}
		return nil
	})
}

// Get returns the vector for (entityID, modelName). If modelName is empty,
// any one embedding for the entity is returned, for compatibility with
// single-model callers that don't track which model they used.
func (s *Store) Get(ctx context.Context, entityID int64, modelName string) ([]float32, error) {
	var (
		row *sql.Row
	)
	if modelName == "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT embedding FROM embeddings WHERE entity_id = ? LIMIT 1`, entityID)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT embedding FROM embeddings WHERE entity_id = ? AND model_name = ?`, entityID, modelName)
	}
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapDBError("vector_get", err)
	}
	return decodeVector(blob), nil
}

// Exists reports whether an embedding row is present for (entityID,
// modelName). If modelName is empty, reports whether any embedding exists
// for the entity under any model.
func (s *Store) Exists(ctx context.Context, entityID int64, modelName string) (bool, error) {
	var n int
	var err error
	if modelName == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM embeddings WHERE entity_id = ?`, entityID).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM embeddings WHERE entity_id = ? AND model_name = ?`, entityID, modelName).Scan(&n)
	}
	if err != nil {
		return false, wrapDBError("vector_exists", err)
	}
	return n > 0, nil
}

// Delete removes the (entityID, modelName) embedding row. If modelName is
// empty, deletes all embeddings for the entity across every model.
func (s *Store) Delete(ctx context.Context, entityID int64, modelName string) error {
	var err error
	if modelName == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE entity_id = ?`, entityID)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE entity_id = ? AND model_name = ?`, entityID, modelName)
	}
	if err != nil {
		return wrapDBError("vector_delete", err)
	}
	return nil
}

// Search performs a full scan of the embeddings for modelName, computing
// cosine similarity against queryVector in process, keeping results with
// similarity >= threshold, and returning the top k by descending
// similarity. Linear scan is the documented scaling stance up to ~10^4
// entities; the interface is shaped to allow an ANN backend later without
// touching callers.
func (s *Store) Search(ctx context.Context, queryVector []float32, k int, threshold float64, modelName string) ([]storage.VectorMatch, error) {
	if modelName == "" {
		return nil, fmt.Errorf("vector search requires a model_name")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, embedding FROM embeddings WHERE model_name = ?`, modelName)
	if err != nil {
		return nil, wrapDBError("vector_search", err)
	}
	defer rows.Close()

	var matches []storage.VectorMatch
	for rows.Next() {
		var entityID int64
		var blob []byte
		if err := rows.Scan(&entityID, &blob); err != nil {
			return nil, wrapDBError("vector_search", err)
		}
		sim := cosineSimilarity(queryVector, decodeVector(blob))
		if sim >= threshold {
			matches = append(matches, storage.VectorMatch{EntityID: entityID, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("vector_search", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Either operand having zero norm returns 0 rather than dividing
// by zero.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
