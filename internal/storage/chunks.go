package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/user/careline/internal/types"
)

// encodeFloat32s packs an embedding into a little-endian byte blob.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s unpacks a little-endian byte blob into an embedding.
func decodeFloat32s(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// InsertChunks stores indexed chunks in one transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk insert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, content, embedding, source, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		metaJSON, err := json.Marshal(metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			string(c.ID), c.Content, encodeFloat32s(c.Embedding),
			c.Source, string(metaJSON), toMillis(createdAt)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// AllChunks returns every indexed chunk in insertion order.
func (s *Store) AllChunks(ctx context.Context) ([]*types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, source, metadata, created_at
		FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*types.Chunk
	for rows.Next() {
		var c types.Chunk
		var id, metaJSON string
		var blob []byte
		var created int64
		if err := rows.Scan(&id, &c.Content, &blob, &c.Source, &metaJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.ID = types.ChunkID(id)
		c.Embedding = decodeFloat32s(blob)
		c.CreatedAt = fromMillis(created)
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			c.Metadata = map[string]string{}
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// DeleteChunksBySource removes every chunk indexed from the given source.
func (s *Store) DeleteChunksBySource(ctx context.Context, source string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks by source: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountChunks returns the number of indexed chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}
