// Package postgres はインデックスのスナップショットをPostgreSQL(pgvector)に永続化する。
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/storymap/internal/core/corpus"
	"github.com/jinford/storymap/internal/core/index"
	"github.com/jinford/storymap/pkg/db"
)

// SnapshotRepository は core/index.Store を実装する PostgreSQL リポジトリ。
type SnapshotRepository struct {
	db *db.DB
}

// NewSnapshotRepository は新しい SnapshotRepository を返す。
func NewSnapshotRepository(database *db.DB) *SnapshotRepository {
	return &SnapshotRepository{db: database}
}

var _ index.Store = (*SnapshotRepository)(nil)

// Migrate はスナップショット保存に必要なスキーマを作成する
func (r *SnapshotRepository) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS index_snapshots (
			id          uuid PRIMARY KEY,
			document_id text NOT NULL UNIQUE,
			dimension   integer NOT NULL,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS index_entries (
			snapshot_id uuid NOT NULL REFERENCES index_snapshots(id) ON DELETE CASCADE,
			ordinal     integer NOT NULL,
			content     text NOT NULL,
			tokens      integer NOT NULL,
			embedding   vector NOT NULL,
			PRIMARY KEY (snapshot_id, ordinal)
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Save はスナップショットを保存する。
// 同じ文書の既存スナップショットは置き換えられる。
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *index.Snapshot) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM index_snapshots WHERE document_id = $1`,
		snapshot.DocumentID,
	); err != nil {
		return fmt.Errorf("failed to delete previous snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO index_snapshots (id, document_id, dimension) VALUES ($1, $2, $3)`,
		snapshot.ID, snapshot.DocumentID, snapshot.Dimension,
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for _, entry := range snapshot.Entries {
		batch.Queue(
			`INSERT INTO index_entries (snapshot_id, ordinal, content, tokens, embedding) VALUES ($1, $2, $3, $4, $5)`,
			snapshot.ID, entry.Chunk.Ordinal, entry.Chunk.Text, entry.Chunk.Tokens, pgvector.NewVector(entry.Vector),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load は文書IDに対応するスナップショットを読み込む
func (r *SnapshotRepository) Load(ctx context.Context, documentID string) (*index.Snapshot, error) {
	var (
		id        uuid.UUID
		dimension int
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, dimension FROM index_snapshots WHERE document_id = $1`,
		documentID,
	).Scan(&id, &dimension)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %q", index.ErrSnapshotNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT ordinal, content, tokens, embedding FROM index_entries WHERE snapshot_id = $1 ORDER BY ordinal`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	var entries []index.Entry
	for rows.Next() {
		var (
			ordinal int
			content string
			tokens  int
			vec     pgvector.Vector
		)
		if err := rows.Scan(&ordinal, &content, &tokens, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, index.Entry{
			Chunk:  corpus.Chunk{Ordinal: ordinal, Text: content, Tokens: tokens},
			Vector: vec.Slice(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return &index.Snapshot{
		ID:         id,
		DocumentID: documentID,
		Dimension:  dimension,
		Entries:    entries,
	}, nil
}
