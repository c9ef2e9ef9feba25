package store

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/queryglass/queryglass/pkg/database"
	"github.com/queryglass/queryglass/pkg/models"
)

// pgRepository stores embedded corpus entries in the semantic_documents
// table, using pgvector cosine distance for similarity search.
type pgRepository struct {
	db *database.DB
}

func NewPgRepository(db *database.DB) *pgRepository {
	return &pgRepository{db: db}
}

var _ vectorRepository = (*pgRepository)(nil)

func (r *pgRepository) UpsertBatch(ctx context.Context, entries []models.SchemaVectorEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO semantic_documents
			(id, content, entry_type, embedding, table_name, column_name, title, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			entry_type = EXCLUDED.entry_type,
			embedding = EXCLUDED.embedding,
			table_name = EXCLUDED.table_name,
			column_name = EXCLUDED.column_name,
			title = EXCLUDED.title,
			metadata = EXCLUDED.metadata,
			updated_at = now()`

	for _, e := range entries {
		_, err := tx.Exec(ctx, query,
			e.ID,
			e.Content,
			string(e.Type),
			pgvector.NewVector(e.Embedding),
			e.TableName,
			e.ColumnName,
			e.Title,
			e.Metadata,
		)
		if err != nil {
			return fmt.Errorf("upserting entry %s: %w", e.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *pgRepository) Search(ctx context.Context, embedding []float32, limit int) ([]scoredEntry, error) {
	const query = `
		SELECT id, content, entry_type, table_name, column_name, title, metadata,
		       1 - (embedding <=> $1) AS similarity
		FROM semantic_documents
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("querying semantic_documents: %w", err)
	}
	defer rows.Close()

	var results []scoredEntry
	for rows.Next() {
		var sc scoredEntry
		var entryType string
		err := rows.Scan(
			&sc.Entry.ID,
			&sc.Entry.Content,
			&entryType,
			&sc.Entry.TableName,
			&sc.Entry.ColumnName,
			&sc.Entry.Title,
			&sc.Entry.Metadata,
			&sc.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		sc.Entry.Type = models.EntryType(entryType)
		results = append(results, sc)
	}
	return results, rows.Err()
}

func (r *pgRepository) Clear(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM semantic_documents`)
	if err != nil {
		return fmt.Errorf("clearing semantic_documents: %w", err)
	}
	return nil
}
