package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/finpilot/advisor/store"
)

// UpsertDocument inserts or updates a document by id. Re-adding an id
// replaces the stored content, metadata and embedding.
func (d *DB) UpsertDocument(ctx context.Context, doc *store.Document) (*store.Document, error) {
	metadataBytes, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal document metadata")
	}

	stmt := `
		INSERT INTO document (id, doc_type, content, metadata, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (id)
		DO UPDATE SET
			doc_type = EXCLUDED.doc_type,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`

	vector := pgvector.NewVector(doc.Embedding)
	err = d.db.QueryRowContext(ctx, stmt,
		doc.ID,
		doc.DocType,
		doc.Content,
		metadataBytes,
		vector,
		doc.CreatedTs,
		doc.UpdatedTs,
	).Scan(&doc.CreatedTs, &doc.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert document")
	}

	return doc, nil
}

// ListDocuments lists documents.
func (d *DB) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.DocType != nil {
		where, args = append(where, "doc_type = "+placeholder(len(args)+1)), append(args, *find.DocType)
	}
	if len(find.DocTypes) > 0 {
		where, args = append(where, "doc_type = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.DocTypes))
	}

	query := `
		SELECT id, doc_type, content, metadata, embedding, created_ts, updated_ts
		FROM document
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list documents")
	}
	defer rows.Close()

	list := []*store.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DeleteDocuments deletes documents matching the condition.
func (d *DB) DeleteDocuments(ctx context.Context, delete *store.DeleteDocument) error {
	where, args := []string{"1 = 1"}, []any{}

	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}
	if delete.DocType != nil {
		where, args = append(where, "doc_type = "+placeholder(len(args)+1)), append(args, *delete.DocType)
	}

	stmt := `DELETE FROM document WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete documents")
	}
	return nil
}

// CountDocuments counts documents matching the condition.
func (d *DB) CountDocuments(ctx context.Context, find *store.FindDocument) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.DocType != nil {
		where, args = append(where, "doc_type = "+placeholder(len(args)+1)), append(args, *find.DocType)
	}

	query := `SELECT COUNT(*) FROM document WHERE ` + strings.Join(where, " AND ")

	var count int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count documents")
	}
	return count, nil
}

// VectorSearch performs nearest-neighbor search using pgvector.
// The <=> operator computes cosine distance, so ordering ascending puts
// the most similar documents first.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithDistance, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	vector := pgvector.NewVector(opts.Vector)
	where, args := []string{"embedding IS NOT NULL"}, []any{vector}

	if len(opts.DocTypes) > 0 {
		where, args = append(where, "doc_type = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(opts.DocTypes))
	}

	query := `
		SELECT id, doc_type, content, metadata, embedding, created_ts, updated_ts,
			embedding <=> ` + placeholder(1) + ` AS distance
		FROM document
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY distance ASC
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.DocumentWithDistance{}
	for rows.Next() {
		var result store.DocumentWithDistance
		var doc store.Document
		var metadataBytes []byte
		var embedding pgvector.Vector

		err := rows.Scan(
			&doc.ID,
			&doc.DocType,
			&doc.Content,
			&metadataBytes,
			&embedding,
			&doc.CreatedTs,
			&doc.UpdatedTs,
			&result.Distance,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}

		doc.Embedding = embedding.Slice()
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &doc.Metadata); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal document metadata")
			}
		}

		result.Document = &doc
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// TypeCounts returns document counts grouped by document type.
func (d *DB) TypeCounts(ctx context.Context) ([]*store.TypeCount, error) {
	query := `SELECT doc_type, COUNT(*) FROM document GROUP BY doc_type ORDER BY doc_type`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count document types")
	}
	defer rows.Close()

	list := []*store.TypeCount{}
	for rows.Next() {
		var tc store.TypeCount
		if err := rows.Scan(&tc.DocType, &tc.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan type count")
		}
		list = append(list, &tc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// MetadataValueCounts returns document counts grouped by the value of
// the given metadata key.
func (d *DB) MetadataValueCounts(ctx context.Context, key string) (map[string]int64, error) {
	query := `
		SELECT metadata->>` + placeholder(1) + `, COUNT(*)
		FROM document
		WHERE metadata ? ` + placeholder(2) + `
		GROUP BY 1
	`

	rows, err := d.db.QueryContext(ctx, query, key, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count metadata values")
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var value string
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan metadata value count")
		}
		counts[value] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func scanDocument(rows interface{ Scan(...any) error }) (*store.Document, error) {
	var doc store.Document
	var metadataBytes []byte
	var embedding pgvector.Vector

	err := rows.Scan(
		&doc.ID,
		&doc.DocType,
		&doc.Content,
		&metadataBytes,
		&embedding,
		&doc.CreatedTs,
		&doc.UpdatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan document")
	}

	doc.Embedding = embedding.Slice()
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &doc.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal document metadata")
		}
	}

	return &doc, nil
}
