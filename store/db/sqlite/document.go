package sqlite

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/finpilot/advisor/store"
)

// UpsertDocument inserts or updates a document by id.
func (d *DB) UpsertDocument(ctx context.Context, doc *store.Document) (*store.Document, error) {
	metadataBytes, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal document metadata")
	}
	embeddingBytes, err := json.Marshal(doc.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal document embedding")
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
	`

	_, err = d.db.ExecContext(ctx, stmt,
		doc.ID,
		doc.DocType,
		doc.Content,
		string(metadataBytes),
		string(embeddingBytes),
		doc.CreatedTs,
		doc.UpdatedTs,
	)
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
		inList := []string{}
		for _, docType := range find.DocTypes {
			inList = append(inList, placeholder(len(args)+1))
			args = append(args, docType)
		}
		where = append(where, "doc_type IN ("+strings.Join(inList, ", ")+")")
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
		var doc store.Document
		var metadataStr, embeddingStr string
		err := rows.Scan(
			&doc.ID,
			&doc.DocType,
			&doc.Content,
			&metadataStr,
			&embeddingStr,
			&doc.CreatedTs,
			&doc.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}

		if metadataStr != "" {
			if err := json.Unmarshal([]byte(metadataStr), &doc.Metadata); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal document metadata")
			}
		}
		if embeddingStr != "" {
			if err := json.Unmarshal([]byte(embeddingStr), &doc.Embedding); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal document embedding")
			}
		}

		list = append(list, &doc)
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

// VectorSearch is NOT supported for SQLite.
// Vector similarity search requires PostgreSQL with pgvector extension.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithDistance, error) {
	return nil, errors.New("vector search requires PostgreSQL with pgvector extension")
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
// the given metadata key, using SQLite's json_extract.
func (d *DB) MetadataValueCounts(ctx context.Context, key string) (map[string]int64, error) {
	query := `
		SELECT json_extract(metadata, '$.' || ` + placeholder(1) + `), COUNT(*)
		FROM document
		WHERE json_extract(metadata, '$.' || ` + placeholder(2) + `) IS NOT NULL
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
