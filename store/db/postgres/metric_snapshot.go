package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/finpilot/advisor/store"
)

// UpsertMetricSnapshot inserts a metric snapshot or accumulates counters
// into the existing row for the same hour bucket, method and variant.
func (d *DB) UpsertMetricSnapshot(ctx context.Context, upsert *store.UpsertMetricSnapshot) (*store.MetricSnapshot, error) {
	stmt := `
		INSERT INTO metric_snapshot (hour_bucket, method, variant, generation_count, success_count, latency_sum_ms, citation_count, rec_count)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT (hour_bucket, method, variant)
		DO UPDATE SET
			generation_count = metric_snapshot.generation_count + EXCLUDED.generation_count,
			success_count = metric_snapshot.success_count + EXCLUDED.success_count,
			latency_sum_ms = metric_snapshot.latency_sum_ms + EXCLUDED.latency_sum_ms,
			citation_count = metric_snapshot.citation_count + EXCLUDED.citation_count,
			rec_count = metric_snapshot.rec_count + EXCLUDED.rec_count
		RETURNING id, generation_count, success_count, latency_sum_ms, citation_count, rec_count
	`

	snapshot := &store.MetricSnapshot{
		HourBucket: upsert.HourBucket,
		Method:     upsert.Method,
		Variant:    upsert.Variant,
	}
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.HourBucket,
		upsert.Method,
		upsert.Variant,
		upsert.GenerationCount,
		upsert.SuccessCount,
		upsert.LatencySumMs,
		upsert.CitationCount,
		upsert.RecCount,
	).Scan(
		&snapshot.ID,
		&snapshot.GenerationCount,
		&snapshot.SuccessCount,
		&snapshot.LatencySumMs,
		&snapshot.CitationCount,
		&snapshot.RecCount,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert metric snapshot")
	}

	return snapshot, nil
}

// ListMetricSnapshots lists metric snapshots.
func (d *DB) ListMetricSnapshots(ctx context.Context, find *store.FindMetricSnapshot) ([]*store.MetricSnapshot, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.Method != nil {
		where, args = append(where, "method = "+placeholder(len(args)+1)), append(args, *find.Method)
	}
	if find.Variant != nil {
		where, args = append(where, "variant = "+placeholder(len(args)+1)), append(args, *find.Variant)
	}
	if find.StartTime != nil {
		where, args = append(where, "hour_bucket >= "+placeholder(len(args)+1)), append(args, *find.StartTime)
	}
	if find.EndTime != nil {
		where, args = append(where, "hour_bucket < "+placeholder(len(args)+1)), append(args, *find.EndTime)
	}

	query := `
		SELECT id, hour_bucket, method, variant, generation_count, success_count, latency_sum_ms, citation_count, rec_count
		FROM metric_snapshot
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY hour_bucket DESC
	`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list metric snapshots")
	}
	defer rows.Close()

	list := []*store.MetricSnapshot{}
	for rows.Next() {
		var snapshot store.MetricSnapshot
		err := rows.Scan(
			&snapshot.ID,
			&snapshot.HourBucket,
			&snapshot.Method,
			&snapshot.Variant,
			&snapshot.GenerationCount,
			&snapshot.SuccessCount,
			&snapshot.LatencySumMs,
			&snapshot.CitationCount,
			&snapshot.RecCount,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan metric snapshot")
		}
		list = append(list, &snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DeleteMetricSnapshots deletes metric snapshots matching the condition.
func (d *DB) DeleteMetricSnapshots(ctx context.Context, delete *store.DeleteMetricSnapshot) error {
	where, args := []string{"1 = 1"}, []any{}

	if delete.BeforeTime != nil {
		where, args = append(where, "hour_bucket < "+placeholder(len(args)+1)), append(args, *delete.BeforeTime)
	}

	stmt := `DELETE FROM metric_snapshot WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete metric snapshots")
	}
	return nil
}
