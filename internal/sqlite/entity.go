package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/repository"
)

// DefaultIDBatchSize is how many entity ids a generated-by cursor reads per
// query.
const DefaultIDBatchSize = 500

// EntityRepository stores original records and aggregations. It implements
// record.Repository and activity.EntityStore.
type EntityRepository struct {
	db        *DB
	batchSize int
}

// NewEntityRepository creates a new EntityRepository
func NewEntityRepository(db *DB) *EntityRepository {
	return &EntityRepository{db: db, batchSize: DefaultIDBatchSize}
}

// WithBatchSize sets how many ids generated-by cursors read per query.
func (r *EntityRepository) WithBatchSize(n int) *EntityRepository {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// SaveOriginal inserts or replaces an original record by id
func (r *EntityRepository) SaveOriginal(ctx context.Context, rec *record.OriginalRecord) error {
	body, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	sets, err := json.Marshal(nonNilStrings(rec.SetSpecs))
	if err != nil {
		return fmt.Errorf("failed to encode set specs: %w", err)
	}

	query := `
		INSERT INTO original_records (
			id, provider, source_id, datestamp, set_specs, deleted, content,
			content_type, record, generated_by, invalidated_at, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			source_id = excluded.source_id,
			datestamp = excluded.datestamp,
			set_specs = excluded.set_specs,
			deleted = excluded.deleted,
			content = excluded.content,
			content_type = excluded.content_type,
			record = excluded.record,
			generated_by = excluded.generated_by,
			invalidated_at = excluded.invalidated_at,
			modified_at = excluded.modified_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Provider,
		rec.SourceID,
		rec.Datestamp,
		string(sets),
		rec.Deleted,
		rec.Content,
		rec.ContentType,
		string(body),
		nullString(rec.GeneratedBy),
		formatTimePtr(rec.InvalidatedAt),
		formatTime(rec.CreatedAt),
		formatTime(rec.ModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save original record: %w", err)
	}
	return nil
}

// GetOriginal retrieves an original record by id
func (r *EntityRepository) GetOriginal(ctx context.Context, id string) (*record.OriginalRecord, error) {
	query := `
		SELECT
			id, provider, source_id, datestamp, set_specs, deleted, content,
			content_type, record, generated_by, invalidated_at, created_at, modified_at
		FROM original_records
		WHERE id = ?
	`
	var rec record.OriginalRecord
	var sets, body, createdAt, modifiedAt string
	var generatedBy, invalidatedAt sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Provider,
		&rec.SourceID,
		&rec.Datestamp,
		&sets,
		&rec.Deleted,
		&rec.Content,
		&rec.ContentType,
		&body,
		&generatedBy,
		&invalidatedAt,
		&createdAt,
		&modifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get original record: %w", err)
	}

	if err := json.Unmarshal([]byte(sets), &rec.SetSpecs); err != nil {
		return nil, fmt.Errorf("failed to decode set specs: %w", err)
	}
	rec.Record = record.New()
	if err := json.Unmarshal([]byte(body), rec.Record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	rec.GeneratedBy = generatedBy.String
	if rec.InvalidatedAt, err = parseTimePtr(invalidatedAt); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveAggregation inserts or replaces an aggregation by id
func (r *EntityRepository) SaveAggregation(ctx context.Context, agg *record.Aggregation) error {
	body, err := json.Marshal(agg.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	query := `
		INSERT INTO aggregations (
			id, provider, derived_from, record, generated_by, invalidated_at, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			derived_from = excluded.derived_from,
			record = excluded.record,
			generated_by = excluded.generated_by,
			invalidated_at = excluded.invalidated_at,
			modified_at = excluded.modified_at
	`
	_, err = r.db.ExecContext(ctx, query,
		agg.ID,
		agg.Provider,
		nullString(agg.DerivedFrom),
		string(body),
		nullString(agg.GeneratedBy),
		formatTimePtr(agg.InvalidatedAt),
		formatTime(agg.CreatedAt),
		formatTime(agg.ModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save aggregation: %w", err)
	}
	return nil
}

// GetAggregation retrieves an aggregation by id
func (r *EntityRepository) GetAggregation(ctx context.Context, id string) (*record.Aggregation, error) {
	query := `
		SELECT id, provider, derived_from, record, generated_by, invalidated_at, created_at, modified_at
		FROM aggregations
		WHERE id = ?
	`
	var agg record.Aggregation
	var body, createdAt, modifiedAt string
	var derivedFrom, generatedBy, invalidatedAt sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&agg.ID,
		&agg.Provider,
		&derivedFrom,
		&body,
		&generatedBy,
		&invalidatedAt,
		&createdAt,
		&modifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get aggregation: %w", err)
	}

	agg.Record = record.New()
	if err := json.Unmarshal([]byte(body), agg.Record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	agg.DerivedFrom = derivedFrom.String
	agg.GeneratedBy = generatedBy.String
	if agg.InvalidatedAt, err = parseTimePtr(invalidatedAt); err != nil {
		return nil, err
	}
	if agg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if agg.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	return &agg, nil
}

// Invalidate stamps an original record or aggregation as invalidated
func (r *EntityRepository) Invalidate(ctx context.Context, id string, at time.Time) error {
	var total int64
	for _, table := range []string{"original_records", "aggregations"} {
		result, err := r.db.ExecContext(ctx,
			`UPDATE `+table+` SET invalidated_at = ? WHERE id = ?`,
			formatTime(at), id)
		if err != nil {
			return fmt.Errorf("failed to invalidate entity: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check invalidated rows: %w", err)
		}
		total += n
	}
	if total == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// OriginalIDsGeneratedBy lazily lists ids of original records generated by
// an activity, in id order.
func (r *EntityRepository) OriginalIDsGeneratedBy(ctx context.Context, activityID string, includeInvalidated bool) harvest.Iterator[string] {
	return r.idsGeneratedBy(ctx, "original_records", activityID, includeInvalidated)
}

// AggregationIDsGeneratedBy lazily lists ids of aggregations generated by an
// activity, in id order.
func (r *EntityRepository) AggregationIDsGeneratedBy(ctx context.Context, activityID string, includeInvalidated bool) harvest.Iterator[string] {
	return r.idsGeneratedBy(ctx, "aggregations", activityID, includeInvalidated)
}

// idsGeneratedBy pages through ids with a keyset cursor. Each batch is read
// and closed before it is handed out, so callers may query the database
// while iterating.
func (r *EntityRepository) idsGeneratedBy(ctx context.Context, table, activityID string, includeInvalidated bool) harvest.Iterator[string] {
	query := `SELECT id FROM ` + table + ` WHERE generated_by = ? AND id > ?`
	if !includeInvalidated {
		query += ` AND invalidated_at IS NULL`
	}
	query += ` ORDER BY id LIMIT ?`
	batch := r.batchSize

	return harvest.NewPageIterator(ctx, func(ctx context.Context, after string) (harvest.Page[string], error) {
		rows, err := r.db.QueryContext(ctx, query, activityID, after, batch)
		if err != nil {
			return harvest.Page[string]{}, fmt.Errorf("failed to list generated entities: %w", err)
		}
		defer rows.Close()

		ids := make([]string, 0, batch)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return harvest.Page[string]{}, fmt.Errorf("failed to scan entity id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return harvest.Page[string]{}, fmt.Errorf("error iterating entity rows: %w", err)
		}

		page := harvest.Page[string]{Items: ids}
		if len(ids) == batch {
			page.Next = ids[len(ids)-1]
		}
		return page, nil
	})
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
