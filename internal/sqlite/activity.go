package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/repository"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, agent, opts, queue, start_time, end_time, status, error, failures, created_at`

// Create inserts a new activity
func (r *ActivityRepository) Create(ctx context.Context, a *activity.Activity) error {
	failures, err := encodeFailures(a.Failures)
	if err != nil {
		return err
	}
	opts := string(a.Opts)
	if opts == "" {
		opts = "{}"
	}

	query := `INSERT INTO activities (` + activityColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		a.ID,
		a.Agent,
		opts,
		a.Queue,
		formatTimePtr(a.StartTime),
		formatTimePtr(a.EndTime),
		string(a.Status),
		a.Error,
		failures,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// Get retrieves an activity by ID
func (r *ActivityRepository) Get(ctx context.Context, id string) (*activity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = ?`
	a, err := scanActivity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// Update writes the mutable lifecycle fields of an activity
func (r *ActivityRepository) Update(ctx context.Context, a *activity.Activity) error {
	failures, err := encodeFailures(a.Failures)
	if err != nil {
		return err
	}

	query := `
		UPDATE activities
		SET start_time = ?, end_time = ?, status = ?, error = ?, failures = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		formatTimePtr(a.StartTime),
		formatTimePtr(a.EndTime),
		string(a.Status),
		a.Error,
		failures,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkStarted sets start_time when it is still unset. The check and the
// write are one statement so concurrent workers cannot both start a run.
func (r *ActivityRepository) MarkStarted(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE activities SET start_time = ? WHERE id = ? AND start_time IS NULL`,
		formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("failed to start activity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM activities WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check activity: %w", err)
	}
	return repository.ErrConflict
}

// List returns activities matching the given filters, newest first
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Activity, error) {
	where, args := activityFilter(opts)
	query := `SELECT ` + activityColumns + ` FROM activities` + where + ` ORDER BY created_at DESC, id`

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var list []activity.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return list, nil
}

// Count returns how many activities match the given filters
func (r *ActivityRepository) Count(ctx context.Context, opts activity.ListOptions) (int, error) {
	where, args := activityFilter(opts)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

func activityFilter(opts activity.ListOptions) (string, []any) {
	var conditions []string
	var args []any

	if opts.Agent != "" {
		conditions = append(conditions, "agent = ?")
		args = append(args, opts.Agent)
	}
	switch opts.Phase {
	case activity.PhaseCreated:
		conditions = append(conditions, "start_time IS NULL")
	case activity.PhaseRunning:
		conditions = append(conditions, "start_time IS NOT NULL AND end_time IS NULL")
	case activity.PhaseSucceeded, activity.PhaseFailed:
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Phase))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (*activity.Activity, error) {
	var a activity.Activity
	var opts, status, failures, createdAt string
	var startTime, endTime sql.NullString
	err := row.Scan(
		&a.ID,
		&a.Agent,
		&opts,
		&a.Queue,
		&startTime,
		&endTime,
		&status,
		&a.Error,
		&failures,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}

	a.Opts = json.RawMessage(opts)
	a.Status = activity.Status(status)
	if a.StartTime, err = parseTimePtr(startTime); err != nil {
		return nil, err
	}
	if a.EndTime, err = parseTimePtr(endTime); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if failures != "" && failures != "[]" {
		if err := json.Unmarshal([]byte(failures), &a.Failures); err != nil {
			return nil, fmt.Errorf("failed to decode activity failures: %w", err)
		}
	}
	return &a, nil
}

func encodeFailures(failures []activity.ItemFailure) (string, error) {
	if len(failures) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return "", fmt.Errorf("failed to encode activity failures: %w", err)
	}
	return string(data), nil
}
