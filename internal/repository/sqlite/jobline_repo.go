package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
	"shopflow/internal/pricing"
	"shopflow/internal/repository"
)

const jobLineColumns = `id, work_order_id, name, category, subcategory, description, estimated_hours,
	labor_rate, labor_rate_type, total_amount, status, display_order, is_work_completed,
	completion_date, completed_by, notes, created_at, updated_at`

// JobLineRepo implements repository.JobLineRepository
type JobLineRepo struct {
	db *DB
}

// NewJobLineRepo creates a new JobLineRepo
func NewJobLineRepo(db *DB) repository.JobLineRepository {
	return &JobLineRepo{db: db}
}

func insertJobLine(ctx context.Context, ext sqlx.ExtContext, line *domain.JobLine) error {
	if line.ID == "" {
		line.ID = newID()
	}
	err := sqlx.GetContext(ctx, ext, &line.DisplayOrder,
		`SELECT COALESCE(MAX(display_order), 0) + 1 FROM work_order_job_lines WHERE work_order_id = ?`,
		line.WorkOrderID)
	if err != nil {
		return fmt.Errorf("failed to compute display order: %w", err)
	}
	line.CreatedAt = now()
	line.UpdatedAt = line.CreatedAt

	query := `INSERT INTO work_order_job_lines (` + jobLineColumns + `)
		VALUES (:id, :work_order_id, :name, :category, :subcategory, :description, :estimated_hours,
			:labor_rate, :labor_rate_type, :total_amount, :status, :display_order, :is_work_completed,
			:completion_date, :completed_by, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, line); err != nil {
		return fmt.Errorf("failed to create job line: %w", err)
	}
	return nil
}

func getJobLine(ctx context.Context, q sqlx.QueryerContext, id string) (*domain.JobLine, error) {
	return getOne[domain.JobLine](ctx, q, "job line", `SELECT `+jobLineColumns+` FROM work_order_job_lines WHERE id = ?`, id)
}

func (r *JobLineRepo) GetAll(ctx context.Context, workOrderID string) ([]domain.JobLine, error) {
	lines := []domain.JobLine{}
	query := `SELECT ` + jobLineColumns + ` FROM work_order_job_lines
		WHERE work_order_id = ?
		ORDER BY display_order ASC, created_at ASC`
	if err := r.db.SelectContext(ctx, &lines, query, workOrderID); err != nil {
		return nil, fmt.Errorf("failed to get job lines: %w", err)
	}
	return lines, nil
}

func (r *JobLineRepo) GetByID(ctx context.Context, id string) (*domain.JobLine, error) {
	return getJobLine(ctx, r.db, id)
}

func (r *JobLineRepo) Create(ctx context.Context, line *domain.JobLine) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return insertJobLine(ctx, tx, line)
	})
}

func (r *JobLineRepo) Update(ctx context.Context, id string, cols mapper.Columns) (*domain.JobLine, error) {
	var updated *domain.JobLine
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getJobLine(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		if cols.Has("estimated_hours") || cols.Has("labor_rate") {
			hours, rate := current.EstimatedHours, current.LaborRate
			if v, ok := cols.Get("estimated_hours"); ok {
				hours = v.(float64)
			}
			if v, ok := cols.Get("labor_rate"); ok {
				rate = v.(float64)
			}
			cols.Set("total_amount", pricing.LineTotal(hours, rate))
		}

		query, args, err := buildUpdate("work_order_job_lines", cols, mapper.JobLineColumnNames, id, now())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update job line: %w", err)
		}
		updated, err = getJobLine(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *JobLineRepo) Delete(ctx context.Context, id string, policy domain.PartsPolicy) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		switch policy {
		case domain.PartsDetach, "":
			if _, err := tx.ExecContext(ctx,
				`UPDATE work_order_parts SET job_line_id = NULL, updated_at = ? WHERE job_line_id = ?`, now(), id); err != nil {
				return fmt.Errorf("failed to detach parts from job line: %w", err)
			}
		case domain.PartsDelete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM work_order_parts WHERE job_line_id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete parts of job line: %w", err)
			}
		case domain.PartsKeep:
		default:
			return domain.NewValidationError("parts_policy", "unrecognized value %q", policy)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM work_order_job_lines WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete job line: %w", err)
		}
		if err := requireAffected(res, "delete job line"); err != nil {
			return err
		}
		return nil
	})
}

func (r *JobLineRepo) Reorder(ctx context.Context, workOrderID string, orderedIDs []string) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var existing []string
		if err := tx.SelectContext(ctx, &existing,
			`SELECT id FROM work_order_job_lines WHERE work_order_id = ?`, workOrderID); err != nil {
			return fmt.Errorf("failed to load job lines for reorder: %w", err)
		}

		owned := make(map[string]bool, len(existing))
		for _, id := range existing {
			owned[id] = true
		}
		seen := make(map[string]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if !owned[id] {
				return domain.NewValidationError("ids", "job line %s does not belong to work order %s", id, workOrderID)
			}
			if seen[id] {
				return domain.NewValidationError("ids", "job line %s listed more than once", id)
			}
			seen[id] = true
		}
		if len(orderedIDs) != len(existing) {
			return domain.NewValidationError("ids", "expected all %d job lines, got %d", len(existing), len(orderedIDs))
		}

		ts := now()
		for i, id := range orderedIDs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE work_order_job_lines SET display_order = ?, updated_at = ? WHERE id = ?`, i+1, ts, id); err != nil {
				return fmt.Errorf("failed to reorder job line %s: %w", id, err)
			}
		}
		return nil
	})
}

func (r *JobLineRepo) SetCompletion(ctx context.Context, id string, completed bool, completedBy *string, at time.Time) (*domain.JobLine, error) {
	var (
		status = domain.JobLineStatusPending
		date   *time.Time
		by     *string
	)
	if completed {
		status = domain.JobLineStatusCompleted
		at = at.UTC()
		date = &at
		by = completedBy
	}

	res, err := r.db.ExecContext(ctx, `UPDATE work_order_job_lines
		SET is_work_completed = ?, completion_date = ?, completed_by = ?, status = ?, updated_at = ?
		WHERE id = ?`, completed, date, by, status, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to set job line completion: %w", err)
	}
	if err := requireAffected(res, "set job line completion"); err != nil {
		return nil, err
	}
	return getJobLine(ctx, r.db, id)
}
