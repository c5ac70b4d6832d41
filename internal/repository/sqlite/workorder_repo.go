package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

const workOrderColumns = `id, customer_id, vehicle_id, equipment_id, technician_id, description,
	status, priority, total_cost, due_date, created_at, updated_at`

// WorkOrderRepo implements repository.WorkOrderRepository
type WorkOrderRepo struct {
	db *DB
}

// NewWorkOrderRepo creates a new WorkOrderRepo
func NewWorkOrderRepo(db *DB) repository.WorkOrderRepository {
	return &WorkOrderRepo{db: db}
}

func insertWorkOrder(ctx context.Context, ext sqlx.ExtContext, wo *domain.WorkOrder) error {
	if wo.ID == "" {
		wo.ID = newID()
	}
	wo.CreatedAt = now()
	wo.UpdatedAt = wo.CreatedAt
	query := `INSERT INTO work_orders (` + workOrderColumns + `)
		VALUES (:id, :customer_id, :vehicle_id, :equipment_id, :technician_id, :description,
			:status, :priority, :total_cost, :due_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, wo); err != nil {
		return fmt.Errorf("failed to create work order: %w", err)
	}
	return nil
}

func insertStatusHistory(ctx context.Context, ext sqlx.ExtContext, h *domain.WorkOrderStatusHistory) error {
	h.ID = newID()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now()
	}
	query := `INSERT INTO work_order_status_history (id, work_order_id, status, changed_by, notes, created_at)
		VALUES (:id, :work_order_id, :status, :changed_by, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, h); err != nil {
		return fmt.Errorf("failed to create work order status history: %w", err)
	}
	return nil
}

func (r *WorkOrderRepo) Create(ctx context.Context, wo *domain.WorkOrder) error {
	if err := insertWorkOrder(ctx, r.db, wo); err != nil {
		return err
	}

	// Initial history record
	history := &domain.WorkOrderStatusHistory{
		WorkOrderID: wo.ID,
		Status:      wo.Status,
		ChangedBy:   wo.TechnicianID,
		Notes:       "Work order created",
		CreatedAt:   wo.CreatedAt,
	}
	if err := insertStatusHistory(ctx, r.db, history); err != nil {
		log.WithError(err).WithField("work_order_id", wo.ID).Warn("Failed to create initial history record")
	}
	return nil
}

func (r *WorkOrderRepo) CreateWithLines(ctx context.Context, wo *domain.WorkOrder, lines []domain.JobLine) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertWorkOrder(ctx, tx, wo); err != nil {
			return err
		}
		for i := range lines {
			lines[i].WorkOrderID = wo.ID
			if err := insertJobLine(ctx, tx, &lines[i]); err != nil {
				return fmt.Errorf("failed to create job line %d of work order: %w", i+1, err)
			}
		}
		return insertStatusHistory(ctx, tx, &domain.WorkOrderStatusHistory{
			WorkOrderID: wo.ID,
			Status:      wo.Status,
			ChangedBy:   wo.TechnicianID,
			Notes:       "Work order created",
			CreatedAt:   wo.CreatedAt,
		})
	})
}

func (r *WorkOrderRepo) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return getOne[domain.WorkOrder](ctx, r.db, "work order", `SELECT `+workOrderColumns+` FROM work_orders WHERE id = ?`, id)
}

func (r *WorkOrderRepo) List(ctx context.Context, f repository.WorkOrderFilter) ([]domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE 1 = 1`
	var args []interface{}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, f.CustomerID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	orders := []domain.WorkOrder{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}
	return orders, nil
}

func (r *WorkOrderRepo) Update(ctx context.Context, wo *domain.WorkOrder) error {
	wo.UpdatedAt = now()
	query := `UPDATE work_orders
		SET customer_id = :customer_id, vehicle_id = :vehicle_id, equipment_id = :equipment_id,
			technician_id = :technician_id, description = :description, priority = :priority,
			due_date = :due_date, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, wo)
	if err != nil {
		return fmt.Errorf("failed to update work order: %w", err)
	}
	if err := requireAffected(res, "update work order"); err != nil {
		return err
	}
	return nil
}

func (r *WorkOrderRepo) UpdateStatus(ctx context.Context, id, status string, changedBy *string, notes string) error {
	ts := now()
	res, err := r.db.ExecContext(ctx, `UPDATE work_orders SET status = ?, updated_at = ? WHERE id = ?`, status, ts, id)
	if err != nil {
		return fmt.Errorf("failed to update work order status: %w", err)
	}
	if err := requireAffected(res, "update work order status"); err != nil {
		return err
	}

	history := &domain.WorkOrderStatusHistory{
		WorkOrderID: id,
		Status:      status,
		ChangedBy:   changedBy,
		Notes:       notes,
		CreatedAt:   ts,
	}
	if err := insertStatusHistory(ctx, r.db, history); err != nil {
		// Status is already updated; history is best effort
		log.WithError(err).WithField("work_order_id", id).Warn("Failed to create history record")
	}
	return nil
}

func (r *WorkOrderRepo) UpdateTotalCost(ctx context.Context, id string, total float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE work_orders SET total_cost = ?, updated_at = ? WHERE id = ?`, total, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update work order total: %w", err)
	}
	return nil
}

func (r *WorkOrderRepo) GetStatusHistory(ctx context.Context, workOrderID string) ([]domain.WorkOrderStatusHistory, error) {
	history := []domain.WorkOrderStatusHistory{}
	query := `SELECT id, work_order_id, status, changed_by, notes, created_at
		FROM work_order_status_history
		WHERE work_order_id = ?
		ORDER BY created_at ASC, rowid ASC`
	if err := r.db.SelectContext(ctx, &history, query, workOrderID); err != nil {
		return nil, fmt.Errorf("failed to get work order status history: %w", err)
	}
	return history, nil
}

func (r *WorkOrderRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM work_orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count work orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan work order count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Delete cascades in application code: parts, job lines, attachments,
// history and finally the work order, all in one transaction.
func (r *WorkOrderRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		steps := []struct {
			what  string
			query string
		}{
			{"parts", `DELETE FROM work_order_parts WHERE work_order_id = ?`},
			{"job lines", `DELETE FROM work_order_job_lines WHERE work_order_id = ?`},
			{"attachments", `DELETE FROM work_order_attachments WHERE work_order_id = ?`},
			{"status history", `DELETE FROM work_order_status_history WHERE work_order_id = ?`},
		}
		for _, s := range steps {
			if _, err := tx.ExecContext(ctx, s.query, id); err != nil {
				return fmt.Errorf("failed to delete work order %s: %w", s.what, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM work_orders WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete work order: %w", err)
		}
		if err := requireAffected(res, "delete work order"); err != nil {
			return err
		}
		return nil
	})
}
