package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
	"shopflow/internal/pricing"
	"shopflow/internal/repository"
)

const partColumns = `id, work_order_id, job_line_id, name, part_number, description, part_type,
	quantity, unit_price, total_price, supplier_name, supplier_cost, supplier_suggested_retail,
	markup_percentage, customer_price, is_taxable, core_charge_applies, core_charge_amount,
	eco_fee_applies, eco_fee_amount, warranty_duration, warranty_expiry_date, install_date,
	installed_by, invoice_number, po_line, bin_location, warehouse_location, shelf_location,
	status, notes, created_at, updated_at`

// PartRepo implements repository.PartRepository
type PartRepo struct {
	db *DB
}

// NewPartRepo creates a new PartRepo
func NewPartRepo(db *DB) repository.PartRepository {
	return &PartRepo{db: db}
}

func getPart(ctx context.Context, q sqlx.QueryerContext, id string) (*domain.Part, error) {
	return getOne[domain.Part](ctx, q, "part", `SELECT `+partColumns+` FROM work_order_parts WHERE id = ?`, id)
}

func (r *PartRepo) GetByID(ctx context.Context, id string) (*domain.Part, error) {
	return getPart(ctx, r.db, id)
}

func (r *PartRepo) GetByWorkOrder(ctx context.Context, workOrderID string) ([]domain.Part, error) {
	parts := []domain.Part{}
	query := `SELECT ` + partColumns + ` FROM work_order_parts
		WHERE work_order_id = ?
		ORDER BY created_at ASC, rowid ASC`
	if err := r.db.SelectContext(ctx, &parts, query, workOrderID); err != nil {
		return nil, fmt.Errorf("failed to get parts by work order: %w", err)
	}
	return parts, nil
}

// GetByJobLine does not check that the job line exists, so parts left
// pointing at a deleted line are still returned.
func (r *PartRepo) GetByJobLine(ctx context.Context, jobLineID string) ([]domain.Part, error) {
	parts := []domain.Part{}
	query := `SELECT ` + partColumns + ` FROM work_order_parts
		WHERE job_line_id = ?
		ORDER BY created_at ASC, rowid ASC`
	if err := r.db.SelectContext(ctx, &parts, query, jobLineID); err != nil {
		return nil, fmt.Errorf("failed to get parts by job line: %w", err)
	}
	return parts, nil
}

func (r *PartRepo) Create(ctx context.Context, p *domain.Part) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	query := `INSERT INTO work_order_parts (` + partColumns + `)
		VALUES (:id, :work_order_id, :job_line_id, :name, :part_number, :description, :part_type,
			:quantity, :unit_price, :total_price, :supplier_name, :supplier_cost, :supplier_suggested_retail,
			:markup_percentage, :customer_price, :is_taxable, :core_charge_applies, :core_charge_amount,
			:eco_fee_applies, :eco_fee_amount, :warranty_duration, :warranty_expiry_date, :install_date,
			:installed_by, :invoice_number, :po_line, :bin_location, :warehouse_location, :shelf_location,
			:status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create part: %w", err)
	}
	return nil
}

func (r *PartRepo) Update(ctx context.Context, id string, cols mapper.Columns) (*domain.Part, error) {
	var updated *domain.Part
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getPart(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		reprice(current, &cols)

		query, args, err := buildUpdate("work_order_parts", cols, mapper.PartColumnNames, id, now())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update part: %w", err)
		}
		updated, err = getPart(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reprice keeps the derived price columns in step with a patch. An explicit
// price re-derives the markup, a cost or markup change re-derives the price,
// and total_price follows quantity × unit_price whenever either changes.
func reprice(current *domain.Part, cols *mapper.Columns) {
	cost := floatColumn(*cols, "supplier_cost", current.SupplierCost)
	if v, ok := cols.Get("unit_price"); ok {
		unit := v.(float64)
		cols.Set("customer_price", unit)
		if cost > 0 {
			cols.Set("markup_percentage", pricing.MarkupPercentage(cost, unit))
		}
	} else if (cols.Has("supplier_cost") || cols.Has("markup_percentage")) && cost > 0 {
		price := pricing.CustomerPrice(cost, floatColumn(*cols, "markup_percentage", current.MarkupPercentage))
		cols.Set("unit_price", price)
		cols.Set("customer_price", price)
	}

	if cols.Has("quantity") || cols.Has("unit_price") {
		qty, unit := current.Quantity, floatColumn(*cols, "unit_price", current.UnitPrice)
		if v, ok := cols.Get("quantity"); ok {
			qty = v.(int)
		}
		cols.Set("total_price", pricing.PartTotal(qty, unit))
	}
}

func floatColumn(cols mapper.Columns, name string, def float64) float64 {
	if v, ok := cols.Get(name); ok {
		return v.(float64)
	}
	return def
}

func (r *PartRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM work_order_parts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete part: %w", err)
	}
	if err := requireAffected(res, "delete part"); err != nil {
		return err
	}
	return nil
}
