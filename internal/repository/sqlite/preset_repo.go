package sqlite

import (
	"context"
	"fmt"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

const presetColumns = `id, name, category, description, usage_count, created_at, updated_at`

var presetTables = map[domain.PresetKind]string{
	domain.PresetMaintenanceItem: "maintenance_item_presets",
	domain.PresetMaintenanceType: "maintenance_type_presets",
}

// PresetRepo implements repository.PresetRepository over both preset tables
type PresetRepo struct {
	db *DB
}

// NewPresetRepo creates a new PresetRepo
func NewPresetRepo(db *DB) repository.PresetRepository {
	return &PresetRepo{db: db}
}

func presetTable(kind domain.PresetKind) (string, error) {
	table, ok := presetTables[kind]
	if !ok {
		return "", domain.NewValidationError("kind", "unknown preset kind %q", kind)
	}
	return table, nil
}

func (r *PresetRepo) List(ctx context.Context, kind domain.PresetKind, category string) ([]domain.Preset, error) {
	table, err := presetTable(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + presetColumns + ` FROM ` + table
	var args []interface{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY usage_count DESC, name ASC`

	presets := []domain.Preset{}
	if err := r.db.SelectContext(ctx, &presets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	for i := range presets {
		presets[i].Kind = kind
	}
	return presets, nil
}

func (r *PresetRepo) GetByID(ctx context.Context, kind domain.PresetKind, id string) (*domain.Preset, error) {
	table, err := presetTable(kind)
	if err != nil {
		return nil, err
	}
	p, err := getOne[domain.Preset](ctx, r.db, "preset", `SELECT `+presetColumns+` FROM `+table+` WHERE id = ?`, id)
	if p != nil {
		p.Kind = kind
	}
	return p, err
}

func (r *PresetRepo) FindByName(ctx context.Context, kind domain.PresetKind, name, category string) (*domain.Preset, error) {
	table, err := presetTable(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + presetColumns + ` FROM ` + table + `
		WHERE LOWER(name) = LOWER(?) AND LOWER(category) = LOWER(?)
		ORDER BY usage_count DESC LIMIT 1`
	p, err := getOne[domain.Preset](ctx, r.db, "preset by name", query, name, category)
	if p != nil {
		p.Kind = kind
	}
	return p, err
}

func (r *PresetRepo) Create(ctx context.Context, p *domain.Preset) error {
	table, err := presetTable(p.Kind)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	query := `INSERT INTO ` + table + ` (` + presetColumns + `)
		VALUES (:id, :name, :category, :description, :usage_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create preset: %w", err)
	}
	return nil
}

func (r *PresetRepo) IncrementUsage(ctx context.Context, kind domain.PresetKind, id string) error {
	table, err := presetTable(kind)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE `+table+` SET usage_count = usage_count + 1, updated_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("failed to increment preset usage: %w", err)
	}
	if err := requireAffected(res, "increment preset usage"); err != nil {
		return err
	}
	return nil
}

func (r *PresetRepo) Delete(ctx context.Context, kind domain.PresetKind, id string) error {
	table, err := presetTable(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	return nil
}
