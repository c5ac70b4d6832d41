package sqlite

import (
	"context"
	"fmt"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

const customerColumns = `id, first_name, last_name, email, phone, company, email_opt_out, created_at, updated_at`

// CustomerRepo implements repository.CustomerRepository
type CustomerRepo struct {
	db *DB
}

// NewCustomerRepo creates a new CustomerRepo
func NewCustomerRepo(db *DB) repository.CustomerRepository {
	return &CustomerRepo{db: db}
}

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	query := `INSERT INTO customers (` + customerColumns + `)
		VALUES (:id, :first_name, :last_name, :email, :phone, :company, :email_opt_out, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return getOne[domain.Customer](ctx, r.db, "customer", `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
}

func (r *CustomerRepo) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	customers := []domain.Customer{}
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY last_name, first_name LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &customers, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

func (r *CustomerRepo) ListEmailable(ctx context.Context) ([]domain.Customer, error) {
	customers := []domain.Customer{}
	query := `SELECT ` + customerColumns + ` FROM customers
		WHERE email <> '' AND email_opt_out = 0
		ORDER BY created_at, rowid`
	if err := r.db.SelectContext(ctx, &customers, query); err != nil {
		return nil, fmt.Errorf("failed to list emailable customers: %w", err)
	}
	return customers, nil
}

func (r *CustomerRepo) SetEmailOptOut(ctx context.Context, id string, optOut bool) error {
	query := `UPDATE customers SET email_opt_out = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, optOut, now(), id); err != nil {
		return fmt.Errorf("failed to update customer opt-out: %w", err)
	}
	return nil
}

const vehicleColumns = `id, customer_id, year, make, model, vin, license_plate, created_at`

// VehicleRepo implements repository.VehicleRepository
type VehicleRepo struct {
	db *DB
}

// NewVehicleRepo creates a new VehicleRepo
func NewVehicleRepo(db *DB) repository.VehicleRepository {
	return &VehicleRepo{db: db}
}

func (r *VehicleRepo) Create(ctx context.Context, v *domain.Vehicle) error {
	if v.ID == "" {
		v.ID = newID()
	}
	v.CreatedAt = now()
	query := `INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES (:id, :customer_id, :year, :make, :model, :vin, :license_plate, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

func (r *VehicleRepo) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	return getOne[domain.Vehicle](ctx, r.db, "vehicle", `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
}

func (r *VehicleRepo) GetByCustomerID(ctx context.Context, customerID string) ([]domain.Vehicle, error) {
	vehicles := []domain.Vehicle{}
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE customer_id = ? ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &vehicles, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to get vehicles by customer: %w", err)
	}
	return vehicles, nil
}

const equipmentColumns = `id, name, asset_type, serial_number, location, status, created_at`

// EquipmentRepo implements repository.EquipmentRepository
type EquipmentRepo struct {
	db *DB
}

// NewEquipmentRepo creates a new EquipmentRepo
func NewEquipmentRepo(db *DB) repository.EquipmentRepository {
	return &EquipmentRepo{db: db}
}

func (r *EquipmentRepo) Create(ctx context.Context, a *domain.EquipmentAsset) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Status == "" {
		a.Status = "active"
	}
	a.CreatedAt = now()
	query := `INSERT INTO equipment_assets (` + equipmentColumns + `)
		VALUES (:id, :name, :asset_type, :serial_number, :location, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to create equipment asset: %w", err)
	}
	return nil
}

func (r *EquipmentRepo) GetByID(ctx context.Context, id string) (*domain.EquipmentAsset, error) {
	return getOne[domain.EquipmentAsset](ctx, r.db, "equipment asset", `SELECT `+equipmentColumns+` FROM equipment_assets WHERE id = ?`, id)
}

func (r *EquipmentRepo) List(ctx context.Context, limit, offset int) ([]domain.EquipmentAsset, error) {
	assets := []domain.EquipmentAsset{}
	query := `SELECT ` + equipmentColumns + ` FROM equipment_assets ORDER BY name LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &assets, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	return assets, nil
}
