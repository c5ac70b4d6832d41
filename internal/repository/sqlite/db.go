// Package sqlite provides SQLite implementation of repository interfaces
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"shopflow/internal/repository"
)

// DB wraps sqlx.DB with SQLite-specific optimizations
type DB struct {
	*sqlx.DB
}

// New creates a new SQLite database connection with optimizations for a single-node deployment
func New(dbPath string) (*DB, error) {
	// Validate and clean the path to prevent path traversal
	cleanPath := filepath.Clean(dbPath)
	if !filepath.IsLocal(cleanPath) && !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("invalid database path: potential path traversal detected")
	}

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL for concurrent reads, busy_timeout for lock contention, foreign keys on
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_time_format=sqlite", cleanPath)

	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer connection; transactions serialize on it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{db}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			// Ignore "duplicate column name" error for idempotent migrations
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}
	log.WithField("statements", len(migrations)).Debug("Database migrations applied")
	return nil
}

// WithTx runs fn inside a transaction, rolling back when fn returns an error
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("Transaction rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// NewRepositories wires every SQLite repository
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Users:          NewUserRepo(db),
		Customers:      NewCustomerRepo(db),
		Vehicles:       NewVehicleRepo(db),
		Equipment:      NewEquipmentRepo(db),
		WorkOrders:     NewWorkOrderRepo(db),
		JobLines:       NewJobLineRepo(db),
		Parts:          NewPartRepo(db),
		Presets:        NewPresetRepo(db),
		Attachments:    NewAttachmentRepo(db),
		Settings:       NewSettingsRepo(db),
		EmailTemplates: NewEmailTemplateRepo(db),
		Campaigns:      NewCampaignRepo(db),
		Sequences:      NewSequenceRepo(db),
		EmailSends:     NewEmailSendRepo(db),
	}
}

func newID() string {
	return uuid.NewString()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'staff',
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		email_opt_out BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		customer_id TEXT REFERENCES customers(id) ON DELETE CASCADE,
		year INTEGER NOT NULL DEFAULT 0,
		make TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		vin TEXT NOT NULL DEFAULT '',
		license_plate TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS equipment_assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		asset_type TEXT NOT NULL DEFAULT '',
		serial_number TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS work_orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		vehicle_id TEXT,
		equipment_id TEXT,
		technician_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		priority TEXT NOT NULL DEFAULT 'medium',
		total_cost REAL NOT NULL DEFAULT 0,
		due_date DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS work_order_status_history (
		id TEXT PRIMARY KEY,
		work_order_id TEXT NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		changed_by TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,

	// job_line_id on parts has no foreign key; deletes apply the configured parts policy
	`CREATE TABLE IF NOT EXISTS work_order_job_lines (
		id TEXT PRIMARY KEY,
		work_order_id TEXT NOT NULL REFERENCES work_orders(id),
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		subcategory TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		estimated_hours REAL NOT NULL DEFAULT 0 CHECK(estimated_hours >= 0),
		labor_rate REAL NOT NULL DEFAULT 0 CHECK(labor_rate >= 0),
		labor_rate_type TEXT NOT NULL DEFAULT 'standard',
		total_amount REAL NOT NULL DEFAULT 0 CHECK(total_amount >= 0),
		status TEXT NOT NULL DEFAULT 'pending',
		display_order INTEGER NOT NULL DEFAULT 0,
		is_work_completed BOOLEAN NOT NULL DEFAULT 0,
		completion_date DATETIME,
		completed_by TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS work_order_parts (
		id TEXT PRIMARY KEY,
		work_order_id TEXT NOT NULL REFERENCES work_orders(id),
		job_line_id TEXT,
		name TEXT NOT NULL,
		part_number TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		part_type TEXT NOT NULL DEFAULT 'inventory',
		quantity INTEGER NOT NULL DEFAULT 1 CHECK(quantity >= 1),
		unit_price REAL NOT NULL DEFAULT 0 CHECK(unit_price >= 0),
		total_price REAL NOT NULL DEFAULT 0 CHECK(total_price >= 0),
		supplier_name TEXT NOT NULL DEFAULT '',
		supplier_cost REAL NOT NULL DEFAULT 0,
		supplier_suggested_retail REAL NOT NULL DEFAULT 0,
		markup_percentage REAL NOT NULL DEFAULT 0,
		customer_price REAL NOT NULL DEFAULT 0,
		is_taxable BOOLEAN NOT NULL DEFAULT 1,
		core_charge_applies BOOLEAN NOT NULL DEFAULT 0,
		core_charge_amount REAL NOT NULL DEFAULT 0,
		eco_fee_applies BOOLEAN NOT NULL DEFAULT 0,
		eco_fee_amount REAL NOT NULL DEFAULT 0,
		warranty_duration TEXT NOT NULL DEFAULT '',
		warranty_expiry_date DATETIME,
		install_date DATETIME,
		installed_by TEXT NOT NULL DEFAULT '',
		invoice_number TEXT NOT NULL DEFAULT '',
		po_line TEXT NOT NULL DEFAULT '',
		bin_location TEXT NOT NULL DEFAULT '',
		warehouse_location TEXT NOT NULL DEFAULT '',
		shelf_location TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS work_order_attachments (
		id TEXT PRIMARY KEY,
		work_order_id TEXT NOT NULL REFERENCES work_orders(id),
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		storage_path TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS maintenance_item_presets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS maintenance_type_presets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		html_body TEXT NOT NULL DEFAULT '',
		text_body TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_campaigns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		template_id TEXT,
		subject TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		is_ab_test BOOLEAN NOT NULL DEFAULT 0,
		winner_metric TEXT NOT NULL DEFAULT 'open_rate',
		min_sample_size INTEGER NOT NULL DEFAULT 0,
		winner_variant_id TEXT,
		sent_count INTEGER NOT NULL DEFAULT 0,
		opened_count INTEGER NOT NULL DEFAULT 0,
		clicked_count INTEGER NOT NULL DEFAULT 0,
		bounced_count INTEGER NOT NULL DEFAULT 0,
		unsubscribed_count INTEGER NOT NULL DEFAULT 0,
		sent_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_campaign_variants (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL REFERENCES email_campaigns(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		template_id TEXT,
		subject TEXT NOT NULL DEFAULT '',
		weight INTEGER NOT NULL DEFAULT 1,
		sent_count INTEGER NOT NULL DEFAULT 0,
		opened_count INTEGER NOT NULL DEFAULT 0,
		clicked_count INTEGER NOT NULL DEFAULT 0,
		converted_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_sequences (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_sequence_steps (
		id TEXT PRIMARY KEY,
		sequence_id TEXT NOT NULL REFERENCES email_sequences(id) ON DELETE CASCADE,
		step_order INTEGER NOT NULL,
		delay_hours INTEGER NOT NULL DEFAULT 0,
		template_id TEXT,
		subject TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_sequence_enrollments (
		id TEXT PRIMARY KEY,
		sequence_id TEXT NOT NULL REFERENCES email_sequences(id) ON DELETE CASCADE,
		customer_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		current_step INTEGER NOT NULL DEFAULT 0,
		next_send_at DATETIME,
		enrolled_at DATETIME NOT NULL,
		completed_at DATETIME,
		updated_at DATETIME NOT NULL,
		UNIQUE(sequence_id, customer_id)
	)`,

	`CREATE TABLE IF NOT EXISTS email_sends (
		id TEXT PRIMARY KEY,
		customer_id TEXT,
		to_address TEXT NOT NULL,
		campaign_id TEXT,
		variant_id TEXT,
		sequence_id TEXT,
		enrollment_id TEXT,
		step_id TEXT,
		subject TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		sent_at DATETIME NOT NULL,
		opened_at DATETIME,
		clicked_at DATETIME
	)`,

	// Key-value settings of the email system
	`CREATE TABLE IF NOT EXISTS email_system_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// Indexes for performance
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_customer ON vehicles(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_status ON work_orders(status)`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_customer ON work_orders(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wo_history_wo ON work_order_status_history(work_order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_job_lines_wo ON work_order_job_lines(work_order_id, display_order)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_wo ON work_order_parts(work_order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_job_line ON work_order_parts(job_line_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_wo ON work_order_attachments(work_order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_due ON email_sequence_enrollments(status, next_send_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sends_campaign ON email_sends(campaign_id)`,
}
