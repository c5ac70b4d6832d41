// Package domain defines core business entities
package domain

import (
	"strings"
	"time"
)

// User represents a shop user (admin, technician or front-desk staff)
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	Role         string    `json:"role" db:"role"` // admin, technician, staff
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Customer owns vehicles and receives marketing email
type Customer struct {
	ID          string    `json:"id" db:"id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	Email       string    `json:"email" db:"email"`
	Phone       string    `json:"phone" db:"phone"`
	Company     string    `json:"company" db:"company"`
	EmailOptOut bool      `json:"email_opt_out" db:"email_opt_out"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last" with blanks collapsed
func (c *Customer) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Vehicle represents a customer's vehicle
type Vehicle struct {
	ID           string    `json:"id" db:"id"`
	CustomerID   string    `json:"customer_id" db:"customer_id"`
	Year         int       `json:"year" db:"year"`
	Make         string    `json:"make" db:"make"`
	Model        string    `json:"model" db:"model"`
	VIN          string    `json:"vin" db:"vin"`
	LicensePlate string    `json:"license_plate" db:"license_plate"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// EquipmentAsset is a piece of tracked shop or fleet equipment
type EquipmentAsset struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	AssetType    string    `json:"asset_type" db:"asset_type"`
	SerialNumber string    `json:"serial_number" db:"serial_number"`
	Location     string    `json:"location" db:"location"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// WorkOrder is one service job
type WorkOrder struct {
	ID           string     `json:"id" db:"id"`
	CustomerID   string     `json:"customer_id" db:"customer_id"`
	VehicleID    *string    `json:"vehicle_id,omitempty" db:"vehicle_id"`
	EquipmentID  *string    `json:"equipment_id,omitempty" db:"equipment_id"`
	TechnicianID *string    `json:"technician_id,omitempty" db:"technician_id"`
	Description  string     `json:"description" db:"description"`
	Status       string     `json:"status" db:"status"`
	Priority     string     `json:"priority" db:"priority"`
	TotalCost    float64    `json:"total_cost" db:"total_cost"`
	DueDate      *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// WorkOrderStatusHistory records a status change of a work order
type WorkOrderStatusHistory struct {
	ID          string    `json:"id" db:"id"`
	WorkOrderID string    `json:"work_order_id" db:"work_order_id"`
	Status      string    `json:"status" db:"status"`
	ChangedBy   *string   `json:"changed_by,omitempty" db:"changed_by"`
	Notes       string    `json:"notes" db:"notes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Attachment is a file uploaded against a work order
type Attachment struct {
	ID          string    `json:"id" db:"id"`
	WorkOrderID string    `json:"work_order_id" db:"work_order_id"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	StoragePath string    `json:"-" db:"storage_path"`
	PublicURL   string    `json:"public_url" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Status constants
const (
	// Work order statuses
	WorkOrderStatusPending    = "pending"
	WorkOrderStatusInProgress = "in-progress"
	WorkOrderStatusCompleted  = "completed"
	WorkOrderStatusOnHold     = "on-hold"
	WorkOrderStatusCancelled  = "cancelled"

	// Work order priorities
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"

	// User roles
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
	RoleStaff      = "staff"

	// Display fallbacks used by the work order view
	UnknownCustomer = "Unknown Customer"
	Unassigned      = "Unassigned"
)

var workOrderStatuses = []string{
	WorkOrderStatusPending, WorkOrderStatusInProgress, WorkOrderStatusCompleted,
	WorkOrderStatusOnHold, WorkOrderStatusCancelled,
}

var priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// normalizeEnum lowercases and maps underscores/spaces to hyphens, so
// "In_Progress" and "in progress" both read as "in-progress".
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	return strings.ReplaceAll(s, " ", "-")
}

func parseEnum(field, value string, allowed []string) (string, error) {
	n := normalizeEnum(value)
	for _, a := range allowed {
		if n == a {
			return a, nil
		}
	}
	return "", NewValidationError(field, "unrecognized value %q (allowed: %s)", value, strings.Join(allowed, ", "))
}

// ParseWorkOrderStatus validates a work order status
func ParseWorkOrderStatus(s string) (string, error) {
	return parseEnum("status", s, workOrderStatuses)
}

// ParsePriority validates a work order priority
func ParsePriority(s string) (string, error) {
	return parseEnum("priority", s, priorities)
}

// IsValidRole reports whether role is a known user role
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTechnician, RoleStaff:
		return true
	default:
		return false
	}
}

// WorkOrderStatusLabel returns a human-readable label for a work order status
func WorkOrderStatusLabel(status string) string {
	labels := map[string]string{
		WorkOrderStatusPending:    "Pending",
		WorkOrderStatusInProgress: "In Progress",
		WorkOrderStatusCompleted:  "Completed",
		WorkOrderStatusOnHold:     "On Hold",
		WorkOrderStatusCancelled:  "Cancelled",
	}
	if label, ok := labels[status]; ok {
		return label
	}
	return status
}
