package domain

import "time"

// Part is a part used on a work order, optionally tied to one job line
type Part struct {
	ID                      string     `json:"id" db:"id"`
	WorkOrderID             string     `json:"work_order_id" db:"work_order_id"`
	JobLineID               *string    `json:"job_line_id" db:"job_line_id"`
	Name                    string     `json:"name" db:"name"`
	PartNumber              string     `json:"part_number" db:"part_number"`
	Description             string     `json:"description" db:"description"`
	PartType                string     `json:"part_type" db:"part_type"`
	Quantity                int        `json:"quantity" db:"quantity"`
	UnitPrice               float64    `json:"unit_price" db:"unit_price"`
	TotalPrice              float64    `json:"total_price" db:"total_price"`
	SupplierName            string     `json:"supplier_name" db:"supplier_name"`
	SupplierCost            float64    `json:"supplier_cost" db:"supplier_cost"`
	SupplierSuggestedRetail float64    `json:"supplier_suggested_retail" db:"supplier_suggested_retail"`
	MarkupPercentage        float64    `json:"markup_percentage" db:"markup_percentage"`
	CustomerPrice           float64    `json:"customer_price" db:"customer_price"`
	IsTaxable               bool       `json:"is_taxable" db:"is_taxable"`
	CoreChargeApplies       bool       `json:"core_charge_applies" db:"core_charge_applies"`
	CoreChargeAmount        float64    `json:"core_charge_amount" db:"core_charge_amount"`
	EcoFeeApplies           bool       `json:"eco_fee_applies" db:"eco_fee_applies"`
	EcoFeeAmount            float64    `json:"eco_fee_amount" db:"eco_fee_amount"`
	WarrantyDuration        string     `json:"warranty_duration" db:"warranty_duration"`
	WarrantyExpiryDate      *time.Time `json:"warranty_expiry_date" db:"warranty_expiry_date"`
	InstallDate             *time.Time `json:"install_date" db:"install_date"`
	InstalledBy             string     `json:"installed_by" db:"installed_by"`
	InvoiceNumber           string     `json:"invoice_number" db:"invoice_number"`
	POLine                  string     `json:"po_line" db:"po_line"`
	BinLocation             string     `json:"bin_location" db:"bin_location"`
	WarehouseLocation       string     `json:"warehouse_location" db:"warehouse_location"`
	ShelfLocation           string     `json:"shelf_location" db:"shelf_location"`
	Status                  string     `json:"status" db:"status"`
	Notes                   string     `json:"notes" db:"notes"`
	CreatedAt               time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	// Part types
	PartTypeInventory    = "inventory"
	PartTypeNonInventory = "non-inventory"
	PartTypeSpecialOrder = "special-order"

	// Part statuses
	PartStatusPending     = "pending"
	PartStatusOrdered     = "ordered"
	PartStatusReceived    = "received"
	PartStatusInstalled   = "installed"
	PartStatusBackordered = "backordered"
	PartStatusReturned    = "returned"
)

var partTypes = []string{PartTypeInventory, PartTypeNonInventory, PartTypeSpecialOrder}

var partStatuses = []string{
	PartStatusPending, PartStatusOrdered, PartStatusReceived,
	PartStatusInstalled, PartStatusBackordered, PartStatusReturned,
}

// ParsePartType validates a part type
func ParsePartType(s string) (string, error) {
	return parseEnum("part_type", s, partTypes)
}

// ParsePartStatus validates a part status
func ParsePartStatus(s string) (string, error) {
	return parseEnum("status", s, partStatuses)
}
