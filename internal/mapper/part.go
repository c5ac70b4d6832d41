package mapper

import (
	"time"

	"shopflow/internal/domain"
	"shopflow/internal/pricing"
)

// PartForm is the add/edit part form as clients submit it
type PartForm struct {
	ID                      string     `json:"id,omitempty"`
	JobLineID               *string    `json:"jobLineId,omitempty"`
	Name                    string     `json:"name"`
	PartNumber              string     `json:"partNumber"`
	Description             string     `json:"description"`
	PartType                string     `json:"partType"`
	Quantity                *int       `json:"quantity"`
	UnitPrice               *float64   `json:"unitPrice"`
	CustomerPrice           *float64   `json:"customerPrice"`
	TotalPrice              *float64   `json:"totalPrice"`
	SupplierName            string     `json:"supplierName"`
	SupplierCost            *float64   `json:"supplierCost"`
	SupplierSuggestedRetail *float64   `json:"supplierSuggestedRetail"`
	MarkupPercentage        *float64   `json:"markupPercentage"`
	IsTaxable               *bool      `json:"isTaxable"`
	CoreChargeApplies       bool       `json:"coreChargeApplies"`
	CoreChargeAmount        *float64   `json:"coreChargeAmount"`
	EcoFeeApplies           bool       `json:"ecoFeeApplies"`
	EcoFeeAmount            *float64   `json:"ecoFeeAmount"`
	WarrantyDuration        string     `json:"warrantyDuration"`
	WarrantyExpiryDate      *time.Time `json:"warrantyExpiryDate"`
	InstallDate             *time.Time `json:"installDate"`
	InstalledBy             string     `json:"installedBy"`
	InvoiceNumber           string     `json:"invoiceNumber"`
	PoLine                  string     `json:"poLine"`
	BinLocation             string     `json:"binLocation"`
	WarehouseLocation       string     `json:"warehouseLocation"`
	ShelfLocation           string     `json:"shelfLocation"`
	Status                  string     `json:"status"`
	Notes                   string     `json:"notes"`
}

// resolveUnitPrice picks the selling price: customerPrice, then unitPrice,
// then supplier cost with markup applied.
func (f *PartForm) resolveUnitPrice() float64 {
	switch {
	case f.CustomerPrice != nil:
		return *f.CustomerPrice
	case f.UnitPrice != nil:
		return *f.UnitPrice
	case f.SupplierCost != nil && f.MarkupPercentage != nil:
		return pricing.CustomerPrice(*f.SupplierCost, *f.MarkupPercentage)
	default:
		return 0
	}
}

// ToPart converts a form into a row ready for insertion. Quantity defaults
// to 1, prices to 0, and total_price is computed when not supplied.
func ToPart(workOrderID string, f PartForm) domain.Part {
	qty := 1
	if f.Quantity != nil {
		qty = *f.Quantity
	}
	unit := f.resolveUnitPrice()

	p := domain.Part{
		WorkOrderID:             workOrderID,
		JobLineID:               normalizeJobLineID(f.JobLineID),
		Name:                    f.Name,
		PartNumber:              f.PartNumber,
		Description:             f.Description,
		PartType:                f.PartType,
		Quantity:                qty,
		UnitPrice:               unit,
		CustomerPrice:           unit,
		SupplierName:            f.SupplierName,
		SupplierCost:            floatOr(f.SupplierCost, 0),
		SupplierSuggestedRetail: floatOr(f.SupplierSuggestedRetail, 0),
		MarkupPercentage:        floatOr(f.MarkupPercentage, 0),
		IsTaxable:               boolOr(f.IsTaxable, true),
		CoreChargeApplies:       f.CoreChargeApplies,
		CoreChargeAmount:        floatOr(f.CoreChargeAmount, 0),
		EcoFeeApplies:           f.EcoFeeApplies,
		EcoFeeAmount:            floatOr(f.EcoFeeAmount, 0),
		WarrantyDuration:        f.WarrantyDuration,
		WarrantyExpiryDate:      f.WarrantyExpiryDate,
		InstallDate:             f.InstallDate,
		InstalledBy:             f.InstalledBy,
		InvoiceNumber:           f.InvoiceNumber,
		POLine:                  f.PoLine,
		BinLocation:             f.BinLocation,
		WarehouseLocation:       f.WarehouseLocation,
		ShelfLocation:           f.ShelfLocation,
		Status:                  f.Status,
		Notes:                   f.Notes,
	}
	if f.TotalPrice != nil {
		p.TotalPrice = *f.TotalPrice
	} else {
		p.TotalPrice = pricing.PartTotal(qty, unit)
	}
	if f.MarkupPercentage == nil && p.SupplierCost > 0 && unit > 0 {
		p.MarkupPercentage = pricing.MarkupPercentage(p.SupplierCost, unit)
	}
	return p
}

// FromPart converts a stored row back into the form shape
func FromPart(p domain.Part) PartForm {
	qty := p.Quantity
	unit := p.UnitPrice
	customer := p.CustomerPrice
	total := p.TotalPrice
	cost := p.SupplierCost
	retail := p.SupplierSuggestedRetail
	markup := p.MarkupPercentage
	taxable := p.IsTaxable
	core := p.CoreChargeAmount
	eco := p.EcoFeeAmount

	return PartForm{
		ID:                      p.ID,
		JobLineID:               p.JobLineID,
		Name:                    p.Name,
		PartNumber:              p.PartNumber,
		Description:             p.Description,
		PartType:                p.PartType,
		Quantity:                &qty,
		UnitPrice:               &unit,
		CustomerPrice:           &customer,
		TotalPrice:              &total,
		SupplierName:            p.SupplierName,
		SupplierCost:            &cost,
		SupplierSuggestedRetail: &retail,
		MarkupPercentage:        &markup,
		IsTaxable:               &taxable,
		CoreChargeApplies:       p.CoreChargeApplies,
		CoreChargeAmount:        &core,
		EcoFeeApplies:           p.EcoFeeApplies,
		EcoFeeAmount:            &eco,
		WarrantyDuration:        p.WarrantyDuration,
		WarrantyExpiryDate:      p.WarrantyExpiryDate,
		InstallDate:             p.InstallDate,
		InstalledBy:             p.InstalledBy,
		InvoiceNumber:           p.InvoiceNumber,
		PoLine:                  p.POLine,
		BinLocation:             p.BinLocation,
		WarehouseLocation:       p.WarehouseLocation,
		ShelfLocation:           p.ShelfLocation,
		Status:                  p.Status,
		Notes:                   p.Notes,
	}
}

// PartPatch is a partial part edit. Nil fields are left unchanged.
// A JobLineID of "" detaches the part from its job line.
type PartPatch struct {
	JobLineID               *string    `json:"jobLineId"`
	Name                    *string    `json:"name"`
	PartNumber              *string    `json:"partNumber"`
	Description             *string    `json:"description"`
	PartType                *string    `json:"partType"`
	Quantity                *int       `json:"quantity"`
	UnitPrice               *float64   `json:"unitPrice"`
	CustomerPrice           *float64   `json:"customerPrice"`
	TotalPrice              *float64   `json:"totalPrice"`
	SupplierName            *string    `json:"supplierName"`
	SupplierCost            *float64   `json:"supplierCost"`
	SupplierSuggestedRetail *float64   `json:"supplierSuggestedRetail"`
	MarkupPercentage        *float64   `json:"markupPercentage"`
	IsTaxable               *bool      `json:"isTaxable"`
	CoreChargeApplies       *bool      `json:"coreChargeApplies"`
	CoreChargeAmount        *float64   `json:"coreChargeAmount"`
	EcoFeeApplies           *bool      `json:"ecoFeeApplies"`
	EcoFeeAmount            *float64   `json:"ecoFeeAmount"`
	WarrantyDuration        *string    `json:"warrantyDuration"`
	WarrantyExpiryDate      *time.Time `json:"warrantyExpiryDate"`
	InstallDate             *time.Time `json:"installDate"`
	InstalledBy             *string    `json:"installedBy"`
	InvoiceNumber           *string    `json:"invoiceNumber"`
	PoLine                  *string    `json:"poLine"`
	BinLocation             *string    `json:"binLocation"`
	WarehouseLocation       *string    `json:"warehouseLocation"`
	ShelfLocation           *string    `json:"shelfLocation"`
	Status                  *string    `json:"status"`
	Notes                   *string    `json:"notes"`
}

// PartColumns maps a patch to column assignments. unitPrice and customerPrice
// both set unit_price and customer_price, customerPrice winning when both are
// sent. id, work_order_id and created_at are never produced.
func PartColumns(p PartPatch) Columns {
	var cols Columns
	if p.JobLineID != nil {
		cols.Set("job_line_id", normalizeJobLineID(p.JobLineID))
	}
	addString(&cols, "name", p.Name)
	addString(&cols, "part_number", p.PartNumber)
	addString(&cols, "description", p.Description)
	addString(&cols, "part_type", p.PartType)
	if p.Quantity != nil {
		cols.Set("quantity", *p.Quantity)
	}
	if p.UnitPrice != nil {
		cols.Set("unit_price", *p.UnitPrice)
		cols.Set("customer_price", *p.UnitPrice)
	}
	if p.CustomerPrice != nil {
		cols.Set("unit_price", *p.CustomerPrice)
		cols.Set("customer_price", *p.CustomerPrice)
	}
	addFloat(&cols, "total_price", p.TotalPrice)
	addString(&cols, "supplier_name", p.SupplierName)
	addFloat(&cols, "supplier_cost", p.SupplierCost)
	addFloat(&cols, "supplier_suggested_retail", p.SupplierSuggestedRetail)
	addFloat(&cols, "markup_percentage", p.MarkupPercentage)
	addBool(&cols, "is_taxable", p.IsTaxable)
	addBool(&cols, "core_charge_applies", p.CoreChargeApplies)
	addFloat(&cols, "core_charge_amount", p.CoreChargeAmount)
	addBool(&cols, "eco_fee_applies", p.EcoFeeApplies)
	addFloat(&cols, "eco_fee_amount", p.EcoFeeAmount)
	addString(&cols, "warranty_duration", p.WarrantyDuration)
	if p.WarrantyExpiryDate != nil {
		cols.Set("warranty_expiry_date", *p.WarrantyExpiryDate)
	}
	if p.InstallDate != nil {
		cols.Set("install_date", *p.InstallDate)
	}
	addString(&cols, "installed_by", p.InstalledBy)
	addString(&cols, "invoice_number", p.InvoiceNumber)
	addString(&cols, "po_line", p.PoLine)
	addString(&cols, "bin_location", p.BinLocation)
	addString(&cols, "warehouse_location", p.WarehouseLocation)
	addString(&cols, "shelf_location", p.ShelfLocation)
	addString(&cols, "status", p.Status)
	addString(&cols, "notes", p.Notes)
	return cols
}

// PartColumnNames is every column a part patch may assign
var PartColumnNames = []string{
	"job_line_id", "name", "part_number", "description", "part_type", "quantity",
	"unit_price", "customer_price", "total_price", "supplier_name", "supplier_cost",
	"supplier_suggested_retail", "markup_percentage", "is_taxable", "core_charge_applies",
	"core_charge_amount", "eco_fee_applies", "eco_fee_amount", "warranty_duration",
	"warranty_expiry_date", "install_date", "installed_by", "invoice_number", "po_line",
	"bin_location", "warehouse_location", "shelf_location", "status", "notes",
}

func normalizeJobLineID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	v := *id
	return &v
}
