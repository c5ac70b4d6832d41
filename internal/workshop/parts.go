package workshop

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
)

// ListParts returns every part of a work order, oldest first
func (s *Service) ListParts(ctx context.Context, workOrderID string) ([]domain.Part, error) {
	return s.repos.Parts.GetByWorkOrder(ctx, workOrderID)
}

// ListJobLineParts returns the parts linked to a job line. A deleted line
// still returns parts that were left pointing at it.
func (s *Service) ListJobLineParts(ctx context.Context, jobLineID string) ([]domain.Part, error) {
	return s.repos.Parts.GetByJobLine(ctx, jobLineID)
}

// GetPart returns a part or ErrNotFound
func (s *Service) GetPart(ctx context.Context, id string) (*domain.Part, error) {
	p, err := s.repos.Parts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("part %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func nonNegative(field string, v *float64) error {
	if v != nil && *v < 0 {
		return domain.NewValidationError(field, "must not be negative")
	}
	return nil
}

func validatePrices(fields map[string]*float64) error {
	for _, name := range []string{"unit_price", "customer_price", "total_price", "supplier_cost", "core_charge_amount", "eco_fee_amount"} {
		if err := nonNegative(name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// checkJobLine verifies a part's job line belongs to the part's work order
func (s *Service) checkJobLine(ctx context.Context, workOrderID string, jobLineID *string) error {
	if jobLineID == nil || *jobLineID == "" {
		return nil
	}
	line, err := s.repos.JobLines.GetByID(ctx, *jobLineID)
	if err != nil {
		return err
	}
	if line == nil || line.WorkOrderID != workOrderID {
		return domain.NewValidationError("job_line_id", "job line %s is not part of work order %s", *jobLineID, workOrderID)
	}
	return nil
}

// CreatePart validates and stores a new part, then refreshes the work order total
func (s *Service) CreatePart(ctx context.Context, workOrderID string, form mapper.PartForm) (*domain.Part, error) {
	if strings.TrimSpace(form.Name) == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(form.PartNumber) == "" {
		return nil, domain.NewValidationError("part_number", "is required")
	}
	partType, err := domain.ParsePartType(form.PartType)
	if err != nil {
		return nil, err
	}
	if form.Quantity != nil && *form.Quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	if err := validatePrices(map[string]*float64{
		"unit_price":         form.UnitPrice,
		"customer_price":     form.CustomerPrice,
		"total_price":        form.TotalPrice,
		"supplier_cost":      form.SupplierCost,
		"core_charge_amount": form.CoreChargeAmount,
		"eco_fee_amount":     form.EcoFeeAmount,
	}); err != nil {
		return nil, err
	}

	if _, err := s.requireWorkOrder(ctx, workOrderID); err != nil {
		return nil, err
	}
	if err := s.checkJobLine(ctx, workOrderID, form.JobLineID); err != nil {
		return nil, err
	}

	part := mapper.ToPart(workOrderID, form)
	part.PartType = partType
	if part.Status, err = s.enumValue(domain.ParsePartStatus, form.Status, domain.PartStatusPending); err != nil {
		return nil, err
	}
	if part.UnitPrice < 0 || part.TotalPrice < 0 {
		return nil, domain.NewValidationError("unit_price", "must not be negative")
	}

	if err := s.repos.Parts.Create(ctx, &part); err != nil {
		log.WithError(err).WithField("work_order_id", workOrderID).Error("Failed to create part")
		return nil, err
	}
	s.refreshTotal(ctx, workOrderID)
	return &part, nil
}

// UpdatePart applies the supplied fields of a patch
func (s *Service) UpdatePart(ctx context.Context, id string, patch mapper.PartPatch) (*domain.Part, error) {
	current, err := s.GetPart(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}
	if patch.PartNumber != nil && strings.TrimSpace(*patch.PartNumber) == "" {
		return nil, domain.NewValidationError("part_number", "must not be empty")
	}
	if patch.PartType != nil {
		v, err := domain.ParsePartType(*patch.PartType)
		if err != nil {
			return nil, err
		}
		patch.PartType = &v
	}
	if patch.Status != nil {
		v, err := s.enumValue(domain.ParsePartStatus, *patch.Status, domain.PartStatusPending)
		if err != nil {
			return nil, err
		}
		patch.Status = &v
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	if err := validatePrices(map[string]*float64{
		"unit_price":         patch.UnitPrice,
		"customer_price":     patch.CustomerPrice,
		"total_price":        patch.TotalPrice,
		"supplier_cost":      patch.SupplierCost,
		"core_charge_amount": patch.CoreChargeAmount,
		"eco_fee_amount":     patch.EcoFeeAmount,
	}); err != nil {
		return nil, err
	}
	if err := s.checkJobLine(ctx, current.WorkOrderID, patch.JobLineID); err != nil {
		return nil, err
	}

	cols := mapper.PartColumns(patch)
	if len(cols) == 0 {
		return current, nil
	}
	part, err := s.repos.Parts.Update(ctx, id, cols)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"part_id": id, "columns": cols.Names()}).Error("Failed to update part")
		return nil, err
	}
	s.refreshTotal(ctx, part.WorkOrderID)
	return part, nil
}

// DeletePart removes a part and refreshes the work order total
func (s *Service) DeletePart(ctx context.Context, id string) error {
	part, err := s.GetPart(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Parts.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshTotal(ctx, part.WorkOrderID)
	return nil
}
