package workshop

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
	"shopflow/internal/realtime"
	"shopflow/internal/repository"
)

// WorkOrderForm is the create payload of a work order
type WorkOrderForm struct {
	CustomerID   string     `json:"customer_id"`
	VehicleID    *string    `json:"vehicle_id"`
	EquipmentID  *string    `json:"equipment_id"`
	TechnicianID *string    `json:"technician_id"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
}

// WorkOrderPatch is a partial work order edit. Status has its own operation.
type WorkOrderPatch struct {
	CustomerID   *string    `json:"customer_id"`
	VehicleID    *string    `json:"vehicle_id"`
	EquipmentID  *string    `json:"equipment_id"`
	TechnicianID *string    `json:"technician_id"`
	Description  *string    `json:"description"`
	Priority     *string    `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
}

// ListWorkOrders returns work orders, most recently updated first
func (s *Service) ListWorkOrders(ctx context.Context, filter repository.WorkOrderFilter) ([]domain.WorkOrder, error) {
	if filter.Status != "" {
		status, err := domain.ParseWorkOrderStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	return s.repos.WorkOrders.List(ctx, filter)
}

// GetWorkOrder returns a work order or ErrNotFound
func (s *Service) GetWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return s.requireWorkOrder(ctx, id)
}

func (s *Service) buildWorkOrder(form WorkOrderForm) (*domain.WorkOrder, error) {
	if strings.TrimSpace(form.CustomerID) == "" {
		return nil, domain.NewValidationError("customer_id", "is required")
	}
	status, err := s.enumValue(domain.ParseWorkOrderStatus, form.Status, domain.WorkOrderStatusPending)
	if err != nil {
		return nil, err
	}
	priority, err := s.enumValue(domain.ParsePriority, form.Priority, domain.PriorityMedium)
	if err != nil {
		return nil, err
	}
	return &domain.WorkOrder{
		CustomerID:   form.CustomerID,
		VehicleID:    emptyToNil(form.VehicleID),
		EquipmentID:  emptyToNil(form.EquipmentID),
		TechnicianID: emptyToNil(form.TechnicianID),
		Description:  form.Description,
		Status:       status,
		Priority:     priority,
		DueDate:      form.DueDate,
	}, nil
}

// CreateWorkOrder stores a new work order with its initial history row
func (s *Service) CreateWorkOrder(ctx context.Context, form WorkOrderForm) (*domain.WorkOrder, error) {
	wo, err := s.buildWorkOrder(form)
	if err != nil {
		return nil, err
	}
	if err := s.repos.WorkOrders.Create(ctx, wo); err != nil {
		log.WithError(err).Error("Failed to create work order")
		return nil, err
	}
	log.WithFields(log.Fields{"work_order_id": wo.ID, "customer_id": wo.CustomerID}).Info("Work order created")
	s.publish(realtime.EventInsert, wo)
	return wo, nil
}

// CreateWorkOrderWithLines stores a work order and its initial job lines
// atomically. Either everything is written or nothing is.
func (s *Service) CreateWorkOrderWithLines(ctx context.Context, form WorkOrderForm, forms []mapper.JobLineForm) (*domain.WorkOrder, []domain.JobLine, error) {
	wo, err := s.buildWorkOrder(form)
	if err != nil {
		return nil, nil, err
	}
	lines := make([]domain.JobLine, 0, len(forms))
	for _, f := range forms {
		line, err := s.prepareJobLine("", f)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, line)
	}

	if err := s.repos.WorkOrders.CreateWithLines(ctx, wo, lines); err != nil {
		log.WithError(err).WithField("lines", len(lines)).Error("Failed to create work order with job lines")
		return nil, nil, err
	}
	totals, err := s.RecalculateTotal(ctx, wo.ID)
	if err != nil {
		log.WithError(err).WithField("work_order_id", wo.ID).Warn("Failed to recalculate work order total")
	}
	wo.TotalCost = totals.GrandTotal
	s.publish(realtime.EventInsert, wo)
	return wo, lines, nil
}

// UpdateWorkOrder applies the supplied fields of a patch
func (s *Service) UpdateWorkOrder(ctx context.Context, id string, patch WorkOrderPatch) (*domain.WorkOrder, error) {
	wo, err := s.requireWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.CustomerID != nil {
		if strings.TrimSpace(*patch.CustomerID) == "" {
			return nil, domain.NewValidationError("customer_id", "must not be empty")
		}
		wo.CustomerID = *patch.CustomerID
	}
	if patch.VehicleID != nil {
		wo.VehicleID = emptyToNil(patch.VehicleID)
	}
	if patch.EquipmentID != nil {
		wo.EquipmentID = emptyToNil(patch.EquipmentID)
	}
	if patch.TechnicianID != nil {
		wo.TechnicianID = emptyToNil(patch.TechnicianID)
	}
	if patch.Description != nil {
		wo.Description = *patch.Description
	}
	if patch.Priority != nil {
		if wo.Priority, err = s.enumValue(domain.ParsePriority, *patch.Priority, domain.PriorityMedium); err != nil {
			return nil, err
		}
	}
	if patch.DueDate != nil {
		wo.DueDate = patch.DueDate
	}

	if err := s.repos.WorkOrders.Update(ctx, wo); err != nil {
		return nil, err
	}
	s.publish(realtime.EventUpdate, wo)
	return wo, nil
}

// UpdateWorkOrderStatus changes the status and records it in the history.
// Statuses may move freely between any two values.
func (s *Service) UpdateWorkOrderStatus(ctx context.Context, id, status string, changedBy *string, notes string) (*domain.WorkOrder, error) {
	parsed, err := domain.ParseWorkOrderStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.repos.WorkOrders.UpdateStatus(ctx, id, parsed, changedBy, notes); err != nil {
		return nil, err
	}
	wo, err := s.requireWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"work_order_id": id, "status": parsed}).Info("Work order status changed")
	s.publish(realtime.EventUpdate, wo)
	return wo, nil
}

// StatusHistory returns the status changes of a work order, oldest first
func (s *Service) StatusHistory(ctx context.Context, id string) ([]domain.WorkOrderStatusHistory, error) {
	return s.repos.WorkOrders.GetStatusHistory(ctx, id)
}

// CountByStatus returns the number of work orders per status
func (s *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s.repos.WorkOrders.CountByStatus(ctx)
}

// DeleteWorkOrder removes a work order with all of its rows and attachment files
func (s *Service) DeleteWorkOrder(ctx context.Context, id string) error {
	wo, err := s.requireWorkOrder(ctx, id)
	if err != nil {
		return err
	}
	attachments, err := s.repos.Attachments.ListByWorkOrder(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.WorkOrders.Delete(ctx, id); err != nil {
		return err
	}
	if s.opts.Files != nil {
		for _, a := range attachments {
			if err := s.opts.Files.Delete(a.StoragePath); err != nil {
				log.WithError(err).WithField("attachment_id", a.ID).Warn("Failed to delete attachment file")
			}
		}
	}
	log.WithField("work_order_id", id).Info("Work order deleted")
	s.publish(realtime.EventDelete, wo)
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
