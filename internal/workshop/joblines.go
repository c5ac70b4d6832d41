package workshop

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
)

// ListJobLines returns a work order's job lines in display order
func (s *Service) ListJobLines(ctx context.Context, workOrderID string) ([]domain.JobLine, error) {
	return s.repos.JobLines.GetAll(ctx, workOrderID)
}

func (s *Service) requireJobLine(ctx context.Context, id string) (*domain.JobLine, error) {
	line, err := s.repos.JobLines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, fmt.Errorf("job line %s: %w", id, domain.ErrNotFound)
	}
	return line, nil
}

func validateHoursAndRate(hours, rate *float64) error {
	if hours != nil && *hours < 0 {
		return domain.NewValidationError("estimated_hours", "must not be negative")
	}
	if rate != nil && *rate < 0 {
		return domain.NewValidationError("labor_rate", "must not be negative")
	}
	return nil
}

// CreateJobLine adds a job line to a work order. Missing or unknown status
// and rate type take their defaults under the coerce policy.
func (s *Service) CreateJobLine(ctx context.Context, workOrderID string, form mapper.JobLineForm) (*domain.JobLine, error) {
	line, err := s.prepareJobLine(workOrderID, form)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireWorkOrder(ctx, workOrderID); err != nil {
		return nil, err
	}

	if err := s.repos.JobLines.Create(ctx, &line); err != nil {
		log.WithError(err).WithField("work_order_id", workOrderID).Error("Failed to create job line")
		return nil, err
	}
	s.refreshTotal(ctx, workOrderID)
	return &line, nil
}

func (s *Service) prepareJobLine(workOrderID string, form mapper.JobLineForm) (domain.JobLine, error) {
	if strings.TrimSpace(form.Name) == "" {
		return domain.JobLine{}, domain.NewValidationError("name", "is required")
	}
	if err := validateHoursAndRate(form.EstimatedHours, form.LaborRate); err != nil {
		return domain.JobLine{}, err
	}
	if form.TotalAmount != nil && *form.TotalAmount < 0 {
		return domain.JobLine{}, domain.NewValidationError("total_amount", "must not be negative")
	}

	line := mapper.ToJobLine(workOrderID, form)
	var err error
	if line.Status, err = s.enumValue(domain.ParseJobLineStatus, form.Status, domain.JobLineStatusPending); err != nil {
		return domain.JobLine{}, err
	}
	if line.LaborRateType, err = s.enumValue(domain.ParseLaborRateType, form.LaborRateType, domain.LaborRateStandard); err != nil {
		return domain.JobLine{}, err
	}
	return line, nil
}

// UpdateJobLine applies the supplied fields of a patch
func (s *Service) UpdateJobLine(ctx context.Context, id string, patch mapper.JobLinePatch) (*domain.JobLine, error) {
	if err := validateHoursAndRate(patch.EstimatedHours, patch.LaborRate); err != nil {
		return nil, err
	}
	if patch.TotalAmount != nil && *patch.TotalAmount < 0 {
		return nil, domain.NewValidationError("total_amount", "must not be negative")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}
	if patch.Status != nil {
		v, err := s.enumValue(domain.ParseJobLineStatus, *patch.Status, domain.JobLineStatusPending)
		if err != nil {
			return nil, err
		}
		patch.Status = &v
	}
	if patch.LaborRateType != nil {
		v, err := s.enumValue(domain.ParseLaborRateType, *patch.LaborRateType, domain.LaborRateStandard)
		if err != nil {
			return nil, err
		}
		patch.LaborRateType = &v
	}
	// hours or rate drive total_amount
	if patch.ChangesRate() {
		patch.TotalAmount = nil
	}

	cols := mapper.JobLineColumns(patch)
	if len(cols) == 0 {
		return s.requireJobLine(ctx, id)
	}
	line, err := s.repos.JobLines.Update(ctx, id, cols)
	if err != nil {
		return nil, err
	}
	s.refreshTotal(ctx, line.WorkOrderID)
	return line, nil
}

// UpsertJobLine creates a line for a draft key and updates a persisted one
func (s *Service) UpsertJobLine(ctx context.Context, workOrderID string, form mapper.JobLineForm) (*domain.JobLine, error) {
	switch key := form.Key().(type) {
	case domain.DraftKey:
		return s.CreateJobLine(ctx, workOrderID, form)
	case domain.PersistedKey:
		current, err := s.requireJobLine(ctx, key.ID)
		if err != nil {
			return nil, err
		}
		if current.WorkOrderID != workOrderID {
			return nil, domain.NewValidationError("id", "job line %s belongs to another work order", key.ID)
		}
		return s.UpdateJobLine(ctx, key.ID, form.Patch())
	default:
		return nil, fmt.Errorf("unsupported job line key %T", key)
	}
}

// DeleteJobLine removes a line, handling its parts per policy ("" uses the configured default)
func (s *Service) DeleteJobLine(ctx context.Context, id, policy string) error {
	p := s.opts.PartsPolicy
	if policy != "" {
		var err error
		if p, err = domain.ParsePartsPolicy(policy); err != nil {
			return err
		}
	}
	line, err := s.requireJobLine(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.JobLines.Delete(ctx, id, p); err != nil {
		return err
	}
	log.WithFields(log.Fields{"job_line_id": id, "parts_policy": p}).Info("Job line deleted")
	s.refreshTotal(ctx, line.WorkOrderID)
	return nil
}

// ReorderJobLines sets display_order from the position of each id
func (s *Service) ReorderJobLines(ctx context.Context, workOrderID string, orderedIDs []string) ([]domain.JobLine, error) {
	if err := s.repos.JobLines.Reorder(ctx, workOrderID, orderedIDs); err != nil {
		return nil, err
	}
	return s.repos.JobLines.GetAll(ctx, workOrderID)
}

// MoveJobLine moves one line to a zero-based position, shifting the others
func (s *Service) MoveJobLine(ctx context.Context, workOrderID, lineID string, toIndex int) ([]domain.JobLine, error) {
	lines, err := s.repos.JobLines.GetAll(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(lines))
	from := -1
	for i, l := range lines {
		if l.ID == lineID {
			from = i
		}
		ids = append(ids, l.ID)
	}
	if from < 0 {
		return nil, domain.NewValidationError("id", "job line %s does not belong to work order %s", lineID, workOrderID)
	}
	return s.ReorderJobLines(ctx, workOrderID, moveID(ids, from, toIndex))
}

func moveID(ids []string, from, to int) []string {
	if to < 0 {
		to = 0
	}
	if to > len(ids)-1 {
		to = len(ids) - 1
	}
	id := ids[from]
	out := make([]string, 0, len(ids))
	out = append(out, ids[:from]...)
	out = append(out, ids[from+1:]...)
	out = append(out[:to], append([]string{id}, out[to:]...)...)
	return out
}

// SetJobLineStatus changes only the status column. Completion fields are
// left alone even for "completed"; SetJobLineCompletion manages them.
func (s *Service) SetJobLineStatus(ctx context.Context, id, status string) (*domain.JobLine, error) {
	return s.UpdateJobLine(ctx, id, mapper.JobLinePatch{Status: &status})
}

// SetJobLineCompletion marks a line done or reopens it as pending
func (s *Service) SetJobLineCompletion(ctx context.Context, id string, completed bool, completedBy *string) (*domain.JobLine, error) {
	line, err := s.repos.JobLines.SetCompletion(ctx, id, completed, completedBy, s.opts.Now())
	if err != nil {
		return nil, err
	}
	return line, nil
}
