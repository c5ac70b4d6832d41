package marketing

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

// SequenceForm is the create and update payload of a drip sequence
type SequenceForm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// StepForm adds a step to a sequence
type StepForm struct {
	DelayHours int     `json:"delay_hours"`
	TemplateID *string `json:"template_id"`
	Subject    string  `json:"subject"`
}

// EnrollRequest names the customer and sequence of a new enrollment
type EnrollRequest struct {
	CustomerID string `json:"customerId"`
	SequenceID string `json:"sequenceId"`
}

// SequenceDetail is a sequence with its ordered steps
type SequenceDetail struct {
	domain.EmailSequence
	Steps []domain.EmailSequenceStep `json:"steps"`
}

func parseSequenceStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", domain.SequenceStatusActive:
		return domain.SequenceStatusActive, nil
	case domain.SequenceStatusPaused:
		return domain.SequenceStatusPaused, nil
	case domain.SequenceStatusArchived:
		return domain.SequenceStatusArchived, nil
	default:
		return "", domain.NewValidationError("status", "unknown sequence status %q", status)
	}
}

// ListSequences returns every sequence
func (s *Service) ListSequences(ctx context.Context) ([]domain.EmailSequence, error) {
	return s.repos.Sequences.List(ctx)
}

func (s *Service) requireSequence(ctx context.Context, id string) (*domain.EmailSequence, error) {
	seq, err := s.repos.Sequences.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if seq == nil {
		return nil, fmt.Errorf("sequence %s: %w", id, domain.ErrNotFound)
	}
	return seq, nil
}

// GetSequence returns a sequence with its steps
func (s *Service) GetSequence(ctx context.Context, id string) (*SequenceDetail, error) {
	seq, err := s.requireSequence(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.repos.Sequences.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SequenceDetail{EmailSequence: *seq, Steps: steps}, nil
}

// CreateSequence stores a new sequence
func (s *Service) CreateSequence(ctx context.Context, form SequenceForm) (*domain.EmailSequence, error) {
	if strings.TrimSpace(form.Name) == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	status, err := parseSequenceStatus(form.Status)
	if err != nil {
		return nil, err
	}
	seq := &domain.EmailSequence{Name: strings.TrimSpace(form.Name), Description: form.Description, Status: status}
	if err := s.repos.Sequences.Create(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// UpdateSequence renames a sequence or changes its status
func (s *Service) UpdateSequence(ctx context.Context, id string, form SequenceForm) (*domain.EmailSequence, error) {
	seq, err := s.requireSequence(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(form.Name); name != "" {
		seq.Name = name
	}
	seq.Description = form.Description
	if form.Status != "" {
		if seq.Status, err = parseSequenceStatus(form.Status); err != nil {
			return nil, err
		}
	}
	if err := s.repos.Sequences.Update(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// DeleteSequence removes a sequence with its steps and enrollments
func (s *Service) DeleteSequence(ctx context.Context, id string) error {
	if _, err := s.requireSequence(ctx, id); err != nil {
		return err
	}
	return s.repos.Sequences.Delete(ctx, id)
}

// AddStep appends a step to a sequence
func (s *Service) AddStep(ctx context.Context, sequenceID string, form StepForm) (*domain.EmailSequenceStep, error) {
	if _, err := s.requireSequence(ctx, sequenceID); err != nil {
		return nil, err
	}
	if form.DelayHours < 0 {
		return nil, domain.NewValidationError("delay_hours", "must not be negative")
	}
	if form.TemplateID == nil || *form.TemplateID == "" {
		return nil, domain.NewValidationError("template_id", "is required")
	}
	if _, err := s.GetTemplate(ctx, *form.TemplateID); err != nil {
		return nil, err
	}
	step := &domain.EmailSequenceStep{
		SequenceID: sequenceID,
		DelayHours: form.DelayHours,
		TemplateID: form.TemplateID,
		Subject:    form.Subject,
	}
	if err := s.repos.Sequences.AddStep(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// DeleteStep removes a step
func (s *Service) DeleteStep(ctx context.Context, id string) error {
	return s.repos.Sequences.DeleteStep(ctx, id)
}

// ListEnrollments returns the enrollments of a sequence
func (s *Service) ListEnrollments(ctx context.Context, sequenceID string) ([]domain.EmailSequenceEnrollment, error) {
	return s.repos.Sequences.ListEnrollments(ctx, sequenceID)
}

func (s *Service) requireEnrollment(ctx context.Context, id string) (*domain.EmailSequenceEnrollment, error) {
	e, err := s.repos.Sequences.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("enrollment %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

// Enroll starts a customer on a sequence. The first step is due after its
// own delay.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*domain.EmailSequenceEnrollment, error) {
	if req.CustomerID == "" {
		return nil, domain.NewValidationError("customerId", "is required")
	}
	if req.SequenceID == "" {
		return nil, domain.NewValidationError("sequenceId", "is required")
	}
	seq, err := s.requireSequence(ctx, req.SequenceID)
	if err != nil {
		return nil, err
	}
	if seq.Status != domain.SequenceStatusActive {
		return nil, domain.NewValidationError("sequenceId", "sequence is %s", seq.Status)
	}
	customer, err := s.repos.Customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer %s: %w", req.CustomerID, domain.ErrNotFound)
	}
	existing, err := s.repos.Sequences.FindEnrollment(ctx, req.SequenceID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewValidationError("customerId", "customer is already enrolled (%s)", existing.Status)
	}

	steps, err := s.repos.Sequences.ListSteps(ctx, req.SequenceID)
	if err != nil {
		return nil, err
	}
	next := s.opts.Now()
	if len(steps) > 0 {
		next = next.Add(time.Duration(steps[0].DelayHours) * time.Hour)
	}
	e := &domain.EmailSequenceEnrollment{
		SequenceID: req.SequenceID,
		CustomerID: req.CustomerID,
		Status:     domain.EnrollmentActive,
		NextSendAt: &next,
	}
	if err := s.repos.Sequences.Enroll(ctx, e); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"sequence_id": req.SequenceID, "customer_id": req.CustomerID}).Info("Customer enrolled")
	return e, nil
}

// setEnrollmentStatus moves an enrollment between active, paused and cancelled
func (s *Service) setEnrollmentStatus(ctx context.Context, id, status string, from ...string) (*domain.EmailSequenceEnrollment, error) {
	e, err := s.requireEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		if e.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.NewValidationError("status", "cannot move enrollment from %s to %s", e.Status, status)
	}
	e.Status = status
	if err := s.repos.Sequences.UpdateEnrollment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// PauseEnrollment stops sends to an active enrollment
func (s *Service) PauseEnrollment(ctx context.Context, id string) (*domain.EmailSequenceEnrollment, error) {
	return s.setEnrollmentStatus(ctx, id, domain.EnrollmentPaused, domain.EnrollmentActive)
}

// ResumeEnrollment reactivates a paused enrollment. A step that fell due
// while paused goes out on the next run.
func (s *Service) ResumeEnrollment(ctx context.Context, id string) (*domain.EmailSequenceEnrollment, error) {
	return s.setEnrollmentStatus(ctx, id, domain.EnrollmentActive, domain.EnrollmentPaused)
}

// CancelEnrollment ends an enrollment for good
func (s *Service) CancelEnrollment(ctx context.Context, id string) (*domain.EmailSequenceEnrollment, error) {
	return s.setEnrollmentStatus(ctx, id, domain.EnrollmentCancelled, domain.EnrollmentActive, domain.EnrollmentPaused)
}
