package marketing

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

// Outcomes of processing one enrollment
const (
	OutcomeSent      = "sent"
	OutcomeCompleted = "completed"
	OutcomeNotDue    = "not_due"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// EnrollmentResult reports what processing did to one enrollment
type EnrollmentResult struct {
	EnrollmentID string                          `json:"enrollment_id"`
	Outcome      string                          `json:"outcome"`
	Error        string                          `json:"error,omitempty"`
	Enrollment   *domain.EmailSequenceEnrollment `json:"enrollment,omitempty"`
}

// ProcessResult summarizes a processing run
type ProcessResult struct {
	Processed int                `json:"processed"`
	Sent      int                `json:"sent"`
	Completed int                `json:"completed"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Results   []EnrollmentResult `json:"results"`
}

// runState caches rows shared by enrollments of one run
type runState struct {
	steps     map[string][]domain.EmailSequenceStep
	sequences map[string]*domain.EmailSequence
	templates map[string]*domain.EmailTemplate
}

func newRunState() *runState {
	return &runState{
		steps:     map[string][]domain.EmailSequenceStep{},
		sequences: map[string]*domain.EmailSequence{},
		templates: map[string]*domain.EmailTemplate{},
	}
}

// ProcessDue sends the current step of every due active enrollment, limited
// to sequenceIDs when given. One failing enrollment does not stop the run.
func (s *Service) ProcessDue(ctx context.Context, sequenceIDs []string) (*ProcessResult, error) {
	due, err := s.repos.Sequences.ListDue(ctx, s.opts.Now(), sequenceIDs)
	if err != nil {
		return nil, err
	}
	result := &ProcessResult{Results: make([]EnrollmentResult, 0, len(due))}
	state := newRunState()
	for i := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		r := s.processOne(ctx, state, &due[i], false)
		result.add(r)
	}
	if result.Processed > 0 {
		log.WithFields(log.Fields{
			"processed": result.Processed,
			"sent":      result.Sent,
			"completed": result.Completed,
			"failed":    result.Failed,
		}).Info("Email sequences processed")
	}
	return result, nil
}

func (r *ProcessResult) add(er EnrollmentResult) {
	r.Processed++
	switch er.Outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeCompleted:
		r.Sent++
		r.Completed++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
	r.Results = append(r.Results, er)
}

// ProcessEnrollment processes a single enrollment. force ignores next_send_at.
func (s *Service) ProcessEnrollment(ctx context.Context, id string, force bool) (*EnrollmentResult, error) {
	if id == "" {
		return nil, domain.NewValidationError("enrollmentId", "is required")
	}
	e, err := s.requireEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != domain.EnrollmentActive {
		return nil, domain.NewValidationError("enrollmentId", "enrollment is %s", e.Status)
	}
	r := s.processOne(ctx, newRunState(), e, force)
	return &r, nil
}

// DueCount returns the number of enrollments waiting to be processed
func (s *Service) DueCount(ctx context.Context) (int, error) {
	return s.repos.Sequences.CountDue(ctx, s.opts.Now())
}

func (s *Service) loadSequence(ctx context.Context, state *runState, id string) (*domain.EmailSequence, []domain.EmailSequenceStep, error) {
	seq, ok := state.sequences[id]
	if !ok {
		var err error
		if seq, err = s.requireSequence(ctx, id); err != nil {
			return nil, nil, err
		}
		state.sequences[id] = seq
	}
	steps, ok := state.steps[id]
	if !ok {
		var err error
		if steps, err = s.repos.Sequences.ListSteps(ctx, id); err != nil {
			return nil, nil, err
		}
		state.steps[id] = steps
	}
	return seq, steps, nil
}

// processOne sends the current step of an enrollment, then advances it.
// After the last step the enrollment completes. A failed send leaves the
// enrollment unchanged so the step is retried on the next run.
func (s *Service) processOne(ctx context.Context, state *runState, e *domain.EmailSequenceEnrollment, force bool) EnrollmentResult {
	res := EnrollmentResult{EnrollmentID: e.ID, Enrollment: e}
	logger := log.WithFields(log.Fields{"enrollment_id": e.ID, "sequence_id": e.SequenceID})
	fail := func(err error) EnrollmentResult {
		logger.WithError(err).Warn("Failed to process enrollment")
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		return res
	}

	now := s.opts.Now()
	if !force && (e.NextSendAt == nil || e.NextSendAt.After(now)) {
		res.Outcome = OutcomeNotDue
		return res
	}

	seq, steps, err := s.loadSequence(ctx, state, e.SequenceID)
	if err != nil {
		return fail(err)
	}
	if seq.Status != domain.SequenceStatusActive {
		res.Outcome = OutcomeSkipped
		return res
	}
	if e.CurrentStep >= len(steps) {
		if err := s.completeEnrollment(ctx, e, now); err != nil {
			return fail(err)
		}
		res.Outcome = OutcomeSkipped
		return res
	}

	customer, err := s.repos.Customers.GetByID(ctx, e.CustomerID)
	if err != nil {
		return fail(err)
	}
	if customer == nil || customer.EmailOptOut || customer.Email == "" {
		e.Status = domain.EnrollmentCancelled
		e.NextSendAt = nil
		if err := s.repos.Sequences.UpdateEnrollment(ctx, e); err != nil {
			return fail(err)
		}
		logger.WithField("customer_id", e.CustomerID).Info("Enrollment cancelled, customer cannot receive email")
		res.Outcome = OutcomeSkipped
		return res
	}

	step := steps[e.CurrentStep]
	msg, err := s.render(ctx, state.templates, step.TemplateID, step.Subject, customer)
	if err != nil {
		return fail(err)
	}
	if _, err := s.deliver(ctx, msg, domain.EmailSend{
		SequenceID:   &e.SequenceID,
		EnrollmentID: &e.ID,
		StepID:       &step.ID,
	}); err != nil {
		return fail(err)
	}

	e.CurrentStep++
	if e.CurrentStep >= len(steps) {
		if err := s.completeEnrollment(ctx, e, now); err != nil {
			return fail(err)
		}
		res.Outcome = OutcomeCompleted
		return res
	}
	next := now.Add(time.Duration(steps[e.CurrentStep].DelayHours) * time.Hour)
	e.NextSendAt = &next
	if err := s.repos.Sequences.UpdateEnrollment(ctx, e); err != nil {
		return fail(err)
	}
	res.Outcome = OutcomeSent
	return res
}

func (s *Service) completeEnrollment(ctx context.Context, e *domain.EmailSequenceEnrollment, at time.Time) error {
	e.Status = domain.EnrollmentCompleted
	e.CompletedAt = &at
	e.NextSendAt = nil
	return s.repos.Sequences.UpdateEnrollment(ctx, e)
}
