// Package workshop implements the work order operations of the shop: job
// lines, parts, presets, attachments and the assembled work order view.
package workshop

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/pricing"
	"shopflow/internal/realtime"
	"shopflow/internal/repository"
)

// FileStore keeps attachment contents
type FileStore interface {
	Save(key string, r io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
	URL(key string) string
}

// Options tune service behaviour
type Options struct {
	// RejectUnknownEnums turns unrecognised status and rate type values into
	// validation errors instead of falling back to the default.
	RejectUnknownEnums bool
	// PartsPolicy applies when a job line is deleted without an explicit policy
	PartsPolicy domain.PartsPolicy
	Publisher   realtime.Publisher
	Files       FileStore
	// Now is overridable in tests
	Now func() time.Time
}

// Service is the workshop business layer
type Service struct {
	repos *repository.Repositories
	opts  Options
}

// New creates a workshop service
func New(repos *repository.Repositories, opts Options) *Service {
	if opts.PartsPolicy == "" {
		opts.PartsPolicy = domain.PartsDetach
	}
	if opts.Publisher == nil {
		opts.Publisher = realtime.Discard
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repos: repos, opts: opts}
}

// enumValue applies the enum policy: empty input takes def, an unknown value
// is either rejected or replaced by def with a warning.
func (s *Service) enumValue(parse func(string) (string, error), value, def string) (string, error) {
	if value == "" {
		return def, nil
	}
	v, err := parse(value)
	if err == nil {
		return v, nil
	}
	if s.opts.RejectUnknownEnums {
		return "", err
	}
	log.WithFields(log.Fields{
		"value":   value,
		"default": def,
	}).Warn("Unrecognized enum value, using default")
	return def, nil
}

func (s *Service) publish(eventType string, wo *domain.WorkOrder) {
	e := realtime.Event{Type: eventType, WorkOrderID: wo.ID, Status: wo.Status, At: s.opts.Now()}
	s.opts.Publisher.Publish(e)
}

// requireWorkOrder loads a work order or returns ErrNotFound
func (s *Service) requireWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error) {
	wo, err := s.repos.WorkOrders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if wo == nil {
		return nil, fmt.Errorf("work order %s: %w", id, domain.ErrNotFound)
	}
	return wo, nil
}

// RecalculateTotal stores the sum of labor and parts on the work order
func (s *Service) RecalculateTotal(ctx context.Context, workOrderID string) (pricing.Totals, error) {
	lines, err := s.repos.JobLines.GetAll(ctx, workOrderID)
	if err != nil {
		return pricing.Totals{}, err
	}
	parts, err := s.repos.Parts.GetByWorkOrder(ctx, workOrderID)
	if err != nil {
		return pricing.Totals{}, err
	}
	totals := pricing.Summarize(lines, parts)
	if err := s.repos.WorkOrders.UpdateTotalCost(ctx, workOrderID, totals.GrandTotal); err != nil {
		return totals, err
	}
	s.opts.Publisher.Publish(realtime.Event{Type: realtime.EventUpdate, WorkOrderID: workOrderID, At: s.opts.Now()})
	return totals, nil
}

// refreshTotal is RecalculateTotal for callers whose own write already succeeded
func (s *Service) refreshTotal(ctx context.Context, workOrderID string) {
	if _, err := s.RecalculateTotal(ctx, workOrderID); err != nil {
		log.WithError(err).WithField("work_order_id", workOrderID).Warn("Failed to recalculate work order total")
	}
}
