package marketing

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

// Tracking events accepted by RecordEvent
const (
	EventOpened       = "opened"
	EventClicked      = "clicked"
	EventBounced      = "bounced"
	EventUnsubscribed = "unsubscribed"
	EventConverted    = "converted"
)

func (s *Service) requireSend(ctx context.Context, id string) (*domain.EmailSend, error) {
	send, err := s.repos.EmailSends.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if send == nil {
		return nil, fmt.Errorf("email send %s: %w", id, domain.ErrNotFound)
	}
	return send, nil
}

// RecordEvent applies a tracking event to a logged send and its campaign
// counters. Repeated opens and clicks of the same send count once. It
// reports whether any counter changed.
func (s *Service) RecordEvent(ctx context.Context, sendID, event string) (bool, error) {
	send, err := s.requireSend(ctx, sendID)
	if err != nil {
		return false, err
	}

	var variant *domain.EmailCampaignVariant
	if send.VariantID != nil {
		variant = &domain.EmailCampaignVariant{ID: *send.VariantID}
	}
	campaignID := ""
	if send.CampaignID != nil {
		campaignID = *send.CampaignID
	}
	count := func(campaignCounter, variantCounter string) {
		if campaignID == "" {
			return
		}
		s.bump(ctx, campaignID, variant, campaignCounter, variantCounter)
	}

	switch event {
	case EventOpened, EventClicked, EventBounced:
		changed, err := s.repos.EmailSends.MarkEvent(ctx, sendID, event, s.opts.Now())
		if err != nil || !changed {
			return false, err
		}
		switch event {
		case EventOpened:
			count(domain.CounterOpened, domain.CounterOpened)
		case EventClicked:
			if send.OpenedAt == nil {
				count(domain.CounterOpened, domain.CounterOpened)
			}
			count(domain.CounterClicked, domain.CounterClicked)
		case EventBounced:
			count(domain.CounterBounced, "")
		}
	case EventUnsubscribed:
		if send.CustomerID == nil {
			return false, domain.NewValidationError("event", "send has no customer to unsubscribe")
		}
		if err := s.repos.Customers.SetEmailOptOut(ctx, *send.CustomerID, true); err != nil {
			return false, err
		}
		count(domain.CounterUnsubscribed, "")
		log.WithField("customer_id", *send.CustomerID).Info("Customer unsubscribed from email")
	case EventConverted:
		if variant == nil {
			return false, nil
		}
		count("", domain.CounterConverted)
	default:
		return false, domain.NewValidationError("event", "unknown tracking event %q", event)
	}
	return true, nil
}
