// Package marketing implements the email side of the shop: templates,
// campaigns with A/B variants, drip sequences and their scheduled processing.
package marketing

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/domain/notifications"
	"shopflow/internal/repository"
	"shopflow/internal/templates"
)

// Options tune service behaviour
type Options struct {
	// ShopName fills the {{shop_name}} placeholder
	ShopName string
	// Now is overridable in tests
	Now func() time.Time
}

// Service is the email marketing business layer
type Service struct {
	repos     *repository.Repositories
	notifier  notifications.Notifier
	templates *templates.Manager
	opts      Options

	onSchedule func(domain.ProcessingSchedule)
}

// New creates a marketing service
func New(repos *repository.Repositories, notifier notifications.Notifier, tm *templates.Manager, opts Options) *Service {
	if tm == nil {
		tm = templates.NewManager()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repos: repos, notifier: notifier, templates: tm, opts: opts}
}

// OnScheduleChange registers a callback run after the processing schedule is saved
func (s *Service) OnScheduleChange(fn func(domain.ProcessingSchedule)) {
	s.onSchedule = fn
}

// message is one rendered email bound to a recipient
type message struct {
	customer *domain.Customer
	rendered templates.Rendered
}

// render resolves a template and an optional subject override for a customer
func (s *Service) render(ctx context.Context, cache map[string]*domain.EmailTemplate, templateID *string, subject string, c *domain.Customer) (*message, error) {
	if templateID == nil || *templateID == "" {
		return nil, domain.NewValidationError("template_id", "is required to send")
	}
	tpl, ok := cache[*templateID]
	if !ok {
		var err error
		if tpl, err = s.repos.EmailTemplates.GetByID(ctx, *templateID); err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, fmt.Errorf("template %s: %w", *templateID, domain.ErrNotFound)
		}
		cache[*templateID] = tpl
	}

	vars := templates.CustomerVars(c, s.opts.ShopName)
	out, err := s.templates.Render(tpl, vars)
	if err != nil {
		return nil, err
	}
	if subject != "" {
		if out.Subject, err = templates.RenderText(subject, vars); err != nil {
			return nil, err
		}
	}
	return &message{customer: c, rendered: out}, nil
}

// deliver sends a message and writes its delivery log row. The send row is
// written for failures too.
func (s *Service) deliver(ctx context.Context, msg *message, send domain.EmailSend) (*domain.EmailSend, error) {
	send.CustomerID = &msg.customer.ID
	send.ToAddress = msg.customer.Email
	send.Subject = msg.rendered.Subject
	send.SentAt = s.opts.Now()
	send.Status = domain.SendStatusSent

	sendErr := s.notifier.SendEmail(ctx, notifications.EmailNotification{
		To:       msg.customer.Email,
		Subject:  msg.rendered.Subject,
		HTMLBody: msg.rendered.HTMLBody,
		TextBody: msg.rendered.TextBody,
	})
	if sendErr != nil {
		send.Status = domain.SendStatusFailed
		send.Error = sendErr.Error()
	}

	if err := s.repos.EmailSends.Create(ctx, &send); err != nil {
		log.WithError(err).WithField("to", send.ToAddress).Warn("Failed to log email send")
	}
	if sendErr != nil {
		return &send, fmt.Errorf("failed to send email to %s: %w", msg.customer.Email, sendErr)
	}
	return &send, nil
}
