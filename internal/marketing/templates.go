package marketing

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/templates"
)

// TemplateForm is the create and update payload of an email template
type TemplateForm struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

func (f TemplateForm) apply(t *domain.EmailTemplate) {
	t.Name = strings.TrimSpace(f.Name)
	t.Category = strings.TrimSpace(f.Category)
	t.Subject = f.Subject
	t.HTMLBody = f.HTMLBody
	t.TextBody = f.TextBody
}

func (s *Service) checkTemplate(t *domain.EmailTemplate) error {
	if t.Name == "" {
		return domain.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(t.Subject) == "" {
		return domain.NewValidationError("subject", "is required")
	}
	if strings.TrimSpace(t.HTMLBody) == "" && strings.TrimSpace(t.TextBody) == "" {
		return domain.NewValidationError("html_body", "a body is required")
	}
	return s.templates.Validate(t)
}

// ListTemplates returns templates, optionally of one category
func (s *Service) ListTemplates(ctx context.Context, category string) ([]domain.EmailTemplate, error) {
	return s.repos.EmailTemplates.List(ctx, category)
}

// GetTemplate returns a template or ErrNotFound
func (s *Service) GetTemplate(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	t, err := s.repos.EmailTemplates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// CreateTemplate validates and stores a template
func (s *Service) CreateTemplate(ctx context.Context, form TemplateForm) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	form.apply(t)
	if err := s.checkTemplate(t); err != nil {
		return nil, err
	}
	if err := s.repos.EmailTemplates.Create(ctx, t); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"template_id": t.ID, "name": t.Name}).Info("Email template created")
	return t, nil
}

// UpdateTemplate replaces a template's content and bumps its version
func (s *Service) UpdateTemplate(ctx context.Context, id string, form TemplateForm) (*domain.EmailTemplate, error) {
	t, err := s.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	form.apply(t)
	if err := s.checkTemplate(t); err != nil {
		return nil, err
	}
	if err := s.repos.EmailTemplates.Update(ctx, t); err != nil {
		return nil, err
	}
	s.templates.Invalidate(id)
	return s.GetTemplate(ctx, id)
}

// DeleteTemplate removes a template
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.GetTemplate(ctx, id); err != nil {
		return err
	}
	if err := s.repos.EmailTemplates.Delete(ctx, id); err != nil {
		return err
	}
	s.templates.Invalidate(id)
	return nil
}

// PreviewTemplate renders a template for one customer, or with sample
// values when customerID is empty.
func (s *Service) PreviewTemplate(ctx context.Context, id, customerID string) (templates.Rendered, error) {
	t, err := s.GetTemplate(ctx, id)
	if err != nil {
		return templates.Rendered{}, err
	}
	c := &domain.Customer{FirstName: "Alex", LastName: "Sample", Email: "alex@example.com"}
	if customerID != "" {
		found, err := s.repos.Customers.GetByID(ctx, customerID)
		if err != nil {
			return templates.Rendered{}, err
		}
		if found == nil {
			return templates.Rendered{}, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
		}
		c = found
	}
	return s.templates.Render(t, templates.CustomerVars(c, s.opts.ShopName))
}
