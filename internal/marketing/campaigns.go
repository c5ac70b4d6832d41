package marketing

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

// ErrNoWinner is returned when no A/B variant has reached the minimum sample
var ErrNoWinner = fmt.Errorf("no winner yet: %w", domain.ErrNotFound)

// VariantForm is one A/B arm of a campaign form
type VariantForm struct {
	Name       string  `json:"name"`
	TemplateID *string `json:"template_id"`
	Subject    string  `json:"subject"`
	Weight     int     `json:"weight"`
}

// CampaignForm is the create and update payload of a campaign
type CampaignForm struct {
	Name          string        `json:"name"`
	TemplateID    *string       `json:"template_id"`
	Subject       string        `json:"subject"`
	IsABTest      bool          `json:"is_ab_test"`
	WinnerMetric  string        `json:"winner_metric"`
	MinSampleSize int           `json:"min_sample_size"`
	Variants      []VariantForm `json:"variants"`
}

// CampaignDetail is a campaign with its variants
type CampaignDetail struct {
	domain.EmailCampaign
	Variants []domain.EmailCampaignVariant `json:"variants"`
}

// TriggerResult summarizes one campaign run
type TriggerResult struct {
	CampaignID string         `json:"campaign_id"`
	Recipients int            `json:"recipients"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	ByVariant  map[string]int `json:"by_variant,omitempty"`
}

// validate checks a form. variants is the number of variants the campaign
// will have.
func (f *CampaignForm) validate(variants int) error {
	if strings.TrimSpace(f.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}
	if f.WinnerMetric == "" {
		f.WinnerMetric = domain.MetricOpenRate
	}
	if !domain.IsValidWinnerMetric(f.WinnerMetric) {
		return domain.NewValidationError("winner_metric", "unknown metric %q", f.WinnerMetric)
	}
	if f.MinSampleSize < 0 {
		return domain.NewValidationError("min_sample_size", "must not be negative")
	}
	if f.IsABTest && variants < 2 {
		return domain.NewValidationError("variants", "an A/B test needs at least two variants")
	}
	for i, v := range f.Variants {
		if strings.TrimSpace(v.Name) == "" {
			return domain.NewValidationError("variants", "variant %d needs a name", i+1)
		}
		if v.Weight < 0 {
			return domain.NewValidationError("variants", "variant %q has a negative weight", v.Name)
		}
	}
	return nil
}

// ListCampaigns returns campaigns, newest first
func (s *Service) ListCampaigns(ctx context.Context, status string) ([]domain.EmailCampaign, error) {
	return s.repos.Campaigns.List(ctx, status)
}

func (s *Service) requireCampaign(ctx context.Context, id string) (*domain.EmailCampaign, error) {
	c, err := s.repos.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// GetCampaign returns a campaign with its variants
func (s *Service) GetCampaign(ctx context.Context, id string) (*CampaignDetail, error) {
	c, err := s.requireCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	variants, err := s.repos.Campaigns.ListVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetail{EmailCampaign: *c, Variants: variants}, nil
}

// CreateCampaign stores a draft campaign and its variants
func (s *Service) CreateCampaign(ctx context.Context, form CampaignForm) (*CampaignDetail, error) {
	if err := form.validate(len(form.Variants)); err != nil {
		return nil, err
	}
	c := &domain.EmailCampaign{
		Name:          strings.TrimSpace(form.Name),
		TemplateID:    form.TemplateID,
		Subject:       form.Subject,
		Status:        domain.CampaignStatusDraft,
		IsABTest:      form.IsABTest,
		WinnerMetric:  form.WinnerMetric,
		MinSampleSize: form.MinSampleSize,
	}
	if err := s.repos.Campaigns.Create(ctx, c); err != nil {
		return nil, err
	}

	detail := &CampaignDetail{EmailCampaign: *c, Variants: []domain.EmailCampaignVariant{}}
	var done []string
	for _, vf := range form.Variants {
		v := domain.EmailCampaignVariant{
			CampaignID: c.ID,
			Name:       strings.TrimSpace(vf.Name),
			TemplateID: vf.TemplateID,
			Subject:    vf.Subject,
			Weight:     vf.Weight,
		}
		if err := s.repos.Campaigns.CreateVariant(ctx, &v); err != nil {
			return nil, &domain.PartialFailureError{Op: "create campaign variants", Done: done, Failed: []string{v.Name}, Err: err}
		}
		done = append(done, v.ID)
		detail.Variants = append(detail.Variants, v)
	}
	log.WithFields(log.Fields{"campaign_id": c.ID, "variants": len(detail.Variants)}).Info("Campaign created")
	return detail, nil
}

// UpdateCampaign edits a draft campaign. Variants are not changed.
func (s *Service) UpdateCampaign(ctx context.Context, id string, form CampaignForm) (*domain.EmailCampaign, error) {
	c, err := s.requireCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignStatusDraft {
		return nil, domain.NewValidationError("status", "only draft campaigns can be edited")
	}
	existing, err := s.repos.Campaigns.ListVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	form.Variants = nil
	if err := form.validate(len(existing)); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(form.Name)
	c.TemplateID = form.TemplateID
	c.Subject = form.Subject
	c.IsABTest = form.IsABTest
	c.WinnerMetric = form.WinnerMetric
	c.MinSampleSize = form.MinSampleSize
	if err := s.repos.Campaigns.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCampaign removes a campaign and its variants
func (s *Service) DeleteCampaign(ctx context.Context, id string) error {
	if _, err := s.requireCampaign(ctx, id); err != nil {
		return err
	}
	return s.repos.Campaigns.Delete(ctx, id)
}

// variantSchedule expands variant weights into a repeating assignment order,
// so weights 2 and 1 give A, A, B, A, A, B and so on.
func variantSchedule(variants []domain.EmailCampaignVariant) []int {
	var order []int
	for i, v := range variants {
		w := v.Weight
		if w <= 0 {
			w = 1
		}
		for j := 0; j < w; j++ {
			order = append(order, i)
		}
	}
	return order
}

// TriggerCampaign sends a campaign to every customer with an address who
// has not opted out. A/B campaigns split recipients across variants by
// weight. Failed sends are logged and reported without stopping the run.
func (s *Service) TriggerCampaign(ctx context.Context, id string) (*TriggerResult, error) {
	c, err := s.requireCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignStatusDraft {
		return nil, domain.NewValidationError("status", "campaign is already %s", c.Status)
	}

	var variants []domain.EmailCampaignVariant
	if c.IsABTest {
		if variants, err = s.repos.Campaigns.ListVariants(ctx, id); err != nil {
			return nil, err
		}
		if len(variants) == 0 {
			return nil, domain.NewValidationError("variants", "A/B campaign has no variants")
		}
	}
	cache := map[string]*domain.EmailTemplate{}
	if err := s.preloadTemplates(ctx, cache, c, variants); err != nil {
		return nil, err
	}
	recipients, err := s.repos.Customers.ListEmailable(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Campaigns.SetStatus(ctx, id, domain.CampaignStatusSending, nil); err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{"campaign_id": id, "recipients": len(recipients)})
	logger.Info("Campaign send started")

	result := &TriggerResult{CampaignID: id, Recipients: len(recipients)}
	if c.IsABTest {
		result.ByVariant = make(map[string]int, len(variants))
	}
	schedule := variantSchedule(variants)
	var sent, failed []string

	for i := range recipients {
		if err := ctx.Err(); err != nil {
			result.Sent, result.Failed = len(sent), len(failed)
			s.interrupt(ctx, id, logger, len(recipients)-i)
			return result, &domain.PartialFailureError{Op: "trigger campaign", Done: sent, Failed: failed, Err: err}
		}
		customer := &recipients[i]
		templateID, subject := c.TemplateID, c.Subject
		logRow := domain.EmailSend{CampaignID: &c.ID}

		var variant *domain.EmailCampaignVariant
		if len(schedule) > 0 {
			variant = &variants[schedule[i%len(schedule)]]
			if variant.TemplateID != nil && *variant.TemplateID != "" {
				templateID = variant.TemplateID
			}
			if variant.Subject != "" {
				subject = variant.Subject
			}
			logRow.VariantID = &variant.ID
		}

		msg, err := s.render(ctx, cache, templateID, subject, customer)
		if err != nil {
			logger.WithError(err).WithField("customer_id", customer.ID).Warn("Failed to render campaign email")
			failed = append(failed, customer.ID)
			continue
		}

		if _, err := s.deliver(ctx, msg, logRow); err != nil {
			logger.WithError(err).WithField("customer_id", customer.ID).Warn("Campaign email failed")
			failed = append(failed, customer.ID)
			continue
		}
		sent = append(sent, customer.ID)
		s.bump(ctx, c.ID, variant, domain.CounterSent, domain.CounterSent)
		if variant != nil {
			result.ByVariant[variant.ID]++
		}
	}

	result.Sent, result.Failed = len(sent), len(failed)
	sentAt := s.opts.Now()
	if err := s.repos.Campaigns.SetStatus(ctx, id, domain.CampaignStatusSent, &sentAt); err != nil {
		return result, err
	}
	logger.WithFields(log.Fields{"sent": result.Sent, "failed": result.Failed}).Info("Campaign send finished")
	if len(failed) > 0 {
		return result, &domain.PartialFailureError{
			Op:     "trigger campaign",
			Done:   sent,
			Failed: failed,
			Err:    fmt.Errorf("%d of %d emails failed", len(failed), len(recipients)),
		}
	}
	return result, nil
}

// interrupt moves a cancelled run out of "sending" so the campaign does not
// stay locked. ctx is already done, so the write runs detached from it.
func (s *Service) interrupt(ctx context.Context, id string, logger *log.Entry, untried int) {
	at := s.opts.Now()
	if err := s.repos.Campaigns.SetStatus(context.WithoutCancel(ctx), id, domain.CampaignStatusInterrupted, &at); err != nil {
		logger.WithError(err).Error("Failed to mark interrupted campaign")
		return
	}
	logger.WithField("untried", untried).Warn("Campaign send interrupted")
}

// preloadTemplates checks that every template the campaign can use exists
// before anything is sent.
func (s *Service) preloadTemplates(ctx context.Context, cache map[string]*domain.EmailTemplate, c *domain.EmailCampaign, variants []domain.EmailCampaignVariant) error {
	var ids []*string
	if len(variants) == 0 {
		ids = append(ids, c.TemplateID)
	}
	for i := range variants {
		if variants[i].TemplateID != nil && *variants[i].TemplateID != "" {
			ids = append(ids, variants[i].TemplateID)
		} else {
			ids = append(ids, c.TemplateID)
		}
	}
	for _, id := range ids {
		if id == nil || *id == "" {
			return domain.NewValidationError("template_id", "is required to send")
		}
		if _, ok := cache[*id]; ok {
			continue
		}
		tpl, err := s.repos.EmailTemplates.GetByID(ctx, *id)
		if err != nil {
			return err
		}
		if tpl == nil {
			return domain.NewValidationError("template_id", "template %s does not exist", *id)
		}
		cache[*id] = tpl
	}
	return nil
}

// bump increments a campaign counter and, when a variant is given, a
// variant counter. Counter failures only log.
func (s *Service) bump(ctx context.Context, campaignID string, variant *domain.EmailCampaignVariant, campaignCounter, variantCounter string) {
	if campaignCounter != "" {
		if err := s.repos.Campaigns.IncrementCounter(ctx, campaignID, campaignCounter); err != nil {
			log.WithError(err).WithField("campaign_id", campaignID).Warn("Failed to increment campaign counter")
		}
	}
	if variant != nil && variantCounter != "" {
		if err := s.repos.Campaigns.IncrementVariantCounter(ctx, variant.ID, variantCounter); err != nil {
			log.WithError(err).WithField("variant_id", variant.ID).Warn("Failed to increment variant counter")
		}
	}
}

// PickWinner returns the variant with the highest rate for metric among
// those that reached minSample sends. Ties go to the earlier variant.
func PickWinner(variants []domain.EmailCampaignVariant, metric string, minSample int) (*domain.EmailCampaignVariant, bool) {
	var best *domain.EmailCampaignVariant
	bestRate := -1.0
	for i := range variants {
		v := &variants[i]
		if v.SentCount == 0 || v.SentCount < minSample {
			continue
		}
		if rate := v.Rate(metric); rate > bestRate {
			best, bestRate = v, rate
		}
	}
	return best, best != nil
}

// SelectWinner picks and stores the winning variant of an A/B campaign
func (s *Service) SelectWinner(ctx context.Context, campaignID string) (*domain.EmailCampaignVariant, error) {
	c, err := s.requireCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.IsABTest {
		return nil, domain.NewValidationError("is_ab_test", "campaign is not an A/B test")
	}
	variants, err := s.repos.Campaigns.ListVariants(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	winner, ok := PickWinner(variants, c.WinnerMetric, c.MinSampleSize)
	if !ok {
		return nil, ErrNoWinner
	}
	if err := s.repos.Campaigns.SetWinner(ctx, campaignID, winner.ID); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"campaign_id": campaignID,
		"variant_id":  winner.ID,
		"metric":      c.WinnerMetric,
		"rate":        winner.Rate(c.WinnerMetric),
	}).Info("A/B winner selected")
	return winner, nil
}
