package sqlite

import (
	"context"
	"fmt"
	"time"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

const emailTemplateColumns = `id, name, category, subject, html_body, text_body, version, created_at, updated_at`

// EmailTemplateRepo implements repository.EmailTemplateRepository
type EmailTemplateRepo struct {
	db *DB
}

// NewEmailTemplateRepo creates a new EmailTemplateRepo
func NewEmailTemplateRepo(db *DB) repository.EmailTemplateRepository {
	return &EmailTemplateRepo{db: db}
}

func (r *EmailTemplateRepo) Create(ctx context.Context, t *domain.EmailTemplate) error {
	if t.ID == "" {
		t.ID = newID()
	}
	t.Version = 1
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt
	query := `INSERT INTO email_templates (` + emailTemplateColumns + `)
		VALUES (:id, :name, :category, :subject, :html_body, :text_body, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("failed to create email template: %w", err)
	}
	return nil
}

func (r *EmailTemplateRepo) GetByID(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	return getOne[domain.EmailTemplate](ctx, r.db, "email template", `SELECT `+emailTemplateColumns+` FROM email_templates WHERE id = ?`, id)
}

func (r *EmailTemplateRepo) List(ctx context.Context, category string) ([]domain.EmailTemplate, error) {
	query := `SELECT ` + emailTemplateColumns + ` FROM email_templates`
	var args []interface{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	templates := []domain.EmailTemplate{}
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list email templates: %w", err)
	}
	return templates, nil
}

func (r *EmailTemplateRepo) Update(ctx context.Context, t *domain.EmailTemplate) error {
	t.UpdatedAt = now()
	query := `UPDATE email_templates
		SET name = ?, category = ?, subject = ?, html_body = ?, text_body = ?, version = version + 1, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, t.Name, t.Category, t.Subject, t.HTMLBody, t.TextBody, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update email template: %w", err)
	}
	if err := requireAffected(res, "update email template"); err != nil {
		return err
	}
	return r.db.GetContext(ctx, &t.Version, `SELECT version FROM email_templates WHERE id = ?`, t.ID)
}

func (r *EmailTemplateRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete email template: %w", err)
	}
	return nil
}

const campaignColumns = `id, name, template_id, subject, status, is_ab_test, winner_metric, min_sample_size,
	winner_variant_id, sent_count, opened_count, clicked_count, bounced_count, unsubscribed_count,
	sent_at, created_at, updated_at`

const variantColumns = `id, campaign_id, name, template_id, subject, weight, sent_count, opened_count,
	clicked_count, converted_count, created_at`

var campaignCounters = []string{
	domain.CounterSent, domain.CounterOpened, domain.CounterClicked,
	domain.CounterBounced, domain.CounterUnsubscribed,
}

var variantCounters = []string{
	domain.CounterSent, domain.CounterOpened, domain.CounterClicked, domain.CounterConverted,
}

// CampaignRepo implements repository.CampaignRepository
type CampaignRepo struct {
	db *DB
}

// NewCampaignRepo creates a new CampaignRepo
func NewCampaignRepo(db *DB) repository.CampaignRepository {
	return &CampaignRepo{db: db}
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.EmailCampaign) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = domain.CampaignStatusDraft
	}
	if c.WinnerMetric == "" {
		c.WinnerMetric = domain.MetricOpenRate
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	query := `INSERT INTO email_campaigns (` + campaignColumns + `)
		VALUES (:id, :name, :template_id, :subject, :status, :is_ab_test, :winner_metric, :min_sample_size,
			:winner_variant_id, :sent_count, :opened_count, :clicked_count, :bounced_count, :unsubscribed_count,
			:sent_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) GetByID(ctx context.Context, id string) (*domain.EmailCampaign, error) {
	return getOne[domain.EmailCampaign](ctx, r.db, "campaign", `SELECT `+campaignColumns+` FROM email_campaigns WHERE id = ?`, id)
}

func (r *CampaignRepo) List(ctx context.Context, status string) ([]domain.EmailCampaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM email_campaigns`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	campaigns := []domain.EmailCampaign{}
	if err := r.db.SelectContext(ctx, &campaigns, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepo) Update(ctx context.Context, c *domain.EmailCampaign) error {
	c.UpdatedAt = now()
	query := `UPDATE email_campaigns
		SET name = :name, template_id = :template_id, subject = :subject, is_ab_test = :is_ab_test,
			winner_metric = :winner_metric, min_sample_size = :min_sample_size, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if err := requireAffected(res, "update campaign"); err != nil {
		return err
	}
	return nil
}

func (r *CampaignRepo) SetStatus(ctx context.Context, id, status string, sentAt *time.Time) error {
	query := `UPDATE email_campaigns SET status = ?, sent_at = COALESCE(?, sent_at), updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, sentAt, now(), id); err != nil {
		return fmt.Errorf("failed to set campaign status: %w", err)
	}
	return nil
}

func (r *CampaignRepo) SetWinner(ctx context.Context, campaignID, variantID string) error {
	query := `UPDATE email_campaigns SET winner_variant_id = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, variantID, now(), campaignID); err != nil {
		return fmt.Errorf("failed to set campaign winner: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_campaigns WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) IncrementCounter(ctx context.Context, campaignID, counter string) error {
	if !contains(campaignCounters, counter) {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}
	query := `UPDATE email_campaigns SET ` + counter + ` = ` + counter + ` + 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, campaignID); err != nil {
		return fmt.Errorf("failed to increment campaign %s: %w", counter, err)
	}
	return nil
}

func (r *CampaignRepo) CreateVariant(ctx context.Context, v *domain.EmailCampaignVariant) error {
	if v.ID == "" {
		v.ID = newID()
	}
	if v.Weight <= 0 {
		v.Weight = 1
	}
	v.CreatedAt = now()
	query := `INSERT INTO email_campaign_variants (` + variantColumns + `)
		VALUES (:id, :campaign_id, :name, :template_id, :subject, :weight, :sent_count, :opened_count,
			:clicked_count, :converted_count, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("failed to create campaign variant: %w", err)
	}
	return nil
}

func (r *CampaignRepo) ListVariants(ctx context.Context, campaignID string) ([]domain.EmailCampaignVariant, error) {
	variants := []domain.EmailCampaignVariant{}
	query := `SELECT ` + variantColumns + ` FROM email_campaign_variants
		WHERE campaign_id = ?
		ORDER BY created_at ASC, rowid ASC`
	if err := r.db.SelectContext(ctx, &variants, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list campaign variants: %w", err)
	}
	return variants, nil
}

func (r *CampaignRepo) IncrementVariantCounter(ctx context.Context, variantID, counter string) error {
	if !contains(variantCounters, counter) {
		return fmt.Errorf("unknown variant counter %q", counter)
	}
	query := `UPDATE email_campaign_variants SET ` + counter + ` = ` + counter + ` + 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, variantID); err != nil {
		return fmt.Errorf("failed to increment variant %s: %w", counter, err)
	}
	return nil
}

const emailSendColumns = `id, customer_id, to_address, campaign_id, variant_id, sequence_id, enrollment_id,
	step_id, subject, status, error, sent_at, opened_at, clicked_at`

// EmailSendRepo implements repository.EmailSendRepository
type EmailSendRepo struct {
	db *DB
}

// NewEmailSendRepo creates a new EmailSendRepo
func NewEmailSendRepo(db *DB) repository.EmailSendRepository {
	return &EmailSendRepo{db: db}
}

func (r *EmailSendRepo) Create(ctx context.Context, s *domain.EmailSend) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.SentAt.IsZero() {
		s.SentAt = now()
	}
	query := `INSERT INTO email_sends (` + emailSendColumns + `)
		VALUES (:id, :customer_id, :to_address, :campaign_id, :variant_id, :sequence_id, :enrollment_id,
			:step_id, :subject, :status, :error, :sent_at, :opened_at, :clicked_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("failed to log email send: %w", err)
	}
	return nil
}

func (r *EmailSendRepo) GetByID(ctx context.Context, id string) (*domain.EmailSend, error) {
	return getOne[domain.EmailSend](ctx, r.db, "email send", `SELECT `+emailSendColumns+` FROM email_sends WHERE id = ?`, id)
}

func (r *EmailSendRepo) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.EmailSend, error) {
	if limit <= 0 {
		limit = 100
	}
	sends := []domain.EmailSend{}
	query := `SELECT ` + emailSendColumns + ` FROM email_sends WHERE campaign_id = ? ORDER BY sent_at DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &sends, query, campaignID, limit); err != nil {
		return nil, fmt.Errorf("failed to list campaign sends: %w", err)
	}
	return sends, nil
}

// MarkEvent records the first open or click. A bounce only replaces a sent status.
func (r *EmailSendRepo) MarkEvent(ctx context.Context, id, status string, at time.Time) (bool, error) {
	var query string
	var args []interface{}
	switch status {
	case domain.SendStatusOpened:
		query = `UPDATE email_sends SET opened_at = ?,
			status = CASE WHEN status = 'sent' THEN 'opened' ELSE status END
			WHERE id = ? AND opened_at IS NULL`
		args = []interface{}{at, id}
	case domain.SendStatusClicked:
		query = `UPDATE email_sends SET clicked_at = ?, opened_at = COALESCE(opened_at, ?), status = 'clicked'
			WHERE id = ? AND clicked_at IS NULL`
		args = []interface{}{at, at, id}
	case domain.SendStatusBounced:
		query = `UPDATE email_sends SET status = 'bounced' WHERE id = ? AND status = 'sent'`
		args = []interface{}{id}
	default:
		return false, domain.NewValidationError("status", "unsupported send event %q", status)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to record email %s: %w", status, err)
	}
	return affectedOne(res)
}
