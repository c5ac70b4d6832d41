package domain

import "time"

// EmailTemplate is a reusable message body with {{variable}} placeholders
type EmailTemplate struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Subject   string    `json:"subject" db:"subject"`
	HTMLBody  string    `json:"html_body" db:"html_body"`
	TextBody  string    `json:"text_body" db:"text_body"`
	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EmailCampaign is a one-off send to all eligible customers
type EmailCampaign struct {
	ID                string     `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	TemplateID        *string    `json:"template_id" db:"template_id"`
	Subject           string     `json:"subject" db:"subject"`
	Status            string     `json:"status" db:"status"`
	IsABTest          bool       `json:"is_ab_test" db:"is_ab_test"`
	WinnerMetric      string     `json:"winner_metric" db:"winner_metric"`
	MinSampleSize     int        `json:"min_sample_size" db:"min_sample_size"`
	WinnerVariantID   *string    `json:"winner_variant_id" db:"winner_variant_id"`
	SentCount         int        `json:"sent_count" db:"sent_count"`
	OpenedCount       int        `json:"opened_count" db:"opened_count"`
	ClickedCount      int        `json:"clicked_count" db:"clicked_count"`
	BouncedCount      int        `json:"bounced_count" db:"bounced_count"`
	UnsubscribedCount int        `json:"unsubscribed_count" db:"unsubscribed_count"`
	SentAt            *time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// EmailCampaignVariant is one arm of an A/B test campaign
type EmailCampaignVariant struct {
	ID             string    `json:"id" db:"id"`
	CampaignID     string    `json:"campaign_id" db:"campaign_id"`
	Name           string    `json:"name" db:"name"`
	TemplateID     *string   `json:"template_id" db:"template_id"`
	Subject        string    `json:"subject" db:"subject"`
	Weight         int       `json:"weight" db:"weight"`
	SentCount      int       `json:"sent_count" db:"sent_count"`
	OpenedCount    int       `json:"opened_count" db:"opened_count"`
	ClickedCount   int       `json:"clicked_count" db:"clicked_count"`
	ConvertedCount int       `json:"converted_count" db:"converted_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Rate returns the variant's rate for a winner metric, 0 when nothing was sent
func (v *EmailCampaignVariant) Rate(metric string) float64 {
	if v.SentCount == 0 {
		return 0
	}
	var n int
	switch metric {
	case MetricOpenRate:
		n = v.OpenedCount
	case MetricClickRate:
		n = v.ClickedCount
	case MetricConversionRate:
		n = v.ConvertedCount
	}
	return float64(n) / float64(v.SentCount)
}

// EmailSequence is a drip series of timed steps
type EmailSequence struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// EmailSequenceStep is one message of a sequence, sent DelayHours after the previous one
type EmailSequenceStep struct {
	ID         string    `json:"id" db:"id"`
	SequenceID string    `json:"sequence_id" db:"sequence_id"`
	StepOrder  int       `json:"step_order" db:"step_order"`
	DelayHours int       `json:"delay_hours" db:"delay_hours"`
	TemplateID *string   `json:"template_id" db:"template_id"`
	Subject    string    `json:"subject" db:"subject"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EmailSequenceEnrollment tracks one customer's progress through a sequence.
// CurrentStep is the zero-based index of the next step to send.
type EmailSequenceEnrollment struct {
	ID          string     `json:"id" db:"id"`
	SequenceID  string     `json:"sequence_id" db:"sequence_id"`
	CustomerID  string     `json:"customer_id" db:"customer_id"`
	Status      string     `json:"status" db:"status"`
	CurrentStep int        `json:"current_step" db:"current_step"`
	NextSendAt  *time.Time `json:"next_send_at" db:"next_send_at"`
	EnrolledAt  time.Time  `json:"enrolled_at" db:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// EmailSend is the delivery log row of one message
type EmailSend struct {
	ID           string     `json:"id" db:"id"`
	CustomerID   *string    `json:"customer_id" db:"customer_id"`
	ToAddress    string     `json:"to_address" db:"to_address"`
	CampaignID   *string    `json:"campaign_id" db:"campaign_id"`
	VariantID    *string    `json:"variant_id" db:"variant_id"`
	SequenceID   *string    `json:"sequence_id" db:"sequence_id"`
	EnrollmentID *string    `json:"enrollment_id" db:"enrollment_id"`
	StepID       *string    `json:"step_id" db:"step_id"`
	Subject      string     `json:"subject" db:"subject"`
	Status       string     `json:"status" db:"status"`
	Error        string     `json:"error,omitempty" db:"error"`
	SentAt       time.Time  `json:"sent_at" db:"sent_at"`
	OpenedAt     *time.Time `json:"opened_at" db:"opened_at"`
	ClickedAt    *time.Time `json:"clicked_at" db:"clicked_at"`
}

// ProcessingSchedule is the stored value of the processing_schedule setting
type ProcessingSchedule struct {
	Enabled     bool     `json:"enabled"`
	Cron        string   `json:"cron"`
	SequenceIDs []string `json:"sequence_ids"`
}

// DefaultProcessingSchedule is used when the setting row is absent
func DefaultProcessingSchedule() ProcessingSchedule {
	return ProcessingSchedule{Enabled: false, Cron: "0 * * * *", SequenceIDs: []string{}}
}

const (
	// SettingProcessingSchedule is the email_system_settings key of the schedule
	SettingProcessingSchedule = "processing_schedule"

	// Campaign statuses
	CampaignStatusDraft       = "draft"
	CampaignStatusSending     = "sending"
	CampaignStatusSent        = "sent"
	// CampaignStatusInterrupted ends a run cancelled before every recipient was tried
	CampaignStatusInterrupted = "interrupted"

	// Sequence statuses
	SequenceStatusActive   = "active"
	SequenceStatusPaused   = "paused"
	SequenceStatusArchived = "archived"

	// Enrollment statuses
	EnrollmentActive    = "active"
	EnrollmentPaused    = "paused"
	EnrollmentCompleted = "completed"
	EnrollmentCancelled = "cancelled"

	// Send statuses
	SendStatusSent    = "sent"
	SendStatusFailed  = "failed"
	SendStatusOpened  = "opened"
	SendStatusClicked = "clicked"
	SendStatusBounced = "bounced"

	// A/B winner metrics
	MetricOpenRate       = "open_rate"
	MetricClickRate      = "click_rate"
	MetricConversionRate = "conversion_rate"
)

// Campaign metric counter columns
const (
	CounterSent         = "sent_count"
	CounterOpened       = "opened_count"
	CounterClicked      = "clicked_count"
	CounterBounced      = "bounced_count"
	CounterUnsubscribed = "unsubscribed_count"
	CounterConverted    = "converted_count"
)

// IsValidWinnerMetric reports whether m is a supported A/B metric
func IsValidWinnerMetric(m string) bool {
	switch m {
	case MetricOpenRate, MetricClickRate, MetricConversionRate:
		return true
	default:
		return false
	}
}
