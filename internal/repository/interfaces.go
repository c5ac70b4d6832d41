// Package repository defines interfaces for data persistence
package repository

import (
	"context"
	"time"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, role string, limit, offset int) ([]domain.User, error)
	Count(ctx context.Context, role string) (int, error)
}

// CustomerRepository defines the interface for customer data operations
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context, limit, offset int) ([]domain.Customer, error)
	// ListEmailable returns customers with an address who have not opted out
	ListEmailable(ctx context.Context) ([]domain.Customer, error)
	SetEmailOptOut(ctx context.Context, id string, optOut bool) error
}

// VehicleRepository defines the interface for vehicle data operations
type VehicleRepository interface {
	Create(ctx context.Context, vehicle *domain.Vehicle) error
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)
	GetByCustomerID(ctx context.Context, customerID string) ([]domain.Vehicle, error)
}

// EquipmentRepository defines the interface for equipment asset operations
type EquipmentRepository interface {
	Create(ctx context.Context, asset *domain.EquipmentAsset) error
	GetByID(ctx context.Context, id string) (*domain.EquipmentAsset, error)
	List(ctx context.Context, limit, offset int) ([]domain.EquipmentAsset, error)
}

// WorkOrderFilter narrows a work order listing
type WorkOrderFilter struct {
	Status     string
	CustomerID string
	Limit      int
	Offset     int
}

// WorkOrderRepository defines the interface for work order data operations
type WorkOrderRepository interface {
	Create(ctx context.Context, wo *domain.WorkOrder) error
	// CreateWithLines inserts the work order and its initial job lines in one transaction
	CreateWithLines(ctx context.Context, wo *domain.WorkOrder, lines []domain.JobLine) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	List(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error)
	Update(ctx context.Context, wo *domain.WorkOrder) error
	UpdateStatus(ctx context.Context, id, status string, changedBy *string, notes string) error
	UpdateTotalCost(ctx context.Context, id string, total float64) error
	GetStatusHistory(ctx context.Context, workOrderID string) ([]domain.WorkOrderStatusHistory, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	// Delete removes the work order with its parts, job lines, attachments and history
	Delete(ctx context.Context, id string) error
}

// JobLineRepository defines the interface for job line data operations
type JobLineRepository interface {
	GetAll(ctx context.Context, workOrderID string) ([]domain.JobLine, error)
	GetByID(ctx context.Context, id string) (*domain.JobLine, error)
	// Create always appends: display_order becomes max+1 for the work order
	Create(ctx context.Context, line *domain.JobLine) error
	// Update applies cols and recomputes total_amount when hours or rate change
	Update(ctx context.Context, id string, cols mapper.Columns) (*domain.JobLine, error)
	Delete(ctx context.Context, id string, policy domain.PartsPolicy) error
	// Reorder sets display_order = index+1 for every id, all or nothing
	Reorder(ctx context.Context, workOrderID string, orderedIDs []string) error
	SetCompletion(ctx context.Context, id string, completed bool, completedBy *string, at time.Time) (*domain.JobLine, error)
}

// PartRepository defines the interface for part data operations
type PartRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Part, error)
	GetByWorkOrder(ctx context.Context, workOrderID string) ([]domain.Part, error)
	GetByJobLine(ctx context.Context, jobLineID string) ([]domain.Part, error)
	Create(ctx context.Context, part *domain.Part) error
	// Update applies cols, keeping customer price, markup and total_price derived
	Update(ctx context.Context, id string, cols mapper.Columns) (*domain.Part, error)
	Delete(ctx context.Context, id string) error
}

// PresetRepository defines the interface for maintenance preset operations
type PresetRepository interface {
	List(ctx context.Context, kind domain.PresetKind, category string) ([]domain.Preset, error)
	GetByID(ctx context.Context, kind domain.PresetKind, id string) (*domain.Preset, error)
	// FindByName matches name and category case-insensitively
	FindByName(ctx context.Context, kind domain.PresetKind, name, category string) (*domain.Preset, error)
	Create(ctx context.Context, preset *domain.Preset) error
	IncrementUsage(ctx context.Context, kind domain.PresetKind, id string) error
	Delete(ctx context.Context, kind domain.PresetKind, id string) error
}

// AttachmentRepository defines the interface for work order attachments
type AttachmentRepository interface {
	Create(ctx context.Context, a *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]domain.Attachment, error)
	Delete(ctx context.Context, id string) error
}

// SettingsRepository handles email system configuration
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// EmailTemplateRepository defines the interface for email templates
type EmailTemplateRepository interface {
	Create(ctx context.Context, t *domain.EmailTemplate) error
	GetByID(ctx context.Context, id string) (*domain.EmailTemplate, error)
	List(ctx context.Context, category string) ([]domain.EmailTemplate, error)
	// Update bumps the template version
	Update(ctx context.Context, t *domain.EmailTemplate) error
	Delete(ctx context.Context, id string) error
}

// CampaignRepository defines the interface for campaigns and their A/B variants
type CampaignRepository interface {
	Create(ctx context.Context, c *domain.EmailCampaign) error
	GetByID(ctx context.Context, id string) (*domain.EmailCampaign, error)
	List(ctx context.Context, status string) ([]domain.EmailCampaign, error)
	Update(ctx context.Context, c *domain.EmailCampaign) error
	SetStatus(ctx context.Context, id, status string, sentAt *time.Time) error
	SetWinner(ctx context.Context, campaignID, variantID string) error
	Delete(ctx context.Context, id string) error
	IncrementCounter(ctx context.Context, campaignID, counter string) error

	CreateVariant(ctx context.Context, v *domain.EmailCampaignVariant) error
	ListVariants(ctx context.Context, campaignID string) ([]domain.EmailCampaignVariant, error)
	IncrementVariantCounter(ctx context.Context, variantID, counter string) error
}

// SequenceRepository defines the interface for drip sequences, steps and enrollments
type SequenceRepository interface {
	Create(ctx context.Context, s *domain.EmailSequence) error
	GetByID(ctx context.Context, id string) (*domain.EmailSequence, error)
	List(ctx context.Context) ([]domain.EmailSequence, error)
	Update(ctx context.Context, s *domain.EmailSequence) error
	Delete(ctx context.Context, id string) error

	AddStep(ctx context.Context, step *domain.EmailSequenceStep) error
	ListSteps(ctx context.Context, sequenceID string) ([]domain.EmailSequenceStep, error)
	DeleteStep(ctx context.Context, id string) error

	Enroll(ctx context.Context, e *domain.EmailSequenceEnrollment) error
	GetEnrollment(ctx context.Context, id string) (*domain.EmailSequenceEnrollment, error)
	FindEnrollment(ctx context.Context, sequenceID, customerID string) (*domain.EmailSequenceEnrollment, error)
	ListEnrollments(ctx context.Context, sequenceID string) ([]domain.EmailSequenceEnrollment, error)
	// ListDue returns active enrollments with next_send_at <= now, optionally limited to sequenceIDs
	ListDue(ctx context.Context, now time.Time, sequenceIDs []string) ([]domain.EmailSequenceEnrollment, error)
	CountDue(ctx context.Context, now time.Time) (int, error)
	UpdateEnrollment(ctx context.Context, e *domain.EmailSequenceEnrollment) error
}

// EmailSendRepository defines the interface for the delivery log
type EmailSendRepository interface {
	Create(ctx context.Context, s *domain.EmailSend) error
	GetByID(ctx context.Context, id string) (*domain.EmailSend, error)
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.EmailSend, error)
	// MarkEvent records an open, click or bounce. It reports false when the
	// event was already recorded.
	MarkEvent(ctx context.Context, id, status string, at time.Time) (bool, error)
}

// Repositories bundles all repository interfaces
type Repositories struct {
	Users          UserRepository
	Customers      CustomerRepository
	Vehicles       VehicleRepository
	Equipment      EquipmentRepository
	WorkOrders     WorkOrderRepository
	JobLines       JobLineRepository
	Parts          PartRepository
	Presets        PresetRepository
	Attachments    AttachmentRepository
	Settings       SettingsRepository
	EmailTemplates EmailTemplateRepository
	Campaigns      CampaignRepository
	Sequences      SequenceRepository
	EmailSends     EmailSendRepository
}
