package domain

import "time"

// JobLine is a labor or service line item of a work order
type JobLine struct {
	ID              string     `json:"id" db:"id"`
	WorkOrderID     string     `json:"work_order_id" db:"work_order_id"`
	Name            string     `json:"name" db:"name"`
	Category        string     `json:"category" db:"category"`
	Subcategory     string     `json:"subcategory" db:"subcategory"`
	Description     string     `json:"description" db:"description"`
	EstimatedHours  float64    `json:"estimated_hours" db:"estimated_hours"`
	LaborRate       float64    `json:"labor_rate" db:"labor_rate"`
	LaborRateType   string     `json:"labor_rate_type" db:"labor_rate_type"`
	TotalAmount     float64    `json:"total_amount" db:"total_amount"`
	Status          string     `json:"status" db:"status"`
	DisplayOrder    int        `json:"display_order" db:"display_order"`
	IsWorkCompleted bool       `json:"is_work_completed" db:"is_work_completed"`
	CompletionDate  *time.Time `json:"completion_date" db:"completion_date"`
	CompletedBy     *string    `json:"completed_by" db:"completed_by"`
	Notes           string     `json:"notes" db:"notes"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	// Job line statuses
	JobLineStatusPending    = "pending"
	JobLineStatusInProgress = "in-progress"
	JobLineStatusCompleted  = "completed"
	JobLineStatusOnHold     = "on-hold"

	// Labor rate types
	LaborRateStandard   = "standard"
	LaborRateDiagnostic = "diagnostic"
	LaborRateEmergency  = "emergency"
	LaborRateWarranty   = "warranty"
	LaborRateInternal   = "internal"
)

var jobLineStatuses = []string{
	JobLineStatusPending, JobLineStatusInProgress, JobLineStatusCompleted, JobLineStatusOnHold,
}

var laborRateTypes = []string{
	LaborRateStandard, LaborRateDiagnostic, LaborRateEmergency, LaborRateWarranty, LaborRateInternal,
}

// ParseJobLineStatus validates a job line status
func ParseJobLineStatus(s string) (string, error) {
	return parseEnum("status", s, jobLineStatuses)
}

// ParseLaborRateType validates a labor rate type
func ParseLaborRateType(s string) (string, error) {
	return parseEnum("labor_rate_type", s, laborRateTypes)
}

// PartsPolicy decides what happens to a job line's parts when the line is deleted
type PartsPolicy string

const (
	// PartsDetach clears job_line_id so the parts stay on the work order unassigned
	PartsDetach PartsPolicy = "detach"
	// PartsDelete removes the parts with the line
	PartsDelete PartsPolicy = "delete"
	// PartsKeep leaves job_line_id pointing at the deleted line
	PartsKeep PartsPolicy = "keep"
)

// ParsePartsPolicy validates a parts policy, empty means detach
func ParsePartsPolicy(s string) (PartsPolicy, error) {
	if s == "" {
		return PartsDetach, nil
	}
	v, err := parseEnum("parts_policy", s, []string{string(PartsDetach), string(PartsDelete), string(PartsKeep)})
	return PartsPolicy(v), err
}

// LineKey identifies a job line either by its client-side draft id or by
// its stored id. Exactly one of the two implementations is ever used.
type LineKey interface {
	isLineKey()
	String() string
}

// DraftKey is a job line that only exists in the client's local state
type DraftKey struct {
	ClientID string
}

// PersistedKey is a job line with a stored id
type PersistedKey struct {
	ID string
}

func (DraftKey) isLineKey()     {}
func (PersistedKey) isLineKey() {}

func (k DraftKey) String() string     { return "draft:" + k.ClientID }
func (k PersistedKey) String() string { return k.ID }
