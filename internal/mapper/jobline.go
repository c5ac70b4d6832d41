package mapper

import (
	"strings"

	"shopflow/internal/domain"
	"shopflow/internal/pricing"
)

// Prefixes older clients put on ids of rows that only existed locally
var legacyDraftPrefixes = []string{"temp-", "service-"}

// JobLineForm is a job line as clients submit it. A stored line carries
// id; a line that only exists client-side carries draftId.
type JobLineForm struct {
	ID             string   `json:"id,omitempty"`
	DraftID        string   `json:"draftId,omitempty"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Subcategory    string   `json:"subcategory"`
	Description    string   `json:"description"`
	EstimatedHours *float64 `json:"estimatedHours"`
	LaborRate      *float64 `json:"laborRate"`
	LaborRateType  string   `json:"laborRateType"`
	TotalAmount    *float64 `json:"totalAmount"`
	Status         string   `json:"status"`
	Notes          string   `json:"notes"`
}

// Key returns which kind of line the form refers to
func (f *JobLineForm) Key() domain.LineKey {
	if f.DraftID != "" {
		return domain.DraftKey{ClientID: f.DraftID}
	}
	if f.ID == "" {
		return domain.DraftKey{}
	}
	for _, prefix := range legacyDraftPrefixes {
		if strings.HasPrefix(f.ID, prefix) {
			return domain.DraftKey{ClientID: f.ID}
		}
	}
	return domain.PersistedKey{ID: f.ID}
}

// ToJobLine converts a form into a row ready for insertion. total_amount
// defaults to hours × rate. Display order is left to the store, which appends.
func ToJobLine(workOrderID string, f JobLineForm) domain.JobLine {
	hours := floatOr(f.EstimatedHours, 0)
	rate := floatOr(f.LaborRate, 0)

	l := domain.JobLine{
		WorkOrderID:    workOrderID,
		Name:           f.Name,
		Category:       f.Category,
		Subcategory:    f.Subcategory,
		Description:    f.Description,
		EstimatedHours: hours,
		LaborRate:      rate,
		LaborRateType:  f.LaborRateType,
		Status:         f.Status,
		Notes:          f.Notes,
	}
	if f.TotalAmount != nil {
		l.TotalAmount = *f.TotalAmount
	} else {
		l.TotalAmount = pricing.LineTotal(hours, rate)
	}
	return l
}

// Patch turns a form into a patch that assigns every field of the form
func (f *JobLineForm) Patch() JobLinePatch {
	p := JobLinePatch{
		Name:           &f.Name,
		Category:       &f.Category,
		Subcategory:    &f.Subcategory,
		Description:    &f.Description,
		EstimatedHours: f.EstimatedHours,
		LaborRate:      f.LaborRate,
		TotalAmount:    f.TotalAmount,
		Notes:          &f.Notes,
	}
	if f.LaborRateType != "" {
		p.LaborRateType = &f.LaborRateType
	}
	if f.Status != "" {
		p.Status = &f.Status
	}
	return p
}

// JobLinePatch is a partial job line edit. Nil fields are left unchanged.
type JobLinePatch struct {
	Name           *string  `json:"name"`
	Category       *string  `json:"category"`
	Subcategory    *string  `json:"subcategory"`
	Description    *string  `json:"description"`
	EstimatedHours *float64 `json:"estimatedHours"`
	LaborRate      *float64 `json:"laborRate"`
	LaborRateType  *string  `json:"laborRateType"`
	TotalAmount    *float64 `json:"totalAmount"`
	Status         *string  `json:"status"`
	Notes          *string  `json:"notes"`
}

// ChangesRate reports whether the patch touches hours or rate
func (p *JobLinePatch) ChangesRate() bool {
	return p.EstimatedHours != nil || p.LaborRate != nil
}

// JobLineColumns maps a patch to column assignments. Completion fields are
// managed by SetCompletion and display_order by Reorder; neither appears here.
func JobLineColumns(p JobLinePatch) Columns {
	var cols Columns
	addString(&cols, "name", p.Name)
	addString(&cols, "category", p.Category)
	addString(&cols, "subcategory", p.Subcategory)
	addString(&cols, "description", p.Description)
	addFloat(&cols, "estimated_hours", p.EstimatedHours)
	addFloat(&cols, "labor_rate", p.LaborRate)
	addString(&cols, "labor_rate_type", p.LaborRateType)
	addFloat(&cols, "total_amount", p.TotalAmount)
	addString(&cols, "status", p.Status)
	addString(&cols, "notes", p.Notes)
	return cols
}

// JobLineColumnNames is every column a job line patch may assign
var JobLineColumnNames = []string{
	"name", "category", "subcategory", "description", "estimated_hours", "labor_rate",
	"labor_rate_type", "total_amount", "status", "notes",
}
