package workshop

import (
	"context"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/pricing"
)

// VehicleView is the vehicle summary of an assembled work order. Missing
// vehicles render as empty strings.
type VehicleView struct {
	ID           string `json:"id"`
	Year         string `json:"year"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	VIN          string `json:"vin"`
	LicensePlate string `json:"license_plate"`
}

// JobLineView is a job line with the parts linked to it
type JobLineView struct {
	domain.JobLine
	Parts []domain.Part `json:"parts"`
}

// WorkOrderView is a work order with every related row resolved
type WorkOrderView struct {
	domain.WorkOrder
	CustomerName    string                 `json:"customer_name"`
	CustomerEmail   string                 `json:"customer_email"`
	CustomerPhone   string                 `json:"customer_phone"`
	TechnicianName  string                 `json:"technician_name"`
	Vehicle         VehicleView            `json:"vehicle"`
	Equipment       *domain.EquipmentAsset `json:"equipment"`
	JobLines        []JobLineView          `json:"job_lines"`
	UnassignedParts []domain.Part          `json:"unassigned_parts"`
	Totals          pricing.Totals         `json:"totals"`
}

// Assemble builds the full view of a work order. Only a missing work order
// fails; unresolvable customers, vehicles, equipment and technicians degrade
// to placeholders.
func (s *Service) Assemble(ctx context.Context, workOrderID string) (*WorkOrderView, error) {
	wo, err := s.requireWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	logger := log.WithField("work_order_id", workOrderID)

	var (
		wg       sync.WaitGroup
		lines    []domain.JobLine
		parts    []domain.Part
		linesErr error
		partsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		lines, linesErr = s.repos.JobLines.GetAll(ctx, workOrderID)
	}()
	go func() {
		defer wg.Done()
		parts, partsErr = s.repos.Parts.GetByWorkOrder(ctx, workOrderID)
	}()

	view := &WorkOrderView{
		WorkOrder:      *wo,
		CustomerName:   domain.UnknownCustomer,
		TechnicianName: domain.Unassigned,
	}

	customer, err := s.repos.Customers.GetByID(ctx, wo.CustomerID)
	if err != nil {
		logger.WithError(err).Warn("Failed to load work order customer")
	}
	if customer != nil {
		if name := customer.FullName(); name != "" {
			view.CustomerName = name
		}
		view.CustomerEmail = customer.Email
		view.CustomerPhone = customer.Phone
	}

	if wo.VehicleID != nil {
		vehicle, err := s.repos.Vehicles.GetByID(ctx, *wo.VehicleID)
		if err != nil {
			logger.WithError(err).Warn("Failed to load work order vehicle")
		}
		if vehicle != nil {
			view.Vehicle = vehicleView(vehicle)
		}
	}

	if wo.EquipmentID != nil {
		equipment, err := s.repos.Equipment.GetByID(ctx, *wo.EquipmentID)
		if err != nil {
			logger.WithError(err).Warn("Failed to load work order equipment")
		}
		view.Equipment = equipment
	}

	if wo.TechnicianID != nil {
		tech, err := s.repos.Users.GetByID(ctx, *wo.TechnicianID)
		if err != nil {
			logger.WithError(err).Warn("Failed to load work order technician")
		}
		if tech != nil && tech.Name != "" {
			view.TechnicianName = tech.Name
		}
	}

	wg.Wait()
	if linesErr != nil {
		logger.WithError(linesErr).Warn("Failed to load job lines")
		lines = nil
	}
	if partsErr != nil {
		logger.WithError(partsErr).Warn("Failed to load parts")
		parts = nil
	}

	view.JobLines, view.UnassignedParts = groupParts(lines, parts)
	view.Totals = pricing.Summarize(lines, parts)
	return view, nil
}

// groupParts attaches parts to their job lines. Parts with no line, or with
// a line that no longer exists, are returned as unassigned.
func groupParts(lines []domain.JobLine, parts []domain.Part) ([]JobLineView, []domain.Part) {
	views := make([]JobLineView, len(lines))
	index := make(map[string]int, len(lines))
	for i, l := range lines {
		views[i] = JobLineView{JobLine: l, Parts: []domain.Part{}}
		index[l.ID] = i
	}
	unassigned := []domain.Part{}
	for _, p := range parts {
		if p.JobLineID != nil {
			if i, ok := index[*p.JobLineID]; ok {
				views[i].Parts = append(views[i].Parts, p)
				continue
			}
		}
		unassigned = append(unassigned, p)
	}
	return views, unassigned
}

func vehicleView(v *domain.Vehicle) VehicleView {
	year := ""
	if v.Year > 0 {
		year = strconv.Itoa(v.Year)
	}
	return VehicleView{
		ID:           v.ID,
		Year:         year,
		Make:         v.Make,
		Model:        v.Model,
		VIN:          v.VIN,
		LicensePlate: v.LicensePlate,
	}
}
