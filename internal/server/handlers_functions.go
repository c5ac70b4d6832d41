package server

import (
	"fmt"
	"net/http"

	"shopflow/internal/domain"
	"shopflow/internal/health"
	"shopflow/internal/marketing"
)

// Function names served under /functions/v1
const (
	fnTriggerEmailCampaign  = "trigger-email-campaign"
	fnProcessEmailSequences = "process-email-sequences"
)

// Actions of process-email-sequences
const (
	actionProcess           = "process"
	actionProcessEnrollment = "process_enrollment"
	actionEnroll            = "enroll"
	actionHealthCheck       = "health_check"
)

type functionRequest struct {
	CampaignID   string `json:"campaignId"`
	Action       string `json:"action"`
	SequenceID   string `json:"sequenceId"`
	EnrollmentID string `json:"enrollmentId"`
	CustomerID   string `json:"customerId"`
	Force        bool   `json:"force"`
}

type sequenceHealth struct {
	Status          string          `json:"status"`
	DueEnrollments  int             `json:"due_enrollments"`
	Monitor         health.Snapshot `json:"monitor"`
	ScheduleEnabled bool            `json:"schedule_enabled"`
	ScheduleCron    string          `json:"schedule_cron"`
}

// handleFunction dispatches the named server function
func (s *Server) handleFunction(w http.ResponseWriter, r *http.Request) {
	name := getURLParam(r, "name")
	var req functionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, name, err)
		return
	}

	switch name {
	case fnTriggerEmailCampaign:
		s.triggerCampaign(w, r, req.CampaignID)
	case fnProcessEmailSequences:
		s.processEmailSequences(w, r, req)
	default:
		s.writeError(w, r, "call function", fmt.Errorf("function %q: %w", name, domain.ErrNotFound))
	}
}

func (s *Server) processEmailSequences(w http.ResponseWriter, r *http.Request, req functionRequest) {
	ctx := r.Context()
	switch req.Action {
	case "", actionProcess:
		var ids []string
		if req.SequenceID != "" {
			ids = []string{req.SequenceID}
		}
		result, err := s.marketing.ProcessDue(ctx, ids)
		if err != nil {
			s.writeError(w, r, "process email sequences", err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case actionProcessEnrollment:
		result, err := s.marketing.ProcessEnrollment(ctx, req.EnrollmentID, req.Force)
		if err != nil {
			s.writeError(w, r, "process enrollment", err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case actionEnroll:
		e, err := s.marketing.Enroll(ctx, marketing.EnrollRequest{CustomerID: req.CustomerID, SequenceID: req.SequenceID})
		if err != nil {
			s.writeError(w, r, "enroll customer", err)
			return
		}
		writeJSON(w, http.StatusCreated, e)

	case actionHealthCheck:
		due, err := s.marketing.DueCount(ctx)
		if err != nil {
			s.writeError(w, r, "check email sequences", err)
			return
		}
		sched, err := s.marketing.GetSchedule(ctx)
		if err != nil {
			s.writeError(w, r, "check email sequences", err)
			return
		}
		out := sequenceHealth{
			Status:          health.StatusUnknown,
			DueEnrollments:  due,
			Monitor:         health.Snapshot{Status: health.StatusUnknown, Checks: []health.CheckResult{}},
			ScheduleEnabled: sched.Enabled,
			ScheduleCron:    sched.Cron,
		}
		if s.monitor != nil {
			out.Monitor = s.monitor.Snapshot()
			out.Status = out.Monitor.Status
		}
		writeJSON(w, http.StatusOK, out)

	default:
		s.writeError(w, r, "process email sequences", domain.NewValidationError("action", "unknown action %q", req.Action))
	}
}
