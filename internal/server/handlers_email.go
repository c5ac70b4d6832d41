package server

import (
	"net/http"

	"shopflow/internal/domain"
	"shopflow/internal/marketing"
)

// Templates

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.marketing.ListTemplates(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, r, "list email templates", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.marketing.GetTemplate(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load email template", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var form marketing.TemplateForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "create email template", err)
		return
	}
	t, err := s.marketing.CreateTemplate(r.Context(), form)
	if err != nil {
		s.writeError(w, r, "create email template", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var form marketing.TemplateForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "update email template", err)
		return
	}
	t, err := s.marketing.UpdateTemplate(r.Context(), getURLParam(r, "id"), form)
	if err != nil {
		s.writeError(w, r, "update email template", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.marketing.DeleteTemplate(r.Context(), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete email template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewTemplate renders for ?customer_id or a sample customer
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	out, err := s.marketing.PreviewTemplate(r.Context(), getURLParam(r, "id"), r.URL.Query().Get("customer_id"))
	if err != nil {
		s.writeError(w, r, "preview email template", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Campaigns

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := s.marketing.ListCampaigns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, "list campaigns", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.marketing.GetCampaign(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var form marketing.CampaignForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "create campaign", err)
		return
	}
	c, err := s.marketing.CreateCampaign(r.Context(), form)
	if err != nil {
		s.writeError(w, r, "create campaign", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var form marketing.CampaignForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "update campaign", err)
		return
	}
	c, err := s.marketing.UpdateCampaign(r.Context(), getURLParam(r, "id"), form)
	if err != nil {
		s.writeError(w, r, "update campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.marketing.DeleteCampaign(r.Context(), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete campaign", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTriggerCampaign(w http.ResponseWriter, r *http.Request) {
	s.triggerCampaign(w, r, getURLParam(r, "id"))
}

func (s *Server) triggerCampaign(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		s.writeError(w, r, "send campaign", domain.NewValidationError("campaignId", "is required"))
		return
	}
	result, err := s.marketing.TriggerCampaign(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "send campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSelectWinner(w http.ResponseWriter, r *http.Request) {
	v, err := s.marketing.SelectWinner(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "select winner", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Sequences

func (s *Server) handleListSequences(w http.ResponseWriter, r *http.Request) {
	list, err := s.marketing.ListSequences(r.Context())
	if err != nil {
		s.writeError(w, r, "list sequences", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSequence(w http.ResponseWriter, r *http.Request) {
	seq, err := s.marketing.GetSequence(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load sequence", err)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

func (s *Server) handleCreateSequence(w http.ResponseWriter, r *http.Request) {
	var form marketing.SequenceForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "create sequence", err)
		return
	}
	seq, err := s.marketing.CreateSequence(r.Context(), form)
	if err != nil {
		s.writeError(w, r, "create sequence", err)
		return
	}
	writeJSON(w, http.StatusCreated, seq)
}

func (s *Server) handleUpdateSequence(w http.ResponseWriter, r *http.Request) {
	var form marketing.SequenceForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "update sequence", err)
		return
	}
	seq, err := s.marketing.UpdateSequence(r.Context(), getURLParam(r, "id"), form)
	if err != nil {
		s.writeError(w, r, "update sequence", err)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

func (s *Server) handleDeleteSequence(w http.ResponseWriter, r *http.Request) {
	if err := s.marketing.DeleteSequence(r.Context(), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete sequence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddStep(w http.ResponseWriter, r *http.Request) {
	var form marketing.StepForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "add sequence step", err)
		return
	}
	step, err := s.marketing.AddStep(r.Context(), getURLParam(r, "id"), form)
	if err != nil {
		s.writeError(w, r, "add sequence step", err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	if err := s.marketing.DeleteStep(r.Context(), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete sequence step", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	list, err := s.marketing.ListEnrollments(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "list enrollments", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req marketing.EnrollRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "enroll customer", err)
		return
	}
	e, err := s.marketing.Enroll(r.Context(), req)
	if err != nil {
		s.writeError(w, r, "enroll customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handlePauseEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := s.marketing.PauseEnrollment(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "pause enrollment", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleResumeEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := s.marketing.ResumeEnrollment(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "resume enrollment", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCancelEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := s.marketing.CancelEnrollment(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "cancel enrollment", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Settings

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.marketing.GetSchedule(r.Context())
	if err != nil {
		s.writeError(w, r, "load processing schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	var sched domain.ProcessingSchedule
	if err := decodeJSON(r, &sched); err != nil {
		s.writeError(w, r, "save processing schedule", err)
		return
	}
	saved, err := s.marketing.SaveSchedule(r.Context(), sched)
	if err != nil {
		s.writeError(w, r, "save processing schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Tracking

// handleTrackEvent records an open, click, bounce, unsubscribe or conversion
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	recorded, err := s.marketing.RecordEvent(r.Context(), getURLParam(r, "id"), getURLParam(r, "event"))
	if err != nil {
		s.writeError(w, r, "record email event", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": recorded})
}
