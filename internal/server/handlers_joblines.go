package server

import (
	"net/http"

	"shopflow/internal/mapper"
	"shopflow/internal/pricing"
)

type reorderRequest struct {
	OrderedIDs []string `json:"orderedIds"`
}

type moveRequest struct {
	ToIndex int `json:"toIndex"`
}

type completionRequest struct {
	Completed   bool    `json:"completed"`
	CompletedBy *string `json:"completedBy"`
}

type priceCheck struct {
	PartID          string       `json:"part_id"`
	CustomerPrice   float64      `json:"customer_price"`
	SuggestedRetail float64      `json:"supplier_suggested_retail"`
	Ratio           float64      `json:"ratio"`
	Tier            pricing.Tier `json:"tier"`
}

func (s *Server) handleListJobLines(w http.ResponseWriter, r *http.Request) {
	lines, err := s.workshop.ListJobLines(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "list job lines", err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleCreateJobLine(w http.ResponseWriter, r *http.Request) {
	var form mapper.JobLineForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "add job line", err)
		return
	}
	line, err := s.workshop.CreateJobLine(r.Context(), getURLParam(r, "id"), form)
	if err != nil {
		s.writeError(w, r, "add job line", err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

// handleUpsertJobLine creates draft lines and updates persisted ones
func (s *Server) handleUpsertJobLine(w http.ResponseWriter, r *http.Request) {
	var form mapper.JobLineForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "save job line", err)
		return
	}
	line, err := s.workshop.UpsertJobLine(r.Context(), getURLParam(r, "id"), form)
	if err != nil {
		s.writeError(w, r, "save job line", err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) handleUpdateJobLine(w http.ResponseWriter, r *http.Request) {
	var patch mapper.JobLinePatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, "update job line", err)
		return
	}
	line, err := s.workshop.UpdateJobLine(r.Context(), getURLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, "update job line", err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// handleDeleteJobLine takes the parts policy from ?parts=detach|delete
func (s *Server) handleDeleteJobLine(w http.ResponseWriter, r *http.Request) {
	if err := s.workshop.DeleteJobLine(r.Context(), getURLParam(r, "id"), r.URL.Query().Get("parts")); err != nil {
		s.writeError(w, r, "delete job line", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderJobLines(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "reorder job lines", err)
		return
	}
	lines, err := s.workshop.ReorderJobLines(r.Context(), getURLParam(r, "id"), req.OrderedIDs)
	if err != nil {
		s.writeError(w, r, "reorder job lines", err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleMoveJobLine(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "move job line", err)
		return
	}
	lines, err := s.workshop.MoveJobLine(r.Context(), getURLParam(r, "id"), getURLParam(r, "lineID"), req.ToIndex)
	if err != nil {
		s.writeError(w, r, "move job line", err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleJobLineStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "update job line status", err)
		return
	}
	line, err := s.workshop.SetJobLineStatus(r.Context(), getURLParam(r, "id"), req.Status)
	if err != nil {
		s.writeError(w, r, "update job line status", err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// handleJobLineCompletion defaults completedBy to the current user
func (s *Server) handleJobLineCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "update job line completion", err)
		return
	}
	if req.Completed && req.CompletedBy == nil {
		req.CompletedBy = currentUserID(r)
	}
	line, err := s.workshop.SetJobLineCompletion(r.Context(), getURLParam(r, "id"), req.Completed, req.CompletedBy)
	if err != nil {
		s.writeError(w, r, "update job line completion", err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) handleListJobLineParts(w http.ResponseWriter, r *http.Request) {
	parts, err := s.workshop.ListJobLineParts(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "list job line parts", err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request) {
	parts, err := s.workshop.ListParts(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "list parts", err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *Server) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	var form mapper.PartForm
	if err := decodeJSON(r, &form); err != nil {
		s.writeError(w, r, "add part", err)
		return
	}
	part, err := s.workshop.CreatePart(r.Context(), getURLParam(r, "id"), form)
	if err != nil {
		s.writeError(w, r, "add part", err)
		return
	}
	writeJSON(w, http.StatusCreated, part)
}

func (s *Server) handleGetPart(w http.ResponseWriter, r *http.Request) {
	part, err := s.workshop.GetPart(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load part", err)
		return
	}
	writeJSON(w, http.StatusOK, part)
}

// handleGetPartForm returns a part in the camelCase shape the edit form posts back
func (s *Server) handleGetPartForm(w http.ResponseWriter, r *http.Request) {
	part, err := s.workshop.GetPart(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load part", err)
		return
	}
	writeJSON(w, http.StatusOK, mapper.FromPart(*part))
}

func (s *Server) handleUpdatePart(w http.ResponseWriter, r *http.Request) {
	var patch mapper.PartPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, "update part", err)
		return
	}
	part, err := s.workshop.UpdatePart(r.Context(), getURLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, "update part", err)
		return
	}
	writeJSON(w, http.StatusOK, part)
}

func (s *Server) handleDeletePart(w http.ResponseWriter, r *http.Request) {
	if err := s.workshop.DeletePart(r.Context(), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete part", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePartPriceCheck bands the customer price against the supplier's suggested retail
func (s *Server) handlePartPriceCheck(w http.ResponseWriter, r *http.Request) {
	part, err := s.workshop.GetPart(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "check part price", err)
		return
	}
	tier, ratio := pricing.CompareToRetail(part.CustomerPrice, part.SupplierSuggestedRetail)
	writeJSON(w, http.StatusOK, priceCheck{
		PartID:          part.ID,
		CustomerPrice:   part.CustomerPrice,
		SuggestedRetail: part.SupplierSuggestedRetail,
		Ratio:           ratio,
		Tier:            tier,
	})
}
