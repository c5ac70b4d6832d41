package server

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
	"shopflow/internal/repository"
	"shopflow/internal/workshop"
)

const maxUploadSize = 32 << 20

type createWorkOrderRequest struct {
	workshop.WorkOrderForm
	JobLines []mapper.JobLineForm `json:"job_lines"`
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, r, "list work orders", err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, "list work orders", err)
		return
	}
	orders, err := s.workshop.ListWorkOrders(r.Context(), repository.WorkOrderFilter{
		Status:     r.URL.Query().Get("status"),
		CustomerID: r.URL.Query().Get("customer_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.writeError(w, r, "list work orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// handleCreateWorkOrder creates a work order, with its initial job lines when given
func (s *Server) handleCreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req createWorkOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "create work order", err)
		return
	}
	if len(req.JobLines) == 0 {
		wo, err := s.workshop.CreateWorkOrder(r.Context(), req.WorkOrderForm)
		if err != nil {
			s.writeError(w, r, "create work order", err)
			return
		}
		writeJSON(w, http.StatusCreated, wo)
		return
	}

	wo, lines, err := s.workshop.CreateWorkOrderWithLines(r.Context(), req.WorkOrderForm, req.JobLines)
	if err != nil {
		s.writeError(w, r, "create work order", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"work_order": wo,
		"job_lines":  lines,
	})
}

func (s *Server) handleGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	wo, err := s.workshop.GetWorkOrder(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load work order", err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func (s *Server) handleUpdateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var patch workshop.WorkOrderPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, "update work order", err)
		return
	}
	wo, err := s.workshop.UpdateWorkOrder(r.Context(), getURLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, "update work order", err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func (s *Server) handleDeleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.workshop.DeleteWorkOrder(r.Context(), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete work order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "update work order status", err)
		return
	}
	wo, err := s.workshop.UpdateWorkOrderStatus(r.Context(), getURLParam(r, "id"), req.Status, currentUserID(r), req.Notes)
	if err != nil {
		s.writeError(w, r, "update work order status", err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func (s *Server) handleWorkOrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.workshop.StatusHistory(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load status history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleWorkOrderCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.workshop.CountByStatus(r.Context())
	if err != nil {
		s.writeError(w, r, "count work orders", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleWorkOrderView returns the work order with customer, vehicle, lines and parts resolved
func (s *Server) handleWorkOrderView(w http.ResponseWriter, r *http.Request) {
	view, err := s.workshop.Assemble(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load work order", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRecalculateTotal(w http.ResponseWriter, r *http.Request) {
	totals, err := s.workshop.RecalculateTotal(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "recalculate total", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// handleWorkOrderLabel renders a QR code pointing at the work order
func (s *Server) handleWorkOrderLabel(w http.ResponseWriter, r *http.Request) {
	wo, err := s.workshop.GetWorkOrder(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "generate label", err)
		return
	}

	url := strings.TrimSuffix(s.config.Server.PublicBaseURL, "/") + "/work-orders/" + wo.ID
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		s.writeError(w, r, "generate label", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.WithError(err).Warn("Failed to write label")
	}
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	list, err := s.workshop.ListAttachments(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "list attachments", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleUploadAttachment stores the multipart "file" field
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, r, "upload attachment", domain.NewValidationError("file", "invalid upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, "upload attachment", domain.NewValidationError("file", "is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	a, err := s.workshop.AddAttachment(r.Context(), getURLParam(r, "id"), header.Filename, contentType, file)
	if err != nil {
		s.writeError(w, r, "upload attachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	a, err := s.workshop.GetAttachment(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "load attachment", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := s.workshop.DeleteAttachment(r.Context(), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete attachment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
