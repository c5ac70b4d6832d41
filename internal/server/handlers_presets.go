package server

import (
	"net/http"
)

type presetRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.workshop.ListPresets(r.Context(), getURLParam(r, "kind"), r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, r, "list presets", err)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

// handleAddOrUsePreset backs the "add as new preset" action of the picker
func (s *Server) handleAddOrUsePreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "add preset", err)
		return
	}
	preset, err := s.workshop.AddOrUsePreset(r.Context(), getURLParam(r, "kind"), req.Name, req.Category, req.Description)
	if err != nil {
		s.writeError(w, r, "add preset", err)
		return
	}
	writeJSON(w, http.StatusOK, preset)
}

func (s *Server) handleUsePreset(w http.ResponseWriter, r *http.Request) {
	preset, err := s.workshop.UsePreset(r.Context(), getURLParam(r, "kind"), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "use preset", err)
		return
	}
	writeJSON(w, http.StatusOK, preset)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.workshop.DeletePreset(r.Context(), getURLParam(r, "kind"), getURLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete preset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
