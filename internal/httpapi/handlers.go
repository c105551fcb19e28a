package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"threads": s.orch.ListAll()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": s.orch.ListActive()})
}

func (s *Server) handleThreadStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.orch.GetStatus(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// invokeRequest is the POST /v1/threads/invoke body.
type invokeRequest struct {
	DirectiveID   string         `json:"directive_id"`
	Inputs        map[string]any `json:"inputs,omitempty"`
	Capabilities  []string       `json:"capabilities,omitempty"`
	Limits        ryemodels.Limits `json:"limits,omitempty"`
	ModelOverride string         `json:"model_override,omitempty"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.DirectiveID == "" {
		writeError(w, http.StatusBadRequest, errMissingDirectiveID())
		return
	}

	result, err := s.orch.Invoke(r.Context(), req.DirectiveID, req.Inputs, ryemodels.NewCapabilitySet(req.Capabilities...), req.Limits, req.ModelOverride)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orch.CancelThread(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"thread_id": id, "status": "cancelling"})
}

// resumeRequest is the POST /v1/threads/{id}/resume body.
type resumeRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.orch.ResumeThread(r.Context(), id, req.Message)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
