package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/mailvault/internal/common"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// statusFor maps a service error onto the HTTP status and body the client
// sees. Session problems of every kind share one body.
func statusFor(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, common.ErrNotAuthenticated), errors.Is(err, common.ErrSessionInvalid):
		return http.StatusUnauthorized, errorResponse{Error: "not authenticated"}
	case errors.Is(err, common.ErrAuthRejected):
		return http.StatusUnauthorized, errorResponse{Error: "authentication failed", Details: err.Error()}
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, common.ErrRemoteService):
		return http.StatusInternalServerError, errorResponse{Error: "remote service error", Details: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn(r.Context(), "encoding response failed", "request_id", RequestIDFrom(r.Context()), "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, errorResponse{Error: message})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	s.writeJSON(w, r, status, body)
}

func (s *Server) writeSuccess(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}
