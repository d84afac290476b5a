package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ecosight/ecosight/pkg/threat"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, code int, detail string) {
	s.writeJSON(w, code, errorBody{Detail: detail})
}

// StatusCode maps a pipeline error to an HTTP status.
func StatusCode(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	switch threat.KindOf(err) {
	case threat.KindValidation:
		return http.StatusBadRequest
	case threat.KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// detail renders err for clients. Model unavailability has a fixed message.
func detail(err error) string {
	if threat.KindOf(err) == threat.KindModelUnavailable {
		return "Model not loaded"
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeDetail(w, StatusCode(err), detail(err))
}
