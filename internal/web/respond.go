package web

import (
	"encoding/json"
	"net/http"
	"regexp"

	"guildpanel/internal/apperr"

	"go.uber.org/zap"
)

var snowflakePattern = regexp.MustCompile(`^[0-9]+$`)

func validSnowflake(id string) bool {
	return snowflakePattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		status = http.StatusUnauthorized
		message = err.Error()
	case apperr.KindValidation:
		status = http.StatusBadRequest
		message = err.Error()
	case apperr.KindNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case apperr.KindUpstream, apperr.KindPersistence:
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: message})
}

func decodeJSON(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}
