package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/model"
)

type errorResponse struct {
	Error     string                  `json:"error"`
	Columns   []string                `json:"columns,omitempty"`
	Report    *model.ValidationReport `json:"report,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeRaw(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// statusOf maps the domain error kinds to HTTP statuses.
func statusOf(err error) int {
	switch {
	case model.IsUnsupportedFormat(err):
		return http.StatusUnsupportedMediaType
	case model.IsValidation(err):
		return http.StatusUnprocessableEntity
	case model.IsModelsNotLoaded(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Internal errors are logged with
// their full chain and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error(), RequestID: RequestID(r.Context())}

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		resp.Error = ve.Error()
		resp.Columns = ve.Columns
		resp.Report = ve.Report
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", resp.RequestID),
			zap.Error(err),
		)
		resp.Error = "internal server error"
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}
