package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Stable machine-readable signals carried by every API response. Clients
// branch on these, never on message text.
const (
	SignalProcessingSuccess = "processing_success"
	SignalProcessingFailed  = "processing_failed"
	SignalIndexSuccess      = "index_success"
	SignalIndexFailed       = "index_failed"
	SignalIndexInfo         = "index_info_retrieved"
	SignalSearchSuccess     = "search_success"
	SignalSearchFailed      = "search_failed"
	SignalAnswerSuccess     = "answer_success"
	SignalAnswerFailed      = "answer_failed"
	SignalNoResults         = "no_results_found"
	SignalProjectNotFound   = "project_not_found"
	SignalInvalidRequest    = "invalid_request"
	SignalInternalError     = "internal_error"
)

// ErrorResponse is the JSON shape of every non-2xx response.
type ErrorResponse struct {
	Signal  string `json:"signal"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code. Buffer-first
// so headers are only sent after successful encoding and a proper 500 can
// still be returned when encoding fails.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("failed to write response body", "error", err)
	}
}

// writeError writes a JSON error response. Messages are written for humans;
// raw backend errors never leave the process through this path.
func writeError(w http.ResponseWriter, status int, signal, message string) {
	writeJSON(w, status, ErrorResponse{Signal: signal, Message: message})
}
