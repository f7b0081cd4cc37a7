package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// requestError marks a malformed request body.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// statusFor maps an error to an HTTP status: missing models are a
// configuration problem (503), bad input is the client's (400), anything
// else is ours (500).
func statusFor(err error) int {
	var (
		reqErr *requestError
		valErr *ojtErrors.ValidationError
		vErr   *ojtErrors.ValueError
		dimErr *ojtErrors.DimensionError
	)
	switch {
	case ojtErrors.Is(err, ojtErrors.ErrModelsNotLoaded):
		return http.StatusServiceUnavailable
	case ojtErrors.As(err, &reqErr),
		ojtErrors.As(err, &valErr),
		ojtErrors.As(err, &vErr),
		ojtErrors.As(err, &dimErr),
		ojtErrors.Is(err, ojtErrors.ErrMissingFeature),
		ojtErrors.Is(err, ojtErrors.ErrUnseenCategory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// respondJSON encodes data before writing the header, so an encoding
// failure becomes a 500 instead of an empty body.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", log.ErrorKey, err)
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: http.StatusText(status)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("failed to write response", log.ErrorKey, err)
	}
}

// respondError writes err with its mapped status. Internal errors are
// logged and their details hidden from the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", log.ErrorKey, err, log.RequestIDKey, requestID(r))
		msg = http.StatusText(status)
	} else {
		s.logger.Debug("request rejected", log.ErrorKey, err, "status", status, log.RequestIDKey, requestID(r))
	}
	s.respondJSON(w, status, errorResponse{Error: msg, RequestID: requestID(r)})
}
