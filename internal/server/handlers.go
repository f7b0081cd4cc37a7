package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jrmsu/ojtinsight/insight"
	"github.com/jrmsu/ojtinsight/internal/store"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type predictRequest struct {
	StudentID string             `json:"student_id"`
	Features  map[string]float64 `json:"features"`
}

type dailyRequest struct {
	StudentID string         `json:"student_id"`
	Snapshot  map[string]any `json:"snapshot"`
}

type predictResponse struct {
	*insight.Prediction
	RecordID string `json:"record_id,omitempty"`
}

type healthResponse struct {
	Status       string   `json:"status"`
	ModelsLoaded bool     `json:"models_loaded"`
	Classes      []string `json:"classes,omitempty"`
	Features     []string `json:"features,omitempty"`
	History      bool     `json:"history_enabled"`
}

type historyResponse struct {
	StudentID string         `json:"student_id"`
	Records   []store.Record `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "ok",
		ModelsLoaded: s.model != nil,
		History:      s.history != nil,
	}
	if s.model != nil {
		resp.Classes = s.model.Classes()
		resp.Features = s.model.FeatureNames()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.metrics.ChatMessages.Inc()
	s.respondJSON(w, http.StatusOK, chatResponse{Response: s.bot.Respond(req.Message)})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		s.failPrediction(w, r, store.SourceFeatures, ojtErrors.ErrModelsNotLoaded)
		return
	}
	var req predictRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.failPrediction(w, r, store.SourceFeatures, err)
		return
	}
	if len(req.Features) == 0 {
		s.failPrediction(w, r, store.SourceFeatures,
			ojtErrors.NewValidationError("features", "cannot be empty", nil))
		return
	}

	start := time.Now()
	p, err := s.model.PredictPerformance(req.Features)
	if err != nil {
		s.failPrediction(w, r, store.SourceFeatures, err)
		return
	}

	input := make(map[string]any, len(req.Features))
	for k, v := range req.Features {
		input[k] = v
	}
	s.finishPrediction(w, r, store.SourceFeatures, req.StudentID, input, p, time.Since(start))
}

func (s *Server) handlePredictDaily(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		s.failPrediction(w, r, store.SourceSnapshot, ojtErrors.ErrModelsNotLoaded)
		return
	}
	var req dailyRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.failPrediction(w, r, store.SourceSnapshot, err)
		return
	}
	if req.Snapshot == nil {
		s.failPrediction(w, r, store.SourceSnapshot,
			ojtErrors.NewValidationError("snapshot", "is required", nil))
		return
	}

	start := time.Now()
	p, err := s.model.PredictSnapshot(req.Snapshot)
	if err != nil {
		s.failPrediction(w, r, store.SourceSnapshot, err)
		return
	}
	s.finishPrediction(w, r, store.SourceSnapshot, req.StudentID, req.Snapshot, p, time.Since(start))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "prediction history is disabled"})
		return
	}
	studentID := chi.URLParam(r, "studentID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, r, ojtErrors.NewValidationError("limit", "must be a non-negative integer", v))
			return
		}
		limit = n
	}

	records, err := s.history.History(r.Context(), studentID, limit)
	if err != nil {
		s.metrics.HistoryErrors.Inc()
		s.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	s.respondJSON(w, http.StatusOK, historyResponse{StudentID: studentID, Records: records})
}

func (s *Server) finishPrediction(w http.ResponseWriter, r *http.Request, src store.Source, studentID string, input map[string]any, p *insight.Prediction, elapsed time.Duration) {
	s.metrics.ObservePrediction(string(src), p.PredictedLabel, p.Probability, len(p.Defaulted), elapsed)

	resp := predictResponse{Prediction: p}
	if s.history != nil {
		rec, err := s.history.Save(r.Context(), studentID, src, input, *p)
		if err != nil {
			// The prediction stands even when history cannot be written.
			s.metrics.HistoryErrors.Inc()
			s.logger.Error("Failed to record prediction", log.ErrorKey, err,
				log.RequestIDKey, requestID(r))
		} else {
			resp.RecordID = rec.ID
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) failPrediction(w http.ResponseWriter, r *http.Request, src store.Source, err error) {
	status := statusFor(err)
	s.metrics.PredictionFailures.WithLabelValues(string(src), strconv.Itoa(status)).Inc()
	s.respondError(w, r, err)
}

// decodeJSON reads a single JSON object from the body. With useNumber,
// numbers decode as json.Number.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, useNumber bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		return &requestError{err: err}
	}
	return nil
}
