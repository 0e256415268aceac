package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/outblock/imagevalidator/internal/pipeline"
	"github.com/outblock/imagevalidator/internal/processor"
	"github.com/outblock/imagevalidator/internal/validation"
)

// statusWire renders a pipeline.Status in the lowercase wire form spec.md §6
// uses ("accepted", "in_progress", "completed", "failed").
func statusWire(s pipeline.Status) string {
	return strings.ToLower(string(s))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	imageRef := ""
	switch {
	case body.ImagePath != nil && *body.ImagePath != "":
		imageRef = *body.ImagePath
	case body.Image != nil && *body.Image != "":
		imageRef = *body.Image
	default:
		writeError(w, http.StatusBadRequest, "missing_image", "request must carry image-path or image")
		return
	}

	if err := s.validate.Struct(body.AnalysisRequest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	req := processor.Request{
		ImageRef:     imageRef,
		ContentCheck: body.AnalysisRequest.Content,
	}

	if loc := body.AnalysisRequest.Location; loc != nil {
		constraint, err := validation.NormalizeLocation(&validation.LocationInput{
			Latitude:          loc.Lat,
			Longitude:         loc.Long,
			MaxDistanceMeters: loc.MaxDistance,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location", err.Error())
			return
		}
		req.Location = constraint
	}

	if dt := body.AnalysisRequest.DateTime; dt != nil {
		constraint, err := validation.NormalizeTime(&validation.TimeInput{
			Start:           dt.Start,
			End:             dt.End,
			DurationMinutes: dt.Duration,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_datetime", err.Error())
			return
		}
		req.Time = constraint
	}

	id := uuid.NewString()
	switch err := s.pipeline.Submit(id, req); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, validateAcceptedResponse{ProcessingID: id, Status: "accepted"})
	case errors.Is(err, pipeline.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "queue_full", "the processing queue is full, retry later")
	case errors.Is(err, pipeline.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting_down", "the service is shutting down")
	case errors.Is(err, pipeline.ErrAlreadyExists):
		writeError(w, http.StatusInternalServerError, "id_collision", "generated processing id already in use")
	default:
		if s.log != nil {
			s.log.Errorw("submit failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, "submit_failed", "could not accept the job")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	status, ok := s.pipeline.GetStatus(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown processing id")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{ProcessingID: id, Status: statusWire(status)})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	status, ok := s.pipeline.GetStatus(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown processing id")
		return
	}

	switch status {
	case pipeline.StatusAccepted, pipeline.StatusInProgress:
		writeError(w, http.StatusAccepted, "not_ready", "job is still processing")
		return
	case pipeline.StatusFailed:
		writeError(w, http.StatusInternalServerError, "failed", "job failed to complete")
		return
	}

	result, ok := s.pipeline.GetResult(id)
	if !ok || result == nil {
		writeError(w, http.StatusInternalServerError, "failed", "job failed to complete")
		return
	}

	payload := resultsPayload{Resolution: string(result.Resolution)}
	if result.Resolution == processor.Rejected {
		payload.Reasons = result.Reasons
	}
	writeJSON(w, http.StatusOK, resultsResponse{ProcessingID: id, Results: payload})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "healthy",
		Version:    s.version,
		QueueStats: toStatsPayload(s.pipeline.Stats()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatsPayload(s.pipeline.Stats()))
}

func toStatsPayload(st pipeline.Stats) statsPayload {
	return statsPayload{
		Total:            st.Total,
		Accepted:         st.Accepted,
		InProgress:       st.InProgress,
		Completed:        st.Completed,
		Failed:           st.Failed,
		AvailablePermits: st.AvailablePermits,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
