package api

// validateRequestBody is the decoded POST /validate body. Either ImagePath or
// Image may carry the image reference; ImagePath is preferred when both are
// set, per spec.md §6 "server treats them interchangeably, preferring
// image-path".
type validateRequestBody struct {
	ImagePath       *string         `json:"image-path"`
	Image           *string         `json:"image"`
	AnalysisRequest analysisRequest `json:"analysis-request"`
}

type analysisRequest struct {
	Content  string              `json:"content" validate:"required"`
	Location *locationConstraint `json:"location"`
	DateTime *timeConstraint     `json:"datetime"`
}

type locationConstraint struct {
	Long        float64 `json:"long" validate:"min=-180,max=180"`
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	MaxDistance float64 `json:"max_distance" validate:"gt=0"`
}

type timeConstraint struct {
	Start    *string `json:"start"`
	End      *string `json:"end"`
	Duration *int    `json:"duration"`
}

// validateAcceptedResponse is the 202 body for a successful submission.
type validateAcceptedResponse struct {
	ProcessingID string `json:"processing-id"`
	Status       string `json:"status"`
}

// statusResponse is the 200 body for GET /status/{id}.
type statusResponse struct {
	ProcessingID string `json:"processing-id"`
	Status       string `json:"status"`
}

// resultsPayload carries the wire-compatible "resons" misspelling verbatim
// per spec.md §6 — consumers depend on this exact key.
type resultsPayload struct {
	Resolution string   `json:"resolution"`
	Reasons    []string `json:"resons,omitempty"`
}

// resultsResponse is the 200 body for GET /results/{id}.
type resultsResponse struct {
	ProcessingID string         `json:"processing-id"`
	Results      resultsPayload `json:"results"`
}

// errorResponse is the body for every non-2xx JSON error response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// healthResponse is the 200 body for GET /health.
type healthResponse struct {
	Status     string       `json:"status"`
	Version    string       `json:"version"`
	QueueStats statsPayload `json:"queue_stats"`
}

// statsPayload is the shared shape for GET /stats and the health endpoint's
// embedded queue snapshot.
type statsPayload struct {
	Total            int `json:"total"`
	Accepted         int `json:"accepted"`
	InProgress       int `json:"in_progress"`
	Completed        int `json:"completed"`
	Failed           int `json:"failed"`
	AvailablePermits int `json:"available_permits"`
}
