package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/outblock/imagevalidator/internal/exifdata"
	"github.com/outblock/imagevalidator/internal/llmclient"
	"github.com/outblock/imagevalidator/internal/pipeline"
	"github.com/outblock/imagevalidator/internal/processor"
)

type acceptingVLM struct{}

func (acceptingVLM) ValidateContent(ctx context.Context, imagePath, description string) (bool, string, error) {
	return true, "ACCEPTED", nil
}

type fakeEXIF struct{}

func (fakeEXIF) Extract(path string) (*exifdata.Data, error) { return &exifdata.Data{}, nil }

var _ llmclient.Client = acceptingVLM{}

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	proc := processor.New(dir, acceptingVLM{}, fakeEXIF{})
	p := pipeline.New(pipeline.Config{
		QueueSize:                 10,
		ProcessingTimeout:         2 * time.Second,
		ThrottleRequestsPerMinute: 6000,
		ReaperInterval:            time.Minute,
		ShutdownGrace:             time.Second,
	}, proc, nil)

	s := NewServer("127.0.0.1:0", p, nil, "test")
	return s, p.Shutdown
}

func (s *Server) testHandler() http.Handler {
	return s.httpServer.Handler
}

func TestHandleValidateAcceptsAndCompletes(t *testing.T) {
	s, shutdown := newTestServer(t)
	defer shutdown()

	body := `{"image-path":"photo.jpg","analysis-request":{"content":"a cat"}}`
	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var accepted validateAcceptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.ProcessingID == "" || accepted.Status != "accepted" {
		t.Fatalf("unexpected accepted response: %+v", accepted)
	}

	deadline := time.After(2 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/status/"+accepted.ProcessingID, nil)
		rec := httptest.NewRecorder()
		s.testHandler().ServeHTTP(rec, req)

		var st statusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatal(err)
		}
		if st.Status == "completed" || st.Status == "failed" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never reached a terminal status, last=%s", st.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}

	req2 := httptest.NewRequest(http.MethodGet, "/results/"+accepted.ProcessingID, nil)
	rec2 := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}

	var results resultsResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	if results.Results.Resolution != "accepted" {
		t.Fatalf("expected accepted resolution, got %+v", results.Results)
	}
}

func TestHandleValidateMissingContentRejected(t *testing.T) {
	s, shutdown := newTestServer(t)
	defer shutdown()

	body := `{"image-path":"photo.jpg","analysis-request":{"content":""}}`
	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleValidateMissingImageRejected(t *testing.T) {
	s, shutdown := newTestServer(t)
	defer shutdown()

	body := `{"analysis-request":{"content":"a cat"}}`
	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleStatusUnknownID(t *testing.T) {
	s, shutdown := newTestServer(t)
	defer shutdown()

	req := httptest.NewRequest(http.MethodGet, "/status/never-submitted", nil)
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleResultsNotReadyWhileQueued(t *testing.T) {
	release := make(chan struct{})
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	blocking := blockingVLMForAPI{release: release}
	proc := processor.New(dir, blocking, fakeEXIF{})
	p := pipeline.New(pipeline.Config{
		QueueSize:                 10,
		ProcessingTimeout:         5 * time.Second,
		ThrottleRequestsPerMinute: 6000,
		ReaperInterval:            time.Minute,
		ShutdownGrace:             time.Second,
	}, proc, nil)
	defer p.Shutdown()
	defer close(release)

	s := NewServer("127.0.0.1:0", p, nil, "test")

	body := `{"image-path":"photo.jpg","analysis-request":{"content":"a cat"}}`
	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)

	var accepted validateAcceptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/results/"+accepted.ProcessingID, nil)
	rec2 := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusAccepted {
		t.Fatalf("expected 202 while still processing, got %d", rec2.Code)
	}
}

type blockingVLMForAPI struct {
	release chan struct{}
}

func (b blockingVLMForAPI) ValidateContent(ctx context.Context, imagePath, description string) (bool, string, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return false, "", ctx.Err()
	}
	return true, "ACCEPTED", nil
}

func TestHandleHealthAndStats(t *testing.T) {
	s, shutdown := newTestServer(t)
	defer shutdown()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec2 := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
}
