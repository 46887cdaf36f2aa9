package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	mockpub "github.com/Harsh-BH/qsweep/internal/publisher/mock"
	mockrepo "github.com/Harsh-BH/qsweep/internal/repository/mock"
	"github.com/Harsh-BH/qsweep/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(rateLimit int) (*gin.Engine, *mockrepo.MockSweepRepository, *mockpub.MockPublisher) {
	repo := mockrepo.NewMockSweepRepository()
	pub := mockpub.NewMockPublisher()
	logger := zap.NewNop()

	router := NewRouter(RouterDeps{
		SubmitUC:        usecase.NewSubmitSweepUsecase(repo, pub, logger),
		GetUC:           usecase.NewGetSweepUsecase(repo, logger),
		HealthChecks:    map[string]HealthCheck{"postgres": func(context.Context) error { return nil }},
		DefaultTarget:   domain.TargetSimulator,
		RateLimitPerMin: rateLimit,
		Logger:          logger,
	})
	return router, repo, pub
}

func sweepBody() map[string]interface{} {
	return map[string]interface{}{
		"circuit": map[string]interface{}{
			"qubits": 2,
			"operations": []map[string]interface{}{
				{"gate": "rx", "targets": []int{0}, "rotation": map[string]interface{}{"symbol": "theta"}},
				{"gate": "cnot", "controls": []int{0}, "targets": []int{1}},
				{"gate": "measure", "targets": []int{0, 1}, "key": "m"},
			},
		},
		"sweep":       map[string]interface{}{"type": "points", "key": "theta", "values": []float64{0, 1.57, 3.14}},
		"repetitions": 100,
		"target":      "simulator",
	}
}

func postJSON(router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitHandler_Success(t *testing.T) {
	router, repo, pub := setupTestRouter(100)

	w := postJSON(router, "/api/v1/sweeps", sweepBody())
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != string(domain.StatusQueued) {
		t.Errorf("expected QUEUED, got %s", resp.Status)
	}
	if len(pub.Published) != 1 {
		t.Errorf("expected 1 published sweep, got %d", len(pub.Published))
	}

	runs := repo.GetAll()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Sweep == nil || len(runs[0].Sweep.Values) != 3 {
		t.Errorf("expected sweep with 3 values, got %+v", runs[0].Sweep)
	}
}

func TestSubmitHandler_EmptyBody(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	w := postJSON(router, "/api/v1/sweeps", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		want   int
	}{
		{"unknown target", func(b map[string]interface{}) { b["target"] = "gpu" }, http.StatusBadRequest},
		{"too many repetitions", func(b map[string]interface{}) { b["repetitions"] = 10001 }, http.StatusBadRequest},
		{"unknown sweep type", func(b map[string]interface{}) { b["sweep"] = map[string]interface{}{"type": "grid"} }, http.StatusBadRequest},
		{"unbound symbol", func(b map[string]interface{}) { delete(b, "sweep") }, http.StatusBadRequest},
		{"too many points", func(b map[string]interface{}) {
			b["sweep"] = map[string]interface{}{"type": "linspace", "key": "theta", "start": 0, "stop": 1, "length": 101}
		}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, pub := setupTestRouter(100)
			body := sweepBody()
			tt.mutate(body)

			w := postJSON(router, "/api/v1/sweeps", body)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if len(pub.Published) != 0 {
				t.Error("rejected sweep must not be published")
			}
		})
	}
}

func TestSubmitHandler_PublishFailure(t *testing.T) {
	router, _, pub := setupTestRouter(100)
	pub.PublishFn = func(ctx context.Context, run *domain.SweepRun) error {
		return errors.New("broker down")
	}

	w := postJSON(router, "/api/v1/sweeps", sweepBody())
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitHandler_BodyTooLarge(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sweeps", strings.NewReader(strings.Repeat(" ", maxBodyBytes+1)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}

func TestSubmitHandler_RateLimited(t *testing.T) {
	router, _, _ := setupTestRouter(2)

	for i := 0; i < 2; i++ {
		if w := postJSON(router, "/api/v1/sweeps", sweepBody()); w.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i, w.Code)
		}
	}

	w := postJSON(router, "/api/v1/sweeps", sweepBody())
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Maximum 2 requests") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestGetByIDHandler_Success(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	submitW := postJSON(router, "/api/v1/sweeps", sweepBody())
	var submitResp domain.SubmitResponse
	if err := json.Unmarshal(submitW.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("failed to unmarshal submit response: %v", err)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/sweeps/"+submitResp.SweepID.String(), nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", getW.Code, getW.Body.String())
	}

	var run domain.SweepRun
	if err := json.Unmarshal(getW.Body.Bytes(), &run); err != nil {
		t.Fatalf("failed to unmarshal sweep: %v", err)
	}
	if run.SweepID != submitResp.SweepID {
		t.Errorf("expected sweep ID %s, got %s", submitResp.SweepID, run.SweepID)
	}
	if run.Status != domain.StatusQueued {
		t.Errorf("expected status QUEUED, got %s", run.Status)
	}
}

func TestGetByIDHandler_NotFound(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sweeps/00000000-0000-0000-0000-000000000001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetByIDHandler_InvalidUUID(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sweeps/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTargetHandler(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/targets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Targets []domain.TargetInfo `json:"targets"`
		Default string              `json:"default"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp.Targets) != 3 {
		t.Errorf("expected 3 targets, got %d", len(resp.Targets))
	}
	if resp.Default != domain.TargetSimulator {
		t.Errorf("expected default simulator, got %q", resp.Default)
	}
}

func TestHealthHandler(t *testing.T) {
	checks := map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}
	router := gin.New()
	router.GET("/health", NewHealthHandler(checks, zap.NewNop()).Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded, got %q", resp.Status)
	}
	if resp.Services["postgres"] != "ok" || resp.Services["redis"] != "unavailable" {
		t.Errorf("unexpected services: %v", resp.Services)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/targets", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected propagated request ID, got %q", got)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/targets", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated request ID")
	}
}

func TestStreamHandler_ClosesOnTerminalStatus(t *testing.T) {
	router, repo, _ := setupTestRouter(100)

	submitW := postJSON(router, "/api/v1/sweeps", sweepBody())
	var submitResp domain.SubmitResponse
	if err := json.Unmarshal(submitW.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("failed to unmarshal submit response: %v", err)
	}
	if err := repo.SetResult(context.Background(), submitResp.SweepID, []*domain.Result{}); err != nil {
		t.Fatalf("set result: %v", err)
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sweeps/" + submitResp.SweepID.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var run domain.SweepRun
	if err := conn.ReadJSON(&run); err != nil {
		t.Fatalf("read: %v", err)
	}
	if run.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", run.Status)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func dialStream(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sweeps/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestStreamHandler_OutlivesServerWriteTimeout(t *testing.T) {
	router, _, _ := setupTestRouter(100)

	submitW := postJSON(router, "/api/v1/sweeps", sweepBody())
	var submitResp domain.SubmitResponse
	if err := json.Unmarshal(submitW.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("failed to unmarshal submit response: %v", err)
	}

	srv := httptest.NewUnstartedServer(router)
	srv.Config.WriteTimeout = 200 * time.Millisecond
	srv.Start()
	defer srv.Close()

	conn := dialStream(t, srv, submitResp.SweepID.String())
	defer conn.Close()

	// Three updates span about a second, well past the server's WriteTimeout.
	for i := 0; i < 3; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var run domain.SweepRun
		if err := conn.ReadJSON(&run); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if run.Status != domain.StatusQueued {
			t.Errorf("update %d: expected QUEUED, got %s", i, run.Status)
		}
	}
}

func TestStreamHandler_RepositoryErrorIsNotReportedAsNotFound(t *testing.T) {
	router, repo, _ := setupTestRouter(100)
	repo.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*domain.SweepRun, error) {
		return nil, errors.New("connection reset")
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialStream(t, srv, uuid.NewString())
	defer conn.Close()

	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["error"] != "Failed to load sweep" {
		t.Errorf("expected a load failure, got %q", msg["error"])
	}
}

func TestStreamHandler_UnknownSweep(t *testing.T) {
	router, _, _ := setupTestRouter(100)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialStream(t, srv, uuid.NewString())
	defer conn.Close()

	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["error"] != "Sweep not found" {
		t.Errorf("expected not found, got %q", msg["error"])
	}
}
