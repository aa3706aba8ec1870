package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/live"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/workflow"
)

type testServer struct {
	app   *fiber.App
	token string
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	repo := repository.NewMemoryRepository()
	dispatcher := events.NewInMemoryDispatcher()
	bus := live.NewLocalBus()
	live.NewBroadcaster(bus, logger).RegisterHandlers(dispatcher)

	svc := service.NewComplaintService(service.ComplaintDependencies{
		Repo:       repo,
		Engine:     workflow.NewEngine(nil),
		Feed:       live.NewFeed(repo, bus, logger),
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	tokens := auth.NewTokenManager("test-secret", 5)
	token, _, err := tokens.GenerateToken("user-1", "ops@example.com")
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("complaint-service", "test", map[string]handlers.Pinger{"store": repo}),
		Complaints:     handlers.NewComplaintsHandler(svc, logger),
		Stages:         handlers.NewStagesHandler(),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return testServer{app: app, token: token}
}

func (s testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func intake() map[string]any {
	return map[string]any{
		"name":                "Acme Foods",
		"contactPerson":       "R. Rao",
		"registeredContactNo": "9876543210",
		"product":             "Chiller",
		"natureOfComplaint":   "Not cooling",
		"dateOfInstallation":  "2024-06-01",
	}
}

func stageOne() map[string]any {
	return map[string]any{
		"status":           "Yes",
		"assignedId":       "ISO1",
		"warrantyDate":     "2025-01-01",
		"division":         "Service",
		"engineer":         "Eng_1",
		"nextFollowUpDate": "2025-02-01",
	}
}

func TestComplaintLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/complaints", intake())
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	id := data["id"].(string)
	assert.EqualValues(t, 1, data["currentStage"])
	assert.Equal(t, "OPEN", data["status"])

	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/stages/1", stageOne())
	require.Equal(t, http.StatusOK, status, body)
	data = body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["currentStage"])
	assert.Equal(t, "OPEN", data["status"])

	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/stages/1", stageOne())
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "STAGE_ORDER_VIOLATION", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/stages/2", map[string]any{"status": "Done"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.ElementsMatch(t, []any{"warrantyStatus", "enquiryFormFilled", "offerSent", "nextFollowUpDate"}, details["fields"])

	status, body = s.do(t, http.MethodGet, "/complaints/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]any)
	view := data["view"].(map[string]any)
	stages := view["stages"].([]any)
	require.Len(t, stages, 6)
	assert.Equal(t, "COMPLETED", stages[0].(map[string]any)["badge"])
	assert.Equal(t, "ACTIVE", stages[1].(map[string]any)["badge"])

	status, body = s.do(t, http.MethodPut, "/complaints/"+id+"/hold", map[string]any{"onHold": true})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["onHold"])

	status, body = s.do(t, http.MethodGet, "/complaints?stage=2&on_hold=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = s.do(t, http.MethodGet, "/complaints?status=CLOSED", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"].([]any))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/complaints/unknown", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/complaints/unknown/stages/abc", stageOne())
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/complaints", map[string]any{"name": "only"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/complaints?stage=nine", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodPut, "/complaints/unknown/hold", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	anonymous := testServer{app: s.app}
	status, body = anonymous.do(t, http.MethodGet, "/complaints", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)
	anonymous := testServer{app: s.app}

	status, body := anonymous.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = anonymous.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = anonymous.do(t, http.MethodGet, "/stages", nil)
	assert.Equal(t, http.StatusOK, status)
	stages := body["data"].([]any)
	require.Len(t, stages, 6)
	assert.Equal(t, true, stages[5].(map[string]any)["closesWorkflow"])

	_, _ = s.do(t, http.MethodPost, "/complaints", intake())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "complaints_http_requests_total")
}
