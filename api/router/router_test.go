package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkscollector/rkscollector/internal/database"
	"github.com/rkscollector/rkscollector/internal/model"
	"github.com/rkscollector/rkscollector/internal/service"
	"github.com/rkscollector/rkscollector/pkg/ssh"
)

type stubService struct {
	got ssh.ConnectionInfo
}

func (s *stubService) Operations() []service.OperationInfo {
	return []service.OperationInfo{{Name: "identify", LegacyName: "getSerialNumber", Commands: []string{"<login banner>"}}}
}

func (s *stubService) Transport() string { return "network" }

func (s *stubService) Execute(_ context.Context, name string, info ssh.ConnectionInfo) service.Envelope {
	s.got = info
	if err := info.WithDefaults().Validate(); err != nil {
		return service.Wrap(name, nil, err, info.Password)
	}
	switch name {
	case "identify":
		return service.Wrap(name, map[string]string{"serial": "302139001234"}, nil)
	case "channel_info":
		return service.Wrap(name, nil, context.DeadlineExceeded)
	default:
		return service.Envelope{Operation: name, ErrorKind: "unknown_operation", Error: "Error executing " + name}
	}
}

type stubRuns struct{}

func (stubRuns) List(_ context.Context, f database.RunFilter) ([]model.OperationRun, error) {
	return []model.OperationRun{{ID: "r1", Operation: f.Operation}}, nil
}

func (stubRuns) Get(_ context.Context, id string) (*model.OperationRun, error) {
	if id != "r1" {
		return nil, database.ErrRunNotFound
	}
	return &model.OperationRun{ID: "r1"}, nil
}

func newTestRouter(svc *stubService, runs bool) http.Handler {
	opts := Options{
		Mode:    "test",
		Service: svc,
		Device: func() ssh.ConnectionInfo {
			return ssh.ConnectionInfo{Host: "10.0.0.1", Username: "admin", Password: "configured"}
		},
		Metrics: promhttp.Handler(),
	}
	if runs {
		opts.Runs = stubRuns{}
	}
	return SetupRouter(opts)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListOperations(t *testing.T) {
	w := do(newTestRouter(&stubService{}, false), http.MethodGet, "/api/v1/operations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"getSerialNumber"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRunOperation(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, false)

	w := do(r, http.MethodPost, "/api/v1/operations/identify", `{"host":"192.0.2.7","password":"override"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var env service.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "192.0.2.7", svc.got.Host)
	assert.Equal(t, "override", svc.got.Password)
	assert.Equal(t, "admin", svc.got.Username)

	w = do(r, http.MethodGet, "/api/v1/operations/identify", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "configured", svc.got.Password)

	w = do(r, http.MethodPost, "/api/v1/operations/identify", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunOperationTargetOverrideNeedsOwnPassword(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, false)

	for _, body := range []string{
		`{"host":"attacker.example.com"}`,
		`{"host":"203.0.113.9","username":"admin"}`,
		`{"port":2222}`,
	} {
		w := do(r, http.MethodPost, "/api/v1/operations/identify", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Empty(t, svc.got.Password, body)
		assert.NotContains(t, w.Body.String(), "configured", body)

		var env service.Envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, "configuration", env.ErrorKind, body)
	}

	// 同一目标仍使用默认密码
	w := do(r, http.MethodPost, "/api/v1/operations/identify", `{"host":"10.0.0.1","port":22}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "configured", svc.got.Password)
}

func TestRunOperationStatusCodes(t *testing.T) {
	r := newTestRouter(&stubService{}, false)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/operations/reboot", "").Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/api/v1/operations/channel_info", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/operations/identify", `{"port":70000}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/operations/identify", `{"host":"not a host!"}`).Code)
}

func TestRuns(t *testing.T) {
	r := newTestRouter(&stubService{}, true)
	w := do(r, http.MethodGet, "/api/v1/runs?operation=identify", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.Contains(t, w.Body.String(), `"operation":"identify"`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/runs/r1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/runs/nope", "").Code)

	disabled := newTestRouter(&stubService{}, false)
	assert.Equal(t, http.StatusServiceUnavailable, do(disabled, http.MethodGet, "/api/v1/runs", "").Code)
}

func TestHealthMetricsAndNoRoute(t *testing.T) {
	r := newTestRouter(&stubService{}, false)
	w := do(r, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"transport":"network"`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodOptions, "/api/v1/operations", "").Code)
}
