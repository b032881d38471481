package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aescanero/nodecomp/internal/application/drivers"
	"github.com/aescanero/nodecomp/internal/application/orchestrator"
	"github.com/aescanero/nodecomp/internal/application/sharing"
	"github.com/aescanero/nodecomp/pkg/adapters/storage/memory"
	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()

	registry, plumber, err := drivers.Build(drivers.DefaultCatalog(), logger)
	require.NoError(t, err)

	manager := orchestrator.NewManager(
		memory.NewEntityStore(),
		registry,
		plumber,
		sharing.NewGuard(),
		nil,
		nil,
		nil,
		orchestrator.NewValidator(),
		logger,
	)
	require.NoError(t, manager.Initialize(context.Background()))

	return NewServer(&Config{
		Port:         0,
		Orchestrator: manager,
		Registry:     registry,
		Logger:       logger,
	})
}

type request struct {
	method string
	path   string
	body   interface{}
	tenant string
	admin  bool
}

func do(t *testing.T, s *Server, r request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if r.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(r.body))
	}

	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if r.tenant != "" {
		req.Header.Set(HeaderTenantID, r.tenant)
	}
	if r.admin {
		req.Header.Set(HeaderAdmin, "true")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, request{method: http.MethodGet, path: "/health"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestRequestsNeedCallerIdentity(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, request{method: http.MethodGet, path: "/api/v1/profiles"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, rec))
}

func TestChainLifecycle(t *testing.T) {
	s := newTestServer(t)
	tenant := "tenant-a"

	steps := []struct {
		path string
		body interface{}
	}{
		{"/api/v1/profiles", domain.ServiceProfile{ID: "p1", ServiceType: "FIREWALL"}},
		{"/api/v1/nodes", domain.ServiceChainNode{ID: "n1", ProfileID: "p1"}},
		{"/api/v1/specs", domain.ServiceChainSpec{ID: "s1", NodeIDs: []string{"n1"}}},
	}
	for _, step := range steps {
		rec := do(t, s, request{method: http.MethodPost, path: step.path, body: step.body, tenant: tenant})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, s, request{
		method: http.MethodPost,
		path:   "/api/v1/instances",
		body:   domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}},
		tenant: tenant,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var instance domain.ServiceChainInstance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instance))
	assert.Equal(t, domain.InstanceStatusActive, instance.Status)
	assert.Equal(t, tenant, instance.TenantID)

	t.Run("other tenant cannot see the instance", func(t *testing.T) {
		rec := do(t, s, request{method: http.MethodGet, path: "/api/v1/instances/i1", tenant: "tenant-b"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("profile in use cannot change", func(t *testing.T) {
		rec := do(t, s, request{
			method: http.MethodPut,
			path:   "/api/v1/profiles/p1",
			body:   map[string]string{"vendor": "acme"},
			tenant: tenant,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "IN_USE", errorCode(t, rec))
	})

	t.Run("referenced spec cannot be deleted", func(t *testing.T) {
		rec := do(t, s, request{method: http.MethodDelete, path: "/api/v1/specs/s1", tenant: tenant})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("only one spec per instance", func(t *testing.T) {
		rec := do(t, s, request{
			method: http.MethodPost,
			path:   "/api/v1/instances",
			body:   domain.ServiceChainInstance{SpecIDs: []string{"s1", "s1"}},
			tenant: tenant,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "TOO_MANY_SPECS", errorCode(t, rec))
	})

	t.Run("list is tenant scoped", func(t *testing.T) {
		rec := do(t, s, request{method: http.MethodGet, path: "/api/v1/instances", tenant: tenant})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data  []domain.ServiceChainInstance `json:"data"`
			Total int                           `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
	})

	t.Run("delete instance", func(t *testing.T) {
		rec := do(t, s, request{method: http.MethodDelete, path: "/api/v1/instances/i1", tenant: tenant})
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, s, request{method: http.MethodGet, path: "/api/v1/instances/i1", tenant: tenant})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateForAnotherTenantNeedsAdmin(t *testing.T) {
	s := newTestServer(t)
	body := domain.ServiceProfile{TenantID: "tenant-b", ServiceType: "FIREWALL"}

	rec := do(t, s, request{method: http.MethodPost, path: "/api/v1/profiles", body: body, tenant: "tenant-a"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ADMIN_REQUIRED", errorCode(t, rec))

	rec = do(t, s, request{method: http.MethodPost, path: "/api/v1/profiles", body: body, admin: true})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestInvalidBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/nodes", bytes.NewBufferString("{"))
	req.Header.Set(HeaderAdmin, "true")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
}

func TestListDrivers(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, request{method: http.MethodGet, path: "/api/v1/drivers", admin: true})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"noop"`)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&domain.ValidationError{Field: "name"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{&domain.TooManySpecsError{Count: 2}, http.StatusBadRequest, "TOO_MANY_SPECS"},
		{fmt.Errorf("load: %w", &domain.NotFoundError{Kind: domain.KindNode, ID: "n1"}), http.StatusNotFound, "NOT_FOUND"},
		{&domain.AdminRequiredError{}, http.StatusForbidden, "ADMIN_REQUIRED"},
		{&domain.SharingError{}, http.StatusForbidden, "SHARING_VIOLATION"},
		{&domain.ProfileInUseError{}, http.StatusConflict, "IN_USE"},
		{&domain.InUseError{}, http.StatusConflict, "IN_USE"},
		{fmt.Errorf("commit: %w", domain.ErrConflict), http.StatusConflict, "CONFLICT"},
		{&domain.NoDriverAvailableError{}, http.StatusUnprocessableEntity, "NO_DRIVER_AVAILABLE"},
		{&domain.NodeDriverError{Err: assert.AnError}, http.StatusBadGateway, "DRIVER_FAILED"},
		{assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
