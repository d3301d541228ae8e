package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	mu       sync.Mutex
	replays  map[string]*postgres.IdempotencyReplay
	failed   map[string]int
	acquired int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		replays: make(map[string]*postgres.IdempotencyReplay),
		failed:  make(map[string]int),
	}
}

func (s *fakeStore) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired++
	return s.replays[key], nil
}

func (s *fakeStore) CompleteKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replays[key] = &postgres.IdempotencyReplay{StatusCode: statusCode, ContentType: contentType, Body: body}
	return nil
}

func (s *fakeStore) FailKey(_ context.Context, key string, statusCode int, _ string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[key] = statusCode
	return nil
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &appctx.UserContext{UserID: "user-1", Roles: []string{"cashier"}}, nil
}

type fakeChecker struct {
	active bool
	err    error
}

func (f fakeChecker) InMaintenance(context.Context, string) (bool, error) {
	return f.active, f.err
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestIdempotency_ReplaysCompletedRequest(t *testing.T) {
	store := newFakeStore()
	calls := 0

	r := gin.New()
	r.Use(ErrorHandler(), Idempotency(store))
	r.POST("/sales", func(c *gin.Context) {
		calls++
		resp := gin.H{"call": calls}
		key := c.GetString(ContextIdempotencyKey)
		_ = store.CompleteKey(c.Request.Context(), key, http.StatusCreated, "application/json", resp)
		c.JSON(http.StatusCreated, resp)
	})

	headers := map[string]string{HeaderIdempotencyKey: "k-1"}
	first := do(r, http.MethodPost, "/sales", `{"total":10}`, headers)
	second := do(r, http.MethodPost, "/sales", `{"total":10}`, headers)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotency_SkipsReadsAndKeylessRequests(t *testing.T) {
	store := newFakeStore()
	r := gin.New()
	r.Use(Idempotency(store))
	r.GET("/sales", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/sales", func(c *gin.Context) { c.Status(http.StatusCreated) })

	do(r, http.MethodGet, "/sales", "", map[string]string{HeaderIdempotencyKey: "k"})
	do(r, http.MethodPost, "/sales", "{}", nil)

	assert.Zero(t, store.acquired)
}

func TestIdempotency_RecordsFailures(t *testing.T) {
	store := newFakeStore()
	r := gin.New()
	r.Use(ErrorHandler(), Idempotency(store))
	r.POST("/sales", func(c *gin.Context) {
		_ = c.Error(apperror.NewValidation("bad sale"))
	})

	w := do(r, http.MethodPost, "/sales", "{}", map[string]string{HeaderIdempotencyKey: "k-2"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeError(t, w))
	assert.Equal(t, http.StatusBadRequest, store.failed["k-2"])
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Auth(fakeValidator{}))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
	})
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic good", http.StatusUnauthorized},
		{"invalid token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/me", "Bearer good", http.StatusOK},
		{"missing role", "/admin", "Bearer good", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := do(r, http.MethodGet, tt.path, "", headers)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK && tt.path == "/me" {
				assert.Equal(t, "user-1", w.Body.String())
			}
		})
	}
}

func TestMaintenance(t *testing.T) {
	newRouter := func(checker MaintenanceChecker) *gin.Engine {
		r := gin.New()
		r.Use(ErrorHandler(), Auth(fakeValidator{}), Maintenance(checker))
		r.GET("/sales", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.POST("/sales", func(c *gin.Context) { c.Status(http.StatusCreated) })
		return r
	}
	auth := map[string]string{"Authorization": "Bearer good"}

	t.Run("blocks writes", func(t *testing.T) {
		w := do(newRouter(fakeChecker{active: true}), http.MethodPost, "/sales", "{}", auth)
		assert.Equal(t, http.StatusLocked, w.Code)
		assert.Equal(t, apperror.CodeMaintenance, decodeError(t, w))
	})

	t.Run("allows reads", func(t *testing.T) {
		w := do(newRouter(fakeChecker{active: true}), http.MethodGet, "/sales", "", auth)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("checker failure lets writes through", func(t *testing.T) {
		w := do(newRouter(fakeChecker{err: errors.New("redis down")}), http.MethodPost, "/sales", "{}", auth)
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}
