package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/app"
	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain/auth"
	"retailledger/internal/domain/stock"
	v1 "retailledger/internal/infrastructure/http/v1"
	"retailledger/internal/infrastructure/http/v1/handlers"
	"retailledger/internal/infrastructure/storage/memory"
	"retailledger/pkg/logger"
)

const testSecret = "test-secret-test-secret-test-secret"

type apiClient struct {
	t         *testing.T
	router    http.Handler
	token     string
	productID id.ID
}

func newAPI(t *testing.T, checks map[string]handlers.Pinger) *apiClient {
	t.Helper()

	store := memory.NewStore()
	productID := id.New()
	store.Products().Put(stock.Product{
		ID:     productID,
		UserID: "user-1",
		Name:   "Aceite",
		Stock:  decimal.NewFromInt(5),
	})

	services, err := app.NewServices(app.MemoryRepositories(store), memory.NewTxManager(store), app.Options{})
	require.NoError(t, err)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(testSecret))
	token, _, err := jwtService.GenerateAccessToken("user-1", "", nil)
	require.NoError(t, err)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       logger.NewNop(),
		JWTValidator: jwtService,
		Services:     services,
		HealthChecks: checks,
	})
	return &apiClient{t: t, router: router, token: token, productID: productID}
}

func (a *apiClient) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *apiClient) saleBody(qty int) string {
	return `{"items":[{"productId":"` + a.productID.String() + `","quantity":` +
		decimal.NewFromInt(int64(qty)).String() + `,"price":25,"costPrice":10}],` +
		`"payments":[{"amount":` + decimal.NewFromInt(int64(25*qty)).String() + `,"method":"EFECTIVO"}]}`
}

func TestHealth(t *testing.T) {
	api := newAPI(t, map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return nil }),
		"redis":    handlers.PingFunc(func(context.Context) error { return errors.New("refused") }),
	})

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/live", "", false).Code)

	w := api.do(http.MethodGet, "/health/ready", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
}

func TestSalesAPI_RequiresToken(t *testing.T) {
	api := newAPI(t, nil)

	w := api.do(http.MethodGet, "/api/v1/sales", "", false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decode(t, w)["code"])
}

func TestSalesAPI_Lifecycle(t *testing.T) {
	api := newAPI(t, nil)

	w := api.do(http.MethodPost, "/api/v1/sales", api.saleBody(2), true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	saleID := created["id"].(string)
	assert.Equal(t, "50", created["total"])
	assert.Equal(t, true, created["paid"])

	w = api.do(http.MethodGet, "/api/v1/sales/"+saleID, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, saleID, decode(t, w)["id"])

	w = api.do(http.MethodGet, "/api/v1/daily-cash/today", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "50", decode(t, w)["totalIncome"])

	w = api.do(http.MethodGet, "/api/v1/sales", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = api.do(http.MethodDelete, "/api/v1/sales/"+saleID, "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodGet, "/api/v1/sales/"+saleID, "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSalesAPI_Errors(t *testing.T) {
	api := newAPI(t, nil)

	t.Run("malformed body", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/sales", `{"items":`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperror.CodeValidation, decode(t, w)["code"])
	})

	t.Run("insufficient stock", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/sales", api.saleBody(9), true)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, apperror.CodeInsufficientStock, decode(t, w)["code"])
	})

	t.Run("bad id", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/sales/not-a-uuid", "", true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
