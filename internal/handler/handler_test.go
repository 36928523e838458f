package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"savecircle/internal/config"
	"savecircle/internal/infrastructure/database"
	"savecircle/internal/infrastructure/lock"
	"savecircle/internal/service/gateway"
	"savecircle/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouterWithDB(t *testing.T) *gin.Engine {
	t.Helper()
	// Per-test in-memory database to avoid cross-test interference.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{}
	config.ApplyBusinessDefaults(&cfg.Business)
	cfg.Kafka.Topic.WalletEvents = "savecircle.wallet.events.test"

	return SetupRouter(db, lock.NewMemoryManager(), cfg, gateway.StaticAuthorizer{}, gateway.StaticLimits{})
}

func httpDo(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	r := setupRouterWithDB(t)
	w := httpDo(r, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDepositAndGetWallet(t *testing.T) {
	r := setupRouterWithDB(t)

	w := httpDo(r, "POST", "/api/v1/wallet/deposit", map[string]interface{}{
		"user_id":           1,
		"amount":            10000,
		"payment_method_id": "pm_test",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	require.Equal(t, float64(320), data["fee"])
	require.Equal(t, float64(9680), data["net_amount"])

	w = httpDo(r, "GET", "/api/v1/wallet?user_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	wallet := resp.Data.(map[string]interface{})
	require.Equal(t, float64(9680), wallet["balance"])
	require.Equal(t, float64(9680), wallet["available_balance"])
}

func TestWithdrawInsufficientMapsToBusinessCode(t *testing.T) {
	r := setupRouterWithDB(t)

	w := httpDo(r, "POST", "/api/v1/wallet/withdraw", map[string]interface{}{
		"user_id":     1,
		"amount":      5000,
		"destination": "bank_1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.Equal(t, response.CodeInsufficientBalance, resp.Code)
}

func TestDepositValidation(t *testing.T) {
	r := setupRouterWithDB(t)

	// Missing amount fails binding.
	w := httpDo(r, "POST", "/api/v1/wallet/deposit", map[string]interface{}{
		"user_id":           1,
		"payment_method_id": "pm_test",
	})
	resp := decode(t, w)
	require.Equal(t, response.CodeParamError, resp.Code)

	// Below the deposit floor maps to the invalid-amount code.
	w = httpDo(r, "POST", "/api/v1/wallet/deposit", map[string]interface{}{
		"user_id":           1,
		"amount":            50,
		"payment_method_id": "pm_test",
	})
	resp = decode(t, w)
	require.Equal(t, response.CodeInvalidAmount, resp.Code)
}

func TestPlanLifecycleOverHTTP(t *testing.T) {
	r := setupRouterWithDB(t)

	w := httpDo(r, "POST", "/api/v1/plan/create", map[string]interface{}{
		"user_id":             1,
		"name":                "rainy day",
		"daily_amount":        1000,
		"total_target_amount": 30000,
	})
	resp := decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	planID := resp.Data.(map[string]interface{})["id"].(float64)

	w = httpDo(r, "POST", "/api/v1/plan/contribute", map[string]interface{}{
		"user_id": 1,
		"plan_id": planID,
	})
	resp = decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	// Second contribution the same day is rejected with a stable code.
	w = httpDo(r, "POST", "/api/v1/plan/contribute", map[string]interface{}{
		"user_id": 1,
		"plan_id": planID,
	})
	resp = decode(t, w)
	require.Equal(t, response.CodeAlreadyContributed, resp.Code)

	w = httpDo(r, "GET", "/api/v1/plan/list?user_id=1", nil)
	resp = decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	list := resp.Data.(map[string]interface{})["list"].([]interface{})
	require.Len(t, list, 1)
}

func TestGroupJoinOverHTTP(t *testing.T) {
	r := setupRouterWithDB(t)

	w := httpDo(r, "POST", "/api/v1/group/create", map[string]interface{}{
		"creator_id":          1,
		"name":                "circle",
		"contribution_amount": 10000,
		"cycle_rounds":        1,
		"max_members":         5,
	})
	resp := decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	joinCode := resp.Data.(map[string]interface{})["join_code"].(string)

	w = httpDo(r, "POST", "/api/v1/group/join", map[string]interface{}{
		"user_id":   2,
		"join_code": joinCode,
	})
	resp = decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	// Unknown join code maps to its business code.
	w = httpDo(r, "POST", "/api/v1/group/join", map[string]interface{}{
		"user_id":   3,
		"join_code": "NOSUCH01",
	})
	resp = decode(t, w)
	require.Equal(t, response.CodeInvalidJoinCode, resp.Code)
}

func TestFreezeUnfreezeOverHTTP(t *testing.T) {
	r := setupRouterWithDB(t)

	w := httpDo(r, "POST", "/api/v1/wallet/deposit", map[string]interface{}{
		"user_id":           1,
		"amount":            10000,
		"payment_method_id": "pm_test",
	})
	require.Equal(t, response.CodeSuccess, decode(t, w).Code)

	w = httpDo(r, "POST", "/api/v1/wallet/freeze", map[string]interface{}{
		"user_id": 1,
		"reason":  "lost phone",
	})
	resp := decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	code := resp.Data.(map[string]interface{})["verification_code"].(string)
	require.Len(t, code, 6)

	// Frozen wallet rejects withdrawals with the frozen code.
	w = httpDo(r, "POST", "/api/v1/wallet/withdraw", map[string]interface{}{
		"user_id":     1,
		"amount":      5000,
		"destination": "bank_1",
	})
	require.Equal(t, response.CodeWalletFrozen, decode(t, w).Code)

	w = httpDo(r, "POST", "/api/v1/wallet/unfreeze", map[string]interface{}{
		"user_id":           1,
		"verification_code": code,
	})
	require.Equal(t, response.CodeSuccess, decode(t, w).Code)
}
