package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/kvstore"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/session"
	"github.com/tiammomo/mamoji-sub001/internal/store/storetest"
)

type apiClient struct {
	t *testing.T
	r *gin.Engine
}

type envelope struct {
	Code    int             `json:"code"`
	Reason  string          `json:"reason"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{Mode: gin.TestMode},
		JWT:      config.JWTConfig{Secret: "router-secret", Issuer: "test", ExpireHours: 1},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost, LoginFailThreshold: 5, LoginFailWindowMinutes: 15},
		App:      config.AppSubConfig{PageSize: 20, Domain: "https://ledger.example.com", DefaultCurrency: "CNY", BalanceRetries: 3},
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := storetest.New(t)
	guard := session.NewGuard(kvstore.NewRedisFromClient(client), cfg.JWT, cfg.Security)
	svc := NewServices(cfg, st, guard, service.Options{})
	return &apiClient{t: t, r: SetupRouter(cfg, st, svc, zap.NewNop())}
}

func (a *apiClient) do(method, path, token string, body any, header ...string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (a *apiClient) ok(method, path, token string, body any, out any, header ...string) {
	a.t.Helper()
	w, env := a.do(method, path, token, body, header...)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	if out != nil {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
}

func (a *apiClient) login(username string) string {
	a.t.Helper()
	a.ok(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "password": "Secret123", "confirm_password": "Secret123",
	}, nil)
	var res struct {
		Token string `json:"token"`
	}
	a.ok(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": "Secret123"}, &res)
	require.NotEmpty(a.t, res.Token)
	return res.Token
}

func TestAuthFlow(t *testing.T) {
	api := newAPI(t)

	w, env := api.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Reason)

	w, env = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "Secret123", "confirm_password": "Secret124",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Reason)

	token := api.login("alice")

	var me struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	api.ok(http.MethodGet, "/api/me", token, nil, &me)
	assert.Equal(t, "alice", me.User.Username)

	w, env = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "Wrong1234"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Reason)

	api.ok(http.MethodPost, "/api/auth/logout", token, nil, nil)
	w, _ = api.do(http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	api := newAPI(t)
	token := api.login("alice")

	var acc struct {
		Account struct {
			ID      uint   `json:"id"`
			Balance string `json:"balance"`
		} `json:"account"`
	}
	api.ok(http.MethodPost, "/api/accounts", token, map[string]any{
		"name": "Wallet", "type": "cash", "opening_balance": "100",
	}, &acc)
	assert.Equal(t, "100.00", acc.Account.Balance)
	accountPath := fmt.Sprintf("/api/accounts/%d", acc.Account.ID)

	var created struct {
		Transaction struct {
			ID uint `json:"id"`
		} `json:"transaction"`
	}
	api.ok(http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": "40.00", "account_id": acc.Account.ID,
	}, &created)
	txPath := fmt.Sprintf("/api/transactions/%d", created.Transaction.ID)

	api.ok(http.MethodGet, accountPath, token, nil, &acc)
	assert.Equal(t, "60.00", acc.Account.Balance)

	w, env := api.do(http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "transfer", "amount": "1", "account_id": acc.Account.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_TRANSACTION_TYPE", env.Reason)

	var refund struct {
		Refund struct {
			ID uint `json:"id"`
		} `json:"refund"`
	}
	api.ok(http.MethodPost, txPath+"/refunds", token, map[string]any{"amount": "15"}, &refund)
	api.ok(http.MethodGet, accountPath, token, nil, &acc)
	assert.Equal(t, "75.00", acc.Account.Balance)

	w, env = api.do(http.MethodPost, txPath+"/refunds", token, map[string]any{"amount": "30"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "REFUND_EXCEEDS_REMAINING", env.Reason)

	w, env = api.do(http.MethodDelete, txPath, token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "TRANSACTION_HAS_REFUNDS", env.Reason)

	var canceled struct {
		Canceled bool `json:"canceled"`
	}
	api.ok(http.MethodDelete, fmt.Sprintf("/api/refunds/%d", refund.Refund.ID), token, nil, &canceled)
	assert.True(t, canceled.Canceled)

	var rolled struct {
		RolledBack bool `json:"rolled_back"`
	}
	api.ok(http.MethodDelete, txPath, token, nil, &rolled)
	assert.True(t, rolled.RolledBack)
	api.ok(http.MethodDelete, txPath, token, nil, &rolled)
	assert.False(t, rolled.RolledBack)

	api.ok(http.MethodGet, accountPath, token, nil, &acc)
	assert.Equal(t, "100.00", acc.Account.Balance)

	var logs struct {
		Total int64 `json:"total"`
		Items []struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		} `json:"items"`
	}
	api.ok(http.MethodGet, "/api/logs?q=/api/refunds", token, nil, &logs)
	require.Equal(t, int64(1), logs.Total)
	assert.Equal(t, http.MethodDelete, logs.Items[0].Method)
}

func TestLedgerSharing(t *testing.T) {
	api := newAPI(t)
	alice := api.login("alice")
	bob := api.login("bob")

	var ledger struct {
		Ledger struct {
			ID uint `json:"id"`
		} `json:"ledger"`
	}
	api.ok(http.MethodPost, "/api/ledgers", alice, map[string]any{"name": "Household"}, &ledger)
	ledgerID := fmt.Sprint(ledger.Ledger.ID)

	w, env := api.do(http.MethodGet, "/api/accounts", bob, nil, "X-Ledger-Id", ledgerID)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NO_ACCESS", env.Reason)

	var inv struct {
		Invitation struct {
			Code string `json:"code"`
		} `json:"invitation"`
	}
	api.ok(http.MethodPost, "/api/ledgers/"+ledgerID+"/invitations", alice, map[string]any{"role": "viewer", "max_uses": 1}, &inv)
	require.NotEmpty(t, inv.Invitation.Code)

	var joined struct {
		LedgerID uint   `json:"ledger_id"`
		Role     string `json:"role"`
	}
	api.ok(http.MethodPost, "/api/join/"+inv.Invitation.Code, bob, nil, &joined)
	assert.Equal(t, ledger.Ledger.ID, joined.LedgerID)
	assert.Equal(t, "viewer", joined.Role)

	api.ok(http.MethodGet, "/api/accounts", bob, nil, nil, "X-Ledger-Id", ledgerID)

	w, env = api.do(http.MethodPost, "/api/accounts", bob, map[string]any{"name": "Card", "type": "credit"}, "X-Ledger-Id", ledgerID)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NO_PERMISSION", env.Reason)

	w, _ = api.do(http.MethodGet, "/api/accounts?ledger_id=abc", bob, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportAndMetrics(t *testing.T) {
	api := newAPI(t)
	token := api.login("alice")

	var acc struct {
		Account struct {
			ID uint `json:"id"`
		} `json:"account"`
	}
	api.ok(http.MethodPost, "/api/accounts", token, map[string]any{"name": "Wallet", "type": "cash"}, &acc)
	api.ok(http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "income", "amount": "12.50", "account_id": acc.Account.ID, "note": "salary",
	}, nil)

	w, _ := api.do(http.MethodGet, "/api/export/csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "\xEF\xBB\xBF"))
	assert.Contains(t, body, "收入,12.50,CNY")
	assert.Contains(t, body, "salary")

	w, _ = api.do(http.MethodGet, "/api/export/xlsx", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w, _ = api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ledger_http_request_duration_seconds")
}

func TestBalanceSheetAndTrend(t *testing.T) {
	api := newAPI(t)
	token := api.login("alice")

	var acc struct {
		Account struct {
			ID uint `json:"id"`
		} `json:"account"`
	}
	api.ok(http.MethodPost, "/api/accounts", token, map[string]any{"name": "Card", "type": "credit"}, &acc)
	api.ok(http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": "40", "account_id": acc.Account.ID,
	}, nil)

	var sheet struct {
		Currencies []struct {
			Currency         string `json:"currency"`
			TotalLiabilities string `json:"total_liabilities"`
			NetAssets        string `json:"net_assets"`
		} `json:"currencies"`
	}
	api.ok(http.MethodGet, "/api/reports/balance-sheet", token, nil, &sheet)
	require.Len(t, sheet.Currencies, 1)
	assert.Equal(t, "40.00", sheet.Currencies[0].TotalLiabilities)
	assert.Equal(t, "-40.00", sheet.Currencies[0].NetAssets)

	var trend struct {
		Items []struct {
			Expense          string `json:"expense"`
			TransactionCount int    `json:"transaction_count"`
		} `json:"items"`
	}
	api.ok(http.MethodGet, "/api/reports/trend?period=Daily", token, nil, &trend)
	require.Len(t, trend.Items, 1)
	assert.Equal(t, "40.00", trend.Items[0].Expense)
	assert.Equal(t, 1, trend.Items[0].TransactionCount)

	w, _ := api.do(http.MethodGet, "/api/reports/trend?period=hourly", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
