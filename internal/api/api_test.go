package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"analyticaos/internal/db/dbtest"
	"analyticaos/internal/domain"
	"analyticaos/internal/invest"
	"analyticaos/internal/monitor"
	"analyticaos/internal/payment"
	"analyticaos/internal/utils"
	"analyticaos/internal/yield"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

const (
	testSecret    = "test-secret"
	webhookSecret = "webhook-secret"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeReserver struct{ calls int }

func (f *fakeReserver) ReserveAccount(_ context.Context, r payment.ReservedAccountRequest) (*payment.ReservedAccount, error) {
	f.calls++
	return &payment.ReservedAccount{AccountReference: r.AccountReference, AccountNumber: "7000000001", BankName: "Wema Bank"}, nil
}

type fakePayer struct {
	status string
	err    error
}

func (f *fakePayer) Disburse(_ context.Context, d payment.Disbursement) (*payment.DisbursementResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == "" {
		status = payment.StatusSuccess
	}
	return &payment.DisbursementResult{Reference: d.Reference, Status: status}, nil
}

type fakeMonitor struct {
	mu      sync.Mutex
	running bool
	runs    int
	err     error
}

func (m *fakeMonitor) Start(time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	m.running = true
	return true
}

func (m *fakeMonitor) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.running
	m.running = false
	return was
}

func (m *fakeMonitor) Status() monitor.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return monitor.Status{Running: m.running, Runs: m.runs}
}

func (m *fakeMonitor) RunOnce(context.Context) (*invest.SyncReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	if m.err != nil {
		return nil, m.err
	}
	return &invest.SyncReport{Changes: []invest.PriceChange{}}, nil
}

type env struct {
	t        *testing.T
	db       *gorm.DB
	rdb      *redis.Client
	router   *gin.Engine
	reserver *fakeReserver
	payer    *fakePayer
	monitor  *fakeMonitor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := &env{t: t, db: gdb, rdb: rdb, reserver: &fakeReserver{}, payer: &fakePayer{}, monitor: &fakeMonitor{}}
	s := &Server{
		DB:              gdb,
		Redis:           rdb,
		Invest:          invest.New(gdb, yield.Daily),
		Reserver:        e.reserver,
		Payer:           e.payer,
		Monitor:         e.monitor,
		MonitorInterval: time.Minute,
		JWTSecret:       testSecret,
		WebhookSecret:   webhookSecret,
	}
	e.router = gin.New()
	s.Routes(e.router)
	return e
}

// do sends a JSON request, authenticated when token is not empty
func (e *env) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) tokenFor(userID uint) string {
	e.t.Helper()
	tok, err := utils.GenerateJWT(userID, domain.RoleUser, testSecret)
	require.NoError(e.t, err)
	return tok
}

func (e *env) admin() string {
	e.t.Helper()
	admin, _ := dbtest.SeedUser(e.t, e.db, "root@example.com", 0)
	require.NoError(e.t, e.db.Model(&admin).Update("role", domain.RoleAdmin).Error)
	return e.tokenFor(admin.ID)
}

func body(w *httptest.ResponseRecorder, path string) gjson.Result {
	return gjson.GetBytes(w.Body.Bytes(), path)
}

func webhook(e *env, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString(payload))
	req.Header.Set(payment.SignatureHeader, signature)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func collection(reference, accountRef, amount string) string {
	return `{"eventType":"SUCCESSFUL_TRANSACTION","eventData":{"transactionReference":"` + reference +
		`","paymentReference":"P-` + reference + `","amountPaid":"` + amount +
		`","paymentStatus":"PAID","product":{"type":"RESERVED_ACCOUNT","reference":"` + accountRef + `"}}}`
}

func disbursement(eventType, reference string) string {
	return `{"eventType":"` + eventType + `","eventData":{"reference":"` + reference + `","amount":200,"status":"done"}}`
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	req := RegisterRequest{Email: "Ada@Example.com", Password: "password123", FirstName: "Ada", LastName: "Obi"}

	w := e.do(http.MethodPost, "/auth/register", req, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "ada@example.com", body(w, "user.email").String())
	assert.Equal(t, "7000000001", body(w, "user.wallet.account_number").String())
	assert.False(t, body(w, "user.password").Exists())
	assert.Equal(t, 1, e.reserver.calls)

	assert.Equal(t, http.StatusConflict, e.do(http.MethodPost, "/auth/register", req, "").Code)
	req.Email, req.Password = "obi@example.com", "short"
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/auth/register", req, "").Code)

	w = e.do(http.MethodPost, "/auth/login", LoginRequest{Email: "ADA@example.com", Password: "password123"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := body(w, "token").String()
	require.NotEmpty(t, token)

	w = e.do(http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodGet, "/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada", body(w, "user.first_name").String())
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/me", nil, "").Code)
}

func TestWalletCacheAndWebhook(t *testing.T) {
	e := newEnv(t)
	user, wallet := dbtest.SeedUser(t, e.db, "ada@example.com", 1000)
	token := e.tokenFor(user.ID)

	w := e.do(http.MethodGet, "/wallet", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, body(w, "cached").Bool())
	assert.Equal(t, int64(1000), body(w, "wallet.balance").Int())
	assert.Equal(t, "₦10.00", body(w, "wallet.balance_display").String())
	assert.True(t, body(e.do(http.MethodGet, "/wallet", nil, token), "cached").Bool())

	payload := collection("MNFY|1", wallet.AccountReference, "250.50")
	assert.Equal(t, http.StatusUnauthorized, webhook(e, payload, "bad").Code)

	w = webhook(e, payload, payment.Sign(webhookSecret, []byte(payload)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "credited", body(w, "status").String())

	// a replay is acknowledged without crediting twice
	w = webhook(e, payload, payment.Sign(webhookSecret, []byte(payload)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate", body(w, "status").String())

	w = e.do(http.MethodGet, "/wallet", nil, token)
	assert.False(t, body(w, "cached").Bool())
	assert.Equal(t, int64(26050), body(w, "wallet.balance").Int())

	unknown := collection("MNFY|2", "nobody", "10")
	assert.Equal(t, http.StatusNotFound, webhook(e, unknown, payment.Sign(webhookSecret, []byte(unknown))).Code)

	refund := `{"eventType":"SUCCESSFUL_REFUND","eventData":{"transactionReference":"r","amountPaid":"10"}}`
	w = webhook(e, refund, payment.Sign(webhookSecret, []byte(refund)))
	assert.Equal(t, "ignored", body(w, "status").String())

	w = e.do(http.MethodGet, "/wallet/transactions?page_size=5", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), body(w, "history.total").Int())
	assert.Equal(t, domain.TxDeposit, body(w, "history.transactions.0.type").String())
}

func TestReserveAccountEndpoint(t *testing.T) {
	e := newEnv(t)
	user, _ := dbtest.SeedUser(t, e.db, "ada@example.com", 0)

	w := e.do(http.MethodPost, "/wallet/reserved-account", nil, e.tokenFor(user.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Wema Bank", body(w, "wallet.bank_name").String())
}

func TestPurchaseFlow(t *testing.T) {
	e := newEnv(t)
	user, _ := dbtest.SeedUser(t, e.db, "ada@example.com", 1_000_000)
	dbtest.SeedToken(t, e.db, "FGN26", 10000, 1000, "12")
	token := e.tokenFor(user.ID)

	w := e.do(http.MethodPost, "/tokens/fgn26/purchase", PurchaseRequest{Units: 10}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, int64(900000), body(w, "result.balance").Int())
	assert.Equal(t, int64(10), body(w, "result.holding.units").Int())

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/tokens/FGN26/purchase", gin.H{"units": 0}, token).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/tokens/NOPE/purchase", PurchaseRequest{Units: 1}, token).Code)
	w = e.do(http.MethodPost, "/tokens/FGN26/purchase", PurchaseRequest{Units: 91}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Insufficient funds", body(w, "error").String())
	w = e.do(http.MethodPost, "/tokens/FGN26/purchase", PurchaseRequest{Units: 2000}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(http.MethodGet, "/holdings", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FGN26", body(w, "holdings.0.token.symbol").String())

	w = e.do(http.MethodGet, "/portfolio", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(100000), body(w, "portfolio.total_invested").Int())
	assert.Equal(t, int64(1_000_000), body(w, "portfolio.net_worth").Int())

	w = e.do(http.MethodGet, "/tokens/FGN26", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(990), body(w, "available_units").Int())
}

func TestWithdrawEndpoint(t *testing.T) {
	e := newEnv(t)
	user, wallet := dbtest.SeedUser(t, e.db, "ada@example.com", 50000)
	token := e.tokenFor(user.ID)
	req := WithdrawRequest{Amount: 20000, BankCode: "058", AccountNumber: "0123456789"}

	w := e.do(http.MethodPost, "/wallet/withdraw", req, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.TxSuccess, body(w, "transaction.status").String())

	req.Amount = 40000
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPost, "/wallet/withdraw", req, token).Code)

	req.Amount, req.AccountNumber = 100, "123"
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/wallet/withdraw", req, token).Code)

	e.payer.err = &payment.APIError{StatusCode: 400, Message: "invalid account"}
	req.AccountNumber = "0123456789"
	w = e.do(http.MethodPost, "/wallet/withdraw", req, token)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var got domain.Wallet
	require.NoError(t, e.db.First(&got, wallet.ID).Error)
	assert.Equal(t, int64(30000), got.Balance)
}

func TestTokenCatalog(t *testing.T) {
	e := newEnv(t)
	dbtest.SeedToken(t, e.db, "FGN26", 10000, 100, "12")
	dbtest.SeedToken(t, e.db, "LAG30", 5000, 100, "9.5")

	w := e.do(http.MethodGet, "/tokens", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), body(w, "tokens.total").Int())
	assert.True(t, body(e.do(http.MethodGet, "/tokens", nil, ""), "cached").Bool())

	w = e.do(http.MethodGet, "/search?q=lag", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), body(w, "tokens.total").Int())
	assert.Equal(t, "LAG30", body(w, "tokens.tokens.0.symbol").String())
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/search", nil, "").Code)

	// creating a token drops the cached listing
	admin := e.admin()
	w = e.do(http.MethodPost, "/admin/tokens", TokenRequest{Symbol: "abj28", Name: "Abuja Bond", UnitPrice: 2000, TotalSupply: 10}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(http.MethodGet, "/tokens", nil, "")
	assert.False(t, body(w, "cached").Bool())
	assert.Equal(t, int64(3), body(w, "tokens.total").Int())

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/tokens/NOPE", nil, "").Code)
}

func TestWatchlistAndNotifications(t *testing.T) {
	e := newEnv(t)
	user, _ := dbtest.SeedUser(t, e.db, "ada@example.com", 1_000_000)
	other, _ := dbtest.SeedUser(t, e.db, "obi@example.com", 0)
	dbtest.SeedToken(t, e.db, "FGN26", 10000, 100, "12")
	token := e.tokenFor(user.ID)

	assert.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/watchlist", WatchRequest{Symbol: "fgn26"}, token).Code)
	assert.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/watchlist", WatchRequest{Symbol: "FGN26"}, token).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/watchlist", WatchRequest{Symbol: "NOPE"}, token).Code)
	w := e.do(http.MethodGet, "/watchlist", nil, token)
	assert.Len(t, body(w, "watchlist").Array(), 1)
	assert.Equal(t, http.StatusOK, e.do(http.MethodDelete, "/watchlist/FGN26", nil, token).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/watchlist/FGN26", nil, token).Code)

	// two purchases leave two notifications
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/tokens/FGN26/purchase", PurchaseRequest{Units: 1}, token).Code)
	}
	w = e.do(http.MethodGet, "/notifications/unread-count", nil, token)
	assert.Equal(t, int64(2), body(w, "unread").Int())

	w = e.do(http.MethodGet, "/notifications?unread_only=true", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	id := body(w, "notifications.0.id").Uint()
	path := "/notifications/" + strconv.FormatUint(id, 10) + "/read"

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, path, nil, e.tokenFor(other.ID)).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, path, nil, token).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, path, nil, token).Code)
	assert.Equal(t, int64(1), body(e.do(http.MethodGet, "/notifications/unread-count", nil, token), "unread").Int())

	w = e.do(http.MethodPost, "/notifications/read-all", nil, token)
	assert.Equal(t, int64(1), body(w, "updated").Int())
	assert.Equal(t, int64(0), body(e.do(http.MethodGet, "/notifications/unread-count", nil, token), "unread").Int())
	assert.Equal(t, int64(2), body(e.do(http.MethodGet, "/notifications", nil, token), "total").Int())
}

func TestAdminEndpoints(t *testing.T) {
	e := newEnv(t)
	user, wallet := dbtest.SeedUser(t, e.db, "ada@example.com", 1_000_000)
	dbtest.SeedToken(t, e.db, "FGN26", 10000, 100, "12")
	admin := e.admin()
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/tokens/FGN26/purchase", PurchaseRequest{Units: 10}, e.tokenFor(user.ID)).Code)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/admin/users", nil, e.tokenFor(user.ID)).Code)

	w := e.do(http.MethodGet, "/admin/users", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), body(w, "users.total").Int())
	assert.Equal(t, "Ada Obi", body(w, "users.users.0.name").String())

	w = e.do(http.MethodGet, "/admin/transactions?type=purchase&user_id="+strconv.Itoa(int(user.ID)), nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), body(w, "history.total").Int())
	assert.Equal(t, uint64(wallet.ID), body(w, "history.transactions.0.wallet_id").Uint())
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/admin/transactions?from=yesterday", nil, admin).Code)

	w = e.do(http.MethodGet, "/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(100000), body(w, "stats.total_invested").Int())

	assert.Equal(t, http.StatusConflict, e.do(http.MethodPost, "/admin/tokens", TokenRequest{Symbol: "FGN26", Name: "Dup", UnitPrice: 1, TotalSupply: 1}, admin).Code)

	w = e.do(http.MethodPatch, "/admin/tokens/FGN26", gin.H{"unit_price": 12000, "status": "paused"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(12000), body(w, "token.unit_price").Int())
	assert.Equal(t, domain.TokenPaused, body(w, "token.status").String())
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPatch, "/admin/tokens/FGN26", gin.H{"total_supply": 5}, admin).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPatch, "/admin/tokens/FGN26", gin.H{"status": "gone"}, admin).Code)

	for _, job := range []string{"accrue", "repair-average-prices", "reconcile-volumes"} {
		w = e.do(http.MethodPost, "/admin/jobs/"+job, nil, admin)
		assert.Equal(t, http.StatusOK, w.Code, job)
	}

	assert.Equal(t, http.StatusOK, e.do(http.MethodDelete, "/admin/users/"+strconv.Itoa(int(user.ID)), nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/admin/users/"+strconv.Itoa(int(user.ID)), nil, admin).Code)
	var token domain.Token
	require.NoError(t, e.db.Where("symbol = ?", "FGN26").First(&token).Error)
	assert.Zero(t, token.SoldUnits)
}

func TestMonitorEndpoints(t *testing.T) {
	e := newEnv(t)
	admin := e.admin()

	w := e.do(http.MethodPost, "/admin/monitor/start", nil, admin)
	assert.Equal(t, "Monitor started", body(w, "message").String())
	w = e.do(http.MethodPost, "/admin/monitor/start", nil, admin)
	assert.Equal(t, "Monitor already running", body(w, "message").String())
	assert.True(t, body(e.do(http.MethodGet, "/admin/monitor", nil, admin), "monitor.running").Bool())
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/admin/monitor/start?interval=soon", nil, admin).Code)

	w = e.do(http.MethodPost, "/admin/monitor/stop", nil, admin)
	assert.Equal(t, "Monitor stopped", body(w, "message").String())
	w = e.do(http.MethodPost, "/admin/monitor/stop", nil, admin)
	assert.Equal(t, "Monitor not running", body(w, "message").String())

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/admin/tokens/sync", nil, admin).Code)
	e.monitor.err = errors.New("listing service down")
	assert.Equal(t, http.StatusBadGateway, e.do(http.MethodPost, "/admin/tokens/sync", nil, admin).Code)
	assert.Equal(t, 2, e.monitor.runs)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body(w, "status").String())

	w = e.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestTokenValuationOutOfRange(t *testing.T) {
	e := newEnv(t)
	user, _ := dbtest.SeedUser(t, e.db, "ada@example.com", 0)
	dbtest.SeedToken(t, e.db, "FGN26", 10000, 100, "12")
	admin := e.admin()

	w := e.do(http.MethodPost, "/admin/tokens", TokenRequest{Symbol: "BIG", Name: "Big", UnitPrice: 1 << 40, TotalSupply: 1 << 30}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPatch, "/admin/tokens/FGN26", gin.H{"unit_price": int64(1) << 62}, admin).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPatch, "/admin/tokens/FGN26", gin.H{"unit_price": int64(1) << 40, "total_supply": int64(1) << 30}, admin).Code)

	var token domain.Token
	require.NoError(t, e.db.Where("symbol = ?", "FGN26").First(&token).Error)
	assert.Equal(t, int64(10000), token.UnitPrice)

	// a token seeded past the bound still refuses a wrapping purchase
	dbtest.SeedToken(t, e.db, "HUGE", 1<<40, 1<<30, "10")
	w = e.do(http.MethodPost, "/tokens/HUGE/purchase", PurchaseRequest{Units: 1 << 24}, e.tokenFor(user.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "Amount exceeds the supported range", body(w, "error").String())
}

func TestDisbursementWebhook(t *testing.T) {
	e := newEnv(t)
	user, wallet := dbtest.SeedUser(t, e.db, "ada@example.com", 50000)
	token := e.tokenFor(user.ID)
	req := WithdrawRequest{Amount: 20000, BankCode: "058", AccountNumber: "0123456789"}
	send := func(payload string) *httptest.ResponseRecorder {
		return webhook(e, payload, payment.Sign(webhookSecret, []byte(payload)))
	}
	balance := func() int64 {
		var got domain.Wallet
		require.NoError(t, e.db.First(&got, wallet.ID).Error)
		return got.Balance
	}

	// the processor queues the first payout and times out on the second
	e.payer.status = payment.StatusPending
	w := e.do(http.MethodPost, "/wallet/withdraw", req, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	queued := body(w, "transaction.reference").String()

	e.payer.err = context.DeadlineExceeded
	w = e.do(http.MethodPost, "/wallet/withdraw", req, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, domain.TxPending, body(w, "transaction.status").String())
	timedOut := body(w, "transaction.reference").String()
	assert.Equal(t, int64(10000), balance())

	// the wallet is cached before settlement so invalidation is observable
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/wallet", nil, token).Code)

	w = send(disbursement(payment.EventSuccessfulDisbursement, queued))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.TxSuccess, body(w, "status").String())
	assert.Equal(t, "duplicate", body(send(disbursement(payment.EventSuccessfulDisbursement, queued)), "status").String())

	w = send(disbursement(payment.EventFailedDisbursement, timedOut))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.TxFailed, body(w, "status").String())
	assert.Equal(t, "duplicate", body(send(disbursement(payment.EventReversedDisbursement, timedOut)), "status").String())
	assert.Equal(t, int64(30000), balance())

	w = e.do(http.MethodGet, "/wallet", nil, token)
	assert.False(t, body(w, "cached").Bool())
	assert.Equal(t, int64(30000), body(w, "wallet.balance").Int())

	// a reversal claws back a payout that was reported paid
	w = send(disbursement(payment.EventReversedDisbursement, queued))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(50000), balance())

	assert.Equal(t, http.StatusNotFound, send(disbursement(payment.EventSuccessfulDisbursement, "WD-unknown")).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{"eventType":"FAILED_DISBURSEMENT","eventData":{}}`).Code)
	payload := disbursement(payment.EventFailedDisbursement, queued)
	assert.Equal(t, http.StatusUnauthorized, webhook(e, payload, "bad").Code)
}

func TestSharedCachesFollowWrites(t *testing.T) {
	e := newEnv(t)
	user, wallet := dbtest.SeedUser(t, e.db, "ada@example.com", 1_000_000)
	dbtest.SeedToken(t, e.db, "FGN26", 10000, 100, "12")
	admin := e.admin()
	token := e.tokenFor(user.ID)
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/tokens/FGN26/purchase", PurchaseRequest{Units: 10}, token).Code)

	warm := func(path, auth string) {
		require.Equal(t, http.StatusOK, e.do(http.MethodGet, path, nil, auth).Code)
		require.True(t, body(e.do(http.MethodGet, path, nil, auth), "cached").Bool(), path)
	}

	// registrations show up in the admin user list
	warm("/admin/users", admin)
	reg := RegisterRequest{Email: "obi@example.com", Password: "password123", FirstName: "Obi", LastName: "Ada"}
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/auth/register", reg, "").Code)
	w := e.do(http.MethodGet, "/admin/users", nil, admin)
	assert.False(t, body(w, "cached").Bool())
	assert.Equal(t, int64(3), body(w, "users.total").Int())

	// deposits show up in the admin ledger and the user list balances
	warm("/admin/transactions", admin)
	warm("/admin/users", admin)
	payload := collection("MNFY|9", wallet.AccountReference, "100.00")
	require.Equal(t, http.StatusOK, webhook(e, payload, payment.Sign(webhookSecret, []byte(payload))).Code)
	w = e.do(http.MethodGet, "/admin/transactions", nil, admin)
	assert.False(t, body(w, "cached").Bool())
	assert.Equal(t, int64(2), body(w, "history.total").Int())
	assert.False(t, body(e.do(http.MethodGet, "/admin/users", nil, admin), "cached").Bool())

	// price changes revalue every cached portfolio
	warm("/portfolio", token)
	require.Equal(t, http.StatusOK, e.do(http.MethodPatch, "/admin/tokens/FGN26", gin.H{"unit_price": 12000}, admin).Code)
	w = e.do(http.MethodGet, "/portfolio", nil, token)
	assert.False(t, body(w, "cached").Bool())
	assert.Equal(t, int64(120000), body(w, "portfolio.current_value").Int())

	warm("/portfolio", token)
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/admin/tokens/sync", nil, admin).Code)
	assert.False(t, body(e.do(http.MethodGet, "/portfolio", nil, token), "cached").Bool())
}

func TestPaymentsDisabled(t *testing.T) {
	e := newEnv(t)
	s := &Server{DB: e.db, Redis: e.rdb, Invest: invest.New(e.db, yield.Daily), Monitor: e.monitor, JWTSecret: testSecret, WebhookSecret: webhookSecret}
	e.router = gin.New()
	s.Routes(e.router)
	user, wallet := dbtest.SeedUser(t, e.db, "ada@example.com", 50000)
	token := e.tokenFor(user.ID)

	w := e.do(http.MethodPost, "/wallet/withdraw", WithdrawRequest{Amount: 20000, BankCode: "058", AccountNumber: "0123456789"}, token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, e.do(http.MethodPost, "/wallet/reserved-account", nil, token).Code)

	var got domain.Wallet
	require.NoError(t, e.db.First(&got, wallet.ID).Error)
	assert.Equal(t, int64(50000), got.Balance)
	var n int64
	require.NoError(t, e.db.Model(&domain.Transaction{}).Count(&n).Error)
	assert.Zero(t, n)
}
