package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/chart"
	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/model"
	"github.com/rickgao/botcharts/internal/session"
	"github.com/rickgao/botcharts/internal/transactions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeChart records requests and hands listeners to the test.
type fakeChart struct {
	mu        sync.Mutex
	lastReq   chart.QuotesRequest
	timeErr   error
	subErr    error
	listeners map[string]func(model.Quote)
	removed   []string
	nextID    int
}

func newFakeChart() *fakeChart {
	return &fakeChart{listeners: make(map[string]func(model.Quote))}
}

func (f *fakeChart) GetQuotes(ctx context.Context, req chart.QuotesRequest) chart.QuotesResult {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	return chart.QuotesResult{
		Quotes: []model.Quote{model.NewTickQuote(1741000000, 1234.5)},
		Meta:   model.QuotesMeta{Symbol: req.Symbol, Granularity: req.Granularity},
	}
}

func (f *fakeChart) GetChartData(ctx context.Context) chart.ChartData {
	return chart.ChartData{
		ActiveSymbols: testSymbols,
		TradingTimes:  model.TradingTimesMap{"R_100": {IsOpen: true}},
	}
}

func (f *fakeChart) GetServerTime(ctx context.Context) (time.Time, error) {
	if f.timeErr != nil {
		return time.Time{}, f.timeErr
	}
	return time.Unix(1741000000, 0), nil
}

func (f *fakeChart) SubscribeQuotes(ctx context.Context, req chart.QuotesRequest, fn func(model.Quote)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return "", f.subErr
	}
	f.nextID++
	id := fmt.Sprintf("%s#%d", req.Key(), f.nextID)
	f.listeners[id] = fn
	return id, nil
}

func (f *fakeChart) UnsubscribeQuotes(ctx context.Context, req chart.QuotesRequest, listenerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listeners[listenerID]; !ok {
		return chart.ErrUnknownListener
	}
	delete(f.listeners, listenerID)
	f.removed = append(f.removed, listenerID)
	return nil
}

func (f *fakeChart) failSubscribe(err error) {
	f.mu.Lock()
	f.subErr = err
	f.mu.Unlock()
}

// push delivers q to every listener.
func (f *fakeChart) push(q model.Quote) int {
	f.mu.Lock()
	fns := make([]func(model.Quote), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(q)
	}
	return len(fns)
}

func (f *fakeChart) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type staticSymbols struct {
	symbols []model.ActiveSymbol
	err     error
}

func (s staticSymbols) Get(ctx context.Context) ([]model.ActiveSymbol, error) {
	return s.symbols, s.err
}

var testSymbols = []model.ActiveSymbol{
	{Symbol: "R_100", Market: "synthetic_index", Submarket: "random_index", ExchangeIsOpen: true},
	{Symbol: "R_50", Market: "synthetic_index", Submarket: "random_index", ExchangeIsOpen: true},
	{Symbol: "frxEURUSD", Market: "forex", Submarket: "major_pairs", ExchangeIsOpen: true},
	{Symbol: "frxUSDJPY", Market: "forex", Submarket: "major_pairs", IsTradingSuspended: true},
}

// memTxStore is an in-memory transactions.Store.
type memTxStore struct {
	mu       sync.Mutex
	rows     []model.Transaction
	analyses []model.AnalysisResult
	last     transactions.ListOptions
	failed   bool
}

func (m *memTxStore) Upsert(ctx context.Context, txs []model.Transaction) ([]int64, error) {
	if m.failed {
		return nil, errors.New("connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, len(txs))
	for i, tx := range txs {
		tx.ID = int64(len(m.rows) + 1)
		m.rows = append(m.rows, tx)
		ids[i] = tx.ID
	}
	return ids, nil
}

func (m *memTxStore) List(ctx context.Context, opts transactions.ListOptions) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = opts
	var out []model.Transaction
	for _, tx := range m.rows {
		if tx.UserID == opts.UserID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memTxStore) SaveAnalysis(ctx context.Context, tx model.Transaction, res model.AnalysisResult) (model.AnalysisResult, error) {
	if m.failed {
		return res, errors.New("connection refused")
	}
	ids, _ := m.Upsert(ctx, []model.Transaction{tx})
	m.mu.Lock()
	defer m.mu.Unlock()
	res.ID = int64(len(m.analyses) + 1)
	res.TransactionID = ids[0]
	res.CreatedAt = time.Now()
	m.analyses = append(m.analyses, res)
	return res, nil
}

func (m *memTxStore) find(userID, contractID string) (model.Transaction, bool) {
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID && m.rows[i].ContractID == contractID {
			return m.rows[i], true
		}
	}
	return model.Transaction{}, false
}

func (m *memTxStore) LatestAnalysis(ctx context.Context, userID, contractID string) (model.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.analyses) - 1; i >= 0; i-- {
		tx := m.rows[m.analyses[i].TransactionID-1]
		if tx.UserID == userID && tx.ContractID == contractID {
			return m.analyses[i], nil
		}
	}
	return model.AnalysisResult{}, transactions.ErrNotFound
}

func (m *memTxStore) ChartImage(ctx context.Context, userID, contractID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.find(userID, contractID)
	if !ok {
		return "", transactions.ErrNotFound
	}
	return tx.ChartImage, nil
}

type testEnv struct {
	srv     *Server
	chart   *fakeChart
	txs     *memTxStore
	store   *session.Store
	oauth   *fakeOAuth
	account *fakeAccounts
}

func newTestEnv(t *testing.T, cfg Config, mutate func(*Deps)) *testEnv {
	t.Helper()

	env := &testEnv{
		chart:   newFakeChart(),
		txs:     &memTxStore{},
		store:   session.NewStore(time.Minute, nil),
		oauth:   &fakeOAuth{enabled: true},
		account: newFakeAccounts(),
	}
	deps := Deps{
		Chart:        env.chart,
		Symbols:      staticSymbols{symbols: testSymbols},
		Sessions:     env.store,
		OAuth:        env.oauth,
		Accounts:     env.account,
		Transactions: env.txs,
		Metrics:      metrics.New(),
		TransportUp:  func() bool { return true },
	}
	if mutate != nil {
		mutate(&deps)
	}
	env.srv = New(cfg, deps, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		env.srv.Stop(ctx)
	})
	return env
}

func (e *testEnv) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestFeedbackStub(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	w := env.do(http.MethodPost, "/api/education/feedback", `{"rating":5,"comment":"great"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	decodeBody(t, w, &body)
	if body["status"] != "ok" || body["message"] != "Feedback received" {
		t.Errorf("body = %v", body)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		up         bool
		ping       func(context.Context) error
		wantStatus int
		wantDB     string
	}{
		{"all up", true, func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"no database", true, nil, http.StatusOK, "disabled"},
		{"transport down", false, nil, http.StatusServiceUnavailable, "disabled"},
		{"database down", true, func(context.Context) error { return errors.New("refused") }, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{}, func(d *Deps) {
				up := tt.up
				d.TransportUp = func() bool { return up }
				d.DBPing = tt.ping
			})

			w := env.do(http.MethodGet, "/health", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]any
			decodeBody(t, w, &body)
			if body["database"] != tt.wantDB {
				t.Errorf("database = %v, want %s", body["database"], tt.wantDB)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	env.do(http.MethodGet, "/api/chart/data", "")
	w := env.do(http.MethodGet, "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="/api/chart/data"`) {
		t.Error("http request metric missing for /api/chart/data")
	}
}

func TestQuotes(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	w := env.do(http.MethodGet, "/api/chart/quotes?symbol=R_100&granularity=60&count=500", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	want := chart.QuotesRequest{Symbol: "R_100", Granularity: 60, Count: 500}
	if env.chart.lastReq != want {
		t.Errorf("request = %+v, want %+v", env.chart.lastReq, want)
	}

	var result chart.QuotesResult
	decodeBody(t, w, &result)
	if len(result.Quotes) != 1 || result.Meta.Symbol != "R_100" || result.Meta.Granularity != 60 {
		t.Errorf("result = %+v", result)
	}
}

func TestQuotes_BadRequest(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	for _, target := range []string{
		"/api/chart/quotes?symbol=R_100&granularity=abc",
		"/api/chart/quotes?symbol=R_100&granularity=-60",
	} {
		if w := env.do(http.MethodGet, target, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestChartData(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	w := env.do(http.MethodGet, "/api/chart/data", "")
	var data chart.ChartData
	decodeBody(t, w, &data)

	if len(data.ActiveSymbols) != len(testSymbols) || !data.TradingTimes["R_100"].IsOpen {
		t.Errorf("data = %+v", data)
	}
}

func TestServerTime(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	w := env.do(http.MethodGet, "/api/chart/time", "")
	var body map[string]any
	decodeBody(t, w, &body)
	if body["time"] != float64(1741000000) {
		t.Errorf("time = %v", body["time"])
	}

	env.chart.timeErr = &api.Error{Code: "RateLimit", Message: "slow down"}
	w = env.do(http.MethodGet, "/api/chart/time", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var fe api.FieldError
	decodeBody(t, w, &fe)
	if !strings.Contains(fe.Message, "rate limit") {
		t.Errorf("message = %q, want the user-facing rate limit text", fe.Message)
	}
}

func TestSymbolRoutes(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	type optionsBody struct {
		Options []struct {
			Text  string `json:"text"`
			Value string `json:"value"`
		} `json:"options"`
	}

	var markets optionsBody
	decodeBody(t, env.do(http.MethodGet, "/api/symbols/markets", ""), &markets)
	if len(markets.Options) != 2 || markets.Options[0].Value != "synthetic_index" || markets.Options[1].Value != "forex" {
		t.Errorf("markets = %+v", markets.Options)
	}

	var french optionsBody
	decodeBody(t, env.do(http.MethodGet, "/api/symbols/markets?lang=fr", ""), &french)
	if len(french.Options) == 0 || french.Options[0].Text != "Dérivés" {
		t.Errorf("french markets = %+v", french.Options)
	}

	var subs optionsBody
	decodeBody(t, env.do(http.MethodGet, "/api/symbols/submarkets?market=forex", ""), &subs)
	if len(subs.Options) != 1 || subs.Options[0].Value != "major_pairs" {
		t.Errorf("submarkets = %+v", subs.Options)
	}

	var syms optionsBody
	decodeBody(t, env.do(http.MethodGet, "/api/symbols/options?submarket=major_pairs", ""), &syms)
	if len(syms.Options) != 1 || syms.Options[0].Value != "frxEURUSD" {
		t.Errorf("suspended symbols should be excluded: %+v", syms.Options)
	}

	if w := env.do(http.MethodGet, "/api/symbols/submarkets", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing market: status = %d, want 400", w.Code)
	}

	var name map[string]string
	decodeBody(t, env.do(http.MethodGet, "/api/symbols/R_100/name", ""), &name)
	if name["name"] != "Volatility 100 Index" {
		t.Errorf("name = %v", name)
	}
}

func TestSymbolRoutes_SourceDown(t *testing.T) {
	env := newTestEnv(t, Config{}, func(d *Deps) {
		d.Symbols = staticSymbols{err: errors.New("transport down")}
	})

	w := env.do(http.MethodGet, "/api/symbols/markets", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"options":[]`) {
		t.Errorf("body = %s, want empty options", w.Body.String())
	}
}

func TestSaveTransactions(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	w := env.do(http.MethodPost, "/api/transactions", `{"loginid":"CR1","contract_id":1001,"buy_price":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Count int     `json:"count"`
		IDs   []int64 `json:"ids"`
	}
	decodeBody(t, w, &body)
	if body.Count != 1 || len(body.IDs) != 1 {
		t.Errorf("body = %+v", body)
	}

	w = env.do(http.MethodPost, "/api/transactions", `[{"user_id":"CR1","contract_id":"1"},{"user_id":"CR1","contract_id":"2"}]`)
	decodeBody(t, w, &body)
	if w.Code != http.StatusCreated || body.Count != 2 {
		t.Errorf("list: status = %d, body = %+v", w.Code, body)
	}
}

func TestSaveTransactions_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		mutate func(*Deps)
		want   int
	}{
		{"missing user", `{"contract_id":"1"}`, nil, http.StatusBadRequest},
		{"malformed", `{"loginid":`, nil, http.StatusBadRequest},
		{"empty", `[]`, nil, http.StatusBadRequest},
		{"journal disabled", `{"loginid":"CR1","contract_id":"1"}`, func(d *Deps) { d.Transactions = nil }, http.StatusServiceUnavailable},
		{"store failure", `{"loginid":"CR1","contract_id":"1"}`, func(d *Deps) { d.Transactions = &memTxStore{failed: true} }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{}, tt.mutate)
			if w := env.do(http.MethodPost, "/api/transactions", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestListTransactions(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	env.do(http.MethodPost, "/api/transactions", `[{"user_id":"CR1","contract_id":"1"},{"user_id":"CR2","contract_id":"2"}]`)

	w := env.do(http.MethodGet, "/api/transactions?loginid=CR1&run_id=r1&limit=20&since=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body []model.Transaction
	decodeBody(t, w, &body)
	if len(body) != 1 || body[0].ContractID != "1" {
		t.Errorf("body = %+v", body)
	}

	want := transactions.ListOptions{UserID: "CR1", RunID: "r1", Limit: 20, SinceID: 5}
	if env.txs.last != want {
		t.Errorf("options = %+v, want %+v", env.txs.last, want)
	}

	for _, target := range []string{
		"/api/transactions",
		"/api/transactions?loginid=CR1&limit=0",
		"/api/transactions?loginid=CR1&limit=5001",
		"/api/transactions?loginid=CR1&since=abc",
	} {
		if w := env.do(http.MethodGet, target, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RateLimit: 1, RateBurst: 2}, nil)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = env.do(http.MethodGet, "/api/chart/data", "").Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	if w := env.do(http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health should bypass the limiter, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Config{CORSOrigins: []string{"https://charts.example.com"}}, nil)

	w := env.do(http.MethodGet, "/api/chart/data", "", "Origin", "https://charts.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://charts.example.com" {
		t.Errorf("allow origin = %q", got)
	}

	w = env.do(http.MethodGet, "/api/chart/data", "", "Origin", "https://evil.example.com")
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign origin: status = %d, want 403", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	if w := env.do(http.MethodGet, "/health", ""); w.Header().Get(requestIDHeader) == "" {
		t.Error("request id not generated")
	}
	if w := env.do(http.MethodGet, "/health", "", requestIDHeader, "req-1"); w.Header().Get(requestIDHeader) != "req-1" {
		t.Error("request id not echoed")
	}
}
