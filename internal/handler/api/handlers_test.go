package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	models "AllocDesk/internal/domain/models"
	"AllocDesk/internal/domain/service"
	"AllocDesk/internal/middleware"
	svccache "AllocDesk/internal/service/cache"
	"AllocDesk/internal/service/ratelimit"
	"AllocDesk/internal/session"
	"AllocDesk/internal/usecase"
	"AllocDesk/pkg/cache"
	xlogger "AllocDesk/pkg/logger"
)

type testMetrics struct{}

func (testMetrics) RecordEvent(string)            {}
func (testMetrics) RecordRejection(string)        {}
func (testMetrics) RecordBacktest(string)         {}
func (testMetrics) RecordActiveSessions(int)      {}
func (testMetrics) RecordLatency(string, float64) {}

type stubMarket struct{ table *models.PriceTable }

func (s stubMarket) DailyCloses(context.Context, []string, time.Time, time.Time) (*models.PriceTable, error) {
	return s.table, nil
}

type stubEngine struct{}

func (stubEngine) Run(context.Context, *service.EngineRunRequest) (*service.EngineRunResponse, error) {
	return &service.EngineRunResponse{
		Portfolio: models.PortfolioStats{TotalReturnPct: 7},
	}, nil
}

func (stubEngine) AssetStats(_ context.Context, ticker string, _ []float64) (*models.AssetStats, error) {
	return &models.AssetStats{Ticker: ticker}, nil
}

type apiFixture struct {
	e     *echo.Echo
	alloc *usecase.AllocationUseCase
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	var m testMetrics
	store := session.NewStore()
	pipeline := middleware.NewSnapshotPipeline(nil, m)
	alloc := usecase.NewAllocationUseCase(store, pipeline, m, log)

	table := &models.PriceTable{
		Columns: map[string][]float64{"AAPL": {100, 110}},
		Dates:   []string{"2024-01-02", "2024-01-03"},
	}
	bt := usecase.NewBacktestUseCase(store, stubMarket{table: table}, stubEngine{},
		cache.NewMemoryCache(), nil, m, log)

	e := echo.New()
	NewSessionsHandler(log, alloc).RegisterRoutes(e)
	NewBacktestHandler(log, bt, ratelimit.New(), svccache.NewTTLCache()).RegisterRoutes(e)

	return &apiFixture{e: e, alloc: alloc}
}

func (fx *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	fx.e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if dest != nil {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			t.Fatalf("decode data: %v (%s)", err, env.Data)
		}
	}
}

func (fx *apiFixture) createSession(t *testing.T) string {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("create session status %d: %s", rec.Code, rec.Body.String())
	}
	var view models.SessionView
	decodeEnvelope(t, rec, &view)
	if view.ID == "" {
		t.Fatal("expected session ID")
	}
	return view.ID
}

func TestSessionLifecycle(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	rec := fx.do(t, http.MethodGet, "/api/sessions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}

	rec = fx.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rec.Code)
	}

	rec = fx.do(t, http.MethodGet, "/api/sessions/"+id, "")
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Status != http.StatusNotFound {
		t.Fatalf("expected 404 envelope, got %d: %s", env.Status, rec.Body.String())
	}
}

func TestSlotEditFlowOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	rec := fx.do(t, http.MethodPut,
		fmt.Sprintf("/api/sessions/%s/slots/0/enabled", id), `{"enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable status %d: %s", rec.Code, rec.Body.String())
	}

	rec = fx.do(t, http.MethodPut,
		fmt.Sprintf("/api/sessions/%s/slots/0/text", id), `{"text":" aapl "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("text status %d: %s", rec.Code, rec.Body.String())
	}

	var snap models.AllocationSnapshot
	decodeEnvelope(t, rec, &snap)
	if len(snap.Tickers) != 1 || snap.Tickers[0] != "AAPL" {
		t.Fatalf("unexpected tickers %v", snap.Tickers)
	}
	if math.Abs(snap.Weights["AAPL"]-100) > 0.1 {
		t.Fatalf("unexpected weight %f", snap.Weights["AAPL"])
	}
}

func TestInvalidTickerOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/enabled", id), `{"enabled":true}`)
	rec := fx.do(t, http.MethodPut,
		fmt.Sprintf("/api/sessions/%s/slots/0/text", id), `{"text":"TOOLONG1"}`)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 envelope, got %d: %s", env.Status, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ERR_INVALID_TICKER") {
		t.Fatalf("expected ERR_INVALID_TICKER in %s", rec.Body.String())
	}
}

func TestDuplicateTickerOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/enabled", id), `{"enabled":true}`)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/text", id), `{"text":"AAPL"}`)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/1/enabled", id), `{"enabled":true}`)
	rec := fx.do(t, http.MethodPut,
		fmt.Sprintf("/api/sessions/%s/slots/1/text", id), `{"text":"aapl"}`)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Status != http.StatusConflict {
		t.Fatalf("expected 409 envelope, got %d: %s", env.Status, rec.Body.String())
	}
}

func TestWeightEditOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/enabled", id), `{"enabled":true}`)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/text", id), `{"text":"AAPL"}`)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/1/enabled", id), `{"enabled":true}`)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/1/text", id), `{"text":"MSFT"}`)

	rec := fx.do(t, http.MethodPut,
		fmt.Sprintf("/api/sessions/%s/weights/AAPL", id), `{"weight":75}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("weight status %d: %s", rec.Code, rec.Body.String())
	}

	var snap models.AllocationSnapshot
	decodeEnvelope(t, rec, &snap)
	var total float64
	for _, w := range snap.Weights {
		total += w
	}
	if math.Abs(total-100) > 0.1 {
		t.Fatalf("weights sum to %f", total)
	}
}

func TestBacktestOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/enabled", id), `{"enabled":true}`)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/text", id), `{"text":"AAPL"}`)

	rec := fx.do(t, http.MethodPost,
		fmt.Sprintf("/api/sessions/%s/backtest", id),
		`{"start":"2024-01-01","end":"2024-06-01","initial_capital":20000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("backtest status %d: %s", rec.Code, rec.Body.String())
	}

	var result models.BacktestResult
	decodeEnvelope(t, rec, &result)
	if result.Portfolio.TotalReturnPct != 7 {
		t.Fatalf("unexpected result %+v", result.Portfolio)
	}
}

func TestBacktestNoTickersOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	rec := fx.do(t, http.MethodPost,
		fmt.Sprintf("/api/sessions/%s/backtest", id),
		`{"start":"2024-01-01","end":"2024-06-01"}`)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 envelope, got %d: %s", env.Status, rec.Body.String())
	}
}

func TestBacktestRateLimited(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/enabled", id), `{"enabled":true}`)
	fx.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%s/slots/0/text", id), `{"text":"AAPL"}`)

	var limited bool
	for i := 0; i < runBurst+2; i++ {
		rec := fx.do(t, http.MethodPost,
			fmt.Sprintf("/api/sessions/%s/backtest", id),
			`{"start":"2024-01-01","end":"2024-06-01"}`)
		var env envelope
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
		if env.Status == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected a 429 after exhausting the burst")
	}
}

func TestListRunsEmptyWithoutHistory(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	rec := fx.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%s/runs", id), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("runs status %d: %s", rec.Code, rec.Body.String())
	}
	var runs []models.BacktestRun
	decodeEnvelope(t, rec, &runs)
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}
