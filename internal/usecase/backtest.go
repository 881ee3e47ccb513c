package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"AllocDesk/internal/allocation"
	"AllocDesk/internal/domain/models"
	domrepo "AllocDesk/internal/domain/repository"
	"AllocDesk/internal/domain/service"
	"AllocDesk/internal/session"
	"AllocDesk/pkg/cache"
	"AllocDesk/pkg/logger"
	"AllocDesk/pkg/util"
)

var (
	// ErrNoTickers is returned when a backtest is requested with no
	// committed tickers.
	ErrNoTickers = errors.New("no valid tickers to backtest")

	// ErrNoPriceData is returned when the market data collaborator had
	// data for none of the requested tickers.
	ErrNoPriceData = errors.New("no price data for any requested ticker")

	// ErrBadDateRange is returned for an unparsable or inverted range.
	ErrBadDateRange = errors.New("invalid date range")
)

// BacktestOption configures BacktestUseCase.
type BacktestOption func(*BacktestUseCase)

// WithCapitalBounds clamps the initial capital a run may use.
func WithCapitalBounds(min, max float64) BacktestOption {
	return func(uc *BacktestUseCase) {
		if min > 0 {
			uc.minCapital = min
		}
		if max > uc.minCapital {
			uc.maxCapital = max
		}
	}
}

// WithResultTTL sets how long finished results stay cached.
func WithResultTTL(ttl time.Duration) BacktestOption {
	return func(uc *BacktestUseCase) {
		if ttl > 0 {
			uc.resultTTL = ttl
		}
	}
}

// BacktestUseCase orchestrates one backtest run: snapshot the allocation,
// fetch prices, hand everything to the engine, persist and cache the
// outcome. All financial math lives in the collaborators.
type BacktestUseCase struct {
	store      *session.Store
	market     service.MarketData
	engine     service.BacktestEngine
	results    cache.Service
	history    domrepo.RunHistory // nil when persistence is disabled
	metrics    domrepo.Metrics
	log        *logger.Logger
	minCapital float64
	maxCapital float64
	resultTTL  time.Duration
}

func NewBacktestUseCase(
	store *session.Store,
	market service.MarketData,
	engine service.BacktestEngine,
	results cache.Service,
	history domrepo.RunHistory,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...BacktestOption,
) *BacktestUseCase {
	uc := &BacktestUseCase{
		store:      store,
		market:     market,
		engine:     engine,
		results:    results,
		history:    history,
		metrics:    metrics,
		log:        log,
		minCapital: 10_000,
		maxCapital: 1_000_000,
		resultTTL:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run executes a backtest for the session's current allocation.
func (uc *BacktestUseCase) Run(ctx context.Context, sessionID string, req models.RunBacktestRequest) (*models.BacktestResult, error) {
	started := time.Now()

	sess, err := uc.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	start, ok := util.ParseDate(req.Start)
	if !ok {
		return nil, fmt.Errorf("%w: start %q", ErrBadDateRange, req.Start)
	}
	end, ok := util.ParseDate(req.End)
	if !ok {
		return nil, fmt.Errorf("%w: end %q", ErrBadDateRange, req.End)
	}
	start, end = util.AlignDateRange(start, end)
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must precede end", ErrBadDateRange)
	}

	capital := req.InitialCapital
	if capital < uc.minCapital {
		capital = uc.minCapital
	} else if capital > uc.maxCapital {
		capital = uc.maxCapital
	}

	var snap models.AllocationSnapshot
	if err := sess.Do(func(m *allocation.Manager) error {
		snap = buildSnapshot(sessionID, m)
		return nil
	}); err != nil {
		return nil, err
	}
	if len(snap.Tickers) == 0 {
		uc.metrics.RecordBacktest("rejected")
		return nil, ErrNoTickers
	}

	key := resultKey(&snap, start, end, capital)
	var cached models.BacktestResult
	if err := uc.results.Get(ctx, key, &cached); err == nil {
		uc.metrics.RecordBacktest("cache_hit")
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		uc.log.Warn("result cache read failed", logger.Error(err))
	}

	table, err := uc.market.DailyCloses(ctx, snap.Tickers, start, end)
	if err != nil {
		uc.metrics.RecordBacktest("fetch_error")
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	present, missing := splitByData(snap.Tickers, table)
	if len(present) == 0 {
		uc.metrics.RecordBacktest("no_data")
		return nil, fmt.Errorf("%w: %v", ErrNoPriceData, missing)
	}
	if len(missing) > 0 {
		uc.log.Warn("proceeding without missing tickers",
			logger.String("session_id", sessionID),
			logger.Strings("missing", missing))
	}

	engineReq := &service.EngineRunRequest{
		Tickers:        present,
		Fractions:      rescaleFractions(snap.Fractions, present),
		Columns:        table.Columns,
		Dates:          table.Dates,
		InitialCapital: capital,
	}
	engineResp, err := uc.engine.Run(ctx, engineReq)
	if err != nil {
		uc.metrics.RecordBacktest("engine_error")
		return nil, fmt.Errorf("run engine: %w", err)
	}

	assets := make([]models.AssetStats, 0, len(present))
	for _, ticker := range present {
		stats, err := uc.engine.AssetStats(ctx, ticker, table.Columns[ticker])
		if err != nil {
			// per-asset stats are supplementary; the run itself stands
			uc.log.Warn("asset stats failed",
				logger.String("ticker", ticker),
				logger.Error(err))
			continue
		}
		assets = append(assets, *stats)
	}

	result := &models.BacktestResult{
		RunID:          uuid.NewString(),
		SessionID:      sessionID,
		Tickers:        present,
		MissingTickers: missing,
		Start:          start.Format("2006-01-02"),
		End:            end.Format("2006-01-02"),
		InitialCapital: capital,
		Portfolio:      engineResp.Portfolio,
		Assets:         assets,
		Equity:         engineResp.Equity,
		CompletedAt:    time.Now().UTC(),
	}

	if err := uc.results.Set(ctx, key, result, uc.resultTTL); err != nil {
		uc.log.Warn("result cache write failed", logger.Error(err))
	}
	uc.persistRun(ctx, result)

	uc.metrics.RecordBacktest("ok")
	uc.metrics.RecordLatency("backtest_run", time.Since(started).Seconds())
	return result, nil
}

// ListRuns returns the latest persisted runs for a session.
func (uc *BacktestUseCase) ListRuns(ctx context.Context, sessionID string, limit int) ([]*models.BacktestRun, error) {
	if _, err := uc.store.Get(sessionID); err != nil {
		return nil, err
	}
	if uc.history == nil {
		return []*models.BacktestRun{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	runs, err := uc.history.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (uc *BacktestUseCase) persistRun(ctx context.Context, result *models.BacktestResult) {
	if uc.history == nil {
		return
	}
	run := &models.BacktestRun{
		RunID:          result.RunID,
		SessionID:      result.SessionID,
		Tickers:        result.Tickers,
		Start:          result.Start,
		End:            result.End,
		InitialCapital: result.InitialCapital,
		TotalReturnPct: result.Portfolio.TotalReturnPct,
		SharpeRatio:    result.Portfolio.SharpeRatio,
		MaxDrawdownPct: result.Portfolio.MaxDrawdownPct,
		CompletedAt:    result.CompletedAt,
	}
	if err := uc.history.Store(ctx, run); err != nil {
		uc.log.Warn("run history write failed",
			logger.String("run_id", result.RunID),
			logger.Error(err))
	}
}

// splitByData separates tickers with price columns from those without,
// preserving slot order on both sides.
func splitByData(tickers []string, table *models.PriceTable) (present, missing []string) {
	for _, ticker := range tickers {
		if closes, ok := table.Columns[ticker]; ok && len(closes) > 0 {
			present = append(present, ticker)
		} else {
			missing = append(missing, ticker)
		}
	}
	return present, missing
}

// rescaleFractions restricts fractions to the present tickers and scales
// them back to sum 1 so the engine still receives a full allocation.
func rescaleFractions(fractions map[string]float64, present []string) map[string]float64 {
	var total float64
	for _, ticker := range present {
		total += fractions[ticker]
	}
	out := make(map[string]float64, len(present))
	if total == 0 {
		equal := 1 / float64(len(present))
		for _, ticker := range present {
			out[ticker] = equal
		}
		return out
	}
	for _, ticker := range present {
		out[ticker] = fractions[ticker] / total
	}
	return out
}

func resultKey(snap *models.AllocationSnapshot, start, end time.Time, capital float64) string {
	raw := cache.GenerateKeyWithParams("backtest",
		snap.SessionID,
		allocationSignature(snap),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
		capital,
	)
	return cache.GenerateKey("backtest", cache.HashKey(raw))
}

// allocationSignature serializes the allocation as TICKER=weight pairs
// in slot order, so any weight edit produces a different cache key.
func allocationSignature(snap *models.AllocationSnapshot) string {
	pairs := make([]string, len(snap.Tickers))
	for i, ticker := range snap.Tickers {
		pairs[i] = fmt.Sprintf("%s=%.4f", ticker, snap.Weights[ticker])
	}
	return strings.Join(pairs, ",")
}
