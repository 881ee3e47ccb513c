package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "AllocDesk/internal/domain/models"
	svccache "AllocDesk/internal/service/cache"
	svcmetrics "AllocDesk/internal/service/metrics"
	"AllocDesk/internal/service/ratelimit"
	"AllocDesk/internal/session"
	"AllocDesk/internal/usecase"
	xhttp "AllocDesk/pkg/http"
	xlogger "AllocDesk/pkg/logger"
)

const (
	// one run immediately, then roughly one every five seconds
	runBurst      = 3
	runRefillRate = 0.2

	runsCacheTTL = 5 * time.Second
)

// RunLimiterKey is the limiter bucket key for a session's backtest runs.
// Exposed so session eviction can drop the bucket along with the session.
func RunLimiterKey(sessionID string) string {
	return "backtest:" + sessionID
}

// BacktestHandler exposes backtest runs and run history for a session.
type BacktestHandler struct {
	logger    *xlogger.Logger
	bt        *usecase.BacktestUseCase
	limiter   *ratelimit.Limiter
	respCache svccache.BytesCache
}

func NewBacktestHandler(logger *xlogger.Logger, bt *usecase.BacktestUseCase, limiter *ratelimit.Limiter, respCache svccache.BytesCache) *BacktestHandler {
	svcmetrics.Register()
	return &BacktestHandler{
		logger:    logger,
		bt:        bt,
		limiter:   limiter,
		respCache: respCache,
	}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/sessions")
	g.POST("/:id/backtest", h.Run)
	g.GET("/:id/runs", h.ListRuns)
}

func (h *BacktestHandler) Run(c echo.Context) error {
	start := time.Now()
	id := c.Param("id")

	if !h.limiter.Allow(RunLimiterKey(id), runBurst, runRefillRate) {
		svcmetrics.APIErrors.WithLabelValues("backtest").Inc()
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(
			"ERR_RATE_LIMITED", "", "too many backtest runs, slow down",
			http.StatusTooManyRequests))
	}

	req := &models.RunBacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result, err := h.bt.Run(c.Request().Context(), id, *req)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("backtest").Inc()
		return xhttp.AppErrorResponse(c, mapBacktestError(err))
	}

	svcmetrics.APILatency.WithLabelValues("backtest").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, result)
}

func (h *BacktestHandler) ListRuns(c echo.Context) error {
	id := c.Param("id")
	req := &models.ListRunsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := fmt.Sprintf("runs:%s:%d", id, req.Limit)
	if h.respCache != nil {
		if b, ok, err := h.respCache.GetBytes(cacheKey); err == nil && ok {
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
	}

	runs, err := h.bt.ListRuns(c.Request().Context(), id, req.Limit)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("runs").Inc()
		return xhttp.AppErrorResponse(c, mapBacktestError(err))
	}

	if h.respCache != nil {
		if b, err := json.Marshal(runs); err == nil {
			if err := h.respCache.SetBytes(cacheKey, b, runsCacheTTL); err != nil {
				h.logger.Warn("runs cache write failed", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, runs)
}

func mapBacktestError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return xhttp.NotFoundError("session not found").WithError(err)
	case errors.Is(err, usecase.ErrNoTickers):
		return xhttp.BadRequestError("no valid tickers to backtest").WithError(err)
	case errors.Is(err, usecase.ErrBadDateRange):
		return xhttp.BadRequestError("invalid date range").WithError(err)
	case errors.Is(err, usecase.ErrNoPriceData):
		return xhttp.BadGatewayError("no price data for any requested ticker").WithError(err)
	default:
		return xhttp.BadGatewayError("backtest failed").WithError(err)
	}
}
