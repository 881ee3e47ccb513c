package api

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"AllocDesk/internal/allocation"
	models "AllocDesk/internal/domain/models"
	svcmetrics "AllocDesk/internal/service/metrics"
	"AllocDesk/internal/session"
	"AllocDesk/internal/usecase"
	xhttp "AllocDesk/pkg/http"
	xlogger "AllocDesk/pkg/logger"
)

// SessionsHandler exposes the portfolio session API: session lifecycle,
// slot edits, weight edits and the allocation snapshot.
type SessionsHandler struct {
	logger *xlogger.Logger
	alloc  *usecase.AllocationUseCase
}

func NewSessionsHandler(logger *xlogger.Logger, alloc *usecase.AllocationUseCase) *SessionsHandler {
	svcmetrics.Register()
	return &SessionsHandler{logger: logger, alloc: alloc}
}

func (h *SessionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/sessions")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/slots/:index/enabled", h.SetSlotEnabled)
	g.PUT("/:id/slots/:index/text", h.SetSlotText)
	g.PUT("/:id/weights/:symbol", h.SetWeight)
	g.GET("/:id/allocation", h.GetAllocation)
}

func (h *SessionsHandler) Create(c echo.Context) error {
	view, err := h.alloc.CreateSession(c.Request().Context())
	if err != nil {
		h.logger.Error("create session", xlogger.Error(err))
		svcmetrics.APIErrors.WithLabelValues("create_session").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, view)
}

func (h *SessionsHandler) Get(c echo.Context) error {
	view, err := h.alloc.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, mapSessionError(err))
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *SessionsHandler) Delete(c echo.Context) error {
	h.alloc.DeleteSession(c.Request().Context(), c.Param("id"))
	return xhttp.NoContentResponse(c)
}

func (h *SessionsHandler) SetSlotEnabled(c echo.Context) error {
	index, appErr := slotIndex(c)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	req := &models.SetSlotEnabledRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.alloc.SetSlotEnabled(c.Request().Context(), c.Param("id"), index, req.Enabled)
	if err != nil {
		return h.editError(c, "slot_enabled", snap, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *SessionsHandler) SetSlotText(c echo.Context) error {
	index, appErr := slotIndex(c)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	req := &models.SetSlotTextRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.alloc.SetSlotText(c.Request().Context(), c.Param("id"), index, req.Text)
	if err != nil {
		return h.editError(c, "slot_text", snap, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *SessionsHandler) SetWeight(c echo.Context) error {
	req := &models.SetWeightRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.alloc.SetWeight(c.Request().Context(), c.Param("id"), c.Param("symbol"), req.Weight)
	if err != nil {
		return h.editError(c, "weight", snap, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *SessionsHandler) GetAllocation(c echo.Context) error {
	snap, err := h.alloc.GetAllocation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, mapSessionError(err))
	}
	return xhttp.SuccessResponse(c, snap)
}

// editError maps edit failures to API errors. Slot-local validation
// failures carry the surviving snapshot so the client can still render
// the normalized state next to the error message.
func (h *SessionsHandler) editError(c echo.Context, endpoint string, snap *models.AllocationSnapshot, err error) error {
	svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()

	appErr := mapAllocationError(err)
	if snap != nil {
		appErr = appErr.WithParam("snapshot", snap)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func slotIndex(c echo.Context) (int, *xhttp.AppError) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, xhttp.BadRequestErrorf("invalid slot index %q", c.Param("index"))
	}
	return index, nil
}

func mapSessionError(err error) *xhttp.AppError {
	if errors.Is(err, session.ErrSessionNotFound) {
		return xhttp.NotFoundError("session not found").WithError(err)
	}
	return xhttp.InternalError("session lookup failed").WithError(err)
}

func mapAllocationError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return xhttp.NotFoundError("session not found").WithError(err)
	case errors.Is(err, allocation.ErrSlotOutOfRange):
		return xhttp.BadRequestError("slot index out of range").WithError(err)
	case errors.Is(err, allocation.ErrInvalidTickerFormat):
		return xhttp.NewAppError("ERR_INVALID_TICKER", "text",
			"ticker must be 1-5 letters", 400).WithError(err)
	case errors.Is(err, allocation.ErrDuplicateTicker):
		return xhttp.ConflictError("ticker already assigned to another slot").WithError(err)
	case errors.Is(err, allocation.ErrUnknownSymbol):
		return xhttp.NotFoundError("no allocation entry for symbol").WithError(err)
	default:
		return xhttp.InternalError("edit failed").WithError(err)
	}
}
