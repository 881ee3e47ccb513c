package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"AllocDesk/internal/middleware"
	svcmetrics "AllocDesk/internal/service/metrics"
	"AllocDesk/internal/usecase"
	xhttp "AllocDesk/pkg/http"
	xlogger "AllocDesk/pkg/logger"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = 30 * time.Second
)

// StreamHandler serves the allocation snapshot stream over WebSocket.
// Renderers subscribe here instead of polling the allocation endpoint.
type StreamHandler struct {
	logger   *xlogger.Logger
	alloc    *usecase.AllocationUseCase
	pipeline *middleware.SnapshotPipeline
	upgrader websocket.Upgrader
}

func NewStreamHandler(logger *xlogger.Logger, alloc *usecase.AllocationUseCase, pipeline *middleware.SnapshotPipeline) *StreamHandler {
	svcmetrics.Register()
	return &StreamHandler{
		logger:   logger,
		alloc:    alloc,
		pipeline: pipeline,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/sessions/:id/stream", h.Stream)
}

func (h *StreamHandler) Stream(c echo.Context) error {
	id := c.Param("id")

	// reject unknown sessions before upgrading
	snap, err := h.alloc.GetAllocation(c.Request().Context(), id)
	if err != nil {
		return xhttp.AppErrorResponse(c, mapSessionError(err))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	svcmetrics.StreamClients.Inc()
	defer svcmetrics.StreamClients.Dec()

	snaps, cancel := h.pipeline.Subscribe(id)
	defer cancel()

	// reader only services control frames and surfaces the close
	done := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// current state first, then live updates
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(snap); err != nil {
		return nil
	}

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return nil
		case next, ok := <-snaps:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(next); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
