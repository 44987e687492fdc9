package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/advflag/internal/http/dto"
	"basegraph.app/advflag/internal/service"
)

type NetworkEventHandler struct {
	service     service.NetworkEventService
	traceHeader string
}

func NewNetworkEventHandler(service service.NetworkEventService, traceHeader string) *NetworkEventHandler {
	return &NetworkEventHandler{
		service:     service,
		traceHeader: traceHeader,
	}
}

func (h *NetworkEventHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.NetworkEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid network event", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	params := service.NetworkEventParams{
		URL:        req.URL,
		StatusCode: req.StatusCode,
		Body:       req.Body,
		ObservedAt: req.ObservedAt,
	}
	if traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.service.Ingest(ctx, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidNetworkEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest network event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest network event"})
		return
	}

	c.JSON(http.StatusAccepted, dto.NetworkEventResponse{MessageID: result.MessageID})
}
