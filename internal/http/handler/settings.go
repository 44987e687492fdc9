package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/advflag/internal/http/dto"
	"basegraph.app/advflag/internal/settings"
)

// SettingsHandler is the admin surface of the key/value settings. The core
// itself only reads them.
type SettingsHandler struct {
	store settings.Store
}

func NewSettingsHandler(store settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	var value json.RawMessage
	ok, err := h.store.Get(ctx, key, &value)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read setting", "error", err, "key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read setting"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
		return
	}

	c.JSON(http.StatusOK, dto.SettingResponse{Key: key, Value: value})
}

func (h *SettingsHandler) Put(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	var req dto.PutSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid setting request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !json.Valid(req.Value) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be valid JSON"})
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.store.Set(ctx, key, req.Value, ttl); err != nil {
		slog.ErrorContext(ctx, "failed to write setting", "error", err, "key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write setting"})
		return
	}

	slog.InfoContext(ctx, "setting updated", "key", key, "ttl", ttl)
	c.JSON(http.StatusOK, dto.SettingResponse{Key: key, Value: req.Value})
}

func (h *SettingsHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	if err := h.store.Delete(ctx, key); err != nil {
		slog.ErrorContext(ctx, "failed to delete setting", "error", err, "key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete setting"})
		return
	}
	c.Status(http.StatusNoContent)
}
