package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/http/dto"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service"
)

type PostHandler struct {
	coordinator service.CoordinatorService
}

func NewPostHandler(coordinator service.CoordinatorService) *PostHandler {
	return &PostHandler{coordinator: coordinator}
}

func (h *PostHandler) Discover(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.DiscoverPostsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid discover request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	posts := make([]model.Post, 0, len(req.Posts))
	for _, p := range req.Posts {
		posts = append(posts, p.ToModel())
	}

	res, err := h.coordinator.Discover(ctx, posts)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPost) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to discover posts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to discover posts"})
		return
	}

	c.JSON(http.StatusOK, dto.DiscoverPostsResponse{Stored: res.Stored, Lookups: res.Lookups})
}

func (h *PostHandler) Options(c *gin.Context) {
	ctx := c.Request.Context()

	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	opts, err := h.coordinator.Options(ctx, postID)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to build options", "error", err, "post_id", postID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build options"})
		return
	}

	c.JSON(http.StatusOK, opts)
}

func (h *PostHandler) Act(c *gin.Context) {
	ctx := c.Request.Context()

	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	var req dto.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid action request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.coordinator.Act(ctx, postID, req.FlagTypeID, req.Options())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		case errors.Is(err, catalog.ErrFlagTypeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "flag type not found"})
		case errors.Is(err, service.ErrFlagTypeNotOffered):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "flag type not offered for this post"})
		default:
			slog.ErrorContext(ctx, "failed to act on post", "error", err, "post_id", postID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to act on post"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToActionResponse(res))
}

func parsePostID(c *gin.Context) (int64, bool) {
	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || postID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return 0, false
	}
	return postID, true
}
