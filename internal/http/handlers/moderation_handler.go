// Moderation HTTP handlers.
//
// Moderation flags (deleted, published, nsfw, blocked) take effect on every
// stored feed at read time, so these endpoints only flip flags and let the
// read path do the filtering.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ModerationService defines the moderation operations consumed by HTTP
// handlers.
type ModerationService interface {
	MarkDeleted(ctx context.Context, gfyID string, deleted bool) error
	MarkPublished(ctx context.Context, gfyID string, published bool) error
	MarkNsfw(ctx context.Context, gfyID string, nsfw bool) error
	BlockItem(ctx context.Context, gfyID string, block bool) error
	BlockUser(ctx context.Context, userName string, block bool) error
}

// FlagRequest is the JSON payload of every moderation endpoint.
type FlagRequest struct {
	Value bool `json:"value"`
}

// setFlag runs one moderation operation against the id in the route param.
func (h *Handlers) setFlag(c *gin.Context, param string, apply func(ctx context.Context, id string, v bool) error) {
	id := strings.TrimSpace(c.Param(param))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing "+param)
		return
	}
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must be {\"value\": bool}")
		return
	}
	if err := apply(c.Request.Context(), id, req.Value); err != nil {
		failFeedError(c, err)
		return
	}
	noContent(c)
}

// MarkDeleted flags an item as deleted.
//
// PUT /moderation/gfycats/:id/deleted
func (h *Handlers) MarkDeleted(c *gin.Context) {
	h.setFlag(c, "id", h.modSvc.MarkDeleted)
}

// MarkPublished flags an item as published or unpublished.
//
// PUT /moderation/gfycats/:id/published
func (h *Handlers) MarkPublished(c *gin.Context) {
	h.setFlag(c, "id", h.modSvc.MarkPublished)
}

// MarkNsfw flags an item as not safe for work.
//
// PUT /moderation/gfycats/:id/nsfw
func (h *Handlers) MarkNsfw(c *gin.Context) {
	h.setFlag(c, "id", h.modSvc.MarkNsfw)
}

// BlockItem hides or unhides an item from every feed.
//
// PUT /moderation/gfycats/:id/blocked
func (h *Handlers) BlockItem(c *gin.Context) {
	h.setFlag(c, "id", h.modSvc.BlockItem)
}

// BlockUser hides or unhides every item of a user from feeds.
//
// PUT /moderation/users/:name/blocked
func (h *Handlers) BlockUser(c *gin.Context) {
	h.setFlag(c, "name", h.modSvc.BlockUser)
}
