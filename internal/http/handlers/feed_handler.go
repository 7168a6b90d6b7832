// Feed HTTP handlers.
//
// This file exposes REST endpoints over the feed cache:
//   - GET    /feeds            (stored snapshot, no network)
//   - POST   /feeds/refresh    (reload first page)
//   - POST   /feeds/more       (append next page)
//   - POST   /feeds/new        (prepend newer items)
//   - DELETE /feeds            (drop stored feed)
//   - GET    /gfycats/{id}     (single item lookup)
//   - POST   /recent           (record an item in the recent feed)
//   - DELETE /recent/{id}      (remove an item from the recent feed)
//
// Feeds are addressed by their serialized identifier token passed in the
// `id` query parameter, e.g. "public://gfycats/trending". Handlers are
// transport-thin: they parse the token, call the service, and translate
// results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gfycat/feedcore/internal/domain"
	"github.com/gfycat/feedcore/internal/feedid"
	"github.com/gfycat/feedcore/internal/repo"
	"github.com/gfycat/feedcore/internal/services"
)

//
// Service contracts (context-aware)
//

// FeedService defines the feed cache operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation.
type FeedService interface {
	// GetGfycats (re)loads the first page of id and returns the snapshot.
	GetGfycats(ctx context.Context, id feedid.Identifier) (domain.FeedData, error)
	// GetMoreGfycats appends the next page of id.
	GetMoreGfycats(ctx context.Context, id feedid.Identifier) (domain.FeedData, error)
	// GetNewGfycats prepends items newer than the stored front of id.
	GetNewGfycats(ctx context.Context, id feedid.Identifier) (domain.FeedData, error)
	// GetFeedData returns the stored snapshot of id without fetching.
	GetFeedData(ctx context.Context, id feedid.Identifier) (domain.FeedData, error)
	// DropFeed discards the stored feed for id.
	DropFeed(ctx context.Context, id feedid.Identifier) error
	// GetGfycat returns one item, from the store or the remote API.
	GetGfycat(ctx context.Context, gfyID string) (*domain.Gfycat, error)
	// AddRecentGfycat records g at the front of the recent feed.
	AddRecentGfycat(ctx context.Context, g domain.Gfycat) error
	// RemoveFromRecent unlinks gfyID from the recent feed.
	RemoveFromRecent(ctx context.Context, gfyID string) error
}

// feedIdentifier parses the `id` query parameter into a feed identifier,
// writing a 400 response on failure.
func feedIdentifier(c *gin.Context) (feedid.Identifier, bool) {
	token := strings.TrimSpace(c.Query("id"))
	if token == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing feed id")
		return nil, false
	}
	id, err := feedid.Parse(token)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid feed id: "+err.Error())
		return nil, false
	}
	return id, true
}

// failFeedError translates service-layer feed errors into HTTP responses.
func failFeedError(c *gin.Context, err error) {
	var internal *services.InternalFeedError
	switch {
	case errors.Is(err, services.ErrFeedClosed):
		fail(c, http.StatusConflict, ErrCodeFeedClosed, "feed has no more pages")
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "feed not found")
	case errors.As(err, &internal):
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, internal.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeUpstreamFailed, "request interrupted")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "feed operation failed")
	}
}

// GetFeed returns the stored snapshot for the requested feed.
//
// GET /feeds?id=<token>
func (h *Handlers) GetFeed(c *gin.Context) {
	id, okID := feedIdentifier(c)
	if !okID {
		return
	}
	data, err := h.feedSvc.GetFeedData(c.Request.Context(), id)
	if err != nil {
		failFeedError(c, err)
		return
	}
	ok(c, http.StatusOK, data)
}

// RefreshFeed reloads the first page of the requested feed and returns the
// resulting snapshot.
//
// POST /feeds/refresh?id=<token>
func (h *Handlers) RefreshFeed(c *gin.Context) {
	id, okID := feedIdentifier(c)
	if !okID {
		return
	}
	data, err := h.feedSvc.GetGfycats(c.Request.Context(), id)
	if err != nil {
		failFeedError(c, err)
		return
	}
	ok(c, http.StatusOK, data)
}

// MoreFeed appends the next page to the requested feed.
//
// POST /feeds/more?id=<token>
func (h *Handlers) MoreFeed(c *gin.Context) {
	id, okID := feedIdentifier(c)
	if !okID {
		return
	}
	data, err := h.feedSvc.GetMoreGfycats(c.Request.Context(), id)
	if err != nil {
		failFeedError(c, err)
		return
	}
	ok(c, http.StatusOK, data)
}

// NewFeedItems prepends items newer than the stored front of the feed.
//
// POST /feeds/new?id=<token>
func (h *Handlers) NewFeedItems(c *gin.Context) {
	id, okID := feedIdentifier(c)
	if !okID {
		return
	}
	data, err := h.feedSvc.GetNewGfycats(c.Request.Context(), id)
	if err != nil {
		failFeedError(c, err)
		return
	}
	ok(c, http.StatusOK, data)
}

// DropFeed discards the stored feed.
//
// DELETE /feeds?id=<token>
func (h *Handlers) DropFeed(c *gin.Context) {
	id, okID := feedIdentifier(c)
	if !okID {
		return
	}
	if err := h.feedSvc.DropFeed(c.Request.Context(), id); err != nil {
		failFeedError(c, err)
		return
	}
	noContent(c)
}

// GetGfycat returns a single item by id.
//
// GET /gfycats/:id
func (h *Handlers) GetGfycat(c *gin.Context) {
	gfyID := strings.TrimSpace(c.Param("id"))
	if gfyID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing item id")
		return
	}
	g, err := h.feedSvc.GetGfycat(c.Request.Context(), gfyID)
	if err != nil {
		failFeedError(c, err)
		return
	}
	ok(c, http.StatusOK, g)
}

// AddRecentRequest is the JSON payload for recording a recently viewed item.
type AddRecentRequest struct {
	// GfyID names the item to record; it must already be known to the
	// store or resolvable remotely.
	GfyID string `json:"gfyId" binding:"required"`
}

// AddRecent records an item at the front of the recent feed.
//
// POST /recent
func (h *Handlers) AddRecent(c *gin.Context) {
	var req AddRecentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gfyId is required")
		return
	}
	g, err := h.feedSvc.GetGfycat(c.Request.Context(), req.GfyID)
	if err != nil {
		failFeedError(c, err)
		return
	}
	if err := h.feedSvc.AddRecentGfycat(c.Request.Context(), *g); err != nil {
		failFeedError(c, err)
		return
	}
	noContent(c)
}

// RemoveRecent unlinks an item from the recent feed.
//
// DELETE /recent/:id
func (h *Handlers) RemoveRecent(c *gin.Context) {
	gfyID := strings.TrimSpace(c.Param("id"))
	if gfyID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing item id")
		return
	}
	if err := h.feedSvc.RemoveFromRecent(c.Request.Context(), gfyID); err != nil {
		failFeedError(c, err)
		return
	}
	noContent(c)
}
