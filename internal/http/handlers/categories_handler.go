// Categories HTTP handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gfycat/feedcore/internal/domain"
)

// CategoriesService defines category list operations consumed by HTTP
// handlers.
type CategoriesService interface {
	// GetCategories streams the cached list and, when stale, the refreshed
	// one. The channel closes when no further list will arrive.
	GetCategories(ctx context.Context) <-chan domain.CategoriesList
	// DropCategories discards the cached list.
	DropCategories() error
}

// GetCategories returns the freshest category list available: the service
// emits cached-then-fresh, and over a single HTTP exchange only the last
// emission is useful.
//
// GET /categories
func (h *Handlers) GetCategories(c *gin.Context) {
	var (
		last domain.CategoriesList
		got  bool
	)
	for list := range h.catSvc.GetCategories(c.Request.Context()) {
		last = list
		got = true
	}
	if !got {
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, "no category list available")
		return
	}
	ok(c, http.StatusOK, last)
}

// DropCategories discards the cached category list.
//
// DELETE /categories
func (h *Handlers) DropCategories(c *gin.Context) {
	if err := h.catSvc.DropCategories(); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "dropping category cache failed")
		return
	}
	noContent(c)
}
