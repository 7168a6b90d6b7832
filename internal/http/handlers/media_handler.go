// Media HTTP handlers.
//
// Media renditions are served from the disk cache through the media service,
// so repeated requests for the same rendition cost one upstream download.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gfycat/feedcore/internal/domain"
	"github.com/gfycat/feedcore/internal/services"
)

// MediaService defines media retrieval operations consumed by HTTP handlers.
type MediaService interface {
	// LoadAsFile returns a local path to the cached rendition t of g.
	LoadAsFile(ctx context.Context, g domain.Gfycat, t domain.MediaType) (string, error)
}

// contentTypes maps renditions to their response Content-Type.
var contentTypes = map[domain.MediaType]string{
	domain.MediaMP4:    "video/mp4",
	domain.MediaGif:    "image/gif",
	domain.MediaWebp:   "image/webp",
	domain.MediaPoster: "image/jpeg",
}

// GetMedia serves one rendition of an item from the disk cache.
//
// GET /media/:id/:type
func (h *Handlers) GetMedia(c *gin.Context) {
	gfyID := strings.TrimSpace(c.Param("id"))
	if gfyID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing item id")
		return
	}
	mt, err := domain.ParseMediaType(c.Param("type"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	g, err := h.feedSvc.GetGfycat(c.Request.Context(), gfyID)
	if err != nil {
		failFeedError(c, err)
		return
	}

	path, err := h.mediaSvc.LoadAsFile(c.Request.Context(), *g, mt)
	if err != nil {
		failMediaError(c, err)
		return
	}
	c.Header("Content-Type", contentTypes[mt])
	c.File(path)
}

// failMediaError translates media service errors into HTTP responses.
func failMediaError(c *gin.Context, err error) {
	var forbidden *services.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "upstream denied access to media")
	case errors.Is(err, services.ErrNoRemoteMedia):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "item has no such rendition")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeMediaFailed, "request interrupted")
	default:
		fail(c, http.StatusBadGateway, ErrCodeMediaFailed, "loading media failed")
	}
}
