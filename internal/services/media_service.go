package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gfycat/feedcore/internal/api"
	"github.com/gfycat/feedcore/internal/diskcache"
	"github.com/gfycat/feedcore/internal/domain"
)

// MediaAPI is the download surface the media service depends on.
type MediaAPI interface {
	DownloadMedia(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// MediaService serves media renditions through the disk cache. Each
// rendition is downloaded at most once at a time: concurrent requests for
// the same cache key share one download and one outcome.
type MediaService struct {
	cache *diskcache.Cache
	api   MediaAPI
	log   zerolog.Logger

	group singleflight.Group
}

// NewMediaService constructs a MediaService.
func NewMediaService(cache *diskcache.Cache, api MediaAPI, log zerolog.Logger) *MediaService {
	return &MediaService{
		cache: cache,
		api:   api,
		log:   log.With().Str("component", "media-service").Logger(),
	}
}

// LoadAsFile returns a path to the cached rendition t of g, downloading it
// on a miss. The file may be evicted later; callers needing durable bytes
// use LoadAsBytes.
func (s *MediaService) LoadAsFile(ctx context.Context, g domain.Gfycat, t domain.MediaType) (string, error) {
	key := t.StorageKey(g)
	if path := s.cache.Get(key); path != "" {
		mediaCacheHits.Inc()
		return path, nil
	}
	mediaCacheMisses.Inc()

	v, err, _ := s.group.Do("media:"+key, func() (any, error) {
		// Another request may have filled the cache while this one waited
		// its turn in the group.
		if path := s.cache.Get(key); path != "" {
			return path, nil
		}
		if err := s.download(ctx, g, t, key); err != nil {
			return nil, err
		}
		path := s.cache.Get(key)
		if path == "" {
			return nil, errors.New("media vanished from cache right after download")
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// download fetches rendition t of g and commits it under key.
func (s *MediaService) download(ctx context.Context, g domain.Gfycat, t domain.MediaType, key string) error {
	url := t.URL(g)
	if url == "" {
		return ErrNoRemoteMedia
	}
	body, err := s.api.DownloadMedia(ctx, url)
	if err != nil {
		mediaDownloads.WithLabelValues(outcomeLabel(err)).Inc()
		return mapMediaError(err, url)
	}
	defer body.Close()

	if err := s.cache.Put(key, body); err != nil {
		if errors.Is(err, diskcache.ErrOtherEditInProgress) {
			// The group guarantees one writer per key, so a concurrent
			// edit means the cache is being driven outside this service.
			s.log.Error().Str("key", key).Msg("media cache edited concurrently, cache discipline violated")
		}
		mediaDownloads.WithLabelValues("error").Inc()
		return err
	}
	mediaDownloads.WithLabelValues("ok").Inc()
	return nil
}

// LoadAsBytes returns the rendition contents. Cache failures other than
// cancellation degrade to a direct download so the caller still gets bytes.
func (s *MediaService) LoadAsBytes(ctx context.Context, g domain.Gfycat, t domain.MediaType) ([]byte, error) {
	path, err := s.LoadAsFile(ctx, g, t)
	if err == nil {
		b, readErr := os.ReadFile(path)
		if readErr == nil {
			return b, nil
		}
		err = readErr
	}
	if interrupted(err) || errors.Is(err, ErrNoRemoteMedia) {
		return nil, err
	}
	var forbidden *ForbiddenError
	if errors.As(err, &forbidden) {
		return nil, err
	}

	s.log.Warn().Err(err).Str("gfy_id", g.ID).Str("type", string(t)).Msg("cache path failed, downloading directly")
	body, err := s.api.DownloadMedia(ctx, t.URL(g))
	if err != nil {
		return nil, mapMediaError(err, t.URL(g))
	}
	defer body.Close()
	return io.ReadAll(body)
}

// interrupted reports whether err came from caller cancellation rather
// than the media path itself.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// mapMediaError turns a 403 status into the dedicated ForbiddenError.
func mapMediaError(err error, url string) error {
	var status *api.StatusError
	if errors.As(err, &status) && status.Code == http.StatusForbidden {
		return &ForbiddenError{URL: url}
	}
	return err
}

func outcomeLabel(err error) string {
	var status *api.StatusError
	if errors.As(err, &status) && status.Code == http.StatusForbidden {
		return "forbidden"
	}
	return "error"
}
