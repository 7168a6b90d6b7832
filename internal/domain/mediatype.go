package domain

import "fmt"

// MediaType selects one remote rendition of an item and names its cache
// key. Keys embed the item id and extension so every rendition of an item
// caches independently.
type MediaType string

// Supported renditions.
const (
	MediaMP4    MediaType = "mp4"
	MediaGif    MediaType = "gif"
	MediaWebp   MediaType = "webp"
	MediaPoster MediaType = "poster"
)

// ParseMediaType validates a rendition name from transport input.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaMP4, MediaGif, MediaWebp, MediaPoster:
		return MediaType(s), nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// URL returns the remote location of this rendition of g.
func (m MediaType) URL(g Gfycat) string {
	switch m {
	case MediaMP4:
		return g.MP4URL
	case MediaGif:
		return g.GifURL
	case MediaWebp:
		return g.WebpURL
	case MediaPoster:
		return g.PosterURL
	default:
		return ""
	}
}

// StorageKey returns the cache key for this rendition of g.
func (m MediaType) StorageKey(g Gfycat) string {
	return g.ID + "." + string(m)
}
