package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gfycat/feedcore/internal/api"
	"github.com/gfycat/feedcore/internal/diskcache"
	"github.com/gfycat/feedcore/internal/domain"
)

type fakeMediaAPI struct {
	calls    atomic.Int32
	download func(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

func (f *fakeMediaAPI) DownloadMedia(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f.calls.Add(1)
	if f.download == nil {
		return nil, errors.New("unexpected DownloadMedia call")
	}
	return f.download(ctx, rawURL)
}

func newTestMediaService(t *testing.T, mediaAPI *fakeMediaAPI) *MediaService {
	t.Helper()
	cache, err := diskcache.New(t.TempDir(), 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("new disk cache: %v", err)
	}
	return NewMediaService(cache, mediaAPI, zerolog.Nop())
}

func mediaItem(id string) domain.Gfycat {
	return domain.Gfycat{
		ID:     id,
		MP4URL: "https://media.example.com/" + id + ".mp4",
		GifURL: "https://media.example.com/" + id + ".gif",
	}
}

func serveBody(content string) func(context.Context, string) (io.ReadCloser, error) {
	return func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func TestLoadAsFile_DownloadsOnceThenServesFromCache(t *testing.T) {
	mediaAPI := &fakeMediaAPI{download: serveBody("mp4-bytes")}
	svc := newTestMediaService(t, mediaAPI)
	g := mediaItem("Gfy1")

	path, err := svc.LoadAsFile(context.Background(), g, domain.MediaMP4)
	if err != nil {
		t.Fatalf("LoadAsFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(b) != "mp4-bytes" {
		t.Fatalf("content = %q", b)
	}

	again, err := svc.LoadAsFile(context.Background(), g, domain.MediaMP4)
	if err != nil {
		t.Fatalf("second LoadAsFile: %v", err)
	}
	if again != path {
		t.Fatalf("paths differ: %q vs %q", again, path)
	}
	if n := mediaAPI.calls.Load(); n != 1 {
		t.Fatalf("downloads = %d; want 1", n)
	}
}

func TestLoadAsFile_RenditionsCacheIndependently(t *testing.T) {
	mediaAPI := &fakeMediaAPI{
		download: func(_ context.Context, rawURL string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("from " + rawURL)), nil
		},
	}
	svc := newTestMediaService(t, mediaAPI)
	g := mediaItem("Gfy1")

	mp4, err := svc.LoadAsFile(context.Background(), g, domain.MediaMP4)
	if err != nil {
		t.Fatalf("mp4: %v", err)
	}
	gif, err := svc.LoadAsFile(context.Background(), g, domain.MediaGif)
	if err != nil {
		t.Fatalf("gif: %v", err)
	}
	if mp4 == gif {
		t.Fatal("renditions share a cache entry")
	}
	if n := mediaAPI.calls.Load(); n != 2 {
		t.Fatalf("downloads = %d; want 2", n)
	}
}

func TestLoadAsFile_CoalescesConcurrentDownloads(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mediaAPI := &fakeMediaAPI{
		download: func(context.Context, string) (io.ReadCloser, error) {
			once.Do(func() { close(started) })
			<-release
			return io.NopCloser(strings.NewReader("shared")), nil
		},
	}
	svc := newTestMediaService(t, mediaAPI)
	g := mediaItem("Gfy1")

	var wg sync.WaitGroup
	paths := make([]string, 4)
	errs := make([]error, 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		paths[0], errs[0] = svc.LoadAsFile(context.Background(), g, domain.MediaMP4)
	}()
	<-started
	for i := 1; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = svc.LoadAsFile(context.Background(), g, domain.MediaMP4)
		}(i)
	}
	time.Sleep(50 * time.Millisecond) // let the latecomers join the flight
	close(release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Fatalf("call %d path = %q; want %q", i, paths[i], paths[0])
		}
	}
	if n := mediaAPI.calls.Load(); n != 1 {
		t.Fatalf("downloads = %d; want 1", n)
	}
}

func TestLoadAsFile_NoRemoteURL(t *testing.T) {
	svc := newTestMediaService(t, &fakeMediaAPI{})

	_, err := svc.LoadAsFile(context.Background(), domain.Gfycat{ID: "bare"}, domain.MediaWebp)
	if !errors.Is(err, ErrNoRemoteMedia) {
		t.Fatalf("err = %v; want ErrNoRemoteMedia", err)
	}
}

func TestLoadAsFile_ForbiddenStatus(t *testing.T) {
	mediaAPI := &fakeMediaAPI{
		download: func(_ context.Context, rawURL string) (io.ReadCloser, error) {
			return nil, &api.StatusError{Code: http.StatusForbidden, URL: rawURL}
		},
	}
	svc := newTestMediaService(t, mediaAPI)
	g := mediaItem("Gfy1")

	_, err := svc.LoadAsFile(context.Background(), g, domain.MediaMP4)
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("err = %v; want ForbiddenError", err)
	}
	if forbidden.URL != g.MP4URL {
		t.Fatalf("URL = %q; want %q", forbidden.URL, g.MP4URL)
	}
}

func TestLoadAsBytes_ReadsCachedContent(t *testing.T) {
	mediaAPI := &fakeMediaAPI{download: serveBody("gif-bytes")}
	svc := newTestMediaService(t, mediaAPI)

	b, err := svc.LoadAsBytes(context.Background(), mediaItem("Gfy1"), domain.MediaGif)
	if err != nil {
		t.Fatalf("LoadAsBytes: %v", err)
	}
	if string(b) != "gif-bytes" {
		t.Fatalf("content = %q", b)
	}
}

func TestLoadAsBytes_FallsBackToDirectDownload(t *testing.T) {
	// First attempt fails mid-body so nothing is cached; the fallback
	// download succeeds.
	var attempt atomic.Int32
	mediaAPI := &fakeMediaAPI{
		download: func(context.Context, string) (io.ReadCloser, error) {
			if attempt.Add(1) == 1 {
				return io.NopCloser(&brokenReader{}), nil
			}
			return io.NopCloser(strings.NewReader("direct")), nil
		},
	}
	svc := newTestMediaService(t, mediaAPI)

	b, err := svc.LoadAsBytes(context.Background(), mediaItem("Gfy1"), domain.MediaMP4)
	if err != nil {
		t.Fatalf("LoadAsBytes: %v", err)
	}
	if string(b) != "direct" {
		t.Fatalf("content = %q; want the direct download", b)
	}
	if n := mediaAPI.calls.Load(); n != 2 {
		t.Fatalf("downloads = %d; want 2", n)
	}
}

func TestLoadAsBytes_CancellationPropagates(t *testing.T) {
	mediaAPI := &fakeMediaAPI{
		download: func(ctx context.Context, _ string) (io.ReadCloser, error) {
			return nil, ctx.Err()
		},
	}
	svc := newTestMediaService(t, mediaAPI)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.LoadAsBytes(ctx, mediaItem("Gfy1"), domain.MediaMP4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if n := mediaAPI.calls.Load(); n != 1 {
		t.Fatalf("downloads = %d; cancellation must not trigger the fallback", n)
	}
}

func TestLoadAsBytes_ForbiddenSkipsFallback(t *testing.T) {
	mediaAPI := &fakeMediaAPI{
		download: func(_ context.Context, rawURL string) (io.ReadCloser, error) {
			return nil, &api.StatusError{Code: http.StatusForbidden, URL: rawURL}
		},
	}
	svc := newTestMediaService(t, mediaAPI)

	_, err := svc.LoadAsBytes(context.Background(), mediaItem("Gfy1"), domain.MediaMP4)
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("err = %v; want ForbiddenError", err)
	}
	if n := mediaAPI.calls.Load(); n != 1 {
		t.Fatalf("downloads = %d; forbidden must not trigger the fallback", n)
	}
}

// brokenReader fails on the first read, simulating a dropped transfer.
type brokenReader struct{}

func (*brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}
