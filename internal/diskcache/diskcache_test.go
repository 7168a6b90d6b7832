package diskcache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCache(t *testing.T, maxBytes int64) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), maxBytes, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func put(t *testing.T, c *Cache, key, content string) {
	t.Helper()
	if err := c.Put(key, strings.NewReader(content)); err != nil {
		t.Fatalf("Put(%q): %v", key, err)
	}
}

func TestNew_RejectsNonPositiveBudget(t *testing.T) {
	if _, err := New(t.TempDir(), 0, zerolog.Nop()); err == nil {
		t.Fatal("zero budget accepted")
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	c := newTestCache(t, MB)
	put(t, c, "GfyA.mp4", "video bytes")

	path := c.Get("GfyA.mp4")
	if path == "" {
		t.Fatal("miss after put")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(b) != "video bytes" {
		t.Fatalf("content = %q; want %q", b, "video bytes")
	}
	if c.Len() != 1 || c.Size() != int64(len("video bytes")) {
		t.Fatalf("len=%d size=%d; want 1/%d", c.Len(), c.Size(), len("video bytes"))
	}
}

func TestGet_Miss(t *testing.T) {
	c := newTestCache(t, MB)
	if path := c.Get("absent"); path != "" {
		t.Fatalf("miss returned %q", path)
	}
}

func TestPut_ReplacesExistingEntry(t *testing.T) {
	c := newTestCache(t, MB)
	put(t, c, "k", "first")
	put(t, c, "k", "second-longer")

	b, err := os.ReadFile(c.Get("k"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "second-longer" {
		t.Fatalf("content = %q; want replacement", b)
	}
	if c.Len() != 1 || c.Size() != int64(len("second-longer")) {
		t.Fatalf("len=%d size=%d after replace", c.Len(), c.Size())
	}
}

func TestEviction_DropsLeastRecentlyUsed(t *testing.T) {
	// Budget fits two 4-byte entries.
	c := newTestCache(t, 8)
	put(t, c, "a", "aaaa")
	put(t, c, "b", "bbbb")

	// Touch "a" so "b" becomes the eviction candidate.
	if c.Get("a") == "" {
		t.Fatal("a missing before eviction")
	}

	put(t, c, "c", "cccc")

	if c.Get("a") == "" {
		t.Error("recently used entry evicted")
	}
	if c.Get("b") != "" {
		t.Error("least recently used entry survived")
	}
	if c.Get("c") == "" {
		t.Error("new entry evicted")
	}
	if c.Size() > 8 {
		t.Errorf("size %d over budget", c.Size())
	}
}

func TestEviction_NeverRemovesOnlyEntry(t *testing.T) {
	c := newTestCache(t, 4)
	put(t, c, "big", "way over the four byte budget")
	if c.Get("big") == "" {
		t.Fatal("sole oversized entry was evicted")
	}
}

func TestPut_ConcurrentSameKey(t *testing.T) {
	c := newTestCache(t, MB)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Put("k", &blockingReader{started: started, release: release})
	}()

	<-started
	err := c.Put("k", strings.NewReader("second"))
	if err != ErrOtherEditInProgress {
		t.Errorf("concurrent put err = %v; want ErrOtherEditInProgress", err)
	}
	close(release)
	wg.Wait()

	// After the first put finishes, the key is writable again.
	put(t, c, "k", "third")
}

// blockingReader signals when first read and blocks until released.
type blockingReader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingReader) Read(p []byte) (int, error) {
	r.once.Do(func() { close(r.started) })
	<-r.release
	return 0, os.ErrClosed
}

func TestNew_RebuildsIndexFromDisk(t *testing.T) {
	dir := t.TempDir()
	c1, err := New(dir, MB, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	put(t, c1, "persist", "persisted bytes")

	// Leftover temp file from an interrupted put must be cleaned up.
	tmpPath := filepath.Join(dir, "interrupted-123.tmp")
	if err := os.WriteFile(tmpPath, []byte("junk"), 0o644); err != nil {
		t.Fatalf("seed tmp: %v", err)
	}

	c2, err := New(dir, MB, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if c2.Len() != 1 {
		t.Fatalf("reopened len = %d; want 1", c2.Len())
	}
	if c2.Get("persist") == "" {
		t.Fatal("persisted entry not indexed after reopen")
	}
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Error("leftover tmp file not removed")
	}
}

func TestNew_LRUOrderSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	c1, err := New(dir, 8, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	put(t, c1, "old", "aaaa")
	time.Sleep(10 * time.Millisecond) // distinct mod times
	put(t, c1, "new", "bbbb")

	c2, err := New(dir, 8, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	put(t, c2, "extra", "cccc")

	if c2.Get("old") != "" {
		t.Error("oldest entry survived eviction after restart")
	}
	if c2.Get("new") == "" {
		t.Error("newer entry evicted after restart")
	}
}

func TestGet_DropsVanishedFile(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, MB, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	put(t, c, "k", "bytes")
	path := c.Get("k")
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if got := c.Get("k"); got != "" {
		t.Fatalf("Get after external removal = %q; want miss", got)
	}
	if c.Len() != 0 || c.Size() != 0 {
		t.Fatalf("index not cleaned: len=%d size=%d", c.Len(), c.Size())
	}
}
