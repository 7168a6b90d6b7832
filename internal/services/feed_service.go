package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/gfycat/feedcore/internal/domain"
	"github.com/gfycat/feedcore/internal/events"
	"github.com/gfycat/feedcore/internal/feedid"
	"github.com/gfycat/feedcore/internal/repo"
)

// FeedAPI is the remote surface the feed service depends on. *api.Client
// satisfies it; tests substitute fakes.
type FeedAPI interface {
	FetchPage(ctx context.Context, id feedid.Identifier, count int) (*domain.GfycatList, error)
	FetchMore(ctx context.Context, id feedid.Identifier, digest string, count int) (*domain.GfycatList, error)
	OneGfycat(ctx context.Context, gfyID string) (*domain.Gfycat, error)
}

// FeedService orchestrates the feed cache: it loads pages from the remote
// API, applies them to the store transactionally and publishes change
// notifications strictly after commit. Concurrent initial loads of the same
// feed are coalesced so the network sees one request.
type FeedService struct {
	db  *gorm.DB
	api FeedAPI
	bus *events.Bus
	log zerolog.Logger

	pageSize    int
	newPageSize int
	recentLimit int
	freshWindow time.Duration

	group singleflight.Group
}

// FeedConfig tunes a FeedService. Zero values fall back to the defaults
// noted per field.
type FeedConfig struct {
	// PageSize is the item count requested per page (default 100).
	PageSize int
	// NewPageSize is the item count requested when polling for newer
	// items (default 1).
	NewPageSize int
	// RecentLimit bounds the recent feed (default 100).
	RecentLimit int
	// FreshWindow is the maximum age at which a stored feed matching the
	// first remote page is considered current and left untouched.
	FreshWindow time.Duration
}

// NewFeedService constructs a FeedService.
func NewFeedService(db *gorm.DB, api FeedAPI, bus *events.Bus, cfg FeedConfig, log zerolog.Logger) *FeedService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.NewPageSize <= 0 {
		cfg.NewPageSize = 1
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 100
	}
	return &FeedService{
		db:          db,
		api:         api,
		bus:         bus,
		log:         log.With().Str("component", "feed-service").Logger(),
		pageSize:    cfg.PageSize,
		newPageSize: cfg.NewPageSize,
		recentLimit: cfg.RecentLimit,
		freshWindow: cfg.FreshWindow,
	}
}

// pageError surfaces an application error embedded in a feed payload.
func pageError(page *domain.GfycatList) error {
	if page.ErrorMessage != "" {
		return &InternalFeedError{Message: page.ErrorMessage}
	}
	return nil
}

// GetGfycats (re)loads the first page of id and returns the resulting
// snapshot. When the stored feed is fresh and already matches the remote
// first page the store is left untouched. Concurrent calls for the same
// identifier share a single fetch.
func (s *FeedService) GetGfycats(ctx context.Context, id feedid.Identifier) (domain.FeedData, error) {
	v, err, _ := s.group.Do("feed:"+id.Serialize(), func() (any, error) {
		return s.loadFirstPage(ctx, id)
	})
	if err != nil {
		return domain.FeedData{}, err
	}
	return v.(domain.FeedData), nil
}

func (s *FeedService) loadFirstPage(ctx context.Context, id feedid.Identifier) (domain.FeedData, error) {
	switch tid := id.(type) {
	case feedid.Recent:
		// The recent feed is local only, never fetched.
		return repo.GetFeedData(ctx, s.db, id)
	case feedid.Single:
		return s.loadSingle(ctx, tid)
	}

	feedFetches.WithLabelValues("initial").Inc()
	page, err := s.api.FetchPage(ctx, id, s.pageSize)
	if err != nil {
		return domain.FeedData{}, err
	}
	if err := pageError(page); err != nil {
		return domain.FeedData{}, err
	}

	uniqueName := id.Serialize()
	same, err := repo.FeedUnchanged(ctx, s.db, uniqueName, *page, s.freshWindow)
	if err != nil {
		return domain.FeedData{}, err
	}
	if same {
		feedFetchSkips.Inc()
		s.log.Debug().Str("feed", uniqueName).Msg("first page matches stored feed, skipping write")
		return repo.GetFeedData(ctx, s.db, id)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		feedID, err := repo.InsertOrReplaceFeed(ctx, tx, uniqueName, page.NextPart(), repo.CloseModeAuto)
		if err != nil {
			return err
		}
		return repo.SaveFeedPage(ctx, tx, feedID, *page)
	})
	if err != nil {
		return domain.FeedData{}, err
	}
	s.bus.NotifyChange(id)
	return repo.GetFeedData(ctx, s.db, id)
}

// loadSingle materializes a one-item feed from a single remote lookup.
func (s *FeedService) loadSingle(ctx context.Context, id feedid.Single) (domain.FeedData, error) {
	g, err := s.api.OneGfycat(ctx, id.GfyID)
	if err != nil {
		return domain.FeedData{}, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		feedID, err := repo.InsertOrReplaceFeed(ctx, tx, id.Serialize(), "", repo.CloseModeClose)
		if err != nil {
			return err
		}
		return repo.SaveFeedPage(ctx, tx, feedID, domain.GfycatList{Gfycats: []domain.Gfycat{*g}})
	})
	if err != nil {
		return domain.FeedData{}, err
	}
	s.bus.NotifyChange(id)
	return repo.GetFeedData(ctx, s.db, id)
}

// GetMoreGfycats appends the next page to the stored feed and returns the
// updated snapshot. Returns ErrFeedClosed when the feed has no continuation
// left.
func (s *FeedService) GetMoreGfycats(ctx context.Context, id feedid.Identifier) (domain.FeedData, error) {
	return s.loadNextPage(ctx, id, "more", s.pageSize)
}

// GetNewGfycats polls for items newer than the stored front of the feed and
// prepends them, returning the updated snapshot.
func (s *FeedService) GetNewGfycats(ctx context.Context, id feedid.Identifier) (domain.FeedData, error) {
	return s.loadNextPage(ctx, id, "new", s.newPageSize)
}

func (s *FeedService) loadNextPage(ctx context.Context, id feedid.Identifier, op string, count int) (domain.FeedData, error) {
	uniqueName := id.Serialize()
	feed, err := repo.GetFeed(ctx, s.db, uniqueName)
	if err != nil {
		return domain.FeedData{}, err
	}
	if feed.Closed && feed.Digest == "" {
		return domain.FeedData{}, ErrFeedClosed
	}
	digest := feed.Digest

	feedFetches.WithLabelValues(op).Inc()
	page, err := s.api.FetchMore(ctx, id, digest, count)
	if err != nil {
		return domain.FeedData{}, err
	}
	if err := pageError(page); err != nil {
		return domain.FeedData{}, err
	}

	if page.IsEmpty() && page.NextPart() == "" {
		// The feed ran out. Close it unless a racing page got there first.
		err := repo.CloseFeed(ctx, s.db, uniqueName, digest)
		switch {
		case errors.Is(err, repo.ErrStaleDigest):
			s.log.Debug().Str("feed", uniqueName).Str("op", op).Msg("dropping stale close, digest moved on")
			return repo.GetFeedData(ctx, s.db, id)
		case err != nil:
			return domain.FeedData{}, err
		}
		s.bus.NotifyChange(id)
		return repo.GetFeedData(ctx, s.db, id)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateFeedDigest(ctx, tx, uniqueName, page.NextPart(), digest); err != nil {
			return err
		}
		return repo.SaveFeedPage(ctx, tx, feed.ID, *page)
	})
	switch {
	case errors.Is(err, repo.ErrStaleDigest):
		// This page was fetched against a digest that is no longer
		// current; applying it would scramble ordering, so it is dropped.
		s.log.Debug().Str("feed", uniqueName).Str("op", op).Msg("dropping page fetched with stale digest")
		return repo.GetFeedData(ctx, s.db, id)
	case err != nil:
		return domain.FeedData{}, err
	}
	s.bus.NotifyChange(id)
	return repo.GetFeedData(ctx, s.db, id)
}

// GetFeedData returns the stored snapshot for id without touching the
// network.
func (s *FeedService) GetFeedData(ctx context.Context, id feedid.Identifier) (domain.FeedData, error) {
	return repo.GetFeedData(ctx, s.db, id)
}

// DropFeed discards the stored feed for id, forcing the next GetGfycats to
// reload it.
func (s *FeedService) DropFeed(ctx context.Context, id feedid.Identifier) error {
	removed, err := repo.DeleteFeed(ctx, s.db, id)
	if err != nil {
		return err
	}
	if removed {
		s.bus.NotifyChange(id)
	}
	return nil
}

// CreateFeedIfNotExist seeds the feed for id with a single starting item
// unless a feed is already stored, in which case nothing changes. Used to
// materialize a feed around an item obtained out of band (a deep link, a
// share) without clobbering cached pages.
func (s *FeedService) CreateFeedIfNotExist(ctx context.Context, id feedid.Identifier, g domain.Gfycat, digest string, mode repo.CloseMode) error {
	uniqueName := id.Serialize()
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetFeed(ctx, tx, uniqueName); err == nil {
			return nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		feedID, err := repo.InsertFeedIfAbsent(ctx, tx, uniqueName, digest, mode)
		if err != nil {
			return err
		}
		created = true
		return repo.SaveFeedPage(ctx, tx, feedID, domain.GfycatList{Gfycats: []domain.Gfycat{g}})
	})
	if err != nil {
		return err
	}
	if created {
		s.bus.NotifyChange(id)
	}
	return nil
}

// GetGfycat returns the cached item record for gfyID, falling back to a
// remote lookup (and caching the result) on a miss.
func (s *FeedService) GetGfycat(ctx context.Context, gfyID string) (*domain.Gfycat, error) {
	g, err := repo.GetGfycat(ctx, s.db, gfyID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	g, err = s.api.OneGfycat(ctx, gfyID)
	if err != nil {
		return nil, err
	}
	if err := repo.UpsertGfycat(ctx, s.db, *g); err != nil {
		return nil, err
	}
	return g, nil
}

// AddRecentGfycat records g at the front of the recent feed, creating the
// feed if needed and trimming it to the configured limit.
func (s *FeedService) AddRecentGfycat(ctx context.Context, g domain.Gfycat) error {
	id := feedid.Recent{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		feedID, err := repo.InsertFeedIfAbsent(ctx, tx, id.Serialize(), "", repo.CloseModeClose)
		if err != nil {
			return err
		}
		if err := repo.SaveFeedPage(ctx, tx, feedID, domain.GfycatList{NewGfycats: []domain.Gfycat{g}}); err != nil {
			return err
		}
		return s.trimRecent(ctx, tx, feedID)
	})
	if err != nil {
		return err
	}
	s.bus.NotifyChange(id)
	return nil
}

// trimRecent unlinks items past the recent feed limit, oldest first.
func (s *FeedService) trimRecent(ctx context.Context, tx *gorm.DB, feedID uint) error {
	var ids []string
	err := tx.WithContext(ctx).
		Model(&domain.FeedItem{}).
		Select("gfy_id").
		Where("feed_id = ?", feedID).
		Order("index_in_feed").
		Scan(&ids).Error
	if err != nil {
		return err
	}
	for _, gfyID := range ids[min(len(ids), s.recentLimit):] {
		if err := repo.RemoveRelation(ctx, tx, feedID, gfyID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromRecent unlinks gfyID from the recent feed. Removing an item
// that is not present is a no-op.
func (s *FeedService) RemoveFromRecent(ctx context.Context, gfyID string) error {
	id := feedid.Recent{}
	feed, err := repo.GetFeed(ctx, s.db, id.Serialize())
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := repo.RemoveRelation(ctx, s.db, feed.ID, gfyID); err != nil {
		return err
	}
	s.bus.NotifyChange(id)
	return nil
}

// feedObserver adapts the bus callback into a coalescing trigger channel:
// bursts of notifications collapse into one pending refresh.
type feedObserver struct {
	trigger chan struct{}
}

func (o *feedObserver) OnFeedChange(feedid.Identifier) {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// ObserveGfycats streams snapshots of id: the current snapshot immediately,
// then a fresh one after every committed change, until ctx is done. The
// returned channel is closed on cancellation.
func (s *FeedService) ObserveGfycats(ctx context.Context, id feedid.Identifier) <-chan domain.FeedData {
	obs := &feedObserver{trigger: make(chan struct{}, 1)}
	obs.trigger <- struct{}{}
	s.bus.RegisterFeedObserver(id, obs)

	out := make(chan domain.FeedData)
	go func() {
		defer close(out)
		defer s.bus.UnregisterFeedObserver(obs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-obs.trigger:
			}
			data, err := repo.GetFeedData(ctx, s.db, id)
			if err != nil {
				s.log.Error().Err(err).Str("feed", id.Serialize()).Msg("reading feed snapshot for observer")
				continue
			}
			select {
			case out <- data:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// MarkDeleted flags gfyID as deleted. A deleted item vanishes from every
// feed read, and its one-item feed (if stored) is dropped entirely.
func (s *FeedService) MarkDeleted(ctx context.Context, gfyID string, deleted bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkDeleted(ctx, tx, gfyID, deleted); err != nil {
			return err
		}
		if deleted {
			if _, err := repo.DeleteFeed(ctx, tx, feedid.FromSingleItem(gfyID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bus.NotifyRootChange()
	return nil
}

// MarkPublished flags gfyID as published or unpublished.
func (s *FeedService) MarkPublished(ctx context.Context, gfyID string, published bool) error {
	if err := repo.MarkPublished(ctx, s.db, gfyID, published); err != nil {
		return err
	}
	s.bus.NotifyRootChange()
	return nil
}

// MarkNsfw flags gfyID as not safe for work.
func (s *FeedService) MarkNsfw(ctx context.Context, gfyID string, nsfw bool) error {
	if err := repo.MarkNsfw(ctx, s.db, gfyID, nsfw); err != nil {
		return err
	}
	s.bus.NotifyRootChange()
	return nil
}

// BlockItem hides or unhides gfyID from every feed read.
func (s *FeedService) BlockItem(ctx context.Context, gfyID string, block bool) error {
	if err := repo.BlockGfycat(ctx, s.db, gfyID, block); err != nil {
		return err
	}
	s.bus.NotifyRootChange()
	return nil
}

// BlockUser hides or unhides every item of userName from feed reads.
func (s *FeedService) BlockUser(ctx context.Context, userName string, block bool) error {
	if err := repo.BlockUser(ctx, s.db, userName, block); err != nil {
		return err
	}
	s.bus.NotifyRootChange()
	return nil
}
