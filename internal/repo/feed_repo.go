// Package repo implements the persistent feed cache, backed by GORM. This
// file provides repository functions for feed rows and the feed↔item
// relation table.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no orchestration, only persistence and query composition.
// Transaction boundaries and change notifications belong to the service
// layer.
//
// Ordering model: each relation row carries an explicit index_in_feed.
// Appending continues upward from the current maximum index; prepending
// (used by the recent feed and by "newer items" pages) counts downward from
// the current minimum, so earlier rows keep their indices forever.
//
// Error semantics:
//   - When a feed is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - UpdateFeedDigest reports a failed optimistic digest check as
//     ErrStaleDigest so callers can drop the losing page silently.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gfycat/feedcore/internal/domain"
	"github.com/gfycat/feedcore/internal/feedid"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleDigest is returned when an optimistic digest update loses a race:
// the stored digest no longer matches the digest the page was fetched with.
var ErrStaleDigest = errors.New("stored digest does not match expected digest")

// CloseMode decides the closed flag of a feed being written.
type CloseMode int

const (
	// CloseModeAuto closes the feed iff the page carried no continuation
	// digest.
	CloseModeAuto CloseMode = iota
	// CloseModeClose forces the feed closed.
	CloseModeClose
	// CloseModeOpen forces the feed open.
	CloseModeOpen
)

// closed resolves the stored closed flag for a digest under this mode.
func (m CloseMode) closed(digest string) bool {
	switch m {
	case CloseModeClose:
		return true
	case CloseModeOpen:
		return false
	default:
		return digest == ""
	}
}

// GetFeed fetches the feed row for the serialized identifier uniqueName,
// or ErrNotFound.
func GetFeed(ctx context.Context, db *gorm.DB, uniqueName string) (*domain.Feed, error) {
	var f domain.Feed
	if err := db.WithContext(ctx).Where("unique_name = ?", uniqueName).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFeedData reads the current snapshot for id. A feed that was never
// stored yields an empty snapshot with a default description; reads never
// mutate state.
func GetFeedData(ctx context.Context, db *gorm.DB, id feedid.Identifier) (domain.FeedData, error) {
	feed, err := GetFeed(ctx, db, id.Serialize())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.FeedData{Description: domain.EmptyFeedDescription(id)}, nil
	}
	if err != nil {
		return domain.FeedData{}, err
	}

	items, err := ListFeedGfycats(ctx, db, feed.ID)
	if err != nil {
		return domain.FeedData{}, err
	}
	return domain.FeedData{
		Description: domain.FeedDescription{
			Identifier: id,
			Digest:     feed.Digest,
			Closed:     feed.Closed,
			CreateTime: feed.CreatedAt,
		},
		Gfycats: items,
	}, nil
}

// ListFeedGfycats returns the ordered, visible items of a feed: deleted
// items, blocked items and items of blocked users are excluded regardless
// of the stored relation.
func ListFeedGfycats(ctx context.Context, db *gorm.DB, feedID uint) ([]domain.Gfycat, error) {
	var out []domain.Gfycat
	err := db.WithContext(ctx).
		Model(&domain.Gfycat{}).
		Joins("JOIN feed_items ON feed_items.gfy_id = gfycats.gfy_id").
		Where("feed_items.feed_id = ?", feedID).
		Where("gfycats.deleted = ?", false).
		Where("gfycats.gfy_id NOT IN (?)", db.Model(&domain.BlockedGfycat{}).Select("gfy_id")).
		Where("gfycats.user_name NOT IN (?)", db.Model(&domain.BlockedUser{}).Select("user_name")).
		Order("feed_items.index_in_feed").
		Find(&out).Error
	return out, err
}

// InsertOrReplaceFeed drops any stored feed row for uniqueName (cascading
// to its relations) and inserts a fresh one, returning the new feed id.
func InsertOrReplaceFeed(ctx context.Context, db *gorm.DB, uniqueName, digest string, mode CloseMode) (uint, error) {
	if err := db.WithContext(ctx).Where("unique_name = ?", uniqueName).Delete(&domain.Feed{}).Error; err != nil {
		return 0, err
	}
	return insertFeedRow(ctx, db, uniqueName, digest, mode)
}

// InsertFeedIfAbsent returns the id of the stored feed row for uniqueName,
// inserting one if none exists.
func InsertFeedIfAbsent(ctx context.Context, db *gorm.DB, uniqueName, digest string, mode CloseMode) (uint, error) {
	feed, err := GetFeed(ctx, db, uniqueName)
	if err == nil {
		return feed.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return insertFeedRow(ctx, db, uniqueName, digest, mode)
}

func insertFeedRow(ctx context.Context, db *gorm.DB, uniqueName, digest string, mode CloseMode) (uint, error) {
	f := domain.Feed{
		UniqueName: uniqueName,
		Digest:     digest,
		Closed:     mode.closed(digest),
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&f).Error; err != nil {
		return 0, err
	}
	return f.ID, nil
}

// UpdateFeedDigest replaces the stored digest of uniqueName with newDigest,
// but only when the stored digest still equals previousDigest, so a racing
// page cannot corrupt ordering. An empty newDigest additionally closes the
// feed. Returns ErrStaleDigest when the guard fails.
func UpdateFeedDigest(ctx context.Context, db *gorm.DB, uniqueName, newDigest, previousDigest string) error {
	res := db.WithContext(ctx).
		Model(&domain.Feed{}).
		Where("unique_name = ? AND digest = ?", uniqueName, previousDigest).
		Updates(map[string]any{"digest": newDigest, "closed": newDigest == ""})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrStaleDigest
	}
	return nil
}

// CloseFeed marks uniqueName as having no further pages, guarded by the same
// digest check as UpdateFeedDigest.
func CloseFeed(ctx context.Context, db *gorm.DB, uniqueName, previousDigest string) error {
	return UpdateFeedDigest(ctx, db, uniqueName, "", previousDigest)
}

// DeleteFeed removes the stored feed row for id; relations cascade.
// Reports whether a row was removed.
func DeleteFeed(ctx context.Context, db *gorm.DB, id feedid.Identifier) (bool, error) {
	res := db.WithContext(ctx).Where("unique_name = ?", id.Serialize()).Delete(&domain.Feed{})
	return res.RowsAffected == 1, res.Error
}

// MaxIndexInFeed returns the highest index_in_feed in the feed, 0 when the
// feed has no relations.
func MaxIndexInFeed(ctx context.Context, db *gorm.DB, feedID uint) (int, error) {
	return aggregateIndex(ctx, db, feedID, "MAX")
}

// MinIndexInFeed returns the lowest index_in_feed in the feed, 0 when the
// feed has no relations.
func MinIndexInFeed(ctx context.Context, db *gorm.DB, feedID uint) (int, error) {
	return aggregateIndex(ctx, db, feedID, "MIN")
}

func aggregateIndex(ctx context.Context, db *gorm.DB, feedID uint, fn string) (int, error) {
	var idx *int
	err := db.WithContext(ctx).
		Model(&domain.FeedItem{}).
		Select(fn+"(index_in_feed)").
		Where("feed_id = ?", feedID).
		Scan(&idx).Error
	if err != nil || idx == nil {
		return 0, err
	}
	return *idx, nil
}

// UpsertGfycat writes the full item record, inserting or overwriting by
// item id.
func UpsertGfycat(ctx context.Context, db *gorm.DB, g domain.Gfycat) error {
	res := db.WithContext(ctx).
		Model(&domain.Gfycat{}).
		Where("gfy_id = ?", g.ID).
		Select("*").
		Updates(&g)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.WithContext(ctx).Create(&g).Error
	}
	return nil
}

// InsertRelation links gfyID into feedID at the given index. When the
// relation already exists it is kept as-is, unless replace is set, in which
// case it is re-inserted at the new index (used for prepended items so a
// re-surfacing item moves to the front).
func InsertRelation(ctx context.Context, db *gorm.DB, feedID uint, gfyID string, index int, replace bool) error {
	var existing domain.FeedItem
	err := db.WithContext(ctx).
		Where("feed_id = ? AND gfy_id = ?", feedID, gfyID).
		First(&existing).Error
	switch {
	case err == nil:
		if !replace {
			return nil
		}
		if err := db.WithContext(ctx).Delete(&existing).Error; err != nil {
			return err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return db.WithContext(ctx).Create(&domain.FeedItem{
		FeedID:      feedID,
		GfycatID:    gfyID,
		IndexInFeed: index,
	}).Error
}

// RemoveRelation unlinks gfyID from feedID without touching the item row.
func RemoveRelation(ctx context.Context, db *gorm.DB, feedID uint, gfyID string) error {
	return db.WithContext(ctx).
		Where("feed_id = ? AND gfy_id = ?", feedID, gfyID).
		Delete(&domain.FeedItem{}).Error
}

// SaveFeedPage writes one page of content into feedID: forward items are
// appended with indices continuing up from the current maximum, newer items
// are prepended with indices counting down from the current minimum (and
// re-anchored to the front if already present).
func SaveFeedPage(ctx context.Context, db *gorm.DB, feedID uint, page domain.GfycatList) error {
	maxIdx, err := MaxIndexInFeed(ctx, db, feedID)
	if err != nil {
		return err
	}
	minIdx, err := MinIndexInFeed(ctx, db, feedID)
	if err != nil {
		return err
	}

	next := maxIdx
	for _, g := range page.Gfycats {
		next++
		if err := saveFeedItem(ctx, db, feedID, g, next, false); err != nil {
			return err
		}
	}

	prev := minIdx
	for _, g := range page.NewGfycats {
		prev--
		if err := saveFeedItem(ctx, db, feedID, g, prev, true); err != nil {
			return err
		}
	}
	return nil
}

func saveFeedItem(ctx context.Context, db *gorm.DB, feedID uint, g domain.Gfycat, index int, replace bool) error {
	if err := UpsertGfycat(ctx, db, g); err != nil {
		return err
	}
	return InsertRelation(ctx, db, feedID, g.ID, index, replace)
}

// FeedUnchanged reports whether the stored feed already matches the first
// page: the page carries no prepended items, the stored row is younger than
// maxAge, and the page items form a prefix of the stored relation in the
// same order. Used to suppress redundant full reloads when the cached
// digest is still current.
func FeedUnchanged(ctx context.Context, db *gorm.DB, uniqueName string, page domain.GfycatList, maxAge time.Duration) (bool, error) {
	if len(page.NewGfycats) > 0 {
		return false, nil
	}

	feed, err := GetFeed(ctx, db, uniqueName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if maxAge > 0 && time.Since(feed.CreatedAt) > maxAge {
		return false, nil
	}
	if feed.Digest != page.NextPart() {
		return false, nil
	}

	var storedIDs []string
	err = db.WithContext(ctx).
		Model(&domain.FeedItem{}).
		Select("gfy_id").
		Where("feed_id = ?", feed.ID).
		Order("index_in_feed").
		Scan(&storedIDs).Error
	if err != nil {
		return false, err
	}
	if len(storedIDs) < len(page.Gfycats) {
		return false, nil
	}
	for i, g := range page.Gfycats {
		if storedIDs[i] != g.ID {
			return false, nil
		}
	}
	return true, nil
}
