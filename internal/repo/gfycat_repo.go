// Package repo implements the persistent feed cache, backed by GORM. This
// file provides repository functions for individual item records and the
// block lists.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/gfycat/feedcore/internal/domain"
)

// GetGfycat fetches the stored item record for gfyID, or ErrNotFound.
func GetGfycat(ctx context.Context, db *gorm.DB, gfyID string) (*domain.Gfycat, error) {
	var g domain.Gfycat
	if err := db.WithContext(ctx).Where("gfy_id = ?", gfyID).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// SetGfycatFlag idempotently sets one boolean column of an item record.
// Returns ErrNotFound when the item is not stored.
func SetGfycatFlag(ctx context.Context, db *gorm.DB, gfyID, column string, value bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Gfycat{}).
		Where("gfy_id = ?", gfyID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkDeleted flips the deleted flag of an item. Deleted items are excluded
// from every feed read but the row is retained.
func MarkDeleted(ctx context.Context, db *gorm.DB, gfyID string, deleted bool) error {
	return SetGfycatFlag(ctx, db, gfyID, "deleted", deleted)
}

// MarkPublished flips the published flag of an item.
func MarkPublished(ctx context.Context, db *gorm.DB, gfyID string, published bool) error {
	return SetGfycatFlag(ctx, db, gfyID, "published", published)
}

// MarkNsfw flips the nsfw flag of an item.
func MarkNsfw(ctx context.Context, db *gorm.DB, gfyID string, nsfw bool) error {
	return SetGfycatFlag(ctx, db, gfyID, "nsfw", nsfw)
}

// BlockGfycat adds (block) or removes (unblock) gfyID on the item block
// list. Blocking an already-blocked item is a no-op.
func BlockGfycat(ctx context.Context, db *gorm.DB, gfyID string, block bool) error {
	if block {
		err := db.WithContext(ctx).Create(&domain.BlockedGfycat{GfycatID: gfyID}).Error
		if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return db.WithContext(ctx).Delete(&domain.BlockedGfycat{GfycatID: gfyID}).Error
}

// BlockUser adds (block) or removes (unblock) userName on the user block
// list. Blocking an already-blocked user is a no-op.
func BlockUser(ctx context.Context, db *gorm.DB, userName string, block bool) error {
	if block {
		err := db.WithContext(ctx).Create(&domain.BlockedUser{UserName: userName}).Error
		if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return db.WithContext(ctx).Delete(&domain.BlockedUser{UserName: userName}).Error
}
