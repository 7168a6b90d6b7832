// Package domain defines the persistence models for cached feed content.
// These types are mapped with GORM and form the core data layer of the
// feed cache: items are stored once, feeds reference them through an
// ordered relation table, and block lists suppress content on read.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList stores a slice of strings as a JSON-encoded TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// Gfycat represents a single content record. Identity is the stable item id;
// a row is written once per item and shared by every feed that references it.
//
// The deleted/published/nsfw flags are mutated idempotently by moderation
// operations and are independent of any feed relation.
type Gfycat struct {
	ID              string     `json:"gfyId"           gorm:"column:gfy_id;primaryKey"`
	Name            string     `json:"gfyName"         gorm:"column:gfy_name"`
	UserName        string     `json:"userName"        gorm:"index"`
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	MP4URL          string     `json:"mp4Url"`
	GifURL          string     `json:"gifUrl"`
	WebpURL         string     `json:"webpUrl"`
	PosterURL       string     `json:"posterUrl"`
	Tags            StringList `json:"tags"            gorm:"type:text"`
	CreateDate      int64      `json:"createDate"`
	AvgColor        string     `json:"avgColor"`
	HasTransparency bool       `json:"hasTransparency"`
	HasAudio        bool       `json:"hasAudio"`
	ContentRating   string     `json:"contentRating"`
	FrameRate       float64    `json:"frameRate"`
	NumFrames       int        `json:"numFrames"`
	Nsfw            bool       `json:"nsfw"`
	Published       bool       `json:"published"`
	Deleted         bool       `json:"-"`
}

// TableName returns the database table name for Gfycat.
func (Gfycat) TableName() string { return "gfycats" }

// Feed is the stored pagination state of one logical feed. UniqueName is the
// serialized feed identifier; Digest is the continuation token returned by
// the most recent successful fetch. An empty digest with Closed set means no
// further pages exist.
type Feed struct {
	ID         uint      `gorm:"primaryKey"`
	UniqueName string    `gorm:"uniqueIndex;not null"`
	Digest     string    `gorm:"not null;default:''"`
	Closed     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

// TableName returns the database table name for Feed.
func (Feed) TableName() string { return "feeds" }

// FeedItem links a feed to an item. Ordering within a feed is fully
// determined by IndexInFeed: appended pages continue upward from the current
// maximum, prepended items (the recent feed) count downward from the current
// minimum, so existing rows never need renumbering.
type FeedItem struct {
	ID          uint   `gorm:"primaryKey"`
	FeedID      uint   `gorm:"not null;index;uniqueIndex:ux_feed_item,priority:1"`
	GfycatID    string `gorm:"column:gfy_id;not null;uniqueIndex:ux_feed_item,priority:2"`
	IndexInFeed int    `gorm:"not null"`

	Feed Feed `gorm:"foreignKey:FeedID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for FeedItem.
func (FeedItem) TableName() string { return "feed_items" }

// BlockedGfycat marks an item id whose content must never surface in reads.
type BlockedGfycat struct {
	GfycatID string `gorm:"column:gfy_id;primaryKey"`
}

// TableName returns the database table name for BlockedGfycat.
func (BlockedGfycat) TableName() string { return "blocked_gfycats" }

// BlockedUser marks a user whose items must never surface in reads.
type BlockedUser struct {
	UserName string `gorm:"primaryKey"`
}

// TableName returns the database table name for BlockedUser.
func (BlockedUser) TableName() string { return "blocked_users" }
