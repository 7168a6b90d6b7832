package domain

import (
	"time"

	"github.com/gfycat/feedcore/internal/feedid"
)

// FeedDescription captures the pagination state of a feed at a point in
/// time: its identifier, the continuation digest, whether the feed is closed
// and when the stored feed row was created.
type FeedDescription struct {
	Identifier feedid.Identifier `json:"identifier"`
	Digest     string            `json:"digest"`
	Closed     bool              `json:"closed"`
	CreateTime time.Time         `json:"createTime"`
}

// EmptyFeedDescription returns the description used for feeds that have no
// stored data yet.
func EmptyFeedDescription(id feedid.Identifier) FeedDescription {
	return FeedDescription{Identifier: id}
}

// FeedData is an immutable snapshot of a feed: its description plus the
// ordered item list at the time of read. New snapshots are produced instead
// of mutating existing ones.
type FeedData struct {
	Description FeedDescription `json:"description"`
	Gfycats     []Gfycat        `json:"gfycats"`
}

// IsEmpty reports whether the snapshot carries no items.
func (d FeedData) IsEmpty() bool { return len(d.Gfycats) == 0 }

// Count returns the number of items in the snapshot.
func (d FeedData) Count() int { return len(d.Gfycats) }

// GfycatList is one page of feed content as returned by the remote API.
// Gfycats extend the feed forward, NewGfycats are newer items that prepend.
// The continuation token arrives as either "cursor" or "digest" depending on
// the endpoint.
type GfycatList struct {
	Gfycats      []Gfycat `json:"gfycats"`
	NewGfycats   []Gfycat `json:"newGfycats"`
	Cursor       string   `json:"cursor"`
	Digest       string   `json:"digest"`
	ErrorMessage string   `json:"errorMessage"`
}

// NextPart returns the continuation token for the following page, preferring
// the cursor field when both are present.
func (l GfycatList) NextPart() string {
	if l.Cursor != "" {
		return l.Cursor
	}
	return l.Digest
}

// IsEmpty reports whether the page carries no items in either direction.
func (l GfycatList) IsEmpty() bool {
	return len(l.Gfycats) == 0 && len(l.NewGfycats) == 0
}

// Category is one entry of the curated category list.
type Category struct {
	Tag     string   `json:"tag"`
	TagText string   `json:"tagText"`
	Gfycats []Gfycat `json:"gfycats"`
	Cursor  string   `json:"cursor"`
}

// IsValid reports whether the category is usable; the server occasionally
// returns entries without a tag.
func (c Category) IsValid() bool { return c.Tag != "" }

// CategoriesList is the full category listing with its continuation token.
type CategoriesList struct {
	Tags   []Category `json:"tags"`
	Digest string     `json:"digest"`
}

/// Equal compares two category lists by content: same digest, same tags in
// the same order with the same item counts.
func (l CategoriesList) Equal(other CategoriesList) bool {
	if l.Digest != other.Digest || len(l.Tags) != len(other.Tags) {
		return false
	}
	for i := range l.Tags {
		if l.Tags[i].Tag != other.Tags[i].Tag || len(l.Tags[i].Gfycats) != len(other.Tags[i].Gfycats) {
			return false
		}
	}
	return true
}
