package feedid

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter parameter names and their valid ranges.
const (
	paramMinLength      = "minLength"
	paramMaxLength      = "maxLength"
	paramMinAspectRatio = "minAspectRatio"
	paramMaxAspectRatio = "maxAspectRatio"
	paramContentRating  = "contentRating"

	MinLengthValue      = 0.0
	MaxLengthValue      = 60.0
	MinAspectRatioValue = 0.1
	MaxAspectRatioValue = 10.0
)

// ContentRating limits feed content to items rated at or below the value.
type ContentRating string

// Content ratings in ascending order of restriction.
const (
	RatingG    ContentRating = "G"
	RatingPG   ContentRating = "PG"
	RatingPG13 ContentRating = "PG-13"
	RatingR    ContentRating = "R"
)

// parameterizableTypes are the feed types that accept filter parameters.
var parameterizableTypes = map[Type]bool{
	TypeSearch:        true,
	TypeSoundSearch:   true,
	TypeSoundTrending: true,
}

// SupportsParameters reports whether id accepts filter parameters.
func SupportsParameters(id Identifier) bool {
	_, isPublic := id.(Public)
	return isPublic && parameterizableTypes[id.Type()]
}

// ParameterizedBuilder derives a filtered identifier from a base search or
// sound feed. Out-of-range values are clamped, not rejected.
type ParameterizedBuilder struct {
	base Public
}

// NewParameterizedBuilder starts a builder from base, which must be one of
// the search, sound-search or sound-trending feeds.
func NewParameterizedBuilder(base Identifier) (*ParameterizedBuilder, error) {
	pub, ok := base.(Public)
	if !ok || !parameterizableTypes[base.Type()] {
		return nil, fmt.Errorf("feedid: feed type %q does not support parameters", base.Type())
	}
	clone := Public{feedType: pub.feedType, path: pub.path, params: cloneValues(pub.params)}
	return &ParameterizedBuilder{base: clone}, nil
}

// WithMinAspectRatio keeps only items with aspect ratio above v,
// clamped to [0.1, 10].
func (b *ParameterizedBuilder) WithMinAspectRatio(v float64) *ParameterizedBuilder {
	b.base.params.Set(paramMinAspectRatio, formatAspect(clamp(v, MinAspectRatioValue, MaxAspectRatioValue)))
	return b
}

// WithMaxAspectRatio keeps only items with aspect ratio below v,
// clamped to [0.1, 10].
func (b *ParameterizedBuilder) WithMaxAspectRatio(v float64) *ParameterizedBuilder {
	b.base.params.Set(paramMaxAspectRatio, formatAspect(clamp(v, MinAspectRatioValue, MaxAspectRatioValue)))
	return b
}

// WithMinLength keeps only items longer than v seconds, clamped to [0, 60].
func (b *ParameterizedBuilder) WithMinLength(v float64) *ParameterizedBuilder {
	b.base.params.Set(paramMinLength, formatLength(clamp(v, MinLengthValue, MaxLengthValue)))
	return b
}

// WithMaxLength keeps only items shorter than v seconds, clamped to [0, 60].
func (b *ParameterizedBuilder) WithMaxLength(v float64) *ParameterizedBuilder {
	b.base.params.Set(paramMaxLength, formatLength(clamp(v, MinLengthValue, MaxLengthValue)))
	return b
}

// WithContentRating keeps only items rated at or below rating.
func (b *ParameterizedBuilder) WithContentRating(rating ContentRating) *ParameterizedBuilder {
	b.base.params.Set(paramContentRating, string(rating))
	return b
}

// Build returns the parameterized identifier.
func (b *ParameterizedBuilder) Build() Public { return b.base }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// formatAspect renders aspect ratios with at most three decimal places.
func formatAspect(v float64) string { return formatDecimal(v, 3) }

// formatLength renders lengths with at most two decimal places.
func formatLength(v float64) string { return formatDecimal(v, 2) }

func formatDecimal(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func cloneValues(src map[string][]string) map[string][]string {
	dst := make(map[string][]string, len(src))
	for k, vs := range src {
		dst[k] = append([]string(nil), vs...)
	}
	return dst
}
