// Package feedid defines the value types that name logical content feeds.
//
// An Identifier is immutable, compared by value, and serializes to a unique
// scheme-prefixed string token that parses back losslessly:
//
//	public://gfycats/trending
//	public://gfycats/search?name=cats&search_text=cats
//	recent://recent
//	single:SomeGfyId
//
// Optional filter parameters (content rating, aspect ratio and length
// bounds) are appended as query parameters by ParameterizedBuilder, each
// clamped to its valid range before encoding.
package feedid

import (
	"fmt"
	"net/url"
	"strings"
)

// Type names the kind of feed an Identifier points to.
type Type string

// Feed types.
const (
	TypeTrending      Type = "trending"
	TypeTag           Type = "tag"
	TypeSearch        Type = "search"
	TypeReactions     Type = "reactions"
	TypeUser          Type = "user"
	TypeMe            Type = "me"
	TypeSoundTrending Type = "sound_trending"
	TypeSoundSearch   Type = "sound_search"
	TypeRecent        Type = "recent"
	TypeSingle        Type = "single"
)

// Identifier uniquely names a logical feed. Implementations are immutable;
// two identifiers are the same feed iff their Serialize results are equal.
type Identifier interface {
	// Type returns the feed kind.
	Type() Type
	// Name returns the human-meaningful component of the identifier
	// (search text, tag, username), empty for unnamed feeds.
	Name() string
	// Serialize returns the unique string token. Parse(Serialize()) must
	// reproduce an identifier with the identical token.
	Serialize() string
}

const publicScheme = "public"

// API endpoint paths carried inside public identifiers.
const (
	trendingEndpoint    = "gfycats/trending"
	searchEndpoint      = "gfycats/search"
	soundEndpoint       = "sound"
	soundSearchEndpoint = "sound/search"
	reactionsEndpoint   = "reactions/populated"
	meEndpoint          = "me/gfycats"

	// Username is carried as a query parameter so the path stays fixed.
	userEndpoint = "users/gfycats"
)

// Query parameter names used inside identifier tokens.
const (
	paramName       = "name"
	paramTag        = "tagName"
	paramSearchText = "search_text"
	paramUsername   = "username"
)

// Public is a feed identifier for remotely served feeds. The zero value is
// not valid; use the constructors or Parse.
type Public struct {
	feedType Type
	path     string
	params   url.Values
}

// Trending returns the identifier of the global trending feed.
func Trending() Public {
	return Public{feedType: TypeTrending, path: trendingEndpoint, params: url.Values{}}
}

// SoundTrending returns the identifier of the trending-with-sound feed.
func SoundTrending() Public {
	return Public{feedType: TypeSoundTrending, path: soundEndpoint, params: url.Values{}}
}

// Me returns the identifier of the signed-in user's own feed.
func Me() Public {
	return Public{feedType: TypeMe, path: meEndpoint, params: url.Values{}}
}

// FromTagName returns the identifier of the feed for one tag.
func FromTagName(tag string) Public {
	return Public{feedType: TypeTag, path: trendingEndpoint, params: namedParams(paramTag, tag)}
}

// FromSearch returns the identifier of a search feed.
func FromSearch(query string) Public {
	return Public{feedType: TypeSearch, path: searchEndpoint, params: namedParams(paramSearchText, query)}
}

// FromSoundSearch returns the identifier of a sound search feed.
func FromSoundSearch(query string) Public {
	return Public{feedType: TypeSoundSearch, path: soundSearchEndpoint, params: namedParams(paramSearchText, query)}
}

// FromReaction returns the identifier of a reactions feed.
func FromReaction(reaction string) Public {
	return Public{feedType: TypeReactions, path: reactionsEndpoint, params: namedParams(paramTag, reaction)}
}

// FromUsername returns the identifier of one user's timeline.
func FromUsername(username string) Public {
	return Public{feedType: TypeUser, path: userEndpoint, params: namedParams(paramUsername, username)}
}

func namedParams(key, value string) url.Values {
	v := url.Values{}
	v.Set(paramName, value)
	v.Set(key, value)
	return v
}

// Type implements Identifier.
func (p Public) Type() Type { return p.feedType }

// Name implements Identifier.
func (p Public) Name() string { return p.params.Get(paramName) }

// Serialize implements Identifier. url.Values.Encode sorts parameters by
// key, so the token is canonical and stable across round trips.
func (p Public) Serialize() string {
	token := publicScheme + "://" + p.path
	if encoded := p.params.Encode(); encoded != "" {
		token += "?" + encoded
	}
	return token
}

// MarshalJSON encodes the identifier as its serialized token.
func (p Public) MarshalJSON() ([]byte, error) { return tokenJSON(p) }

// RequestPath returns the remote API path and query for this feed. The
// identifier-internal bookkeeping parameter "name" is stripped.
func (p Public) RequestPath() (string, url.Values) {
	q := url.Values{}
	for k, vs := range p.params {
		if k == paramName {
			continue
		}
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return p.path, q
}

// Recent is the identifier of the local recent-items feed. It has no remote
// counterpart.
type Recent struct{}

// Type implements Identifier.
func (Recent) Type() Type { return TypeRecent }

// Name implements Identifier.
func (Recent) Name() string { return string(TypeRecent) }

// Serialize implements Identifier.
func (Recent) Serialize() string { return "recent://recent" }

// MarshalJSON encodes the identifier as its serialized token.
func (r Recent) MarshalJSON() ([]byte, error) { return tokenJSON(r) }

// Single identifies the one-item feed of a single gfycat.
type Single struct {
	GfyID string
}

// FromSingleItem returns the identifier of the single-item feed for gfyID.
func FromSingleItem(gfyID string) Single { return Single{GfyID: gfyID} }

// Type implements Identifier.
func (Single) Type() Type { return TypeSingle }

// Name implements Identifier.
func (s Single) Name() string { return s.GfyID }

// Serialize implements Identifier.
func (s Single) Serialize() string { return string(TypeSingle) + ":" + s.GfyID }

// MarshalJSON encodes the identifier as its serialized token.
func (s Single) MarshalJSON() ([]byte, error) { return tokenJSON(s) }

func tokenJSON(id Identifier) ([]byte, error) {
	return []byte(`"` + id.Serialize() + `"`), nil
}

// Parse reconstructs an Identifier from its serialized token. It is the
// inverse of Serialize for every identifier produced by this package.
func Parse(token string) (Identifier, error) {
	switch {
	case strings.HasPrefix(token, publicScheme+"://"):
		return parsePublic(token)
	case token == (Recent{}).Serialize():
		return Recent{}, nil
	case strings.HasPrefix(token, string(TypeSingle)+":"):
		gfyID := strings.TrimPrefix(token, string(TypeSingle)+":")
		if gfyID == "" {
			return nil, fmt.Errorf("feedid: single token %q has no item id", token)
		}
		return Single{GfyID: gfyID}, nil
	default:
		return nil, fmt.Errorf("feedid: unsupported token %q", token)
	}
}

func parsePublic(token string) (Identifier, error) {
	rest := strings.TrimPrefix(token, publicScheme+"://")
	path := rest
	params := url.Values{}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		path = rest[:i]
		var err error
		if params, err = url.ParseQuery(rest[i+1:]); err != nil {
			return nil, fmt.Errorf("feedid: malformed token %q: %w", token, err)
		}
	}

	feedType, err := resolveType(path, params)
	if err != nil {
		return nil, err
	}
	return Public{feedType: feedType, path: path, params: params}, nil
}

func resolveType(path string, params url.Values) (Type, error) {
	switch {
	case path == soundEndpoint:
		return TypeSoundTrending, nil
	case path == soundSearchEndpoint && params.Get(paramSearchText) != "":
		return TypeSoundSearch, nil
	case path == searchEndpoint && params.Get(paramSearchText) != "":
		return TypeSearch, nil
	case path == reactionsEndpoint && params.Get(paramTag) != "":
		return TypeReactions, nil
	case path == trendingEndpoint && params.Get(paramTag) != "":
		return TypeTag, nil
	case path == trendingEndpoint:
		return TypeTrending, nil
	case path == meEndpoint:
		return TypeMe, nil
	case path == userEndpoint && params.Get(paramUsername) != "":
		return TypeUser, nil
	default:
		return "", fmt.Errorf("feedid: cannot resolve feed type from path %q", path)
	}
}
