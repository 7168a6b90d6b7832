package feedid

import (
	"encoding/json"
	"testing"
)

func TestSerialize_KnownTokens(t *testing.T) {
	cases := []struct {
		name string
		id   Identifier
		want string
	}{
		{"trending", Trending(), "public://gfycats/trending"},
		{"sound trending", SoundTrending(), "public://sound"},
		{"me", Me(), "public://me/gfycats"},
		{"tag", FromTagName("cats"), "public://gfycats/trending?name=cats&tagName=cats"},
		{"search", FromSearch("space cats"), "public://gfycats/search?name=space+cats&search_text=space+cats"},
		{"sound search", FromSoundSearch("boom"), "public://sound/search?name=boom&search_text=boom"},
		{"reaction", FromReaction("lol"), "public://reactions/populated?name=lol&tagName=lol"},
		{"user", FromUsername("alice"), "public://users/gfycats?name=alice&username=alice"},
		{"recent", Recent{}, "recent://recent"},
		{"single", FromSingleItem("FunnyDog"), "single:FunnyDog"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.id.Serialize(); got != tc.want {
				t.Fatalf("Serialize() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	ids := []Identifier{
		Trending(),
		SoundTrending(),
		Me(),
		FromTagName("cats"),
		FromSearch("space cats"),
		FromSoundSearch("boom"),
		FromReaction("lol"),
		FromUsername("alice"),
		Recent{},
		FromSingleItem("FunnyDog"),
	}
	for _, id := range ids {
		token := id.Serialize()
		parsed, err := Parse(token)
		if err != nil {
			t.Fatalf("Parse(%q): %v", token, err)
		}
		if parsed.Serialize() != token {
			t.Errorf("round trip %q -> %q", token, parsed.Serialize())
		}
		if parsed.Type() != id.Type() {
			t.Errorf("Parse(%q).Type() = %q; want %q", token, parsed.Type(), id.Type())
		}
		if parsed.Name() != id.Name() {
			t.Errorf("Parse(%q).Name() = %q; want %q", token, parsed.Name(), id.Name())
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	bad := []string{
		"",
		"ftp://gfycats/trending",
		"public://nope/nope",
		"public://gfycats/search", // search without search_text
		"single:",
		"recent://other",
	}
	for _, token := range bad {
		if _, err := Parse(token); err == nil {
			t.Errorf("Parse(%q) succeeded; want error", token)
		}
	}
}

func TestPublic_RequestPath_StripsName(t *testing.T) {
	path, q := FromSearch("cats").RequestPath()
	if path != "gfycats/search" {
		t.Fatalf("path = %q; want gfycats/search", path)
	}
	if q.Get("name") != "" {
		t.Errorf("request query still carries name: %v", q)
	}
	if q.Get("search_text") != "cats" {
		t.Errorf("search_text = %q; want cats", q.Get("search_text"))
	}
}

func TestMarshalJSON_EmitsToken(t *testing.T) {
	b, err := json.Marshal(FromTagName("cats"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `"public://gfycats/trending?name=cats&tagName=cats"`
	if string(b) != want {
		t.Fatalf("json = %s; want %s", b, want)
	}
}

func TestSupportsParameters(t *testing.T) {
	if !SupportsParameters(FromSearch("x")) || !SupportsParameters(SoundTrending()) || !SupportsParameters(FromSoundSearch("x")) {
		t.Error("search and sound feeds must support parameters")
	}
	if SupportsParameters(Trending()) || SupportsParameters(Recent{}) || SupportsParameters(FromSingleItem("a")) {
		t.Error("non-search feeds must not support parameters")
	}
}

func TestParameterizedBuilder_ClampsAndFormats(t *testing.T) {
	b, err := NewParameterizedBuilder(FromSearch("cats"))
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	id := b.
		WithMinAspectRatio(0.01). // below range -> 0.1
		WithMaxAspectRatio(42).   // above range -> 10
		WithMinLength(-5).        // below range -> 0
		WithMaxLength(12.5).      // in range, trailing zeros trimmed
		WithContentRating(RatingPG13).
		Build()

	token := id.Serialize()
	parsed, perr := Parse(token)
	if perr != nil {
		t.Fatalf("Parse(%q): %v", token, perr)
	}
	if parsed.Serialize() != token {
		t.Fatalf("parameterized round trip %q -> %q", token, parsed.Serialize())
	}

	pub := parsed.(Public)
	_, q := pub.RequestPath()
	checks := map[string]string{
		"minAspectRatio": "0.1",
		"maxAspectRatio": "10",
		"minLength":      "0",
		"maxLength":      "12.5",
		"contentRating":  "PG-13",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("param %s = %q; want %q", k, got, want)
		}
	}
}

func TestParameterizedBuilder_BoundaryValuesPassThrough(t *testing.T) {
	b, _ := NewParameterizedBuilder(SoundTrending())
	id := b.WithMinAspectRatio(MinAspectRatioValue).WithMaxLength(MaxLengthValue).Build()
	_, q := id.RequestPath()
	if got := q.Get("minAspectRatio"); got != "0.1" {
		t.Errorf("minAspectRatio = %q; want 0.1", got)
	}
	if got := q.Get("maxLength"); got != "60" {
		t.Errorf("maxLength = %q; want 60", got)
	}
}

func TestParameterizedBuilder_RejectsUnparameterizable(t *testing.T) {
	for _, id := range []Identifier{Trending(), FromTagName("x"), Recent{}} {
		if _, err := NewParameterizedBuilder(id); err == nil {
			t.Errorf("builder accepted %q; want error", id.Serialize())
		}
	}
}

func TestParameterizedBuilder_DoesNotMutateBase(t *testing.T) {
	base := FromSearch("cats")
	before := base.Serialize()
	b, _ := NewParameterizedBuilder(base)
	b.WithMinLength(10).Build()
	if base.Serialize() != before {
		t.Fatalf("builder mutated base: %q -> %q", before, base.Serialize())
	}
}

func TestFormatDecimal(t *testing.T) {
	cases := []struct {
		v    float64
		prec int
		want string
	}{
		{0.1, 3, "0.1"},
		{10, 3, "10"},
		{0, 2, "0"},
		{12.25, 2, "12.25"},
		{59.999, 2, "60"},
		{1.5, 3, "1.5"},
	}
	for _, tc := range cases {
		if got := formatDecimal(tc.v, tc.prec); got != tc.want {
			t.Errorf("formatDecimal(%v, %d) = %q; want %q", tc.v, tc.prec, got, tc.want)
		}
	}
}
