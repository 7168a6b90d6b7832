package services

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/gfycat/feedcore/internal/categories"
	"github.com/gfycat/feedcore/internal/domain"
)

// CategoriesAPI is the remote surface the categories service depends on.
type CategoriesAPI interface {
	Categories(ctx context.Context, locale language.Tag) (*domain.CategoriesList, error)
}

// CategoriesService serves the curated category list cached-then-fresh: a
// usable cached copy is delivered immediately, and a remote refresh follows
// whenever the copy is stale. Concurrent refreshes are coalesced.
type CategoriesService struct {
	cache  *categories.Cache
	api    CategoriesAPI
	locale language.Tag
	log    zerolog.Logger

	group singleflight.Group
}

// NewCategoriesService constructs a CategoriesService fetching lists for
// the given locale.
func NewCategoriesService(cache *categories.Cache, api CategoriesAPI, locale language.Tag, log zerolog.Logger) *CategoriesService {
	return &CategoriesService{
		cache:  cache,
		api:    api,
		locale: locale,
		log:    log.With().Str("component", "categories-service").Logger(),
	}
}

type refreshResult struct {
	list    domain.CategoriesList
	changed bool
}

// GetCategories streams category lists: the cached list first when one is
// usable, then the refreshed list when the refresh produced a change or
// nothing was emitted yet. The channel is closed when done; a refresh
// failure after a successful cached emission is logged, not surfaced.
func (s *CategoriesService) GetCategories(ctx context.Context) <-chan domain.CategoriesList {
	out := make(chan domain.CategoriesList, 2)
	go func() {
		defer close(out)

		cached, stale, ok, err := s.cache.Get()
		if err != nil {
			s.log.Warn().Err(err).Msg("reading cached categories")
		}
		emitted := false
		if ok {
			select {
			case out <- cached:
				emitted = true
			case <-ctx.Done():
				return
			}
			if !stale {
				return
			}
		}

		res, err := s.refresh(ctx)
		if err != nil {
			if !emitted {
				s.log.Error().Err(err).Msg("refreshing categories with no cached copy")
			} else {
				s.log.Warn().Err(err).Msg("refreshing categories, serving cached copy only")
			}
			return
		}
		if res.changed || !emitted {
			select {
			case out <- res.list:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// refresh fetches the list once for all concurrent callers and stores it.
func (s *CategoriesService) refresh(ctx context.Context) (refreshResult, error) {
	v, err, _ := s.group.Do("categories", func() (any, error) {
		categoriesRefreshes.Inc()
		list, err := s.api.Categories(ctx, s.locale)
		if err != nil {
			return refreshResult{}, err
		}
		filtered := filterCategories(*list)
		changed, err := s.cache.Update(filtered)
		if err != nil {
			return refreshResult{}, err
		}
		return refreshResult{list: filtered, changed: changed}, nil
	})
	if err != nil {
		return refreshResult{}, err
	}
	return v.(refreshResult), nil
}

// DropCategories discards the cached list.
func (s *CategoriesService) DropCategories() error {
	return s.cache.Drop()
}

// filterCategories removes entries the server returned without a tag.
func filterCategories(list domain.CategoriesList) domain.CategoriesList {
	tags := make([]domain.Category, 0, len(list.Tags))
	for _, c := range list.Tags {
		if c.IsValid() {
			tags = append(tags, c)
		}
	}
	list.Tags = tags
	return list
}
