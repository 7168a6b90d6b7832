package handlers

// Handlers groups HTTP endpoints for feeds, categories, media, and
// moderation. It depends on abstract service interfaces to keep transport
// concerns separate from the cache logic.
type Handlers struct {
	feedSvc  FeedService
	catSvc   CategoriesService
	mediaSvc MediaService
	modSvc   ModerationService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(feedSvc FeedService, catSvc CategoriesService, mediaSvc MediaService, modSvc ModerationService) *Handlers {
	return &Handlers{feedSvc: feedSvc, catSvc: catSvc, mediaSvc: mediaSvc, modSvc: modSvc}
}
