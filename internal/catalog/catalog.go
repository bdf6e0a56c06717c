// Package catalog exposes the browse and manage screens of the marketplace
// as a service: cached listings for visitors, cache-invalidating CRUD for
// brand owners.
package catalog

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"droffers.app/internal/api"
	"droffers.app/internal/cache"
)

// ErrBrandPending rejects edits to a brand still under moderation.
var ErrBrandPending = errors.New("catalog: brand pending review")

// Service serves brand/offer/template reads through the cache and routes
// mutations through the client, invalidating affected keys.
type Service struct {
	client *api.Client
	cache  *cache.Cache
}

// New creates a catalog service with a fresh cache.
func New(client *api.Client) *Service {
	return &Service{
		client: client,
		cache:  cache.New(cache.WithTTL(30 * time.Second)),
	}
}

// NewWithCache injects a cache (tests, custom TTLs).
func NewWithCache(client *api.Client, c *cache.Cache) *Service {
	return &Service{client: client, cache: c}
}

// brandPage pairs a brand listing with its total count for pagination.
type brandPage struct {
	Brands []api.Brand
	Total  int
}

type offerPage struct {
	Offers []api.Offer
	Total  int
}

// Brands returns a filtered brand listing. Distinct filter combinations are
// cached independently.
func (s *Service) Brands(ctx context.Context, filter api.BrandFilter) ([]api.Brand, int, error) {
	key := cache.Key("brands", filter.Values())
	page, err := cache.GetAs(ctx, s.cache, key, func(ctx context.Context) (brandPage, error) {
		brands, total, err := s.client.ListBrands(ctx, filter)
		if err != nil {
			return brandPage{}, err
		}
		return brandPage{Brands: brands, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Brands, page.Total, nil
}

// TopBrands returns the most viewed brands.
func (s *Service) TopBrands(ctx context.Context, limit int) ([]api.Brand, error) {
	key := cache.Key("brands/top", limitValues(limit))
	return cache.GetAs(ctx, s.cache, key, func(ctx context.Context) ([]api.Brand, error) {
		return s.client.TopBrands(ctx, limit)
	})
}

// Brand returns one brand by id.
func (s *Service) Brand(ctx context.Context, id string) (api.Brand, error) {
	return cache.GetAs(ctx, s.cache, "brands/"+id, func(ctx context.Context) (api.Brand, error) {
		return s.client.GetBrand(ctx, id)
	})
}

// CreateBrand registers a brand and invalidates brand listings.
func (s *Service) CreateBrand(ctx context.Context, fields map[string]any) (api.Brand, error) {
	brand, err := s.client.CreateBrand(ctx, fields)
	if err != nil {
		return api.Brand{}, err
	}
	s.cache.InvalidatePrefix("brands")
	return brand, nil
}

// UpdateBrand patches a brand and invalidates its cached reads. Brands still
// under moderation are read-only: the patch is rejected with ErrBrandPending
// before anything is sent.
func (s *Service) UpdateBrand(ctx context.Context, id string, patch map[string]any) (api.Brand, error) {
	current, err := s.Brand(ctx, id)
	if err != nil {
		return api.Brand{}, err
	}
	if current.Pending() {
		return api.Brand{}, ErrBrandPending
	}
	brand, err := s.client.UpdateBrand(ctx, id, patch)
	if err != nil {
		return api.Brand{}, err
	}
	s.cache.InvalidatePrefix("brands")
	return brand, nil
}

// Offers returns a filtered deal listing.
func (s *Service) Offers(ctx context.Context, filter api.OfferFilter) ([]api.Offer, int, error) {
	key := cache.Key("offers", filter.Values())
	page, err := cache.GetAs(ctx, s.cache, key, func(ctx context.Context) (offerPage, error) {
		offers, total, err := s.client.ListOffers(ctx, filter)
		if err != nil {
			return offerPage{}, err
		}
		return offerPage{Offers: offers, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Offers, page.Total, nil
}

// BestOffers returns the highest ranked deals.
func (s *Service) BestOffers(ctx context.Context, limit int) ([]api.Offer, error) {
	key := cache.Key("offers/best", limitValues(limit))
	return cache.GetAs(ctx, s.cache, key, func(ctx context.Context) ([]api.Offer, error) {
		return s.client.BestOffers(ctx, limit)
	})
}

// MyOffers returns the owner's offers, uncached: the dashboard always shows
// the latest state after its own mutations.
func (s *Service) MyOffers(ctx context.Context) ([]api.Offer, error) {
	return s.client.MyOffers(ctx)
}

// Offer returns one offer by id.
func (s *Service) Offer(ctx context.Context, id string) (api.Offer, error) {
	return cache.GetAs(ctx, s.cache, "offers/"+id, func(ctx context.Context) (api.Offer, error) {
		return s.client.GetOffer(ctx, id)
	})
}

// CreateOffer publishes an offer and invalidates offer listings.
func (s *Service) CreateOffer(ctx context.Context, fields map[string]any) (api.Offer, error) {
	offer, err := s.client.CreateOffer(ctx, fields)
	if err != nil {
		return api.Offer{}, err
	}
	s.cache.InvalidatePrefix("offers")
	return offer, nil
}

// UpdateOffer patches an offer and invalidates offer reads.
func (s *Service) UpdateOffer(ctx context.Context, id string, patch map[string]any) (api.Offer, error) {
	offer, err := s.client.UpdateOffer(ctx, id, patch)
	if err != nil {
		return api.Offer{}, err
	}
	s.cache.InvalidatePrefix("offers")
	return offer, nil
}

// DeleteOffer removes an offer and invalidates offer reads.
func (s *Service) DeleteOffer(ctx context.Context, id string) error {
	if err := s.client.DeleteOffer(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidatePrefix("offers")
	return nil
}

// MyTemplates returns the owner's templates, uncached for the same reason as
// MyOffers.
func (s *Service) MyTemplates(ctx context.Context) ([]api.Template, error) {
	return s.client.MyTemplates(ctx)
}

// CreateTemplate creates a template for a brand.
func (s *Service) CreateTemplate(ctx context.Context, brandID string) (api.Template, error) {
	tpl, err := s.client.CreateTemplate(ctx, brandID)
	if err != nil {
		return api.Template{}, err
	}
	s.cache.InvalidatePrefix("templates")
	return tpl, nil
}

// UpdateTemplate patches template content and invalidates cached micro-site
// reads for its brand.
func (s *Service) UpdateTemplate(ctx context.Context, patch map[string]any) (api.Template, error) {
	tpl, err := s.client.UpdateTemplate(ctx, patch)
	if err != nil {
		return api.Template{}, err
	}
	s.cache.InvalidatePrefix("templates")
	s.cache.InvalidatePrefix("brands")
	return tpl, nil
}

func limitValues(limit int) url.Values {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}
