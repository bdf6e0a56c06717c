// Package microsite resolves a brand slug into renderable public micro-site
// content: one current template, a category-specific layout variant, and a
// complete set of content fields with fallbacks applied.
package microsite

import (
	"context"
	"errors"
	"strings"
	"time"

	"droffers.app/internal/api"
	"droffers.app/internal/cache"
)

// ErrUnavailable means the micro-site cannot be rendered: the template fetch
// failed, the brand has no published template, or its category has no
// layout. Terminal — callers render the generic error page, no retry.
var ErrUnavailable = errors.New("microsite: unavailable")

// Variant selects one of the fixed public layouts.
type Variant string

const (
	VariantFood        Variant = "food"
	VariantFashion     Variant = "fashion"
	VariantElectronics Variant = "electronics"
)

// variantFor maps the brand's category to its layout. The dispatch follows
// the fetched category_type field; there is deliberately no default arm.
func variantFor(category string) (Variant, bool) {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case api.CategoryFood:
		return VariantFood, true
	case api.CategoryFashion:
		return VariantFashion, true
	case api.CategoryElectronics:
		return VariantElectronics, true
	default:
		return "", false
	}
}

// Hero is the resolved hero section.
type Hero struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CTAText     string   `json:"cta_text"`
	CTALink     string   `json:"cta_link"`
	ImageURLs   []string `json:"image_urls"`
}

// Tile is one resolved grid tile.
type Tile struct {
	Title     string   `json:"title"`
	Link      string   `json:"link"`
	ImageURLs []string `json:"image_urls"`
}

// Site is a fully resolved micro-site: every field is non-empty, with
// variant defaults substituted for unset template content.
type Site struct {
	BrandID   string  `json:"brand_id"`
	BrandName string  `json:"brand_name"`
	Slug      string  `json:"slug"`
	Variant   Variant `json:"variant"`
	Hero      Hero    `json:"hero"`
	Grid      []Tile  `json:"grid"`
}

// Resolver turns brand slugs into Sites. Resolved sites are cached briefly
// so a page-load burst does not hammer the templates endpoint.
type Resolver struct {
	client *api.Client
	cache  *cache.Cache
}

// NewResolver creates a resolver with a short-lived site cache.
func NewResolver(client *api.Client) *Resolver {
	return &Resolver{
		client: client,
		cache:  cache.New(cache.WithTTL(time.Minute)),
	}
}

// Resolve fetches the brand's published templates and builds the Site from
// the current (first returned) one.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Site, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrUnavailable
	}
	key := "microsite/" + slug
	site, err := cache.GetAs(ctx, r.cache, key, func(ctx context.Context) (*Site, error) {
		templates, err := r.client.BrandTemplates(ctx, slug)
		if err != nil {
			return nil, ErrUnavailable
		}
		if len(templates) == 0 {
			return nil, ErrUnavailable
		}
		return buildSite(slug, templates[0])
	})
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrUnavailable
	}
	return site, nil
}

// Invalidate drops the cached site for a slug (owner just republished).
func (r *Resolver) Invalidate(slug string) {
	r.cache.Invalidate("microsite/" + slug)
}

func buildSite(slug string, tpl api.Template) (*Site, error) {
	if tpl.Brand == nil {
		return nil, ErrUnavailable
	}
	variant, ok := variantFor(tpl.Brand.CategoryType)
	if !ok {
		return nil, ErrUnavailable
	}

	site := &Site{
		BrandID:   brandID(tpl),
		BrandName: tpl.Brand.BrandName,
		Slug:      slug,
		Variant:   variant,
		Hero: Hero{
			Title:       fallback(tpl.HeroTitle, variant, FieldHeroTitle),
			Description: fallback(tpl.HeroDescription, variant, FieldHeroDescription),
			CTAText:     fallback(tpl.HeroCTAText, variant, FieldHeroCTAText),
			CTALink:     fallback(tpl.HeroCTALink, variant, FieldHeroCTALink),
			ImageURLs:   imageChain(tpl.HeroImageURL, variant, FieldHeroImage),
		},
	}
	for _, item := range tpl.GridItems {
		site.Grid = append(site.Grid, Tile{
			Title:     fallback(item.Title, variant, FieldGridItemTitle),
			Link:      fallback(item.Link, variant, FieldGridItemLink),
			ImageURLs: imageChain(item.ImageURL, variant, FieldGridItemImage),
		})
	}
	return site, nil
}

func brandID(tpl api.Template) string {
	if tpl.BrandID != "" {
		return tpl.BrandID
	}
	if tpl.Brand != nil {
		return tpl.Brand.ID
	}
	return ""
}

func fallback(value string, v Variant, field string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return DefaultFor(v, field)
}

// imageChain returns the ordered source list for an image slot: the authored
// URL first when present, then the always-resolvable variant default. The
// renderer walks the chain on load failure, so a broken authored URL never
// reaches the visitor.
func imageChain(authored string, v Variant, field string) []string {
	def := DefaultFor(v, field)
	if strings.TrimSpace(authored) == "" {
		return []string{def}
	}
	return []string{authored, def}
}
