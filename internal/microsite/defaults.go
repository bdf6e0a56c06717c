package microsite

// Content field keys. The fallback tables below are the single place the
// per-variant default copy lives; rendering never hardcodes a literal.
const (
	FieldHeroTitle       = "hero_title"
	FieldHeroDescription = "hero_description"
	FieldHeroCTAText     = "hero_cta_text"
	FieldHeroCTALink     = "hero_cta_link"
	FieldHeroImage       = "hero_image_url"
	FieldGridItemTitle   = "grid_item_title"
	FieldGridItemLink    = "grid_item_link"
	FieldGridItemImage   = "grid_item_image_url"
)

var defaultContent = map[Variant]map[string]string{
	VariantFood: {
		FieldHeroTitle:       "Taste the best deals in town",
		FieldHeroDescription: "Fresh offers from your favourite restaurants and food brands, updated daily.",
		FieldHeroCTAText:     "Browse offers",
		FieldHeroCTALink:     "/offers",
		FieldHeroImage:       "https://cdn.droffers.app/defaults/food-hero.jpg",
		FieldGridItemTitle:   "Today's tasty pick",
		FieldGridItemLink:    "/offers?category=food",
		FieldGridItemImage:   "https://cdn.droffers.app/defaults/food-tile.jpg",
	},
	VariantFashion: {
		FieldHeroTitle:       "Style for less",
		FieldHeroDescription: "Seasonal drops and outlet prices from the brands you follow.",
		FieldHeroCTAText:     "Shop the looks",
		FieldHeroCTALink:     "/offers",
		FieldHeroImage:       "https://cdn.droffers.app/defaults/fashion-hero.jpg",
		FieldGridItemTitle:   "Fresh off the rack",
		FieldGridItemLink:    "/offers?category=fashion",
		FieldGridItemImage:   "https://cdn.droffers.app/defaults/fashion-tile.jpg",
	},
	VariantElectronics: {
		FieldHeroTitle:       "Power up your savings",
		FieldHeroDescription: "Gadgets, appliances and accessories at their lowest tracked prices.",
		FieldHeroCTAText:     "See the deals",
		FieldHeroCTALink:     "/offers",
		FieldHeroImage:       "https://cdn.droffers.app/defaults/electronics-hero.jpg",
		FieldGridItemTitle:   "Deal of the day",
		FieldGridItemLink:    "/offers?category=electronics",
		FieldGridItemImage:   "https://cdn.droffers.app/defaults/electronics-tile.jpg",
	},
}

// DefaultFor returns the literal fallback for a content field of a variant.
func DefaultFor(v Variant, field string) string {
	if table, ok := defaultContent[v]; ok {
		return table[field]
	}
	return ""
}
