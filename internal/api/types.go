package api

import (
	"encoding/json"
	"strings"
	"time"
)

// Role of an authenticated user.
const (
	RoleVisitor = "visitor"
	RoleOwner   = "owner"
)

// Brand categories with dedicated micro-site layouts.
const (
	CategoryFood        = "food"
	CategoryFashion     = "fashion"
	CategoryElectronics = "electronics"
)

// BrandStatusPending gates owner actions until moderation approves the brand.
const BrandStatusPending = "pending"

// TokenPair is the credential pair issued by login, signup and refresh. The
// upstream is inconsistent about key casing, so both forms are accepted.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (p *TokenPair) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccessSnake  string `json:"access_token"`
		AccessCamel  string `json:"accessToken"`
		RefreshSnake string `json:"refresh_token"`
		RefreshCamel string `json:"refreshToken"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.AccessToken = firstNonEmpty(raw.AccessSnake, raw.AccessCamel)
	p.RefreshToken = firstNonEmpty(raw.RefreshSnake, raw.RefreshCamel)
	return nil
}

func (p TokenPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"access_token":  p.AccessToken,
		"refresh_token": p.RefreshToken,
	})
}

// Valid reports whether both credentials are present.
func (p TokenPair) Valid() bool {
	return strings.TrimSpace(p.AccessToken) != "" && strings.TrimSpace(p.RefreshToken) != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// User is the profile served by /users/me.
type User struct {
	ID              string          `json:"id"`
	Role            string          `json:"role"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	IsEmailVerified bool            `json:"is_email_verified"`
	Brands          []Brand         `json:"brands"`
	Preferences     map[string]any  `json:"preferences"`
	Extra           json.RawMessage `json:"-"`
}

// Brand is a merchant tenant owning offers and a micro-site template.
type Brand struct {
	ID               string    `json:"id"`
	BrandName        string    `json:"brand_name"`
	Slug             string    `json:"slug"`
	Status           string    `json:"status"`
	CategoryType     string    `json:"category_type"`
	SubscriptionPlan string    `json:"subscription_plan"`
	LogoURL          string    `json:"logo_url"`
	WebsiteURL       string    `json:"website_url"`
	CreatedAt        time.Time `json:"created_at"`
}

// Pending reports whether the brand is still under moderation; pending brands
// have their edit surface locked down.
func (b Brand) Pending() bool { return b.Status == BrandStatusPending }

// Offer is a published deal.
type Offer struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	OldPrice    float64   `json:"old_price"`
	Discount    int       `json:"discount"`
	ImageURL    string    `json:"image_url"`
	Link        string    `json:"link"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// Template is owner-authored micro-site content for one brand.
type Template struct {
	ID              string         `json:"id"`
	BrandID         string         `json:"brand_id"`
	Brand           *Brand         `json:"brand,omitempty"`
	HeroTitle       string         `json:"hero_title"`
	HeroDescription string         `json:"hero_description"`
	HeroCTAText     string         `json:"hero_cta_text"`
	HeroCTALink     string         `json:"hero_cta_link"`
	HeroImageURL    string         `json:"hero_image_url"`
	GridItems       []GridItem     `json:"grid_items"`
	Media           map[string]any `json:"media"`
	CreatedAt       time.Time      `json:"created_at"`
}

// GridItem is one tile of the category grid section.
type GridItem struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Link     string `json:"link"`
}

// Analytics is the owner dashboard summary for one brand.
type Analytics struct {
	BrandID     string `json:"brand_id"`
	TotalViews  int64  `json:"total_views"`
	TotalClicks int64  `json:"total_clicks"`
	OfferCount  int64  `json:"offer_count"`
}

// HourlyViews is one bucket of the views-per-hour series.
type HourlyViews struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// DailyClicks is one bucket of the clicks-per-day series.
type DailyClicks struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// SignedUpload is the upstream response granting a direct upload URL.
type SignedUpload struct {
	URL       string    `json:"url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
