package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"storewatch/internal/domain"
)

// ErrUnsupportedSource indicates a storefront URL whose shape matches neither
// marketplace. The caller records UNKNOWN for that storefront and moves on.
var ErrUnsupportedSource = errors.New("resolver: unsupported storefront url")

// SourceKind distinguishes structured API endpoints from rendered pages.
type SourceKind string

const (
	SourceAPI  SourceKind = "api"
	SourcePage SourceKind = "page"
)

// CandidateSource is one place evidence about a storefront can be fetched
// from. Order of candidates encodes evidence priority: structured sources
// always precede the rendered page.
type CandidateSource struct {
	Kind    SourceKind
	Label   string
	URL     string
	Headers map[string]string
}

// Resolution carries the platform and the ordered fetch strategies for one
// storefront URL.
type Resolution struct {
	Platform   domain.Platform
	Code       string
	Candidates []CandidateSource
}

var (
	grabMerchantRe  = regexp.MustCompile(`(?i)/([0-9]-[A-Z0-9]+)$`)
	restaurantSlug  = regexp.MustCompile(`/restaurant/([^/]+)`)
	grabCodeSeg     = regexp.MustCompile(`(?i)^[0-9]-[A-Z0-9]+$`)
	trailingSuffix  = regexp.MustCompile(`(?i)-delivery$`)
	pandaAPIInclude = "menus,bundles,multiple_discounts"
)

// Resolver classifies storefront URLs and produces candidate evidence
// sources.
type Resolver struct {
	latlng string
}

// New constructs a Resolver. latlng anchors GrabFood API calls to a delivery
// area; an empty value falls back to metro Manila.
func New(latlng string) *Resolver {
	if latlng == "" {
		latlng = "14.5995,120.9842"
	}
	return &Resolver{latlng: latlng}
}

// Resolve classifies rawURL by platform and returns the ordered candidate
// sources to probe.
func (r *Resolver) Resolve(rawURL string) (Resolution, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, rawURL)
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "grab.com"):
		return r.resolveGrab(rawURL, u)
	case strings.Contains(host, "foodpanda"):
		return r.resolvePanda(rawURL, u)
	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, rawURL)
	}
}

func (r *Resolver) resolveGrab(rawURL string, u *url.URL) (Resolution, error) {
	m := grabMerchantRe.FindStringSubmatch(strings.TrimRight(u.Path, "/"))
	if m == nil {
		return Resolution{}, fmt.Errorf("%w: no merchant code in %q", ErrUnsupportedSource, rawURL)
	}
	code := strings.ToUpper(m[1])

	apiHeaders := map[string]string{
		"Accept":  "application/json, text/plain, */*",
		"Origin":  "https://food.grab.com",
		"Referer": rawURL,
	}

	return Resolution{
		Platform: domain.PlatformGrabFood,
		Code:     code,
		Candidates: []CandidateSource{
			{
				Kind:    SourceAPI,
				Label:   "grab-api-primary",
				URL:     fmt.Sprintf("https://portal.grab.com/foodweb/v2/restaurant?merchantCode=%s&latlng=%s", code, url.QueryEscape(r.latlng)),
				Headers: apiHeaders,
			},
			{
				Kind:    SourceAPI,
				Label:   "grab-api-secondary",
				URL:     fmt.Sprintf("https://portal.grab.com/foodweb/v2/merchants/%s?latlng=%s", code, url.QueryEscape(r.latlng)),
				Headers: apiHeaders,
			},
			{
				Kind:  SourcePage,
				Label: "grab-page",
				URL:   rawURL,
			},
		},
	}, nil
}

func (r *Resolver) resolvePanda(rawURL string, u *url.URL) (Resolution, error) {
	m := restaurantSlug.FindStringSubmatch(u.Path)
	if m == nil || m[1] == "" {
		return Resolution{}, fmt.Errorf("%w: no vendor code in %q", ErrUnsupportedSource, rawURL)
	}
	code := m[1]

	q := url.Values{}
	q.Set("include", pandaAPIInclude)
	q.Set("language_id", "1")
	q.Set("opening_type", "delivery")
	q.Set("basket_currency", "PHP")

	return Resolution{
		Platform: domain.PlatformFoodpanda,
		Code:     code,
		Candidates: []CandidateSource{
			{
				Kind:  SourceAPI,
				Label: "panda-vendor-api",
				URL:   fmt.Sprintf("https://ph.fd-api.com/api/v5/vendors/%s?%s", url.PathEscape(code), q.Encode()),
				Headers: map[string]string{
					"Accept":  "application/json",
					"Origin":  "https://www.foodpanda.ph",
					"Referer": fmt.Sprintf("https://www.foodpanda.ph/restaurant/%s/", code),
				},
			},
		},
	}, nil
}

// DisplayName derives a human-readable storefront name from the restaurant
// slug in the URL. Used when the configured entry carries no display name.
func DisplayName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "Unknown Store"
	}
	if !restaurantSlug.MatchString(u.Path) {
		return "Unknown Store"
	}
	// Grab puts the name slug before the merchant code, Foodpanda after the
	// vendor code. The last segment that is not a merchant code wins.
	var slug string
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg == "" || grabCodeSeg.MatchString(seg) {
			continue
		}
		slug = seg
	}
	slug = trailingSuffix.ReplaceAllString(slug, "")
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	name := strings.Join(words, " ")
	if name == "" {
		return "Unknown Store"
	}
	return name
}

// PlatformFor reports the marketplace hosting rawURL without building
// candidates; used by the storefront loader to backfill missing platform
// fields.
func PlatformFor(rawURL string) (domain.Platform, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "grab.com"):
		return domain.PlatformGrabFood, true
	case strings.Contains(host, "foodpanda"):
		return domain.PlatformFoodpanda, true
	}
	return "", false
}
