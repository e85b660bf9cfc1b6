package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"storewatch/internal/domain"
	"storewatch/internal/fetcher"
)

// Verdict is a classified availability signal for one storefront probe.
type Verdict struct {
	Status domain.Status
	Reason string
}

// Classifier turns fetched payloads and fetch failures into availability
// verdicts. Structured API evidence always outranks rendered-page text.
type Classifier struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Classifier {
	return &Classifier{logger: logger.With().Str("component", "classifier").Logger()}
}

// ClassifyFailure maps a terminal fetch error to a verdict. Block exhaustion
// becomes BLOCKED; everything else is an ERROR observation.
func (c *Classifier) ClassifyFailure(err error) Verdict {
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetcher.KindBlocked:
			return Verdict{Status: domain.StatusBlocked, Reason: fmt.Sprintf("access denied (%d) after retries", fe.StatusCode)}
		case fetcher.KindTimeout:
			return Verdict{Status: domain.StatusError, Reason: "request timeout"}
		case fetcher.KindHTTPError:
			return Verdict{Status: domain.StatusError, Reason: fmt.Sprintf("server error (%d) after retries", fe.StatusCode)}
		}
	}
	return Verdict{Status: domain.StatusError, Reason: truncate("connection error: "+err.Error(), 120)}
}

// statusWords maps marketplace status strings to verdicts.
var (
	onlineStatuses  = map[string]bool{"OPEN": true, "ACTIVE": true}
	offlineStatuses = map[string]bool{"CLOSED": true, "INACTIVE": true, "UNAVAILABLE": true}
	boolFlags       = []string{"is_active", "open", "isOpen", "available"}
)

// ClassifyJSON inspects a structured API payload for an explicit
// availability flag. The second return is false when the payload carries no
// recognisable signal and the caller should fall through to the next
// candidate source.
func (c *Classifier) ClassifyJSON(body []byte) (Verdict, bool) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return Verdict{}, false
	}

	roots := []map[string]any{doc}
	for _, key := range []string{"payload", "data", "merchant", "restaurant"} {
		if nested, ok := doc[key].(map[string]any); ok {
			roots = append(roots, nested)
		}
	}
	// vendors API nests the flag one level deeper
	if data, ok := doc["data"].(map[string]any); ok {
		if vendor, ok := data["vendor"].(map[string]any); ok {
			roots = append(roots, vendor)
		}
	}

	for _, root := range roots {
		for _, flag := range boolFlags {
			v, present := root[flag]
			b, isBool := v.(bool)
			if !present || !isBool {
				continue
			}
			if b {
				return Verdict{Status: domain.StatusOnline, Reason: "api flag " + flag + "=true"}, true
			}
			return Verdict{Status: domain.StatusOffline, Reason: "api flag " + flag + "=false"}, true
		}
		if s, ok := root["status"].(string); ok && s != "" {
			upper := strings.ToUpper(strings.TrimSpace(s))
			if onlineStatuses[upper] {
				return Verdict{Status: domain.StatusOnline, Reason: "api status " + upper}, true
			}
			if offlineStatuses[upper] {
				return Verdict{Status: domain.StatusOffline, Reason: "api status " + upper}, true
			}
		}
	}
	return Verdict{}, false
}

var botGuardPhrases = []string{
	"cloudflare", "checking your browser", "captcha", "access denied", "blocked",
}

var pandaOfflinePhrases = []string{
	"restaurant is closed", "currently closed", "temporarily unavailable",
	"restaurant temporarily unavailable", "not accepting orders", "closed for today",
	"closed for now", "out of delivery area", "no longer available", "delivery not available",
}

var pandaOnlinePhrases = []string{
	"add to cart", "add to basket", "menu", "popular items", "best sellers",
	"delivery fee", "min. order", "order now",
}

var grabOfflinePhrases = []string{
	"today closed", "restaurant is closed", "currently unavailable", "not accepting orders",
	"temporarily closed", "currently closed", "closed for today", "restaurant closed",
}

var grabOnlinePhrases = []string{
	"order now", "add to basket", "delivery fee",
}

var commerceWords = []string{"menu", "order", "delivery", "price", "add"}

// ClassifyAPIMiss weighs an API payload that carried no recognisable
// open/closed signal. The page heuristics never run here: phrase matching
// over raw JSON would turn any payload mentioning a menu into a confident
// ONLINE. A 404 stays firm evidence the storefront is gone.
func (c *Classifier) ClassifyAPIMiss(payload *fetcher.Payload) Verdict {
	switch payload.StatusCode {
	case http.StatusNotFound:
		return Verdict{Status: domain.StatusOffline, Reason: "store page not found (404)"}
	case http.StatusOK:
		return Verdict{Status: domain.StatusUnknown, Reason: "api payload unrecognised"}
	default:
		return Verdict{Status: domain.StatusUnknown, Reason: fmt.Sprintf("HTTP %d", payload.StatusCode)}
	}
}

// ClassifyPage weighs a rendered storefront page. A 404 is firm evidence the
// storefront is gone; otherwise the visible text decides.
func (c *Classifier) ClassifyPage(platform domain.Platform, payload *fetcher.Payload) Verdict {
	switch payload.StatusCode {
	case http.StatusNotFound:
		return Verdict{Status: domain.StatusOffline, Reason: "store page not found (404)"}
	case http.StatusOK:
	default:
		return Verdict{Status: domain.StatusUnknown, Reason: fmt.Sprintf("HTTP %d", payload.StatusCode)}
	}

	text, err := VisibleText(payload.Body)
	if err != nil {
		c.logger.Debug().Err(err).Msg("page parse failed, treating loaded page as online")
		return Verdict{Status: domain.StatusOnline, Reason: "page loaded (parse error ignored)"}
	}

	for _, phrase := range botGuardPhrases {
		if strings.Contains(text, phrase) {
			return Verdict{Status: domain.StatusBlocked, Reason: "bot detection triggered: " + phrase}
		}
	}

	offline, online := grabOfflinePhrases, grabOnlinePhrases
	if platform == domain.PlatformFoodpanda {
		offline, online = pandaOfflinePhrases, pandaOnlinePhrases
	}
	for _, phrase := range offline {
		if strings.Contains(text, phrase) {
			return Verdict{Status: domain.StatusOffline, Reason: "store closed: " + phrase}
		}
	}
	for _, phrase := range online {
		if strings.Contains(text, phrase) {
			return Verdict{Status: domain.StatusOnline, Reason: "store page with ordering available"}
		}
	}

	if len(text) > 500 {
		for _, w := range commerceWords {
			if strings.Contains(text, w) {
				return Verdict{Status: domain.StatusOnline, Reason: "store page loaded with content"}
			}
		}
		return Verdict{Status: domain.StatusUnknown, Reason: "page loaded but status unclear"}
	}
	return Verdict{Status: domain.StatusUnknown, Reason: "minimal page content"}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
