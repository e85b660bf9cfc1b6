package stores

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"storewatch/internal/domain"
	"storewatch/internal/resolver"
)

// ErrNoStores indicates the file loaded but contained no usable entries.
var ErrNoStores = errors.New("stores: no usable storefront entries")

type fileDoc struct {
	Stores []fileEntry `json:"stores"`
}

type fileEntry struct {
	URL         string `json:"url"`
	Platform    string `json:"platform"`
	DisplayName string `json:"display_name"`
}

// Load reads the storefront list from a JSON document. Entries with unusable
// URLs are skipped with a warning; missing platforms and display names are
// derived from the URL.
func Load(path string, logger zerolog.Logger) ([]domain.Storefront, error) {
	log := logger.With().Str("component", "stores").Logger()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stores file: %w", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse stores file: %w", err)
	}

	out := make([]domain.Storefront, 0, len(doc.Stores))
	seen := make(map[string]struct{}, len(doc.Stores))
	for i, entry := range doc.Stores {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			log.Warn().Int("index", i).Msg("skipping storefront entry without url")
			continue
		}
		if _, dup := seen[url]; dup {
			log.Warn().Str("url", url).Msg("skipping duplicate storefront url")
			continue
		}

		platform := domain.Platform(strings.ToLower(strings.TrimSpace(entry.Platform)))
		if platform != domain.PlatformGrabFood && platform != domain.PlatformFoodpanda {
			derived, ok := resolver.PlatformFor(url)
			if !ok {
				log.Warn().Str("url", url).Msg("skipping storefront on unrecognised marketplace")
				continue
			}
			platform = derived
		}

		name := strings.TrimSpace(entry.DisplayName)
		if name == "" {
			name = resolver.DisplayName(url)
		}

		seen[url] = struct{}{}
		out = append(out, domain.Storefront{
			URL:         url,
			Platform:    platform,
			DisplayName: name,
		})
	}

	if len(out) == 0 {
		return nil, ErrNoStores
	}

	log.Info().Int("total", len(out)).
		Int("grabfood", countPlatform(out, domain.PlatformGrabFood)).
		Int("foodpanda", countPlatform(out, domain.PlatformFoodpanda)).
		Msg("storefronts loaded")
	return out, nil
}

func countPlatform(list []domain.Storefront, p domain.Platform) int {
	n := 0
	for _, sf := range list {
		if sf.Platform == p {
			n++
		}
	}
	return n
}
