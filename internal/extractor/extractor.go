package extractor

import (
	"github.com/rs/zerolog"

	"storewatch/internal/domain"
)

// Extractor pulls out-of-stock menu items from storefront evidence. The
// structured path reads marketplace API payloads; the heuristic path scans
// rendered pages for sold-out markers.
type Extractor struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger.With().Str("component", "extractor").Logger()}
}

// FromJSON walks a structured menu payload and returns items whose
// availability flag is explicitly false. The second return is false when the
// payload carries no recognisable menu tree.
func (e *Extractor) FromJSON(platform domain.Platform, body []byte) ([]domain.Item, bool) {
	if platform == domain.PlatformFoodpanda {
		return e.pandaMenu(body)
	}
	return e.grabMenu(body)
}

// FromPage scans a rendered storefront page for sold-out markers and guesses
// the affected item names from surrounding text.
func (e *Extractor) FromPage(body []byte) []domain.Item {
	items, err := heuristicItems(body)
	if err != nil {
		e.logger.Debug().Err(err).Msg("heuristic extraction failed")
		return nil
	}
	return domain.DedupItems(items)
}
