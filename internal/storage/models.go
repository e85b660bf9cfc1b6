package storage

import (
	"time"

	"storewatch/internal/domain"
)

// CheckLog is one persisted check joined with its storefront, as served to
// the CLI views.
type CheckLog struct {
	StoreName string
	Platform  domain.Platform
	Status    domain.Status
	Reason    string
	LatencyMS int64
	OOSItems  []domain.Item
	CheckedAt time.Time
}
