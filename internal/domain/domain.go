package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies which delivery marketplace hosts a storefront.
type Platform string

const (
	PlatformGrabFood  Platform = "grabfood"
	PlatformFoodpanda Platform = "foodpanda"
)

// Status is the outcome of a single storefront check.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
	StatusBlocked Status = "BLOCKED"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

// Confidence describes how an out-of-stock item was detected: read from an
// explicit availability field, or inferred from text proximity in a rendered
// page.
type Confidence string

const (
	ConfidenceStructured Confidence = "structured"
	ConfidenceHeuristic  Confidence = "heuristic"
)

// Storefront is one monitored vendor listing. Immutable after load.
type Storefront struct {
	ID          int64
	URL         string
	Platform    Platform
	DisplayName string
}

// Item is a menu item reported as unavailable.
type Item struct {
	Name       string          `json:"name"`
	Category   string          `json:"category,omitempty"`
	Code       string          `json:"code,omitempty"`
	Price      decimal.Decimal `json:"price,omitempty"`
	Confidence Confidence      `json:"confidence"`
}

// CheckRecord is the immutable result of evaluating one storefront at one
// instant. It is created exactly once per storefront per cycle and never
// mutated after append.
type CheckRecord struct {
	StorefrontID int64
	CheckedAt    time.Time
	Status       Status
	Reason       string
	LatencyMS    int64
	OOSItems     []Item
}

// Online reports whether the record counts toward uptime.
func (r CheckRecord) Online() bool {
	return r.Status == StatusOnline
}

// HourlyRow is one bucket of the hourly uptime view, local to the target
// timezone.
type HourlyRow struct {
	Hour       int
	OnlinePct  int
	OfflinePct int
	DataPoints int
}

// DailyRow is one storefront's uptime for the local current day.
type DailyRow struct {
	Name         string
	Platform     Platform
	TotalChecks  int
	OnlineChecks int
	UptimePct    int
}

// DedupItems removes duplicate item names preserving first-seen order.
func DedupItems(items []Item) []Item {
	if len(items) < 2 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it.Name]; ok {
			continue
		}
		seen[it.Name] = struct{}{}
		out = append(out, it)
	}
	return out
}
