package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"storewatch/internal/domain"
	"storewatch/internal/resolver"
	"storewatch/internal/service"
)

// Check runs a single cycle immediately, ignoring the monitoring window,
// and prints the outcome of every storefront.
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	var storefronts []domain.Storefront
	if opts.URL != "" {
		platform, ok := resolver.PlatformFor(opts.URL)
		if !ok {
			return fmt.Errorf("unsupported storefront url %q", opts.URL)
		}
		storefronts = []domain.Storefront{{
			URL:         opts.URL,
			Platform:    platform,
			DisplayName: resolver.DisplayName(opts.URL),
		}}
	} else {
		loaded, err := a.loadStorefronts()
		if err != nil {
			return err
		}
		storefronts = loaded
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	res, cls, ext := a.newPipeline()
	svc := service.New(storefronts, nil, res, a.newFetcher(nil), cls, ext, store, nil, nil, service.Options{}, a.Logger)

	if err := svc.Cycle(ctx, time.Now()); err != nil {
		return err
	}

	logs, err := store.RecentChecks(ctx, len(storefronts))
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Store\tPlatform\tStatus\tLatency\tOOS\tReason")
	for _, log := range logs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%dms\t%d\t%s\n",
			log.StoreName, log.Platform, log.Status, log.LatencyMS, len(log.OOSItems), sanitizeInline(log.Reason))
	}
	return writer.Flush()
}
