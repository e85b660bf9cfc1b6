package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storewatch/internal/alerting"
	"storewatch/internal/classifier"
	"storewatch/internal/domain"
	"storewatch/internal/extractor"
	"storewatch/internal/fetcher"
	"storewatch/internal/obs"
	"storewatch/internal/resolver"
	"storewatch/internal/scheduler"
	"storewatch/internal/storage"
)

// Fetcher is the slice of the resilient fetcher the service depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*fetcher.Payload, error)
	Pace(ctx context.Context) error
}

// Options tune cycle behaviour.
type Options struct {
	AlertsEnabled    bool
	BlockedThreshold int
}

// Service runs check cycles: every monitored storefront is resolved,
// fetched, classified, and persisted exactly once per cycle. A failing
// storefront never takes the rest of the cycle down with it.
type Service struct {
	scheduler  *scheduler.Scheduler
	resolver   *resolver.Resolver
	fetch      Fetcher
	classifier *classifier.Classifier
	extractor  *extractor.Extractor
	store      storage.Store
	notifier   alerting.Notifier
	metrics    *obs.Metrics
	logger     zerolog.Logger
	opts       Options

	storefronts []domain.Storefront
	rng         *rand.Rand
	now         func() time.Time
}

// New constructs the monitoring service.
func New(storefronts []domain.Storefront, sched *scheduler.Scheduler, res *resolver.Resolver, fetch Fetcher, cls *classifier.Classifier, ext *extractor.Extractor, store storage.Store, notifier alerting.Notifier, metrics *obs.Metrics, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:   sched,
		resolver:    res,
		fetch:       fetch,
		classifier:  cls,
		extractor:   ext,
		store:       store,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger.With().Str("component", "service").Logger(),
		opts:        opts,
		storefronts: storefronts,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Run drives cycles on the scheduler's cadence until the context ends.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().Int("storefronts", len(s.storefronts)).Msg("monitoring started")
	return s.scheduler.Run(ctx, s.Cycle)
}

// CycleStats summarises one completed cycle.
type CycleStats struct {
	Total   int
	Online  int
	Offline int
	Blocked int
	Errors  int
	Unknown int

	BlockedStores []string
}

// Cycle evaluates every storefront once. Platform groups run concurrently
// (one worker per marketplace host); within a group, order is shuffled and
// stores are paced. Cancellation is honoured between storefronts.
func (s *Service) Cycle(ctx context.Context, bucket time.Time) error {
	started := s.now()

	groups := map[domain.Platform][]domain.Storefront{}
	for _, sf := range s.storefronts {
		groups[sf.Platform] = append(groups[sf.Platform], sf)
	}

	var (
		mu    sync.Mutex
		stats CycleStats
		wg    sync.WaitGroup
	)
	for platform, group := range groups {
		shuffled := s.shuffled(group)
		wg.Add(1)
		go func(platform domain.Platform, group []domain.Storefront) {
			defer wg.Done()
			for i, sf := range group {
				if ctx.Err() != nil {
					return
				}
				if i > 0 {
					if err := s.fetch.Pace(ctx); err != nil {
						return
					}
				}
				rec := s.checkStore(ctx, sf)
				mu.Lock()
				s.tally(&stats, sf, rec)
				mu.Unlock()
			}
		}(platform, shuffled)
	}
	wg.Wait()

	elapsed := s.now().Sub(started)
	if s.metrics != nil {
		s.metrics.CycleSeconds.Observe(elapsed.Seconds())
	}
	s.logger.Info().Time("bucket", bucket).
		Int("total", stats.Total).
		Int("online", stats.Online).
		Int("offline", stats.Offline).
		Int("blocked", stats.Blocked).
		Int("errors", stats.Errors).
		Int("unknown", stats.Unknown).
		Dur("elapsed", elapsed).
		Msg("cycle complete")

	s.maybeAlert(ctx, bucket, stats)
	return ctx.Err()
}

func (s *Service) tally(stats *CycleStats, sf domain.Storefront, rec domain.CheckRecord) {
	stats.Total++
	switch rec.Status {
	case domain.StatusOnline:
		stats.Online++
	case domain.StatusOffline:
		stats.Offline++
	case domain.StatusBlocked:
		stats.Blocked++
		stats.BlockedStores = append(stats.BlockedStores, sf.DisplayName)
	case domain.StatusError:
		stats.Errors++
	default:
		stats.Unknown++
	}
	if s.metrics != nil {
		s.metrics.ChecksTotal.WithLabelValues(string(rec.Status)).Inc()
		if rec.Status == domain.StatusBlocked {
			s.metrics.FetchBlocked.Inc()
		}
	}
}

// checkStore evaluates one storefront and persists the result. Panics and
// errors are confined to this storefront.
func (s *Service) checkStore(ctx context.Context, sf domain.Storefront) (rec domain.CheckRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("store", sf.DisplayName).Interface("panic", r).Msg("storefront check panicked")
			rec = domain.CheckRecord{
				CheckedAt: s.now().UTC(),
				Status:    domain.StatusError,
				Reason:    fmt.Sprintf("internal error: %v", r),
			}
			s.persist(ctx, sf, &rec)
		}
	}()

	rec = s.evaluate(ctx, sf)
	s.persist(ctx, sf, &rec)

	s.logger.Debug().Str("store", sf.DisplayName).
		Str("platform", string(sf.Platform)).
		Str("status", string(rec.Status)).
		Str("reason", rec.Reason).
		Int64("latency_ms", rec.LatencyMS).
		Int("oos_items", len(rec.OOSItems)).
		Msg("storefront checked")
	return rec
}

// evaluate walks the candidate sources in priority order. Structured
// evidence wins; the rendered page is a fallback; a terminal fetch failure
// on the last candidate decides the status.
func (s *Service) evaluate(ctx context.Context, sf domain.Storefront) domain.CheckRecord {
	rec := domain.CheckRecord{CheckedAt: s.now().UTC()}

	res, err := s.resolver.Resolve(sf.URL)
	if err != nil {
		rec.Status = domain.StatusUnknown
		rec.Reason = "unsupported storefront url"
		return rec
	}

	for i, cand := range res.Candidates {
		last := i == len(res.Candidates)-1

		payload, err := s.fetch.Fetch(ctx, cand.URL, cand.Headers)
		if s.metrics != nil {
			s.metrics.FetchAttempts.Inc()
		}
		if err != nil {
			if ctx.Err() != nil {
				rec.Status = domain.StatusError
				rec.Reason = "cancelled"
				return rec
			}
			if !last {
				s.logger.Debug().Str("store", sf.DisplayName).Str("source", cand.Label).Err(err).Msg("candidate failed, falling through")
				continue
			}
			verdict := s.classifier.ClassifyFailure(err)
			rec.Status = verdict.Status
			rec.Reason = verdict.Reason
			return rec
		}

		rec.LatencyMS = payload.Latency.Milliseconds()

		if cand.Kind == resolver.SourceAPI {
			if verdict, ok := s.classifier.ClassifyJSON(payload.Body); ok {
				rec.Status = verdict.Status
				rec.Reason = verdict.Reason
				if verdict.Status == domain.StatusOnline {
					if items, ok := s.extractor.FromJSON(sf.Platform, payload.Body); ok {
						rec.OOSItems = items
					}
				}
				return rec
			}
			if !last {
				continue
			}
			verdict := s.classifier.ClassifyAPIMiss(payload)
			rec.Status = verdict.Status
			rec.Reason = verdict.Reason
			return rec
		}

		verdict := s.classifier.ClassifyPage(sf.Platform, payload)
		rec.Status = verdict.Status
		rec.Reason = verdict.Reason
		if verdict.Status == domain.StatusOnline {
			rec.OOSItems = s.extractor.FromPage(payload.Body)
		}
		return rec
	}

	rec.Status = domain.StatusUnknown
	rec.Reason = "no candidate sources"
	return rec
}

// persist appends the record, retrying once before giving up with a
// warning. A failed append never fails the cycle.
func (s *Service) persist(ctx context.Context, sf domain.Storefront, rec *domain.CheckRecord) {
	if s.store == nil {
		return
	}

	id, err := s.store.UpsertStorefront(ctx, sf)
	if err != nil {
		s.logger.Warn().Err(err).Str("store", sf.DisplayName).Msg("storefront upsert failed, record dropped")
		if s.metrics != nil {
			s.metrics.AppendErrors.Inc()
		}
		return
	}
	rec.StorefrontID = id

	if err := s.store.AppendCheck(ctx, *rec); err != nil {
		s.logger.Debug().Err(err).Str("store", sf.DisplayName).Msg("append failed, retrying once")
		if err := s.store.AppendCheck(ctx, *rec); err != nil {
			s.logger.Warn().Err(err).Str("store", sf.DisplayName).Msg("check record lost after retry")
			if s.metrics != nil {
				s.metrics.AppendErrors.Inc()
			}
		}
	}
}

func (s *Service) maybeAlert(ctx context.Context, bucket time.Time, stats CycleStats) {
	if !s.opts.AlertsEnabled || s.notifier == nil || s.opts.BlockedThreshold <= 0 {
		return
	}
	if len(stats.BlockedStores) < s.opts.BlockedThreshold {
		return
	}
	note := alerting.Notification{
		Bucket:        bucket,
		BlockedStores: stats.BlockedStores,
		Threshold:     s.opts.BlockedThreshold,
		TotalStores:   stats.Total,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch blocked alert")
	}
}

// shuffled copies and shuffles a platform group so consecutive cycles never
// hit a marketplace in the same order.
func (s *Service) shuffled(group []domain.Storefront) []domain.Storefront {
	out := make([]domain.Storefront, len(group))
	copy(out, group)
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
