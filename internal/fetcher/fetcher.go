package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrorKind classifies a terminal fetch failure.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindTransport ErrorKind = "transport"
	KindHTTPError ErrorKind = "http_error"
	KindBlocked   ErrorKind = "blocked"
)

// FetchError is a terminal failure after all retries are spent.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch failed (%s, status %d, %d attempts): %v", e.Kind, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s, %d attempts): %v", e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Payload is a completed HTTP exchange. A 404 comes back as a Payload, not an
// error, because "not found" is evidence about the storefront.
type Payload struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Latency    time.Duration
}

// Options parameterise the resilient fetcher.
type Options struct {
	Timeout        time.Duration
	Retries        int
	BlockedRetries int
	BackoffBase    time.Duration
	PaceMin        time.Duration
	PaceMax        time.Duration
	MaxBodyBytes   int64

	// OnRotate is invoked whenever a blocked response forces an identity
	// rotation. Optional.
	OnRotate func()
}

// Fetcher performs paced, retried HTTP GETs with rotating browser
// identities.
type Fetcher struct {
	opts       Options
	logger     zerolog.Logger
	identities *IdentityPool
	client     *http.Client
	insecure   *http.Client
	sleep      func(context.Context, time.Duration) error

	// rngMu guards rng; Pace is called concurrently from the per-platform
	// cycle workers.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs a Fetcher.
func New(opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 12 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.BlockedRetries <= 0 {
		opts.BlockedRetries = 2
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}

	insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &Fetcher{
		opts:       opts,
		logger:     logger.With().Str("component", "fetcher").Logger(),
		identities: NewIdentityPool(time.Now().UnixNano()),
		client:     &http.Client{Timeout: opts.Timeout},
		insecure:   &http.Client{Timeout: opts.Timeout, Transport: insecureTransport},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pace sleeps a random interval inside the configured pacing window. Callers
// invoke it between storefronts to avoid hammering a marketplace.
func (f *Fetcher) Pace(ctx context.Context) error {
	if f.opts.PaceMax <= 0 || f.opts.PaceMax < f.opts.PaceMin {
		return nil
	}
	span := f.opts.PaceMax - f.opts.PaceMin
	d := f.opts.PaceMin
	if span > 0 {
		f.rngMu.Lock()
		d += time.Duration(f.rng.Int63n(int64(span)))
		f.rngMu.Unlock()
	}
	return f.sleep(ctx, d)
}

// Fetch GETs url with the given extra headers, retrying transient failures.
// Retry budget: Retries attempts for 5xx and transport errors with linear
// backoff, BlockedRetries attempts for 403/429 with identity rotation. A 404
// is returned as a Payload. TLS verification failures get exactly one retry
// with verification disabled.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*Payload, error) {
	var lastErr error
	var lastStatus int
	blockedAttempts := 0

	for attempt := 1; attempt <= f.opts.Retries; attempt++ {
		payload, err := f.doOnce(ctx, f.client, url, headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isTLSError(err) {
				f.logger.Warn().Str("url", url).Err(err).Msg("tls verification failed, retrying without verification")
				payload, err = f.doOnce(ctx, f.insecure, url, headers)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			lastStatus = 0
			f.logger.Debug().Str("url", url).Int("attempt", attempt).Err(err).Msg("transport failure")
			if err := f.sleep(ctx, f.opts.BackoffBase*time.Duration(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case payload.StatusCode == http.StatusForbidden || payload.StatusCode == http.StatusTooManyRequests:
			blockedAttempts++
			lastErr = fmt.Errorf("status %d from %s", payload.StatusCode, url)
			lastStatus = payload.StatusCode
			if blockedAttempts >= f.opts.BlockedRetries {
				return nil, &FetchError{Kind: KindBlocked, StatusCode: payload.StatusCode, Attempts: blockedAttempts, Err: lastErr}
			}
			id := f.identities.Rotate()
			if f.opts.OnRotate != nil {
				f.opts.OnRotate()
			}
			f.logger.Debug().Str("url", url).Int("status", payload.StatusCode).
				Str("user_agent", id.UserAgent).Msg("blocked, rotating identity")
			if err := f.sleep(ctx, f.opts.BackoffBase*time.Duration(blockedAttempts)); err != nil {
				return nil, err
			}
			continue

		case payload.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d from %s", payload.StatusCode, url)
			lastStatus = payload.StatusCode
			f.logger.Debug().Str("url", url).Int("status", payload.StatusCode).Int("attempt", attempt).Msg("server error")
			if err := f.sleep(ctx, f.opts.BackoffBase*time.Duration(attempt)); err != nil {
				return nil, err
			}
			continue

		default:
			// 2xx, 3xx leftovers, and 4xx including 404 are evidence for the
			// classifier to weigh.
			return payload, nil
		}
	}

	kind := KindTransport
	switch {
	case lastStatus == http.StatusForbidden || lastStatus == http.StatusTooManyRequests:
		kind = KindBlocked
	case lastStatus >= 500:
		kind = KindHTTPError
	case isTimeout(lastErr):
		kind = KindTimeout
	}
	return nil, &FetchError{Kind: kind, StatusCode: lastStatus, Attempts: f.opts.Retries, Err: lastErr}
}

func (f *Fetcher) doOnce(ctx context.Context, client *http.Client, url string, headers map[string]string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	id := f.identities.Current()
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept", id.Accept)
	req.Header.Set("Accept-Language", id.AcceptLanguage)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, err
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Payload{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   finalURL,
		Latency:    time.Since(start),
	}, nil
}

func isTLSError(err error) bool {
	if err == nil {
		return false
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "tls:")
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
