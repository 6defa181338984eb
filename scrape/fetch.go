package scrape

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gonzojive/httpcache"
	"github.com/jpillora/backoff"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrFetchFailed is returned when the source page does not answer with 200.
var ErrFetchFailed = errors.New("failed to retrieve the page")

const fromCacheHeader = "X-From-Cache"

// Fetcher downloads source pages. Responses are cached in memory according
// to their cache headers, and transport errors or server errors are retried
// with jittered backoff.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	maxBytes   int64
	backoff    backoff.Backoff
}

// NewFetcher builds a fetcher from the scraper settings.
func NewFetcher(conf scrapedash.ScraperConfig) *Fetcher {
	var transport http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone())
	if !conf.DisableCache {
		cached := httpcache.NewMemoryCacheTransport()
		cached.Transport = transport
		transport = cached
	}

	return &Fetcher{
		client:     &http.Client{Timeout: conf.Timeout(), Transport: transport},
		userAgent:  conf.UserAgent,
		maxRetries: conf.MaxRetries,
		maxBytes:   conf.MaxFetchBytes,
		backoff: backoff.Backoff{
			Min:    250 * time.Millisecond,
			Max:    5 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Fetch returns the body of the page at sourceURL.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch-page", trace.WithAttributes(attribute.String(sourceURLAttribute, sourceURL)))
	defer span.End()

	b := f.backoff
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= f.maxRetries+1; attempt++ {
		body, retry, err := f.fetchOnce(ctx, sourceURL, span)
		if err == nil {
			span.SetAttributes(attribute.Int(attemptsAttribute, attempt))
			return body, nil
		}
		lastErr = err
		if !retry || attempt > f.maxRetries {
			break
		}

		wait := b.Duration()
		grip.Debug(message.WrapError(err, message.Fields{
			"message":   "retrying page fetch",
			"url":       sourceURL,
			"attempt":   attempt,
			"max":       f.maxRetries + 1,
			"wait_secs": wait.Seconds(),
		}))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), "fetching page")
		case <-timer.C:
		}
	}

	span.RecordError(lastErr)
	return nil, lastErr
}

// fetchOnce makes one attempt. The boolean reports whether the failure is
// worth retrying.
func (f *Fetcher) fetchOnce(ctx context.Context, sourceURL string, span trace.Span) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, false, errors.Wrapf(err, "building request for '%s'", sourceURL)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, errors.Wrap(err, "fetching page")
		}
		return nil, true, errors.Wrapf(err, "fetching '%s'", sourceURL)
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.Int(statusCodeAttribute, resp.StatusCode),
		attribute.Bool(fromCacheAttribute, resp.Header.Get(fromCacheHeader) != ""),
	)

	if resp.StatusCode != http.StatusOK {
		grip.Info(message.Fields{
			"message": "source page returned an error status",
			"url":     sourceURL,
			"status":  resp.StatusCode,
		})
		return nil, resp.StatusCode >= http.StatusInternalServerError, errors.Wrapf(ErrFetchFailed, "status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, true, errors.Wrapf(err, "reading '%s'", sourceURL)
	}

	return body, false, nil
}
