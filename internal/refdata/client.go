// Package refdata fetches and holds the external city-to-state reference
// table. The table is read-only lookup input to the cleaning pipeline and is
// not user-supplied; it comes from a fixed source configured at startup.
package refdata

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/uakhmed/temperature-dashboard-service/internal/observability"
	"github.com/uakhmed/temperature-dashboard-service/internal/temps"
)

// ErrSourceUnavailable wraps transport and server-side failures.
var ErrSourceUnavailable = errors.New("city reference source unavailable")

// Table is one fetched snapshot of the reference data. Digest identifies the
// exact bytes, making it usable as a cleaning cache key component.
type Table struct {
	Cities    temps.CityReference
	Digest    string
	FetchedAt time.Time
}

// Source fetches a reference table snapshot.
type Source interface {
	FetchCityReference(ctx context.Context) (Table, error)
}

// HTTPSource fetches the name,state CSV over HTTP with exponential backoff
// retry and jitter.
type HTTPSource struct {
	url            string
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewHTTPSource validates the source URL and builds the fetcher. timeout
// bounds each individual attempt.
func NewHTTPSource(sourceURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*HTTPSource, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, fmt.Errorf("reference source URL is required")
	}
	if _, err := url.Parse(sourceURL); err != nil {
		return nil, fmt.Errorf("invalid reference source URL: %w", err)
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &HTTPSource{
		url:            sourceURL,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// FetchCityReference downloads and parses the reference table, retrying
// transient failures. A syntactically broken table is not retried; the bytes
// will not improve on a second read.
func (s *HTTPSource) FetchCityReference(ctx context.Context) (Table, error) {
	var lastErr error

	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ReferenceFetchRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return Table{}, ctx.Err()
			case <-time.After(s.backoff(attempt)):
			}
		}

		table, err := s.fetchOnce(ctx)
		if err == nil {
			observability.ReferenceFetchesTotal.WithLabelValues("success").Inc()
			observability.ReferenceCities.Set(float64(len(table.Cities)))
			return table, nil
		}

		lastErr = err
		observability.ReferenceFetchesTotal.WithLabelValues("error").Inc()
		if !isRetryable(err) {
			return Table{}, err
		}
	}

	return Table{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (s *HTTPSource) fetchOnce(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Table{}, fmt.Errorf("%w: HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("reference fetch failed: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Table{}, fmt.Errorf("%w: read body: %v", ErrSourceUnavailable, err)
	}

	cities, err := temps.ParseCityReference(bytes.NewReader(body))
	if err != nil {
		return Table{}, fmt.Errorf("parse reference table: %w", err)
	}

	sum := sha256.Sum256(body)
	return Table{
		Cities:    cities,
		Digest:    hex.EncodeToString(sum[:]),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrSourceUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

func (s *HTTPSource) backoff(attempt int) time.Duration {
	delay := float64(s.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(s.retryMaxDelay) {
		delay = float64(s.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}
