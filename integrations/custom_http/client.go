package custom_http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/fuad-daoud/discord-archiver/metrics"
	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"
)

// StatusError is a non 2xx response.
type StatusError struct {
	Status     string
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %s url: %s", e.Status, e.URL)
}

// retryable reports whether a later attempt may succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// DefaultClient downloads attachment bytes from the CDN, paced by Limiter and retried
// with exponential backoff on network errors, 429 and 5xx.
type DefaultClient struct {
	Client  *http.Client
	Limiter *rate.Limiter
	Headers map[string]string
	Retries int
	Backoff backoff.Backoff
}

const UserAgent = "DiscordBot (https://github.com/fuad-daoud/discord-archiver, 1.0)"

func NewClient(timeout time.Duration, perSecond float64, retries int) *DefaultClient {
	return &DefaultClient{
		Client:  &http.Client{Timeout: timeout},
		Limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		Headers: map[string]string{"User-Agent": UserAgent},
		Retries: retries,
		Backoff: backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

func (dc *DefaultClient) Download(ctx context.Context, url string) ([]byte, error) {
	// copy so concurrent downloads keep their own attempt counters
	b := dc.Backoff
	for {
		body, err := dc.get(ctx, url)
		if err == nil {
			metrics.AttachmentDownloads.WithLabelValues("ok").Inc()
			metrics.AttachmentBytes.Add(float64(len(body)))
			return body, nil
		}
		metrics.AttachmentDownloads.WithLabelValues("error").Inc()

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil || int(b.Attempt()) >= dc.Retries {
			return nil, err
		}
		wait := b.Duration()
		dlog.Warn("Retrying attachment download", "url", url, "attempt", b.Attempt(), "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (dc *DefaultClient) get(ctx context.Context, url string) ([]byte, error) {
	if dc.Limiter != nil {
		if err := dc.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	dc.setHeaders(req)

	resp, err := dc.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Status: resp.Status, StatusCode: resp.StatusCode, URL: url}
	}
	return io.ReadAll(resp.Body)
}

func (dc *DefaultClient) setHeaders(req *http.Request) {
	for k, v := range dc.Headers {
		req.Header.Set(k, v)
	}
}
