// Package randomorg draws contest rolls from the random.org decimal fraction API.
package randomorg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	// DefaultURL asks for one plain-text fraction with two decimals.
	DefaultURL     = "https://www.random.org/decimal-fractions/?num=1&dec=2&col=1&format=plain&rnd=new"
	defaultTimeout = 5 * time.Second
	maxBody        = 64
)

// Source fetches one fraction per Draw. It satisfies arena.Source.
type Source struct {
	url     string
	client  *http.Client
	timeout time.Duration
	log     logger.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithURL overrides the endpoint.
func WithURL(url string) Option {
	return func(s *Source) {
		if url != "" {
			s.url = url
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Source.
func New(opts ...Option) *Source {
	s := &Source{
		url:     DefaultURL,
		client:  &http.Client{},
		timeout: defaultTimeout,
		log:     logger.Get().Named("randomorg"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draw fetches a fraction in [0, 1).
func (s *Source) Draw(ctx context.Context) (float64, error) {
	start := time.Now()
	r, err := s.draw(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("randomorg", errorType(err))
		metrics.RecordErrorLatency("randomorg", errorType(err), metrics.Since(start))
		s.log.Error(ctx, "random draw failed", logger.String("url", s.url), logger.Error(err))
		return 0, err
	}
	s.log.Debug(ctx, "random draw", logger.Float64("value", r), logger.Duration("took", time.Since(start)))
	return r, nil
}

func (s *Source) draw(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
		}
		return 0, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: status %d", ErrRequest, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
		}
		return 0, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	return Parse(string(body))
}

// Parse reads a plain-text fraction and checks it lies in [0, 1).
func Parse(body string) (float64, error) {
	text := strings.TrimSpace(body)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v >= 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResponse, text)
	}
	return v, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "request"
	}
}
