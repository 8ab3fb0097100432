package tge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultURL       = "https://tge.pl/energia-elektryczna-rdn?type=1"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
	DefaultTimeout   = 10 * time.Second
)

type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration
}

// Client fetches the day-ahead market page.
type Client struct {
	logger *slog.Logger
	url    string
	http   *resty.Client
}

// StatusError is returned when the page answers with a non-2xx status.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status from %s: %s", e.URL, e.Status)
}

func NewClient(url string, opts ClientOptions) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	http := resty.New()
	http.SetTimeout(opts.Timeout)
	http.SetHeaders(map[string]string{
		"User-Agent":      opts.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Connection":      "keep-alive",
	})

	return &Client{
		logger: slog.Default().With("module", "tge"),
		url:    url,
		http:   http,
	}
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Fetch(ctx context.Context) (string, error) {
	c.logger.Debug("fetching price page", slog.String("url", c.url))

	res, err := c.http.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", c.url, err)
	}

	if !res.IsSuccess() {
		return "", &StatusError{URL: c.url, Code: res.StatusCode(), Status: res.Status()}
	}

	c.logger.Debug("price page fetched",
		slog.Int("bytes", len(res.Body())),
		slog.Duration("duration", res.Time()))

	return string(res.Body()), nil
}
