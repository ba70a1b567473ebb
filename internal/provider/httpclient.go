package provider

import (
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// BrowserUserAgent is sent by every provider client.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps the request rate; zero or negative disables the limiter.
	RequestsPerSecond float64
	Burst             int
	// Cookies enables a cookie jar for session based portals.
	Cookies bool
	Headers map[string]string
}

// NewHTTPClient builds a resty client with browser headers, a timeout and
// an optional rate limiter.
func NewHTTPClient(opts ClientOptions) (*resty.Client, error) {
	client := resty.New()
	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", BrowserUserAgent)
	client.SetHeader("Accept-Language", "en-IE,en;q=0.9")
	client.SetHeaders(opts.Headers)

	if opts.Cookies {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		client.SetCookieJar(jar)
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
	return client, nil
}

// StatusError converts an HTTP status into the provider error taxonomy.
// It returns nil for 2xx answers.
func StatusError(status int, what string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429 || status == 408 || status >= 500:
		return Unavailable("%s: HTTP %d", what, status)
	default:
		return ShapeChanged("%s: HTTP %d", what, status)
	}
}
