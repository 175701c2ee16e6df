package remote

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRatePerSecond = 50
	DefaultRateBurst     = 100
)

// HTTPConfig tunes the client used for every remote call.
type HTTPConfig struct {
	// Timeout of zero leaves calls bounded only by the transport and the
	// request context.
	Timeout       time.Duration
	RatePerSecond int
	Burst         int
}

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewHTTPClient creates the rate limited client shared by all remote calls.
func NewHTTPClient(cfg HTTPConfig) *http.Client {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = DefaultRatePerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateBurst
	}

	interval := time.Second / time.Duration(perSecond)
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &rateLimitedTransport{
			transport: http.DefaultTransport,
			limiter:   rate.NewLimiter(rate.Every(interval), burst),
		},
	}
}
