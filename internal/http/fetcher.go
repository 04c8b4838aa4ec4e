package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/metrics"
)

const maxBodySize = 16 << 20

// Response is the result of a single attempt.
type Response struct {
	StatusCode int
	// URL is the final URL after redirects.
	URL  string
	Body []byte
}

// Source performs one GET attempt. The default source is an *http.Client;
// the renderer package provides a headless browser source.
type Source interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*Response, error)
}

// Options configures a Fetcher.
type Options struct {
	Retry             RetryConfig
	Timeout           time.Duration
	MaxRedirects      int
	Headers           map[string]string
	RotateHeaders     bool
	RequestsPerSecond float64
	TLSProfile        string
	Proxy             func(*http.Request) (*url.URL, error)
	// Source replaces the HTTP client when set.
	Source Source
}

// Outcome is either a success carrying content or a failure carrying Err.
type Outcome struct {
	Content  string
	FinalURL string
	Err      *FetchError
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Fetcher issues GET requests with bounded, immediate retry.
type Fetcher struct {
	source  Source
	retry   RetryConfig
	headers http.Header
	rotator *HeaderRotator
	limiter *rate.Limiter
	log     logger.Interface
	metrics *metrics.Metrics
}

// NewFetcher creates a new Fetcher
func NewFetcher(opts Options, log logger.Interface, m *metrics.Metrics) (*Fetcher, error) {
	source := opts.Source
	if source == nil {
		cs, err := NewClientSource(opts)
		if err != nil {
			return nil, err
		}
		source = cs
	}

	f := &Fetcher{
		source:  source,
		retry:   opts.Retry,
		headers: make(http.Header),
		log:     log,
		metrics: m,
	}
	for k, v := range opts.Headers {
		f.headers.Set(k, v)
	}
	if opts.RotateHeaders {
		f.rotator = NewHeaderRotator()
	}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return f, nil
}

// Fetch retrieves rawURL with params merged into its query. Only a 200
// response is a success; every other status and every transport error uses
// up one attempt.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) Outcome {
	target, err := withParams(rawURL, params)
	if err != nil {
		return f.fail(&FetchError{URL: rawURL, Reason: ReasonInvalidURL, Err: err})
	}

	var last FetchError
	made := 0
	for attempt := 1; attempt <= f.retry.attempts(); attempt++ {
		if err := f.wait(ctx); err != nil {
			return f.fail(&FetchError{URL: target, Reason: classify(err), Attempts: attempt - 1, Err: err})
		}

		f.log.Debug("GET URL", zap.String("url", target), zap.Int("attempt", attempt))
		start := time.Now()
		resp, err := f.source.Get(ctx, target, f.requestHeader())
		made++
		f.metrics.ObserveFetch(time.Since(start).Seconds())

		if err != nil {
			reason := classify(err)
			f.metrics.IncFetchAttempt(string(reason))
			f.log.Error("request failed", zap.String("url", target), zap.String("reason", string(reason)), zap.Error(err))
			last = FetchError{URL: target, Reason: reason, Err: err}
			if reason == ReasonCanceled {
				break
			}
			continue
		}

		f.log.Debug("RESPONSE URL", zap.String("url", resp.URL), zap.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusOK {
			f.metrics.IncFetchAttempt("ok")
			f.metrics.IncFetchOutcome("success")
			return Outcome{Content: string(resp.Body), FinalURL: resp.URL}
		}

		f.metrics.IncFetchAttempt(string(ReasonStatus))
		last = FetchError{URL: target, Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}

	last.Attempts = made
	return f.fail(&last)
}

func (f *Fetcher) fail(e *FetchError) Outcome {
	f.metrics.IncFetchOutcome("failure")
	return Outcome{Err: e}
}

func (f *Fetcher) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}

func (f *Fetcher) requestHeader() http.Header {
	h := make(http.Header)
	if f.rotator != nil {
		f.rotator.Apply(h)
	}
	for k, v := range f.headers {
		h[k] = v
	}
	return h
}

func withParams(rawURL string, params url.Values) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ClientSource fetches with a plain *http.Client.
type ClientSource struct {
	client *http.Client
}

// NewClientSource builds the HTTP client: cookie jar, redirect cap, proxy
// and optional browser TLS fingerprint.
func NewClientSource(opts Options) (*ClientSource, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy:               opts.Proxy,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.Proxy == nil {
		transport.Proxy = http.ProxyFromEnvironment
	}
	if opts.TLSProfile != "" {
		profile, err := ProfileByName(opts.TLSProfile)
		if err != nil {
			return nil, err
		}
		transport.DialTLSContext = NewTLSDialer(profile).DialTLSContext
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirect
	}

	return &ClientSource{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   opts.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
	}, nil
}

// Get performs a single GET.
func (s *ClientSource) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = header

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Body:       body,
	}, nil
}
