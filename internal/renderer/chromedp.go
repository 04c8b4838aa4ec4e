// Package renderer fetches pages through headless Chrome for catalogs that
// build their listings with JavaScript.
package renderer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	shttp "github.com/BenjaminSRussell/shelfcrawl/internal/http"
)

const defaultTimeout = 30 * time.Second

// ChromeSource renders pages with headless Chrome. It implements the
// fetcher's Source so retries and logging stay in one place.
type ChromeSource struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	settle      time.Duration
}

// NewChromeSource starts a browser allocator. proxy may be empty.
func NewChromeSource(timeout time.Duration, proxy string) *ChromeSource {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeSource{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     timeout,
		settle:      500 * time.Millisecond,
	}
}

// Get navigates to rawURL in a fresh tab and returns the rendered document.
func (cs *ChromeSource) Get(ctx context.Context, rawURL string, header http.Header) (*shttp.Response, error) {
	tabCtx, cancelTab := chromedp.NewContext(cs.allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, cs.timeout)
	defer cancelTimeout()

	// Propagate cancellation of the caller's context to the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(toNetworkHeaders(header)),
	); err != nil {
		return nil, fmt.Errorf("failed to prepare tab: %w", err)
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(rawURL))
	if err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.WaitReady("body"),
		chromedp.Sleep(cs.settle),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	out := &shttp.Response{StatusCode: http.StatusOK, URL: rawURL, Body: []byte(html)}
	if resp != nil {
		out.StatusCode = int(resp.Status)
		out.URL = resp.URL
	}
	return out, nil
}

func toNetworkHeaders(header http.Header) network.Headers {
	h := make(network.Headers, len(header))
	for k, vs := range header {
		if len(vs) > 0 {
			h[k] = vs[0]
		}
	}
	return h
}

// Close shuts the browser down.
func (cs *ChromeSource) Close() {
	if cs.allocCancel != nil {
		cs.allocCancel()
	}
}
