package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	shttp "github.com/BenjaminSRussell/shelfcrawl/internal/http"
	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

const testCategory = "https://shop.test/catalog/12/"

func observedLogger() (logger.Interface, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

// listingHTML renders a catalog listing with the given item links and, when
// last > 0, a navigation block whose final link points at page last.
func listingHTML(items []string, last int) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"catalog-section\">")
	for _, item := range items {
		fmt.Fprintf(&b, `<div class="catalog-item-top"><a class="name" href="%s">item</a></div>`, item)
	}
	b.WriteString("</div>")
	if last > 0 {
		fmt.Fprintf(&b, `<div class="navigation"><a href="?PAGEN_1=2">2</a><a href="?PAGEN_1=%d">end</a></div>`, last)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// itemHTML renders an item page with a single offer.
func itemHTML(article, barcode string) string {
	return fmt.Sprintf(`<html><body><h1>Item %s</h1><div class="catalog-element">
<table class="b-catalog-element-offers-table">
<tr class="b-catalog-element-offer"><td>Артикул: %s</td><td>Штрихкод: <b style="color:#c60505;">%s</b></td></tr>
</table></div></body></html>`, article, article, barcode)
}

func pageKey(rawURL string, params url.Values) string {
	if len(params) == 0 {
		return rawURL
	}
	return rawURL + "?" + params.Encode()
}

// fakeFetcher serves canned pages and records every request in order.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	calls   []string
	panicOn string
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, params url.Values) shttp.Outcome {
	key := pageKey(rawURL, params)

	f.mu.Lock()
	f.calls = append(f.calls, key)
	content, ok := f.pages[key]
	f.mu.Unlock()

	if key == f.panicOn {
		panic("extractor exploded")
	}
	if !ok {
		return shttp.Outcome{Err: &shttp.FetchError{URL: key, Reason: shttp.ReasonStatus, Attempts: 1, StatusCode: 404}}
	}
	return shttp.Outcome{Content: content, FinalURL: key}
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type countingPacer struct {
	calls atomic.Int32
	err   error
}

func (p *countingPacer) Pace(context.Context) error {
	p.calls.Add(1)
	return p.err
}

type denyList map[string]bool

func (d denyList) Allowed(_ context.Context, rawURL string) bool {
	return !d[rawURL]
}

type fakeWalker struct {
	mu      sync.Mutex
	visited []string
	perWalk types.Results
	failOn  string
	err     error
}

func (w *fakeWalker) Walk(_ context.Context, categoryURL string) (types.Results, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visited = append(w.visited, categoryURL)
	if categoryURL == w.failOn {
		return w.perWalk, w.err
	}
	return w.perWalk, nil
}

type fakeDiscoverer struct {
	cats []types.Category
	err  error
}

func (d *fakeDiscoverer) Discover(context.Context) ([]types.Category, error) {
	return d.cats, d.err
}

// scriptedRunner returns the scripted outcome for each attempt in turn.
// A nil step succeeds; a step of type string panics with that value.
type scriptedRunner struct {
	steps []any
	calls int
}

func (r *scriptedRunner) Run(context.Context, *types.Config) (types.Results, error) {
	r.calls++
	if r.calls > len(r.steps) {
		return types.Results{Categories: 1}, nil
	}
	switch step := r.steps[r.calls-1].(type) {
	case nil:
		return types.Results{Categories: 1}, nil
	case string:
		panic(step)
	case error:
		return types.Results{}, step
	}
	return types.Results{}, nil
}

type recordingSink struct {
	calls        []string
	records      [][]types.Record
	failuresLeft int
}

func (s *recordingSink) Persist(_ context.Context, records []types.Record, _ []string, destination string) error {
	s.calls = append(s.calls, destination)
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return fmt.Errorf("disk full")
	}
	s.records = append(s.records, records)
	return nil
}

type recordingSleeper struct {
	slept []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return s.err
}
