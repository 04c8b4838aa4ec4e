package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/metrics"
	"github.com/BenjaminSRussell/shelfcrawl/internal/parser"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// Pacer blocks between item fetches.
type Pacer interface {
	Pace(ctx context.Context) error
}

// Store accepts extracted records.
type Store interface {
	Offer(r types.Record) bool
}

// Allower reports whether a URL may be fetched.
type Allower interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// WalkerOptions tunes a Walker.
type WalkerOptions struct {
	PageParam string
	// Workers > 1 fetches the items of a page concurrently.
	Workers int
	// Robots is consulted before each item fetch when set.
	Robots Allower
	Now    func() time.Time
}

// Walker walks the paginated listing of one category and feeds the records
// of every listed item into the store.
type Walker struct {
	fetcher   parser.Fetcher
	extractor parser.Extractor
	pacer     Pacer
	store     Store
	log       logger.Interface
	metrics   *metrics.Metrics

	pageParam string
	workers   int
	robots    Allower
	now       func() time.Time
}

// NewWalker creates a new Walker
func NewWalker(
	fetcher parser.Fetcher,
	extractor parser.Extractor,
	pacer Pacer,
	store Store,
	log logger.Interface,
	m *metrics.Metrics,
	opts WalkerOptions,
) *Walker {
	w := &Walker{
		fetcher:   fetcher,
		extractor: extractor,
		pacer:     pacer,
		store:     store,
		log:       log,
		metrics:   m,
		pageParam: opts.PageParam,
		workers:   opts.Workers,
		robots:    opts.Robots,
		now:       opts.Now,
	}
	if w.pageParam == "" {
		w.pageParam = parser.DefaultPageParam
	}
	if w.workers < 1 {
		w.workers = 1
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Walk fetches page 1 of categoryURL, then pages 2..last when the listing
// announces a last page. A failed first page ends the category; a failed
// later page is skipped. The returned error is non-nil only when ctx ends.
func (w *Walker) Walk(ctx context.Context, categoryURL string) (types.Results, error) {
	stats := types.Results{Categories: 1}

	doc, ok := w.page(ctx, types.PageRequest{URL: categoryURL, PageNumber: 1}, &stats)
	if !ok {
		return stats, ctx.Err()
	}
	if err := w.processPage(ctx, doc, &stats); err != nil {
		return stats, err
	}

	last, err := w.extractor.LastPage(doc)
	if err != nil {
		w.log.Debug("pagination ends", zap.String("category", categoryURL), zap.String("reason", err.Error()))
		return stats, nil
	}

	for n := 2; n <= last; n++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		w.log.Debug("GET NEXT PAGE", zap.Int("page", n), zap.Int("last", last), zap.String("category", categoryURL))

		doc, ok := w.page(ctx, types.PageRequest{URL: categoryURL, PageNumber: n}, &stats)
		if !ok {
			continue
		}
		if err := w.processPage(ctx, doc, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (w *Walker) page(ctx context.Context, req types.PageRequest, stats *types.Results) (*parser.Document, bool) {
	out := w.fetcher.Fetch(ctx, req.URL, req.Params(w.pageParam))
	if !out.OK() {
		w.log.Warn("NO SOURCE IN",
			zap.String("url", req.URL),
			zap.Int("page", req.PageNumber),
			zap.String("reason", string(out.Err.Reason)))
		stats.PagesSkipped++
		w.metrics.IncPage("skipped")
		return nil, false
	}

	doc, err := parser.Parse(req.URL, out.Content)
	if err != nil {
		w.log.Warn("unparseable page", zap.String("url", req.URL), zap.Error(err))
		stats.PagesSkipped++
		w.metrics.IncPage("skipped")
		return nil, false
	}

	stats.Pages++
	w.metrics.IncPage("fetched")
	return doc, true
}

func (w *Walker) processPage(ctx context.Context, doc *parser.Document, stats *types.Results) error {
	links := w.extractor.ItemLinks(doc)
	if w.workers > 1 && len(links) > 1 {
		return w.processConcurrently(ctx, links, stats)
	}

	for _, link := range links {
		records, ok := w.item(ctx, link)
		w.accept(records, ok, stats)
		if err := w.pacer.Pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// processConcurrently fetches items with a bounded pool and offers the
// results in page order once the page is done.
func (w *Walker) processConcurrently(ctx context.Context, links []string, stats *types.Results) error {
	results := make([][]types.Record, len(links))
	fetched := make([]bool, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i, link := range links {
		g.Go(func() error {
			return safely(func() error {
				results[i], fetched[i] = w.item(gctx, link)
				return w.pacer.Pace(gctx)
			})
		})
	}
	err := g.Wait()

	for i := range links {
		w.accept(results[i], fetched[i], stats)
	}
	return err
}

func (w *Walker) item(ctx context.Context, link string) ([]types.Record, bool) {
	if w.robots != nil && !w.robots.Allowed(ctx, link) {
		w.log.Debug("disallowed by robots.txt", zap.String("url", link))
		w.metrics.IncItem("disallowed")
		return nil, false
	}

	out := w.fetcher.Fetch(ctx, link, nil)
	if !out.OK() {
		w.log.Warn("NO SOURCE IN", zap.String("url", link), zap.String("reason", string(out.Err.Reason)))
		w.metrics.IncItem("skipped")
		return nil, false
	}

	doc, err := parser.Parse(link, out.Content)
	if err != nil {
		w.log.Warn("unparseable item", zap.String("url", link), zap.Error(err))
		w.metrics.IncItem("skipped")
		return nil, false
	}

	records, err := w.extractor.Records(doc, parser.ItemContext{URL: link, FetchedAt: w.now()})
	if err != nil {
		w.log.Warn("no records extracted", zap.String("url", link), zap.Error(err))
		w.metrics.IncItem("skipped")
		return nil, false
	}

	w.metrics.IncItem("fetched")
	return records, true
}

func (w *Walker) accept(records []types.Record, fetched bool, stats *types.Results) {
	if !fetched {
		stats.ItemsSkipped++
		return
	}
	stats.Items++
	for _, r := range records {
		if w.store.Offer(r) {
			stats.Accepted++
			w.metrics.IncRecord("accepted")
		} else {
			stats.Duplicates++
			w.metrics.IncRecord("duplicate")
		}
	}
}
