package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/metrics"
	"github.com/BenjaminSRussell/shelfcrawl/internal/parser"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// ErrDiscoveryFailed means no categories could be obtained in discovery mode.
var ErrDiscoveryFailed = errors.New("category discovery failed")

// CategoryWalker walks one category listing.
type CategoryWalker interface {
	Walk(ctx context.Context, categoryURL string) (types.Results, error)
}

// Traversal drives the walker over every category of a run.
type Traversal struct {
	walker     CategoryWalker
	discoverer parser.Discoverer
	log        logger.Interface
	metrics    *metrics.Metrics
}

// NewTraversal creates a new Traversal
func NewTraversal(walker CategoryWalker, discoverer parser.Discoverer, log logger.Interface, m *metrics.Metrics) *Traversal {
	return &Traversal{
		walker:     walker,
		discoverer: discoverer,
		log:        log,
		metrics:    m,
	}
}

// Run walks the configured category ids, or every sub-category found by
// discovery when none are configured. Root categories are never walked in
// discovery mode since their items are listed under their sub-categories.
func (t *Traversal) Run(ctx context.Context, cfg *types.Config) (types.Results, error) {
	if len(cfg.Categories) > 0 {
		urls := make([]string, 0, len(cfg.Categories))
		for _, id := range cfg.Categories {
			urls = append(urls, parser.ListingURL(cfg.BaseURL, id))
		}
		return t.walkAll(ctx, urls)
	}

	cats, err := t.discoverer.Discover(ctx)
	if err != nil {
		t.log.Warn("no categories processed", zap.Error(err))
		return types.Results{}, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	if len(cats) == 0 {
		t.log.Warn("no categories processed", zap.String("reason", "empty category menu"))
		return types.Results{}, ErrDiscoveryFailed
	}

	var urls []string
	for _, c := range cats {
		if c.IsRoot() {
			continue
		}
		urls = append(urls, resolveLink(cfg.BaseURL, c.Link))
	}
	if len(urls) == 0 {
		t.log.Warn("discovery found only root categories", zap.Int("roots", len(cats)))
	}
	return t.walkAll(ctx, urls)
}

func (t *Traversal) walkAll(ctx context.Context, urls []string) (types.Results, error) {
	var total types.Results
	for _, u := range urls {
		t.log.Info("START CATEGORY", zap.String("url", u))
		t.metrics.IncCategory()

		res, err := t.walker.Walk(ctx, u)
		total.Add(res)
		if err != nil {
			return total, err
		}
		t.log.Debug("category done",
			zap.String("url", u),
			zap.Int("pages", res.Pages),
			zap.Int("accepted", res.Accepted),
			zap.Int("duplicates", res.Duplicates))
	}
	return total, nil
}

func resolveLink(baseURL, link string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return baseURL + link
	}
	return base.ResolveReference(ref).String()
}
