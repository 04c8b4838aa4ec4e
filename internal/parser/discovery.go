package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	shttp "github.com/BenjaminSRussell/shelfcrawl/internal/http"
	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

var (
	// ErrNoSource means the catalog root page could not be fetched.
	ErrNoSource = errors.New("no source")
	// ErrNoCategoryMenu means the root page has no category menu.
	ErrNoCategoryMenu = errors.New("no category menu")
)

// Fetcher is the subset of the HTTP fetcher the parser needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) shttp.Outcome
}

// Discoverer produces the category tree of the catalog.
type Discoverer interface {
	Discover(ctx context.Context) ([]types.Category, error)
}

// CatalogDiscoverer reads the category menu from the catalog root page.
type CatalogDiscoverer struct {
	fetcher Fetcher
	rootURL string
	log     logger.Interface
}

// NewCatalogDiscoverer creates a new CatalogDiscoverer
func NewCatalogDiscoverer(fetcher Fetcher, rootURL string, log logger.Interface) *CatalogDiscoverer {
	return &CatalogDiscoverer{fetcher: fetcher, rootURL: rootURL, log: log}
}

// Discover fetches the root page and returns every root category followed
// by its sub-categories.
func (d *CatalogDiscoverer) Discover(ctx context.Context) ([]types.Category, error) {
	out := d.fetcher.Fetch(ctx, d.rootURL, nil)
	if !out.OK() {
		d.log.Warn("NO SOURCE IN", zap.String("url", d.rootURL))
		return nil, fmt.Errorf("%w: %s", ErrNoSource, d.rootURL)
	}

	doc, err := Parse(d.rootURL, out.Content)
	if err != nil {
		return nil, err
	}
	return Categories(doc)
}

// Categories parses the two-level category menu.
func Categories(doc *Document) ([]types.Category, error) {
	menu := doc.Find("#catalog-menu")
	if menu.Length() == 0 {
		return nil, ErrNoCategoryMenu
	}

	var cats []types.Category
	menu.Find("li.lev1").Each(func(_ int, li *goquery.Selection) {
		root := li.Find("a.catalog-menu-icon").First()
		link, ok := root.Attr("href")
		if !ok {
			return
		}
		rootID := categoryID(link)
		cats = append(cats, types.Category{
			Name: text(root.Find("span").First()),
			ID:   rootID,
			Link: link,
		})

		li.Find("ul.catalog-cols a").Each(func(_ int, a *goquery.Selection) {
			subLink, ok := a.Attr("href")
			if !ok {
				return
			}
			cats = append(cats, types.Category{
				Name:     text(a),
				ID:       categoryID(subLink),
				ParentID: rootID,
				Link:     subLink,
			})
		})
	})
	return cats, nil
}

// categoryID returns the path below /catalog/, e.g. "sobaki/korm" for
// "/catalog/sobaki/korm/".
func categoryID(link string) string {
	path := link
	if u, err := url.Parse(link); err == nil {
		path = u.Path
	}
	if i := strings.LastIndex(path, "/catalog"); i >= 0 {
		path = path[i+len("/catalog"):]
	}
	return strings.Trim(path, "/")
}

// ListingURL builds the listing URL of a category id.
func ListingURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/catalog/" + strings.Trim(id, "/") + "/"
}
