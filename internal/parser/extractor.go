package parser

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// DefaultPageParam is the pagination query parameter of the catalog.
const DefaultPageParam = "PAGEN_1"

var (
	// ErrNoNavigation means the listing has no pagination control.
	ErrNoNavigation = errors.New("no navigation control")
	// ErrBadLastPage means the last-page link did not carry a page number.
	ErrBadLastPage = errors.New("last page is not a number")
	// ErrNoItemBody means the item page lacks the product block.
	ErrNoItemBody = errors.New("no catalog element on item page")
)

// ItemContext describes where and when an item page was fetched.
type ItemContext struct {
	URL       string
	FetchedAt time.Time
}

// Extractor maps catalog documents onto crawl data.
type Extractor interface {
	// ItemLinks returns the absolute item URLs of a listing page in page order.
	ItemLinks(doc *Document) []string
	// LastPage returns the last page number announced by the listing.
	LastPage(doc *Document) (int, error)
	// Records returns one record per offer on an item page.
	Records(doc *Document, item ItemContext) ([]types.Record, error)
}

// CatalogExtractor implements Extractor for the Bitrix catalog markup used
// by the reference store.
type CatalogExtractor struct {
	PageParam string
}

// NewCatalogExtractor creates a new CatalogExtractor
func NewCatalogExtractor() *CatalogExtractor {
	return &CatalogExtractor{PageParam: DefaultPageParam}
}

func (e *CatalogExtractor) ItemLinks(doc *Document) []string {
	var links []string
	doc.Find("div.catalog-item-top a.name").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if link := doc.Resolve(href); link != "" {
			links = append(links, link)
		}
	})
	return links
}

func (e *CatalogExtractor) LastPage(doc *Document) (int, error) {
	nav := doc.Find("div.navigation a")
	if nav.Length() == 0 {
		return 0, ErrNoNavigation
	}

	href, _ := nav.Last().Attr("href")
	u, err := url.Parse(href)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadLastPage, err)
	}
	n, err := strconv.Atoi(u.Query().Get(e.pageParam()))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadLastPage, href)
	}
	return n, nil
}

func (e *CatalogExtractor) pageParam() string {
	if e.PageParam == "" {
		return DefaultPageParam
	}
	return e.PageParam
}

func (e *CatalogExtractor) Records(doc *Document, item ItemContext) ([]types.Record, error) {
	name := text(doc.Find("h1").First())
	nameQuantity := quantityFromName(name)

	main := doc.Find("div.catalog-element").First()
	if main.Length() == 0 {
		return nil, ErrNoItemBody
	}

	country := ""
	if p := main.Find("div.catalog-element-offer-left p").First(); p.Length() > 0 {
		country = afterColon(text(p))
	}

	var crumbs []string
	doc.Find("ul.breadcrumb-navigation li").Each(func(_ int, li *goquery.Selection) {
		if li.Find("span").Length() > 0 {
			return
		}
		crumbs = append(crumbs, text(li))
	})

	var images []string
	doc.Find("div.catalog-element-pictures a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			if link := doc.Resolve(href); link != "" {
				images = append(images, link)
			}
		}
	})

	base := types.Record{
		PriceDatetime: item.FetchedAt,
		Name:          name,
		Country:       country,
		Category:      strings.Join(crumbs, "|"),
		Link:          item.URL,
		Images:        strings.Join(images, ","),
	}

	var records []types.Record
	main.Find("table.b-catalog-element-offers-table tr.b-catalog-element-offer").Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() == 0 {
			return
		}
		records = append(records, offerRecord(base, cols, nameQuantity))
	})
	return records, nil
}

func offerRecord(r types.Record, cols *goquery.Selection, nameQuantity string) types.Record {
	r.Article = afterColon(text(cols.Eq(0)))
	r.Barcode = text(cols.Eq(1).Find(`b[style="color:#c60505;"]`).First())

	r.QuantityMin = nameQuantity
	if cols.Length() > 2 {
		p := parsePacking(afterColon(text(cols.Eq(2))))
		if p.Quantity != "" {
			r.QuantityMin = p.Quantity
		}
		r.WeightMin = p.Weight
		r.VolumeMin = p.Volume
	}

	if price := cols.Eq(4).Find("span").First(); price.Length() > 0 {
		style, _ := price.Attr("style")
		if strings.Contains(style, "color:#c60505") {
			r.PricePromo = text(price)
			r.Price = text(cols.Eq(4).Find(`s[style="color:#000000;"]`).First())
		} else {
			r.Price = text(price)
		}
	}

	r.Status = "0"
	if cols.Eq(5).Find("div.buybuttonarea").Length() > 0 {
		r.Status = "1"
	}
	return r
}
