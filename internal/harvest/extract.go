package harvest

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/luckin/internal/fetch"
	"github.com/jonathan/luckin/internal/types"
)

// extractor turns a result container into a posting.
type extractor struct {
	sel       Selectors
	base      *url.URL
	company   string
	delimiter string
}

func newExtractor(src Source) *extractor {
	base, err := url.Parse(src.SiteURL)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(src.BaseURL)
	}
	return &extractor{
		sel:       src.Selectors,
		base:      base,
		company:   src.Company,
		delimiter: src.LocationDelimiter,
	}
}

// extract returns false when the container lacks a title or a usable link.
func (x *extractor) extract(s *goquery.Selection) (types.Posting, bool) {
	title := fetch.CleanText(find(s, x.sel.Title).Text())
	if title == "" {
		return types.Posting{}, false
	}

	href, ok := find(s, x.sel.Link).Attr(x.sel.LinkAttr)
	if !ok {
		return types.Posting{}, false
	}
	link, ok := x.resolve(href)
	if !ok {
		return types.Posting{}, false
	}

	p := types.Posting{
		Title:   title,
		Company: x.company,
		URL:     link,
	}
	if x.sel.Company != "" {
		if company := fetch.CleanText(find(s, x.sel.Company).Text()); company != "" {
			p.Company = company
		}
	}
	if x.sel.Location != "" {
		p.Location = x.location(find(s, x.sel.Location).Text())
	}
	if x.sel.Description != "" {
		p.Description = fetch.CleanText(find(s, x.sel.Description).Text())
	}
	return p, true
}

func (x *extractor) location(raw string) string {
	loc := fetch.CleanText(raw)
	if x.delimiter != "" {
		if before, _, found := strings.Cut(loc, x.delimiter); found {
			loc = strings.TrimSpace(before)
		}
	}
	return loc
}

// resolve makes href absolute against the site origin and keeps only http(s).
func (x *extractor) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if x.base != nil {
		abs = x.base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// find matches selector within s, or s itself when it already matches.
func find(s *goquery.Selection, selector string) *goquery.Selection {
	if s.Is(selector) {
		return s
	}
	return s.Find(selector).First()
}
