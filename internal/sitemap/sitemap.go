// Package sitemap turns the pages listed in a sitemap into batch targets.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/resource/httpres"
)

var ErrNotSitemap = errors.New("not a sitemap")

type urlset struct {
	URLs []loc `xml:"url"`
}

type sitemapindex struct {
	Sitemaps []loc `xml:"sitemap"`
}

type loc struct {
	Loc string `xml:"loc"`
}

// Load fetches cfg.URL and returns the page URLs it lists, rewritten by
// cfg.Find and cfg.Replace and without those matching cfg.Exclude. Sitemaps
// referenced by a sitemap index are followed, nested indexes are not.
func Load(ctx context.Context, fetcher httpres.Fetcher, cfg model.Sitemap) ([]string, error) {
	var exclude *regexp.Regexp
	if cfg.Exclude != "" {
		var err error
		exclude, err = regexp.Compile(cfg.Exclude)
		if err != nil {
			return nil, fmt.Errorf("sitemap exclude: %w", err)
		}
	}

	pages, children, err := fetch(ctx, fetcher, cfg.URL)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		p, nested, err := fetch(ctx, fetcher, child)
		if err != nil {
			return nil, err
		}
		if len(nested) > 0 {
			slog.WarnContext(ctx, "nested sitemap index ignored", "url", child)
		}
		pages = append(pages, p...)
	}

	ret := make([]string, 0, len(pages))
	for _, p := range pages {
		if cfg.Find != "" {
			p = strings.ReplaceAll(p, cfg.Find, cfg.Replace)
		}
		if exclude != nil && exclude.MatchString(p) {
			continue
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// Targets is Load returning simple targets.
func Targets(ctx context.Context, fetcher httpres.Fetcher, cfg model.Sitemap) ([]model.Target, error) {
	urls, err := Load(ctx, fetcher, cfg)
	if err != nil {
		return nil, err
	}
	return model.Targets(urls...), nil
}

// fetch returns the pages of an urlset or the sitemaps of a sitemap index.
func fetch(ctx context.Context, fetcher httpres.Fetcher, url string) ([]string, []string, error) {
	resp, err := fetcher.Get(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching sitemap %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("fetching sitemap %s: status %d", url, resp.StatusCode)
	}

	root, err := rootElement(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("sitemap %s: %w", url, err)
	}

	switch root {
	case "urlset":
		var set urlset
		if err := xml.Unmarshal(resp.Body, &set); err != nil {
			return nil, nil, fmt.Errorf("sitemap %s: %w", url, err)
		}
		return locs(set.URLs), nil, nil
	case "sitemapindex":
		var idx sitemapindex
		if err := xml.Unmarshal(resp.Body, &idx); err != nil {
			return nil, nil, fmt.Errorf("sitemap %s: %w", url, err)
		}
		return nil, locs(idx.Sitemaps), nil
	default:
		return nil, nil, fmt.Errorf("%w: %s has root element <%s>", ErrNotSitemap, url, root)
	}
}

func rootElement(b []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrNotSitemap, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func locs(l []loc) []string {
	ret := make([]string, 0, len(l))
	for _, x := range l {
		if s := strings.TrimSpace(x.Loc); s != "" {
			ret = append(ret, s)
		}
	}
	return ret
}
