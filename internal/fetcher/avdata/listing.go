// Package avdata keeps a local copy of the NTSB aviation accident extracts
// published on the avdata listing page.
package avdata

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultListingURL is the public avdata download page.
const DefaultListingURL = "https://data.ntsb.gov/avdata"

// File is one archive offered by the listing page.
type File struct {
	Name string
	URL  string
	// Date is the server-side publication date; zero when it did not parse.
	Date time.Time
}

var listingDateLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
}

func parseListingDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range listingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (f *Fetcher) newCollector() *colly.Collector {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(f.transport)
	c.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		c.UserAgent = f.cfg.UserAgent
	}
	c.SetRequestTimeout(f.cfg.Timeout)
	return c
}

// List scrapes the listing page. Each table row carrying a td#fileName cell
// yields one File, paired with the row's td#fileDate cell and first link.
func (f *Fetcher) List(ctx context.Context) ([]File, error) {
	var (
		files    []File
		fetchErr error
	)
	collector := f.newCollector()
	collector.OnHTML("tr", func(e *colly.HTMLElement) {
		name := strings.TrimSpace(e.ChildText("td#fileName"))
		if name == "" {
			return
		}
		file := File{Name: name}
		if href := e.ChildAttr("a[href]", "href"); href != "" {
			file.URL = e.Request.AbsoluteURL(href)
		}
		rawDate := e.ChildText("td#fileDate")
		if date, ok := parseListingDate(rawDate); ok {
			file.Date = date
		} else {
			f.logger.Warn("unparsable listing date", zap.String("file", name), zap.String("date", rawDate))
		}
		files = append(files, file)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(f.cfg.ListingURL)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("listing fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit listing %s: %w", f.cfg.ListingURL, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("listing response: %w", fetchErr)
		}
	}
	return files, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
