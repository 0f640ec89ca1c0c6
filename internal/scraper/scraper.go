// Package scraper implements the comic source: it loads the strip's web
// page, locates today's image and date and downloads the image bytes.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// Defaults for NewScraper.
const (
	DefaultURL       = "https://www.hs.fi/sarjakuvat/fingerpori/"
	DefaultArtist    = "Pertti Jarla"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxImageBytes = 20 << 20
)

var dayMonthExpr = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.`)

// Scraper fetches the latest strip from PageURL.
type Scraper struct {
	client    *http.Client
	PageURL   string
	Artist    string
	UserAgent string
	// Location decides what "today" is when the page carries no date.
	Location *time.Location
	// Now is replaceable in tests.
	Now func() time.Time
	// MaxRetries bounds retries of transient HTTP failures.
	MaxRetries uint64
}

// NewScraper wires an HTTP client; empty arguments take the defaults.
func NewScraper(client *http.Client, pageURL, userAgent string, loc *time.Location) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if pageURL == "" {
		pageURL = DefaultURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scraper{
		client:     client,
		PageURL:    pageURL,
		Artist:     DefaultArtist,
		UserAgent:  userAgent,
		Location:   loc,
		Now:        time.Now,
		MaxRetries: 2,
	}
}

// Fetch returns the strip currently shown on the page. It returns
// domain.ErrNoComic when the page has no article or matching image.
func (s *Scraper) Fetch(ctx context.Context) (*domain.FetchedComic, error) {
	doc, err := s.fetchDocument(ctx, s.PageURL)
	if err != nil {
		return nil, err
	}

	date, imgURL, err := s.extract(doc)
	if err != nil {
		return nil, err
	}

	resolved, err := resolve(s.PageURL, imgURL)
	if err != nil {
		return nil, fmt.Errorf("image url: %w", err)
	}

	data, err := s.download(ctx, resolved)
	if err != nil {
		return nil, err
	}
	return &domain.FetchedComic{Date: date, URL: resolved, Bytes: data}, nil
}

func (s *Scraper) extract(doc *goquery.Document) (date, imgURL string, err error) {
	article := doc.Find("article").First()
	if article.Length() == 0 {
		return "", "", domain.ErrNoComic
	}

	img := article.Find("img").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		alt, _ := sel.Attr("alt")
		return strings.Contains(alt, s.Artist)
	}).First()
	if img.Length() == 0 {
		return "", "", domain.ErrNoComic
	}
	src, _ := img.Attr("src")
	if src == "" {
		src, _ = img.Attr("data-src")
	}
	if src == "" {
		return "", "", domain.ErrNoComic
	}

	label := strings.TrimSpace(article.Find(`span[class*="timestamp-label"]`).First().Text())
	return s.parseDate(label), upgradeResolution(src), nil
}

// parseDate turns a "d.m." label into YYYY-MM-DD. A December strip seen in
// January belongs to the previous year. Unparseable labels fall back to
// today.
func (s *Scraper) parseDate(label string) string {
	now := s.Now().In(s.Location)
	m := dayMonthExpr.FindStringSubmatch(label)
	if m == nil {
		return now.Format("2006-01-02")
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return now.Format("2006-01-02")
	}
	year := now.Year()
	if now.Month() == time.January && month == 12 {
		year--
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, s.Location)
	if d.Day() != day {
		return now.Format("2006-01-02")
	}
	return d.Format("2006-01-02")
}

// upgradeResolution swaps the thumbnail rendition for the large one.
func upgradeResolution(src string) string {
	return strings.Replace(src, "468.jpg", "978.jpg", 1)
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := s.get(ctx, pageURL, func(body io.Reader) error {
		d, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("parse document: %w", err))
		}
		doc = d
		return nil
	})
	return doc, err
}

func (s *Scraper) download(ctx context.Context, imgURL string) ([]byte, error) {
	var data []byte
	err := s.get(ctx, imgURL, func(body io.Reader) error {
		b, err := io.ReadAll(io.LimitReader(body, maxImageBytes+1))
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		if len(b) > maxImageBytes {
			return backoff.Permanent(fmt.Errorf("image larger than %d bytes", maxImageBytes))
		}
		if len(b) == 0 {
			return backoff.Permanent(domain.ErrNoComic)
		}
		data = b
		return nil
	})
	return data, err
}

// get performs a GET with bounded retries on network errors and 5xx
// responses, handing the body to consume on success.
func (s *Scraper) get(ctx context.Context, target string, consume func(io.Reader) error) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("User-Agent", s.UserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("request %s: %w", target, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%s returned %s", target, resp.Status)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("%s returned %s", target, resp.Status))
		}
		return consume(resp.Body)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, s.MaxRetries), ctx))
}
