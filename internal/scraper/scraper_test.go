package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

func newTestServer(t *testing.T, page string, imageStatus *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	})
	mux.HandleFunc("/img/978.jpg", func(w http.ResponseWriter, r *http.Request) {
		if imageStatus != nil {
			if code := atomic.LoadInt32(imageStatus); code != 0 {
				w.WriteHeader(int(code))
				return
			}
		}
		w.Write([]byte("JPEGDATA"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestScraper(srv *httptest.Server, now time.Time) *Scraper {
	s := NewScraper(srv.Client(), srv.URL+"/page", "", time.UTC)
	s.Now = func() time.Time { return now }
	return s
}

const page = `<html><body>
<article>
  <img alt="Mainos" src="/ads/1.jpg">
  <img alt="Fingerpori, Pertti Jarla" src="/img/468.jpg">
  <span class="text timestamp-label">ti 4.3.</span>
</article>
<article><img alt="Pertti Jarla" src="/img/old.jpg"></article>
</body></html>`

func TestFetch_ExtractsDateAndUpgradesImage(t *testing.T) {
	srv := newTestServer(t, page, nil)
	s := newTestScraper(srv, time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC))

	got, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Date != "2025-03-04" {
		t.Fatalf("unexpected date %q", got.Date)
	}
	if got.URL != srv.URL+"/img/978.jpg" {
		t.Fatalf("unexpected url %q", got.URL)
	}
	if string(got.Bytes) != "JPEGDATA" {
		t.Fatalf("unexpected bytes %q", got.Bytes)
	}
}

func TestFetch_NoComic(t *testing.T) {
	cases := map[string]string{
		"no article":  `<html><body><img alt="Pertti Jarla" src="/img/468.jpg"></body></html>`,
		"no artist":   `<article><img alt="someone else" src="/img/468.jpg"></article>`,
		"empty image": `<article><img alt="Pertti Jarla"></article>`,
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, html, nil)
			_, err := newTestScraper(srv, time.Now()).Fetch(context.Background())
			if !errors.Is(err, domain.ErrNoComic) {
				t.Fatalf("want ErrNoComic, got %v", err)
			}
		})
	}
}

func TestFetch_RetriesServerErrorsOnly(t *testing.T) {
	status := int32(http.StatusServiceUnavailable)
	srv := newTestServer(t, page, &status)
	s := newTestScraper(srv, time.Now())
	s.MaxRetries = 0

	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected error on 503")
	}

	atomic.StoreInt32(&status, http.StatusNotFound)
	s.MaxRetries = 5
	start := time.Now()
	if _, err := s.Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected permanent 404 error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("4xx must not be retried")
	}
}

func TestParseDate(t *testing.T) {
	s := NewScraper(nil, "", "", time.UTC)

	cases := []struct {
		name  string
		now   time.Time
		label string
		want  string
	}{
		{"same year", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "ma 9.6.", "2025-06-09"},
		{"december seen in january", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "31.12.", "2024-12-31"},
		{"missing label", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "", "2025-06-10"},
		{"nonsense month", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "1.13.", "2025-06-10"},
		{"impossible day", time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), "30.2.", "2025-02-10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.Now = func() time.Time { return tc.now }
			if got := s.parseDate(tc.label); got != tc.want {
				t.Fatalf("parseDate(%q) = %q, want %q", tc.label, got, tc.want)
			}
		})
	}
}

func TestExtract_DataSrcFallback(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<article><img alt="Pertti Jarla" data-src="/img/468.jpg"></article>`))
	if err != nil {
		t.Fatal(err)
	}
	s := NewScraper(nil, "", "", time.UTC)
	_, src, err := s.extract(doc)
	if err != nil || src != "/img/978.jpg" {
		t.Fatalf("extract = %q, %v", src, err)
	}
}
