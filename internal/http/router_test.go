package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comic-bot/internal/config"
	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/http/handlers"
	"github.com/tbourn/go-comic-bot/internal/services"
)

type fakeComics struct{}

func (fakeComics) Recent(context.Context, int) ([]domain.Comic, error) {
	return []domain.Comic{{ID: 1, PublishDate: "2024-05-01"}}, nil
}

func (fakeComics) Tally(context.Context, uint, uint64) (domain.Tally, error) {
	return domain.Tally{}, nil
}

type fakeGuilds struct{}

func (fakeGuilds) Configure(_ context.Context, id uint64, ch *uint64, mode domain.RatingMode) (*domain.Guild, error) {
	return &domain.Guild{GuildID: id, ChannelID: ch, RatingMode: mode}, nil
}

func (fakeGuilds) Get(_ context.Context, id uint64) (*domain.Guild, error) {
	return &domain.Guild{GuildID: id, RatingMode: domain.RatingWidget}, nil
}

type fakePublisher struct{ calls int }

func (f *fakePublisher) Run(context.Context) (*services.FanOutReport, error) {
	f.calls++
	return nil, nil
}

type fakeCloser struct{}

func (fakeCloser) Close(context.Context) (services.CloseReport, error) {
	return services.CloseReport{}, nil
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *fakePublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.RateRPS == 0 {
		cfg.RateRPS, cfg.RateBurst = 1000, 1000
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "test-svc"
	}
	pub := &fakePublisher{}
	r := gin.New()
	RegisterRoutes(r, handlers.New(fakeComics{}, fakeGuilds{}, pub, fakeCloser{}), cfg)
	return r, pub
}

func serve(r http.Handler, method, path, auth string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, config.Config{APIBasePath: "/api/v1"})

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "comicbot_http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	if w = serve(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = serve(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	r, _ := newRouter(t, config.Config{
		APIBasePath: "/api/v2",
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://example.com"}},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_PublicAndAdmin(t *testing.T) {
	r, pub := newRouter(t, config.Config{APIBasePath: "/api/v1", AdminToken: "s3cret"})

	if w := serve(r, http.MethodGet, "/api/v1/comics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /comics = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/guilds/42", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /guilds/42 = %d", w.Code)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"publish", http.MethodPost, "/api/v1/admin/publish", ""},
		{"close", http.MethodPost, "/api/v1/admin/close", ""},
		{"configure guild", http.MethodPut, "/api/v1/guilds/42", `{"rating_mode":"snoop"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := func() io.Reader {
				if tc.body == "" {
					return nil
				}
				return strings.NewReader(tc.body)
			}
			if w := serve(r, tc.method, tc.path, "", body()); w.Code != http.StatusUnauthorized {
				t.Fatalf("anonymous = %d; want 401", w.Code)
			}
			if w := serve(r, tc.method, tc.path, "wrong", body()); w.Code != http.StatusUnauthorized {
				t.Fatalf("wrong token = %d; want 401", w.Code)
			}
			if w := serve(r, tc.method, tc.path, "s3cret", body()); w.Code != http.StatusOK {
				t.Fatalf("admin = %d; want 200 (%s)", w.Code, w.Body.String())
			}
		})
	}
	if pub.calls != 1 {
		t.Fatalf("publisher calls = %d", pub.calls)
	}
}

func TestRegisterRoutes_NoAdminTokenLocksAdminRoutes(t *testing.T) {
	r, pub := newRouter(t, config.Config{APIBasePath: "/api/v1"})

	if w := serve(r, http.MethodPost, "/api/v1/admin/publish", "anything", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("publish without configured token = %d", w.Code)
	}
	if pub.calls != 0 {
		t.Fatal("publisher must not run")
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	r, _ := newRouter(t, config.Config{APIBasePath: "/api/v1"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/comics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q", got)
	}

}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, http.MethodPost, "/echo", "", bytes.NewBufferString("0123456789AB"))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
