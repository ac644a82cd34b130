package pagecache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/always-cache/pagecache/rfc9110"
	"github.com/always-cache/pagecache/rfc9111"
	"github.com/go-chi/chi/v5"
)

func countingHandler(count *int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*count++
		w.Write([]byte(body))
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHttpCacheNotModifiedOnETag(t *testing.T) {
	var count int
	hc := NewHttpCache(HttpCacheConfig{
		ETagSeed: func(r *http.Request) (any, error) { return "v1", nil },
	})
	mw := hc.Middleware(countingHandler(&count, "Hello world"))

	first := serve(mw, httptest.NewRequest("GET", "/post", nil))
	etag := first.Header().Get("ETag")
	if etag == "" || strings.HasPrefix(etag, "W/") {
		t.Fatalf("ETag is %q", etag)
	}

	req := httptest.NewRequest("GET", "/post", nil)
	req.Header.Set("If-None-Match", etag)
	second := serve(mw, req)

	if second.Code != http.StatusNotModified {
		t.Fatalf("Status is %d", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Fatalf("Body of 304 is %q", second.Body.String())
	}
	if count != 1 {
		t.Fatalf("Next handler called %d times", count)
	}
	if got := second.Header().Get("ETag"); got != etag {
		t.Fatalf("ETag of 304 is %q, expected %q", got, etag)
	}
}

func TestHttpCacheETagDependsOnRouteAndVersion(t *testing.T) {
	seed := func(r *http.Request) (any, error) { return map[string]int{"id": 1}, nil }
	etagOf := func(config HttpCacheConfig, path string) string {
		config.ETagSeed = seed
		rr := serve(NewHttpCache(config).Middleware(http.NotFoundHandler()), httptest.NewRequest("GET", path, nil))
		return rr.Header().Get("ETag")
	}

	base := etagOf(HttpCacheConfig{}, "/a")
	if base != etagOf(HttpCacheConfig{}, "/a") {
		t.Fatal("ETag is not deterministic")
	}
	if base == etagOf(HttpCacheConfig{}, "/b") {
		t.Fatal("ETag does not depend on the route")
	}
	if base == etagOf(HttpCacheConfig{ETagVersion: "2"}, "/a") {
		t.Fatal("ETag does not depend on the version")
	}
	if weak := etagOf(HttpCacheConfig{WeakETag: true}, "/a"); weak != "W/"+base {
		t.Fatalf("Weak ETag is %q, strong is %q", weak, base)
	}
}

func TestHttpCacheETagUsesChiRoutePattern(t *testing.T) {
	hc := NewHttpCache(HttpCacheConfig{
		ETagSeed: func(r *http.Request) (any, error) { return "same", nil },
	})
	r := chi.NewRouter()
	r.With(hc.Middleware).Get("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chi.URLParam(r, "id")))
	})
	r.With(hc.Middleware).Get("/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chi.URLParam(r, "id")))
	})

	one := serve(r, httptest.NewRequest("GET", "/posts/1", nil)).Header().Get("ETag")
	two := serve(r, httptest.NewRequest("GET", "/posts/2", nil)).Header().Get("ETag")
	page := serve(r, httptest.NewRequest("GET", "/pages/1", nil)).Header().Get("ETag")
	if one == "" || one != two {
		t.Fatalf("ETags of one route are %q and %q", one, two)
	}
	if one == page {
		t.Fatal("ETag does not depend on the route pattern")
	}
}

func TestHttpCacheStarMatchesExistingETag(t *testing.T) {
	var count int
	mw := NewHttpCache(HttpCacheConfig{
		ETagSeed: func(r *http.Request) (any, error) { return 1, nil },
	}).Middleware(countingHandler(&count, "body"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-None-Match", "*")
	if rr := serve(mw, req); rr.Code != http.StatusNotModified {
		t.Fatalf("Status is %d", rr.Code)
	}
	if count != 0 {
		t.Fatalf("Next handler called %d times", count)
	}
}

func TestHttpCacheNilSeedMeansNoETag(t *testing.T) {
	var count int
	mw := NewHttpCache(HttpCacheConfig{
		ETagSeed: func(r *http.Request) (any, error) { return nil, nil },
	}).Middleware(countingHandler(&count, "body"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-None-Match", "*")
	rr := serve(mw, req)
	if rr.Code != http.StatusOK || count != 1 {
		t.Fatalf("Status is %d, handler called %d times", rr.Code, count)
	}
	if etag := rr.Header().Get("ETag"); etag != "" {
		t.Fatalf("ETag is %q", etag)
	}
}

func TestHttpCacheLastModified(t *testing.T) {
	lastModified := time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC)
	var count int
	mw := NewHttpCache(HttpCacheConfig{
		LastModified: func(r *http.Request) (time.Time, error) { return lastModified, nil },
	}).Middleware(countingHandler(&count, "body"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-Modified-Since", rfc9110.FormatHTTPDate(lastModified))
	rr := serve(mw, req)
	if rr.Code != http.StatusNotModified {
		t.Fatalf("Status is %d for equal date", rr.Code)
	}
	// without an entity tag, Last-Modified is the only validator and is sent
	if rr.Header().Get("Last-Modified") != rfc9110.FormatHTTPDate(lastModified) {
		t.Fatalf("Last-Modified is %q", rr.Header().Get("Last-Modified"))
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-Modified-Since", rfc9110.FormatHTTPDate(lastModified.Add(-time.Second)))
	if rr := serve(mw, req); rr.Code != http.StatusOK {
		t.Fatalf("Status is %d for earlier date", rr.Code)
	}
	if count != 1 {
		t.Fatalf("Next handler called %d times", count)
	}
}

func TestHttpCacheLastModifiedOmittedWhenETagMatches(t *testing.T) {
	lastModified := time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC)
	hc := NewHttpCache(HttpCacheConfig{
		LastModified: func(r *http.Request) (time.Time, error) { return lastModified, nil },
		ETagSeed:     func(r *http.Request) (any, error) { return "seed", nil },
	})
	mw := hc.Middleware(http.NotFoundHandler())

	first := serve(mw, httptest.NewRequest("GET", "/", nil))
	if first.Header().Get("Last-Modified") == "" {
		t.Fatal("Last-Modified not sent with full response")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-None-Match", first.Header().Get("ETag"))
	second := serve(mw, req)
	if second.Code != http.StatusNotModified {
		t.Fatalf("Status is %d", second.Code)
	}
	if lm := second.Header().Get("Last-Modified"); lm != "" {
		t.Fatalf("Last-Modified is %q next to a matching entity tag", lm)
	}
}

func TestHttpCacheIfNoneMatchWinsOverIfModifiedSince(t *testing.T) {
	lastModified := time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC)
	mw := NewHttpCache(HttpCacheConfig{
		LastModified: func(r *http.Request) (time.Time, error) { return lastModified, nil },
		ETagSeed:     func(r *http.Request) (any, error) { return "seed", nil },
	}).Middleware(http.NotFoundHandler())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-None-Match", `"other"`)
	req.Header.Set("If-Modified-Since", rfc9110.FormatHTTPDate(lastModified.Add(time.Hour)))
	if rr := serve(mw, req); rr.Code != http.StatusNotFound {
		t.Fatalf("Status is %d", rr.Code)
	}
}

func TestHttpCacheIfMatchFails(t *testing.T) {
	var count int
	mw := NewHttpCache(HttpCacheConfig{
		ETagSeed: func(r *http.Request) (any, error) { return "seed", nil },
	}).Middleware(countingHandler(&count, "body"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-Match", `"other"`)
	if rr := serve(mw, req); rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("Status is %d", rr.Code)
	}
	if count != 0 {
		t.Fatalf("Next handler called %d times", count)
	}
}

func TestHttpCachePassThrough(t *testing.T) {
	seed := func(r *http.Request) (any, error) { return "seed", nil }
	tests := []struct {
		name   string
		config HttpCacheConfig
		method string
	}{
		{"disabled", HttpCacheConfig{Disabled: true, ETagSeed: seed}, "GET"},
		{"post", HttpCacheConfig{ETagSeed: seed}, "POST"},
		{"no validators", HttpCacheConfig{}, "GET"},
	}
	for _, tt := range tests {
		var count int
		rr := serve(NewHttpCache(tt.config).Middleware(countingHandler(&count, "body")), httptest.NewRequest(tt.method, "/", nil))
		if count != 1 {
			t.Errorf("%s: next handler called %d times", tt.name, count)
		}
		if etag := rr.Header().Get("ETag"); etag != "" {
			t.Errorf("%s: ETag is %q", tt.name, etag)
		}
	}
}

func TestHttpCacheCacheControl(t *testing.T) {
	seed := func(r *http.Request) (any, error) { return "seed", nil }
	tests := []struct {
		name   string
		config HttpCacheConfig
		expect string
	}{
		{"literal", HttpCacheConfig{CacheControlHeader: "public, max-age=60"}, "public, max-age=60"},
		{"composed", HttpCacheConfig{CacheControl: rfc9111.CacheControlDirectives{Private: true, MaxAge: time.Minute}}, "private, max-age=60"},
		{"none", HttpCacheConfig{}, ""},
	}
	for _, tt := range tests {
		tt.config.ETagSeed = seed
		rr := serve(NewHttpCache(tt.config).Middleware(http.NotFoundHandler()), httptest.NewRequest("GET", "/", nil))
		if got := rr.Header().Get("Cache-Control"); got != tt.expect {
			t.Errorf("%s: Cache-Control is %q, expected %q", tt.name, got, tt.expect)
		}
		if pragma := rr.Header().Get("Pragma"); pragma != "" {
			t.Errorf("%s: Pragma is %q", tt.name, pragma)
		}
	}
}

func TestHttpCacheSessionCacheLimiter(t *testing.T) {
	now := time.Date(2020, time.January, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		limiter      CacheLimiter
		cacheControl string
		expires      string
		pragma       string
	}{
		{LimiterNoCache, "no-store, no-cache, must-revalidate", rfc9111.AlreadyExpired, "no-cache"},
		{LimiterPrivate, "private, max-age=10800", rfc9111.AlreadyExpired, ""},
		{LimiterPrivateNoExpire, "private, max-age=10800", "", ""},
		{LimiterPublic, "public, max-age=10800", "Wed, 01 Jan 2020 15:00:00 GMT", ""},
		{LimiterNone, "", "", ""},
	}
	for _, tt := range tests {
		hc := NewHttpCache(HttpCacheConfig{
			ETagSeed:            func(r *http.Request) (any, error) { return "seed", nil },
			SessionCacheLimiter: tt.limiter,
			now:                 func() time.Time { return now },
		})
		earlier := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "earlier")
			w.Header().Set("Pragma", "earlier")
			w.Header().Set("Expires", "earlier")
			hc.Middleware(http.NotFoundHandler()).ServeHTTP(w, r)
		})
		rr := serve(earlier, httptest.NewRequest("GET", "/", nil))
		h := rr.Header()
		if tt.limiter == LimiterNone {
			if h.Get("Cache-Control") != "" || h.Get("Pragma") != "" || h.Get("Expires") != "" {
				t.Errorf("%s: headers not removed: %v", tt.limiter, h)
			}
			continue
		}
		if got := h.Get("Cache-Control"); got != tt.cacheControl {
			t.Errorf("%s: Cache-Control is %q", tt.limiter, got)
		}
		if tt.expires != "" && h.Get("Expires") != tt.expires {
			t.Errorf("%s: Expires is %q", tt.limiter, h.Get("Expires"))
		}
		if tt.pragma != "" && h.Get("Pragma") != tt.pragma {
			t.Errorf("%s: Pragma is %q", tt.limiter, h.Get("Pragma"))
		}
	}
}

func TestHttpCacheCallbackErrorsAreIgnored(t *testing.T) {
	var count int
	mw := NewHttpCache(HttpCacheConfig{
		ETagSeed: func(r *http.Request) (any, error) { return nil, http.ErrNoCookie },
		LastModified: func(r *http.Request) (time.Time, error) {
			return time.Time{}, http.ErrNoCookie
		},
	}).Middleware(countingHandler(&count, "body"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-None-Match", "*")
	if rr := serve(mw, req); rr.Code != http.StatusOK || count != 1 {
		t.Fatalf("Status is %d, handler called %d times", rr.Code, count)
	}
}
