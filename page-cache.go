package pagecache

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/always-cache/pagecache/cache"
	cachekey "github.com/always-cache/pagecache/pkg/cache-key"
	"github.com/always-cache/pagecache/pkg/dynamic"
	tee "github.com/always-cache/pagecache/pkg/response-writer-tee"
	"github.com/always-cache/pagecache/rfc9111"
	"github.com/always-cache/pagecache/rfc9211"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultNamespace is the first token of page keys.
	DefaultNamespace = "pagecache.PageCache"
	cacheStatusName  = "PageCache"
)

type PageCacheConfig struct {
	// Storage for pages.
	Cache *cache.Cache
	// Duration pages are stored for, 0 means until the dependency changes.
	Duration time.Duration
	// Dependency of stored pages, if any.
	Dependency *cache.DependencySpec
	// Variations partition the pages of a route, e.g. by language.
	Variations []Variation
	// IgnoreRoute leaves the request path out of the key.
	IgnoreRoute bool
	// Namespace of the keys, DefaultNamespace if empty.
	Namespace string
	// Disabled turns the middleware into a pass-through.
	Disabled bool
	// Methods that are cached, GET and HEAD if empty.
	Methods []string
	// CacheCookies selects the stored cookies, none by default.
	CacheCookies Collection
	// CacheHeaders selects the stored header fields, all by default.
	CacheHeaders Collection
	// BeforeCache is called before a generated page is stored. Returning
	// false prevents storing, the returned bytes are stored with the page.
	BeforeCache func(r *http.Request, res *CapturedResponse) (extra []byte, ok bool)
	// AfterRestore is called with the stored bytes when a page is replayed.
	AfterRestore func(r *http.Request, extra []byte)
	// Dynamic renders dynamic regions. Without it, they render empty.
	Dynamic *dynamic.Registry
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// CapturedResponse is a generated page before it is stored.
type CapturedResponse struct {
	StatusCode int
	Header     http.Header
	Cookies    map[string]*http.Cookie
	Body       []byte
}

// PageCache stores generated pages and replays them for later requests with
// the same key, without calling the next handler.
type PageCache struct {
	cache        *cache.Cache
	duration     time.Duration
	dependency   cache.Dependency
	variations   []Variation
	ignoreRoute  bool
	namespace    string
	disabled     bool
	methods      map[string]bool
	cacheCookies Collection
	cacheHeaders Collection
	beforeCache  func(*http.Request, *CapturedResponse) ([]byte, bool)
	afterRestore func(*http.Request, []byte)
	registry     *dynamic.Registry
	log          *zerolog.Logger
}

// NewPageCache validates the configuration and returns the middleware.
// Errors are of type *ConfigError.
func NewPageCache(config PageCacheConfig) (*PageCache, error) {
	if config.Cache == nil {
		return nil, &ConfigError{Field: "cache", Err: errors.New("cache is required")}
	}
	p := &PageCache{
		cache:        config.Cache,
		duration:     config.Duration,
		variations:   config.Variations,
		ignoreRoute:  config.IgnoreRoute,
		namespace:    config.Namespace,
		disabled:     config.Disabled,
		methods:      make(map[string]bool),
		cacheCookies: config.CacheCookies.orDefault(CollectNone),
		cacheHeaders: config.CacheHeaders.orDefault(CollectAll),
		beforeCache:  config.BeforeCache,
		afterRestore: config.AfterRestore,
		registry:     config.Dynamic,
		log:          loggerOrGlobal(config.Logger),
	}
	if p.namespace == "" {
		p.namespace = DefaultNamespace
	}
	if config.Dependency != nil {
		dep, err := config.Cache.Resolver().Resolve(*config.Dependency)
		if err != nil {
			return nil, &ConfigError{Field: "dependency", Err: err}
		}
		p.dependency = dep
	}
	for _, v := range config.Variations {
		if _, err := ParseVariation(v.String()); err != nil {
			return nil, &ConfigError{Field: "variations", Err: err}
		}
	}
	methods := config.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodHead}
	}
	for _, m := range methods {
		p.methods[strings.ToUpper(m)] = true
	}
	return p, nil
}

// Key returns the cache key of the page requested by r.
func (p *PageCache) Key(r *http.Request) cachekey.Key {
	key := cachekey.New(p.namespace)
	if !p.ignoreRoute {
		key = key.With(r.URL.Path)
	}
	for _, v := range p.variations {
		key = key.With(v.Value(r))
	}
	return key
}

func (p *PageCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.disabled || !p.methods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}
		r, stack := WithDynamic(r, p.registry, p.log)
		key := p.Key(r)
		logger := p.log.With().Str("key", key.Readable()).Logger()

		if s, ok := p.lookup(r.Context(), key.String(), &logger); ok {
			p.replay(w, r, stack, s, &logger)
			return
		}
		p.generate(w, r, next, stack, key.String(), &logger)
	})
}

// lookup returns the stored snapshot, if any.
func (p *PageCache) lookup(ctx context.Context, key string, logger *zerolog.Logger) (*Snapshot, bool) {
	b, ok := p.cache.Get(ctx, key)
	if !ok {
		logger.Trace().Msg("Page cache miss")
		return nil, false
	}
	s, err := decodeSnapshot(b)
	if err != nil {
		logger.Debug().Err(err).Msg("Ignoring stored page")
		return nil, false
	}
	return s, true
}

func (p *PageCache) replay(w http.ResponseWriter, r *http.Request, stack *dynamic.Stack, s *Snapshot, logger *zerolog.Logger) {
	header := w.Header()
	restoreHeader(header, s.Header)
	mergeCookies(header, s.Cookies)
	body := stack.Update(r.Context(), s.Body, s.Placeholders, true)
	if p.afterRestore != nil {
		p.afterRestore(r, s.Extra)
	}

	cs := rfc9211.New(cacheStatusName)
	cs.Hit()
	header.Del("Content-Length")
	header.Add(rfc9211.Header, cs.String())
	w.WriteHeader(s.StatusCode)
	if _, err := w.Write(body); err != nil {
		logger.Error().Err(err).Msg("Could not write response body to client")
	}
	p.logRequest(r, cs, s.StatusCode, logger)
}

func (p *PageCache) generate(w http.ResponseWriter, r *http.Request, next http.Handler, stack *dynamic.Stack, key string, logger *zerolog.Logger) {
	rw := tee.NewResponseSaver(w)
	stack.Push()
	popped := false
	defer func() {
		if rec := recover(); rec != nil {
			if !popped {
				stack.Pop()
			}
			rw.Reset()
			logger.Warn().Interface("panic", rec).Msg("Page generation panicked, discarding capture")
			panic(rec)
		}
	}()

	next.ServeHTTP(rw, r)

	scope := stack.Pop()
	popped = true

	cs := rfc9211.New(cacheStatusName)
	cs.Forward(rfc9211.FwdUriMiss)
	if p.store(r, rw, scope, key, logger) {
		cs.Stored()
	}

	body := stack.Update(r.Context(), rw.Body(), scope.Placeholders(), false)
	header := rw.SentHeader()
	header.Del("Content-Length")
	header.Add(rfc9211.Header, cs.String())
	if err := rw.Send(body); err != nil {
		logger.Error().Err(err).Msg("Could not write response body to client")
	}
	p.logRequest(r, cs, rw.StatusCode(), logger)
}

// store persists the captured page unless it is vetoed or empty. Header
// fields and cookies inherited unchanged from earlier middleware are not
// stored; that middleware sets them again when the page is replayed.
func (p *PageCache) store(r *http.Request, rw *tee.ResponseSaver, scope *dynamic.Scope, key string, logger *zerolog.Logger) bool {
	captured := storedFields(rfc9111.StorableHeader(rw.SentHeader()))

	var extra []byte
	if p.beforeCache != nil {
		var ok bool
		extra, ok = p.beforeCache(r, &CapturedResponse{
			StatusCode: rw.StatusCode(),
			Header:     captured,
			Cookies:    parseSetCookies(rw.SentHeader()),
			Body:       rw.Body(),
		})
		if !ok {
			logger.Trace().Msg("Storing page vetoed")
			return false
		}
	}
	if len(rw.Body()) == 0 {
		logger.Trace().Msg("Not storing empty page")
		return false
	}

	own := withoutInherited(rfc9111.StorableHeader(rw.SentHeader()), rw.InheritedHeader())
	cookies := parseSetCookies(own)
	header := storedFields(own)

	s := &Snapshot{
		Version:      SnapshotVersion,
		Proto:        r.Proto,
		StatusCode:   rw.StatusCode(),
		Reason:       http.StatusText(rw.StatusCode()),
		Header:       p.cacheHeaders.filterHeader(header),
		Cookies:      p.cacheCookies.filterCookies(cookies),
		Body:         rw.Body(),
		Placeholders: scope.Placeholders(),
		Extra:        extra,
	}
	b, err := encodeSnapshot(s)
	if err != nil {
		logger.Error().Err(err).Msg("Could not encode page")
		return false
	}
	return p.cache.Set(r.Context(), key, b, p.duration, p.dependency)
}

// storedFields removes the fields that are kept apart from or never part of
// a snapshot header.
func storedFields(header http.Header) http.Header {
	header.Del("Set-Cookie")
	header.Del("Content-Length")
	header.Del(rfc9211.Header)
	return header
}

func (p *PageCache) logRequest(r *http.Request, cs *rfc9211.CacheStatus, status int, logger *zerolog.Logger) {
	logger.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", getRequestSourceIp(r)).
		Int("status", status).
		Str("cacheStatus", cs.String()).
		Msg("Sending response to client")
}
