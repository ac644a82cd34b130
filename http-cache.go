package pagecache

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/always-cache/pagecache/rfc9110"
	"github.com/always-cache/pagecache/rfc9111"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CacheLimiter selects the classic session cache limiter headers.
type CacheLimiter string

const (
	// LimiterUntouched leaves headers set earlier in the chain untouched.
	LimiterUntouched CacheLimiter = ""
	// LimiterNone removes Expires, Cache-Control, Last-Modified and Pragma set earlier.
	LimiterNone            CacheLimiter = "none"
	LimiterNoCache         CacheLimiter = "nocache"
	LimiterPrivate         CacheLimiter = "private"
	LimiterPrivateNoExpire CacheLimiter = "private_no_expire"
	LimiterPublic          CacheLimiter = "public"
)

const defaultSessionCacheExpire = 180 * time.Minute

type HttpCacheConfig struct {
	// Disabled turns the middleware into a pass-through.
	Disabled bool
	// LastModified returns the modification time of the requested
	// representation, or the zero time if there is none.
	LastModified func(r *http.Request) (time.Time, error)
	// ETagSeed returns a value identifying the requested representation.
	// It is JSON encoded and hashed, a nil seed means no entity tag.
	ETagSeed func(r *http.Request) (any, error)
	// WeakETag makes generated entity tags weak.
	WeakETag bool
	// ETagVersion is hashed into generated entity tags, change it to
	// invalidate all of them.
	ETagVersion string
	// CacheControlHeader is sent as Cache-Control as is.
	// CacheControl is composed into the header when it is empty.
	CacheControlHeader string
	CacheControl       rfc9111.CacheControlDirectives
	// SessionCacheLimiter adds or removes headers the way session cache limiters do.
	SessionCacheLimiter CacheLimiter
	// SessionCacheExpire is the lifetime used by the private and public
	// limiters, 180 minutes by default.
	SessionCacheExpire time.Duration
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// now is replaced in tests.
	now func() time.Time
}

// HttpCache answers conditional GET and HEAD requests with 304 (Not Modified)
// when the client's copy is still current, without calling the next handler.
type HttpCache struct {
	config HttpCacheConfig
	log    *zerolog.Logger
}

func NewHttpCache(config HttpCacheConfig) *HttpCache {
	if config.SessionCacheExpire == 0 {
		config.SessionCacheExpire = defaultSessionCacheExpire
	}
	if config.now == nil {
		config.now = time.Now
	}
	return &HttpCache{
		config: config,
		log:    loggerOrGlobal(config.Logger),
	}
}

func (h *HttpCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.Disabled || !isSafeMethod(r.Method) ||
			h.config.LastModified == nil && h.config.ETagSeed == nil {
			next.ServeHTTP(w, r)
			return
		}

		v := h.Validators(r)
		header := w.Header()
		h.sendCacheControlHeader(header)
		if v.ETag != nil {
			header.Set("ETag", v.ETag.String())
		}

		outcome := rfc9110.Evaluate(r, v)
		fresh := outcome == rfc9110.NotModified
		// Last-Modified is redundant next to a matching entity tag
		if !v.LastModified.IsZero() && (!fresh || v.ETag == nil) {
			header.Set("Last-Modified", rfc9110.LastModified(v.LastModified))
		}

		h.log.Trace().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Str("outcome", outcome.String()).
			Msg("Evaluated preconditions")

		if outcome != rfc9110.Proceed {
			w.WriteHeader(outcome.StatusCode())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Validators computes the validators of the representation selected by r.
// Callback errors are logged and treated as missing validators.
func (h *HttpCache) Validators(r *http.Request) rfc9110.Validators {
	var v rfc9110.Validators
	if h.config.LastModified != nil {
		if lastModified, err := h.config.LastModified(r); err != nil {
			h.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not get last modification time")
		} else {
			v.LastModified = lastModified
		}
	}
	if h.config.ETagSeed != nil {
		if seed, err := h.config.ETagSeed(r); err != nil {
			h.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not get etag seed")
		} else if seed != nil {
			if etag, err := h.generateETag(r, seed); err != nil {
				h.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not generate etag")
			} else {
				v.ETag = etag
			}
		}
	}
	return v
}

// generateETag hashes the route, the version and the seed. The route is the
// chi route pattern when there is one, else the URL path.
func (h *HttpCache) generateETag(r *http.Request, seed any) (*rfc9110.ETag, error) {
	encoded, err := json.Marshal(seed)
	if err != nil {
		return nil, err
	}
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}
	hash := sha1.New()
	hash.Write([]byte(route))
	hash.Write([]byte{0})
	hash.Write([]byte(h.config.ETagVersion))
	hash.Write([]byte{0})
	hash.Write(encoded)
	return rfc9110.NewETag(base64.RawStdEncoding.EncodeToString(hash.Sum(nil)), h.config.WeakETag), nil
}

func (h *HttpCache) sendCacheControlHeader(header http.Header) {
	h.applySessionCacheLimiter(header)
	cacheControl := h.config.CacheControlHeader
	if cacheControl == "" {
		cacheControl = h.config.CacheControl.String()
	}
	if cacheControl != "" {
		header.Set("Cache-Control", cacheControl)
	}
}

func (h *HttpCache) applySessionCacheLimiter(header http.Header) {
	maxAge := "max-age=" + strconv.FormatInt(int64(h.config.SessionCacheExpire/time.Second), 10)
	switch h.config.SessionCacheLimiter {
	case LimiterNone:
		header.Del("Expires")
		header.Del("Cache-Control")
		header.Del("Last-Modified")
		header.Del("Pragma")
	case LimiterNoCache:
		header.Set("Expires", rfc9111.AlreadyExpired)
		header.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		header.Set("Pragma", rfc9111.PragmaNoCache)
	case LimiterPrivate:
		header.Set("Expires", rfc9111.AlreadyExpired)
		header.Set("Cache-Control", "private, "+maxAge)
	case LimiterPrivateNoExpire:
		header.Set("Cache-Control", "private, "+maxAge)
	case LimiterPublic:
		header.Set("Expires", rfc9111.Expires(h.config.now().Add(h.config.SessionCacheExpire)))
		header.Set("Cache-Control", "public, "+maxAge)
	}
}
