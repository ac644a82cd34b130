package pagecache

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/always-cache/pagecache/cache"
	"github.com/always-cache/pagecache/rfc9111"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the configuration file of the caching proxy.
type Config struct {
	Server ServerConfig         `yaml:"server"`
	Store  cache.ProviderConfig `yaml:"store"`
	// Databases maps names used by sql dependencies to sqlite data sources.
	Databases map[string]string `yaml:"databases"`
	Rules     []Rule            `yaml:"rules"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	Origin string `yaml:"origin"`
	// OriginHost overrides the Host header sent to the origin.
	OriginHost string `yaml:"originHost"`
}

// Rule applies caching to the requests under a path prefix.
type Rule struct {
	Prefix       string                `yaml:"prefix"`
	Methods      []string              `yaml:"methods"`
	Duration     time.Duration         `yaml:"duration"`
	Variations   []Variation           `yaml:"variations"`
	CacheHeaders Collection            `yaml:"cacheHeaders"`
	CacheCookies Collection            `yaml:"cacheCookies"`
	Dependency   *cache.DependencySpec `yaml:"dependency"`
	// NoStore disables the page cache for the prefix, e.g. to only
	// answer conditional requests.
	NoStore   bool           `yaml:"noStore"`
	HttpCache *HttpCacheRule `yaml:"httpCache"`
}

type HttpCacheRule struct {
	CacheControl string                         `yaml:"cacheControl"`
	Directives   rfc9111.CacheControlDirectives `yaml:"directives"`
	WeakETag     bool                           `yaml:"weakEtag"`
	ETagVersion  string                         `yaml:"etagVersion"`
	// ETagFromDependency derives entity tags from the fingerprint of the
	// rule dependency.
	ETagFromDependency bool `yaml:"etagFromDependency"`
	// LastModifiedFile is a file whose modification time is sent as Last-Modified.
	LastModifiedFile    string        `yaml:"lastModifiedFile"`
	SessionCacheLimiter CacheLimiter  `yaml:"sessionCacheLimiter"`
	SessionCacheExpire  time.Duration `yaml:"sessionCacheExpire"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, &ConfigError{Field: "config", Err: err}
	}
	return config, config.Validate()
}

// Validate checks the parts of the configuration that do not need a cache.
func (c Config) Validate() error {
	if c.Server.Origin != "" {
		u, err := url.Parse(c.Server.Origin)
		if err != nil {
			return &ConfigError{Field: "server.origin", Err: err}
		}
		if u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: "server.origin", Err: errors.Errorf("%q is not an absolute URL", c.Server.Origin)}
		}
	}
	for i, rule := range c.Rules {
		if !strings.HasPrefix(rule.Prefix, "/") {
			return &ConfigError{Field: "rules", Err: errors.Errorf("rule %d: prefix %q must start with /", i, rule.Prefix)}
		}
		if rule.Duration < 0 {
			return &ConfigError{Field: "rules", Err: errors.Errorf("rule %d: negative duration", i)}
		}
		if rule.HttpCache != nil {
			switch rule.HttpCache.SessionCacheLimiter {
			case LimiterUntouched, LimiterNone, LimiterNoCache, LimiterPrivate, LimiterPrivateNoExpire, LimiterPublic:
			default:
				return &ConfigError{Field: "rules", Err: errors.Errorf("rule %d: unknown session cache limiter %q", i, rule.HttpCache.SessionCacheLimiter)}
			}
			if rule.HttpCache.ETagFromDependency && rule.Dependency == nil {
				return &ConfigError{Field: "rules", Err: errors.Errorf("rule %d: etagFromDependency requires a dependency", i)}
			}
		}
	}
	return nil
}

// Match returns the first rule applying to r.
func (c Config) Match(r *http.Request) (int, bool) {
	for i, rule := range c.Rules {
		if rule.Matches(r) {
			return i, true
		}
	}
	return -1, false
}

// Matches reports whether the rule applies to r. Rules without methods apply
// to every method; the page cache itself only stores its own methods.
func (rule Rule) Matches(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, rule.Prefix) {
		return false
	}
	if len(rule.Methods) == 0 {
		return true
	}
	for _, m := range rule.Methods {
		if strings.EqualFold(m, r.Method) {
			return true
		}
	}
	return false
}

// Middleware builds the middleware chain of the rule: HttpCache, if
// configured, wrapping PageCache.
func (rule Rule) Middleware(c *cache.Cache, logger *zerolog.Logger) (func(http.Handler) http.Handler, error) {
	var dep cache.Dependency
	if rule.Dependency != nil {
		d, err := c.Resolver().Resolve(*rule.Dependency)
		if err != nil {
			return nil, &ConfigError{Field: "dependency", Err: err}
		}
		dep = d
	}

	var pages *PageCache
	if !rule.NoStore {
		p, err := NewPageCache(PageCacheConfig{
			Cache:        c,
			Duration:     rule.Duration,
			Dependency:   rule.Dependency,
			Variations:   rule.Variations,
			Methods:      rule.Methods,
			CacheHeaders: rule.CacheHeaders,
			CacheCookies: rule.CacheCookies,
			BeforeCache:  storableResponse,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		pages = p
	}

	var conditional *HttpCache
	if hc := rule.HttpCache; hc != nil {
		config := HttpCacheConfig{
			WeakETag:            hc.WeakETag,
			ETagVersion:         hc.ETagVersion,
			CacheControlHeader:  hc.CacheControl,
			CacheControl:        hc.Directives,
			SessionCacheLimiter: hc.SessionCacheLimiter,
			SessionCacheExpire:  hc.SessionCacheExpire,
			Logger:              logger,
		}
		if hc.ETagFromDependency {
			if dep == nil {
				return nil, &ConfigError{Field: "httpCache", Err: errors.New("etagFromDependency requires a dependency")}
			}
			config.ETagSeed = func(r *http.Request) (any, error) {
				fingerprint, err := dep.Evaluate(r.Context())
				if err != nil {
					return nil, err
				}
				return []string{r.URL.RequestURI(), fingerprint}, nil
			}
		}
		if hc.LastModifiedFile != "" {
			filename := hc.LastModifiedFile
			config.LastModified = func(r *http.Request) (time.Time, error) {
				info, err := os.Stat(filename)
				if err != nil {
					return time.Time{}, err
				}
				return info.ModTime(), nil
			}
		}
		conditional = NewHttpCache(config)
	}

	return func(next http.Handler) http.Handler {
		if pages != nil {
			next = pages.Middleware(next)
		}
		if conditional != nil {
			next = conditional.Middleware(next)
		}
		return next
	}, nil
}

// storableResponse keeps responses the origin marked as not storable out of
// the page cache.
func storableResponse(r *http.Request, res *CapturedResponse) ([]byte, bool) {
	if rfc9111.ForbidsStorage(res.StatusCode, res.Header) {
		return nil, false
	}
	return nil, true
}
