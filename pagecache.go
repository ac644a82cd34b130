// Package pagecache provides net/http middleware for conditional requests
// (HttpCache) and for storing whole pages and replaying them (PageCache).
//
// Pages may contain dynamic regions that are rendered on every request, see
// Dynamic. Regions of a page can be cached on their own with Fragment.
package pagecache

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/always-cache/pagecache/pkg/dynamic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigError is returned when a middleware cannot be built from its configuration.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pagecache: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Dynamic reserves a region of the page being generated for r that is
// rendered by the named function on every request, also when the page is
// served from the cache. The returned string must be written to the page.
//
// Outside of a PageCache the content is rendered right away if the request
// carries a stack, and is empty otherwise.
func Dynamic(r *http.Request, name string, args ...string) string {
	stack := dynamic.FromContext(r.Context())
	if stack == nil {
		log.Warn().Str("name", name).Msg("Dynamic content requested without page cache")
		return ""
	}
	return stack.Add(r.Context(), name, args...)
}

// WithDynamic returns a request carrying a stack rendering with registry,
// unless it already carries one. Handlers outside of a PageCache can use it to
// render dynamic content directly.
func WithDynamic(r *http.Request, registry *dynamic.Registry, logger *zerolog.Logger) (*http.Request, *dynamic.Stack) {
	if stack := dynamic.FromContext(r.Context()); stack != nil {
		return r, stack
	}
	stack := dynamic.NewStack(registry, logger)
	return r.WithContext(dynamic.WithStack(r.Context(), stack)), stack
}

func loggerOrGlobal(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		return &log.Logger
	}
	return logger
}

// getRequestSourceIp returns the IP of RemoteAddr without port.
func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
