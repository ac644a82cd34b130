package rfc9111

import (
	"strings"
	"time"

	"github.com/always-cache/pagecache/rfc9110"
)

// CacheControl implements parsing of the "Cache-Control" header (/field).
//
// §  5.2. Cache-Control
// §
// §  The "Cache-Control" header field is used to list directives for caches along
// §  the request/response chain. [...] Cache directives are identified by a token,
// §  to be compared case-insensitively, and have an optional argument that can use
// §  both token and quoted-string syntax.
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]
type CacheControl struct {
	directives map[string]string
}

// Get returns the value (/argument) of the specified directive,
// along with a boolean indicating whether this directive is present
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[strings.ToLower(directive)]
	return val, ok
}

// HasDirective returns whether the specified directive is present
func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// ParseCacheControl takes Cache-Control headers as a slice of strings
// and returns an instance of `CacheControl`.
func ParseCacheControl(headers []string) CacheControl {
	m := make(map[string]string)
	// last defined directive wins
	for _, directive := range splitDirectives(headers) {
		name, arg, _ := strings.Cut(directive, "=")
		// §  [...] to be compared case-insensitively [...]
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		// §  [...] argument that can use both token and quoted-string syntax. [...]
		m[name] = strings.Trim(strings.TrimSpace(arg), `"`)
	}
	return CacheControl{m}
}

// splitDirectives splits the list on commas that are not inside a
// quoted-string, e.g. `private="Set-Cookie, X-Foo"` is one directive.
func splitDirectives(headers []string) []string {
	var directives []string
	for _, header := range headers {
		quoted := false
		start := 0
		for i := 0; i < len(header); i++ {
			switch header[i] {
			case '"':
				quoted = !quoted
			case ',':
				if !quoted {
					directives = append(directives, header[start:i])
					start = i + 1
				}
			}
		}
		directives = append(directives, header[start:])
	}
	return directives
}

// §  5.2.2.1. max-age
// §
// §  Argument syntax:
// §
// §      delta-seconds (see Section 1.2.2)
// §
// §  The max-age response directive indicates that the response is to be considered
// §  stale after its age is greater than the specified number of seconds.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("max-age")
}

// §  5.2.2.10.  s-maxage
// §
// §     The s-maxage response directive indicates that, for a shared cache,
// §     the maximum age specified by this directive overrides the maximum age
// §     specified by either the max-age directive or the Expires header
// §     field.
func (c CacheControl) SMaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("s-maxage")
}

// getDeltaSeconds returns the "delta-seconds" as `time.Duration`,
// as well as a boolean indicating whether the directive was set.
//
// Examples:
// directive    -> 0,  false
// directive=0  -> 0,  true
// directive=60 -> 60, true
func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool) {
	if secondsStr, ok := c.Get(directive); ok && secondsStr != "" {
		return deltaSeconds(secondsStr), true
	}
	return 0, false
}

// CacheControlDirectives composes a Cache-Control response header.
// The zero value composes an empty header, which must not be sent.
type CacheControlDirectives struct {
	// §  5.2.2.9.  public
	// §
	// §     The public response directive indicates that a cache MAY store the
	// §     response even if it would otherwise be prohibited
	Public bool `yaml:"public"`
	// §  5.2.2.7.  private
	// §
	// §     The unqualified private response directive indicates that a shared
	// §     cache MUST NOT store the response
	Private bool `yaml:"private"`
	// MaxAge is sent when non-zero or when MaxAgeSet is true.
	MaxAge    time.Duration `yaml:"maxAge"`
	MaxAgeSet bool          `yaml:"maxAgeSet"`
	// §  5.2.2.2.  must-revalidate
	// §
	// §     The must-revalidate response directive indicates that once the
	// §     response has become stale, a cache MUST NOT reuse that response to
	// §     satisfy another request until it has been successfully validated by
	// §     the origin
	MustRevalidate bool `yaml:"mustRevalidate"`
	// §  5.2.2.4.  no-cache
	// §
	// §     The no-cache response directive, in its unqualified form (without an
	// §     argument), indicates that the response MUST NOT be used to satisfy
	// §     any other request without forwarding it for validation and receiving
	// §     a successful response
	NoCache bool `yaml:"noCache"`
	// §  5.2.2.5.  no-store
	// §
	// §     The no-store response directive indicates that a cache MUST NOT store
	// §     any part of either the immediate request or the response
	NoStore bool `yaml:"noStore"`
}

// String returns the header value, or "" when no directive is set.
// Private wins over public when both are set.
func (d CacheControlDirectives) String() string {
	var parts []string
	switch {
	case d.Private:
		parts = append(parts, "private")
	case d.Public:
		parts = append(parts, "public")
	}
	if d.NoStore {
		parts = append(parts, "no-store")
	}
	if d.NoCache {
		parts = append(parts, "no-cache")
	}
	if d.MaxAge != 0 || d.MaxAgeSet {
		// §  This directive uses the token form of the argument syntax: e.g.,
		// §  'max-age=5' not 'max-age="5"'. A sender MUST NOT generate the
		// §  quoted-string form.
		parts = append(parts, "max-age="+ToDeltaSeconds(d.MaxAge))
	}
	if d.MustRevalidate {
		parts = append(parts, "must-revalidate")
	}
	return strings.Join(parts, ", ")
}

// Directives returns the directives of a parsed header as a composer.
// Unknown directives are dropped.
func (c CacheControl) Directives() CacheControlDirectives {
	maxAge, maxAgeSet := c.MaxAge()
	return CacheControlDirectives{
		Public:         c.HasDirective("public"),
		Private:        c.HasDirective("private"),
		MaxAge:         maxAge,
		MaxAgeSet:      maxAgeSet,
		MustRevalidate: c.HasDirective("must-revalidate"),
		NoCache:        c.HasDirective("no-cache"),
		NoStore:        c.HasDirective("no-store"),
	}
}

// ListValues returns the list argument of a directive, such as the field names
// of a qualified private or no-cache.
func (c CacheControl) ListValues(directive string) []string {
	val, ok := c.Get(directive)
	if !ok || val == "" {
		return nil
	}
	return rfc9110.SplitList([]string{val})
}
