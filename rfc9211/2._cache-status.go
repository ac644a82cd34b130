// Package rfc9211 builds the Cache-Status response header field (RFC 9211).
package rfc9211

import (
	"strconv"
	"strings"
	"time"
)

// Header is the name of the response header field.
const Header = "Cache-Status"

// §  2.  The Cache-Status HTTP Response Header Field
// §
// §     The Cache-Status HTTP response header field indicates caches'
// §     handling of the request corresponding to the response it occurs
// §     within.
// §
// §     Its value is a List (Section 3.1 of [STRUCTURED-FIELDS]):
// §
// §     Cache-Status   = sf-list
// §
// §     Each member of the list represents a cache that has handled the
// §     request.  The first member of the list represents the cache closest
// §     to the origin server, and the last member of the list represents the
// §     cache closest to the user (possibly including the user agent's cache
// §     itself if it appends a value).
type CacheStatus struct {
	cache     string
	hit       bool
	fwdReason FwdReason
	ttl       *time.Duration
	stored    bool
	key       string
	detail    string
}

// New returns the status for the cache with the given identifier.
func New(cache string) *CacheStatus {
	return &CacheStatus{cache: cache}
}

// §  2.2.  The fwd Parameter
// §
// §     "fwd" indicates that the request went forward towards the origin and
// §     why.
type FwdReason string

const (
	// The cache was configured to not handle this request.
	FwdBypass FwdReason = "bypass"

	// The request method's semantics require the request to be
	// forwarded.
	FwdMethod FwdReason = "method"

	// The cache did not contain any responses that matched the
	// request URI.
	FwdUriMiss FwdReason = "uri-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdMiss FwdReason = "miss"

	// The cache was able to select a response for the request, but
	// it was stale.
	FwdStale FwdReason = "stale"
)

// §  2.1.  The hit Parameter
// §
// §     "hit", when true, indicates that the request was satisfied by the
// §     cache; that is, it was not forwarded, and the response was obtained
// §     from the cache.
func (cs *CacheStatus) Hit() {
	cs.hit = true
	cs.fwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.hit = false
	cs.fwdReason = reason
}

// §  2.4.  The ttl Parameter
// §
// §     "ttl" indicates the response's remaining freshness lifetime as
// §     calculated by the cache, as an integer number of seconds, measured
// §     when the response header section is sent by the cache.
func (cs *CacheStatus) TTL(ttl time.Duration) {
	cs.ttl = &ttl
}

// §  2.5.  The stored Parameter
// §
// §     "stored" indicates whether the cache stored the response (Section 3
// §     of [HTTP-CACHING]); a true value indicates that it did.  This
// §     parameter is only meaningful when fwd is present.
func (cs *CacheStatus) Stored() {
	cs.stored = true
}

// §  2.7.  The key Parameter
// §
// §     "key" conveys a representation of the cache key (Section 2 of
// §     [HTTP-CACHING]) used for the response.
func (cs *CacheStatus) Key(key string) {
	cs.key = key
}

// §  2.8.  The detail Parameter
// §
// §     "detail" allows implementations to convey additional information not
// §     captured in other parameters, such as implementation-specific states
// §     or other caching-related metrics.
func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

// String returns the list member for this cache.
func (cs *CacheStatus) String() string {
	var b strings.Builder
	b.WriteString(cs.cache)
	if cs.hit {
		b.WriteString("; hit")
	} else if cs.fwdReason != "" {
		b.WriteString("; fwd=" + string(cs.fwdReason))
		if cs.stored {
			b.WriteString("; stored")
		}
	}
	if cs.ttl != nil {
		b.WriteString("; ttl=" + strconv.Itoa(int(cs.ttl.Seconds())))
	}
	if cs.key != "" {
		b.WriteString("; key=" + strconv.Quote(cs.key))
	}
	if cs.detail != "" {
		b.WriteString("; detail=" + strconv.Quote(cs.detail))
	}
	return b.String()
}
