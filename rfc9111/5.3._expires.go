package rfc9111

import (
	"net/http"
	"time"

	"github.com/always-cache/pagecache/rfc9110"
)

// §  5.3.  Expires
// §
// §     The "Expires" response header field gives the date/time after which
// §     the response is considered stale.
// §
// §       Expires = HTTP-date
// §
// §     A cache recipient MUST interpret invalid date formats, especially the
// §     value "0", as representing a time in the past (i.e., "already
// §     expired").
// §
// §     If a response includes a Cache-Control header field with the max-age
// §     directive (Section 5.2.2.1), a recipient MUST ignore the Expires
// §     header field.
//
// GetExpires returns the expiry of the response header and whether there is one.
// Invalid dates are returned as the zero time, which is in the past.
func GetExpires(header http.Header) (time.Time, bool) {
	if ParseCacheControl(header.Values("Cache-Control")).HasDirective("max-age") {
		return time.Time{}, false
	}
	value := header.Get("Expires")
	if value == "" {
		return time.Time{}, false
	}
	exp, err := rfc9110.ParseHTTPDate(value)
	if err != nil {
		return time.Time{}, true
	}
	return exp, true
}

// Expires formats an Expires field value.
//
// §     An origin server without a clock (Section 5.6.7 of [HTTP]) MUST NOT
// §     generate an Expires header field unless its value represents a fixed
// §     time in the past (always expired) or its value has been associated
// §     with the resource by a system with a clock.
func Expires(t time.Time) string {
	return rfc9110.FormatHTTPDate(t)
}

// AlreadyExpired is a fixed date in the past, as sent for uncacheable responses.
var AlreadyExpired = Expires(time.Date(1981, time.November, 19, 8, 52, 0, 0, time.UTC))
