package rfc9110

import (
	"strings"
	"time"
)

// §  13.1.1.  If-Match
// §
// §     The "If-Match" header field makes the request method conditional on
// §     the recipient origin server either having at least one current
// §     representation of the target resource, when the field value is "*",
// §     or having a current representation of the target resource that has
// §     an entity tag matching a member of the list of entity tags provided
// §     in the field value.
// §
// §     An origin server MUST use the strong comparison function when
// §     comparing entity tags for If-Match (Section 8.8.3.2)
// §
// §     To evaluate a received If-Match header field:
// §
// §     1.  If the field value is "*", the condition is true if the origin
// §         server has a current representation for the target resource.
// §
// §     2.  If the field value is a list of entity tags, the condition is true
// §         if any of the listed tags match the entity tag of the selected
// §         representation.
// §
// §     3.  Otherwise, the condition is false.
func IfMatch(values []string, etag *ETag) bool {
	for _, item := range SplitList(values) {
		if item == "*" {
			return etag != nil
		}
		if etag == nil {
			continue
		}
		if tag, err := ParseETag(item); err == nil && StrongMatch(tag, *etag) {
			return true
		}
	}
	return false
}

// §  13.1.2.  If-None-Match
// §
// §     The "If-None-Match" header field makes the request method conditional
// §     on a recipient cache or origin server either not having any current
// §     representation of the target resource, when the field value is "*",
// §     or having a selected representation with an entity tag that does not
// §     match any of those listed in the field value.
// §
// §     A recipient MUST use the weak comparison function when comparing
// §     entity tags for If-None-Match (Section 8.8.3.2), since weak entity
// §     tags can be used for cache validation even if there have been changes
// §     to the representation data.
//
// IfNoneMatch reports whether the field matches, i.e. whether the condition
// evaluates to false and the client's copy is current. Items are compared as
// written after stripping the weak prefix, so tags that are not quoted still
// match a computed tag formatted the same way.
func IfNoneMatch(values []string, etag *ETag) bool {
	if etag == nil {
		return false
	}
	current := strings.TrimPrefix(etag.String(), "W/")
	for _, item := range SplitList(values) {
		// §     1.  If the field value is "*", the condition is false if the origin
		// §         server has a current representation for the target resource.
		if item == "*" {
			return true
		}
		// §     2.  If the field value is a list of entity tags, the condition is
		// §         false if one of the listed tags matches the entity tag of the
		// §         selected representation.
		if strings.TrimPrefix(item, "W/") == current {
			return true
		}
	}
	// §     3.  Otherwise, the condition is true.
	return false
}

// §  13.1.3.  If-Modified-Since
// §
// §     A recipient MUST ignore the If-Modified-Since header field if the
// §     received field value is not a valid HTTP-date, the field value has
// §     more than one member, or if the request method is neither GET nor
// §     HEAD.
// §
// §     To evaluate a received If-Modified-Since header field:
// §
// §     1.  If the selected representation's last modification date is
// §         earlier or equal to the date provided in the field value, the
// §         condition is false.
// §
// §     2.  Otherwise, the condition is true.
//
// IfModifiedSince reports whether the condition is false, i.e. the
// representation was not modified. Dates are compared at second granularity.
func IfModifiedSince(value string, lastModified time.Time) bool {
	if lastModified.IsZero() {
		return false
	}
	date, err := ParseHTTPDate(value)
	if err != nil {
		return false
	}
	return lastModified.Unix() <= date.Unix()
}

// §  13.1.4.  If-Unmodified-Since
// §
// §     A recipient MUST ignore the If-Unmodified-Since header field if the
// §     received field value is not a valid HTTP-date (including when the
// §     field value appears to be a list of dates).
// §
// §     A recipient MUST ignore the If-Unmodified-Since header field if the
// §     resource does not have a modification date available.
// §
// §     To evaluate a received If-Unmodified-Since header field:
// §
// §     1.  If the selected representation's last modification date is
// §         earlier than or equal to the date provided in the field value, the
// §         condition is true.
// §
// §     2.  Otherwise, the condition is false.
func IfUnmodifiedSince(value string, lastModified time.Time) bool {
	if lastModified.IsZero() {
		return true
	}
	date, err := ParseHTTPDate(value)
	if err != nil {
		return true
	}
	return lastModified.Unix() <= date.Unix()
}
