package rfc9110

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// §  8.8.2.  Last-Modified
// §
// §     The "Last-Modified" header field in a response provides a timestamp
// §     indicating the date and time at which the origin server believes the
// §     selected representation was last modified, as determined at the
// §     conclusion of handling the request.
// §
// §       Last-Modified = HTTP-date
// §
// §     An origin server SHOULD send Last-Modified for any selected
// §     representation for which a last modification date can be reasonably
// §     and consistently determined
func LastModified(t time.Time) string {
	return FormatHTTPDate(t)
}

// §  8.8.3.  ETag
// §
// §     The "ETag" field in a response provides the current entity tag for
// §     the selected representation, as determined at the conclusion of
// §     handling the request.  An entity tag is an opaque validator for
// §     differentiating between multiple representations of the same
// §     resource, regardless of whether those multiple representations are
// §     due to resource state changes over time, content negotiation
// §     resulting in multiple representations being valid at the same time,
// §     or both.
// §
// §       ETag       = entity-tag
// §
// §       entity-tag = [ weak ] opaque-tag
// §       weak       = %s"W/"
// §       opaque-tag = DQUOTE *etagc DQUOTE
// §       etagc      = %x21 / %x23-7E / obs-text
// §                  ; VCHAR except double quotes, plus obs-text
type ETag struct {
	// Opaque is the opaque-tag without the surrounding quotes.
	Opaque string
	Weak   bool
}

// NewETag returns an entity tag for the given opaque value.
func NewETag(opaque string, weak bool) *ETag {
	return &ETag{Opaque: opaque, Weak: weak}
}

// String formats the entity tag as sent in the ETag field.
func (e ETag) String() string {
	if e.Weak {
		return `W/"` + e.Opaque + `"`
	}
	return `"` + e.Opaque + `"`
}

var ErrMalformedETag = errors.New("malformed entity tag")

// ParseETag parses a single entity-tag.
func ParseETag(s string) (ETag, error) {
	s = strings.TrimSpace(s)
	etag := ETag{}
	if strings.HasPrefix(s, "W/") {
		etag.Weak = true
		s = s[2:]
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return ETag{}, errors.Wrapf(ErrMalformedETag, "%q", s)
	}
	opaque := s[1 : len(s)-1]
	for i := 0; i < len(opaque); i++ {
		// §     etagc      = %x21 / %x23-7E / obs-text
		if c := opaque[i]; c == '"' || c < 0x21 || c == 0x7f {
			return ETag{}, errors.Wrapf(ErrMalformedETag, "invalid character %q", c)
		}
	}
	etag.Opaque = opaque
	return etag, nil
}

// §  8.8.3.2.  Comparison
// §
// §     There are two entity tag comparison functions, depending on whether
// §     or not the comparison context allows the use of weak validators:
// §
// §     "Strong comparison":  two entity tags are equivalent if both are not
// §        weak and their opaque-tags match character-by-character.
func StrongMatch(a, b ETag) bool {
	return !a.Weak && !b.Weak && a.Opaque == b.Opaque
}

// §     "Weak comparison":  two entity tags are equivalent if their
// §        opaque-tags match character-by-character, regardless of either or
// §        both being tagged as "weak".
func WeakMatch(a, b ETag) bool {
	return a.Opaque == b.Opaque
}
