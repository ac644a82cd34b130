// Package rfc9110 implements the parts of HTTP Semantics (RFC 9110) needed to
// answer conditional requests: HTTP dates, validator fields and preconditions.
//
// Like the rfc9111 package, the relevant sections of the RFC are quoted inline
// (lines starting with `§`) next to the code implementing them.
package rfc9110

import (
	"net/http"
	"time"
)

// Validators holds the validator metadata computed for the selected
// representation of a request. It is recomputed for every request.
//
// A zero LastModified means that no modification date is available,
// a nil ETag that no entity tag is available.
type Validators struct {
	LastModified time.Time
	ETag         *ETag
}

// Empty returns whether there is nothing to validate against.
func (v Validators) Empty() bool {
	return v.LastModified.IsZero() && v.ETag == nil
}

// Outcome is the result of evaluating the preconditions of a request.
type Outcome int

const (
	// Proceed means the request method should be performed normally.
	Proceed Outcome = iota
	// NotModified means a 304 (Not Modified) response should be sent.
	NotModified
	// PreconditionFailed means a 412 (Precondition Failed) response should be sent.
	PreconditionFailed
)

// StatusCode returns the status code to respond with, or 0 for Proceed.
func (o Outcome) StatusCode() int {
	switch o {
	case NotModified:
		return http.StatusNotModified
	case PreconditionFailed:
		return http.StatusPreconditionFailed
	}
	return 0
}

func (o Outcome) String() string {
	switch o {
	case NotModified:
		return "not-modified"
	case PreconditionFailed:
		return "precondition-failed"
	}
	return "proceed"
}

// Validate reports whether the client's cached representation is still fresh,
// considering only If-None-Match and If-Modified-Since.
//
// If-Modified-Since is ignored whenever If-None-Match is present, and malformed
// field values never match. Validate has no side effects.
func Validate(r *http.Request, v Validators) bool {
	if v.Empty() {
		return false
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return IfNoneMatch(r.Header.Values("If-None-Match"), v.ETag)
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" && !v.LastModified.IsZero() {
		return IfModifiedSince(ims, v.LastModified)
	}
	return false
}

// Evaluate evaluates all supported preconditions of the request in the order
// mandated by section 13.2.2.
//
// §  13.2.2.  Precedence of Preconditions
// §
// §     When more than one conditional request header field is present in a
// §     request, the order in which the fields are evaluated becomes
// §     important.  In practice, the fields defined in this document are
// §     consistently implemented in a single, logical order, since "lost
// §     update" preconditions have more strict requirements than cache
// §     validation, a validated cache is more efficient than a partial
// §     response, and entity tags are presumed to be more accurate than date
// §     validators.
func Evaluate(r *http.Request, v Validators) Outcome {
	safe := r.Method == http.MethodGet || r.Method == http.MethodHead

	// §     1.  When recipient is the origin server and If-Match is present,
	// §         evaluate the If-Match precondition:
	// §
	// §         *  if true, continue to step 3
	// §
	// §         *  if false, respond 412 (Precondition Failed) unless it can be
	// §            determined that the state-changing request has already
	// §            succeeded (see Section 13.1.1)
	if im := r.Header.Values("If-Match"); len(im) > 0 {
		if !IfMatch(im, v.ETag) {
			return PreconditionFailed
		}
	} else if ius := r.Header.Get("If-Unmodified-Since"); ius != "" && !v.LastModified.IsZero() {
		// §     2.  When recipient is the origin server, If-Match is not present, and
		// §         If-Unmodified-Since is present, evaluate the If-Unmodified-Since
		// §         precondition:
		// §
		// §         *  if true, continue to step 3
		// §
		// §         *  if false, respond 412 (Precondition Failed) unless it can be
		// §            determined that the state-changing request has already
		// §            succeeded (see Section 13.1.4)
		if !IfUnmodifiedSince(ius, v.LastModified) {
			return PreconditionFailed
		}
	}

	// §     3.  When If-None-Match is present, evaluate the If-None-Match
	// §         precondition:
	// §
	// §         *  if true, continue to step 5
	// §
	// §         *  if false for GET/HEAD, respond 304 (Not Modified)
	// §
	// §         *  if false for other methods, respond 412 (Precondition Failed)
	if inm := r.Header.Values("If-None-Match"); len(inm) > 0 {
		if IfNoneMatch(inm, v.ETag) {
			if safe {
				return NotModified
			}
			return PreconditionFailed
		}
		return Proceed
	}

	// §     4.  When the method is GET or HEAD, If-None-Match is not present, and
	// §         If-Modified-Since is present, evaluate the If-Modified-Since
	// §         precondition:
	// §
	// §         *  if true, continue to step 5
	// §
	// §         *  if false, respond 304 (Not Modified)
	if ims := r.Header.Get("If-Modified-Since"); safe && ims != "" && !v.LastModified.IsZero() {
		if IfModifiedSince(ims, v.LastModified) {
			return NotModified
		}
	}

	// §     5.  When the method is GET and both Range and If-Range are present,
	// §         evaluate the If-Range precondition:
	//
	// Range requests are not served from the page cache, so step 5 is skipped.
	//
	// §     6.  Otherwise,
	// §
	// §         *  perform the requested method and respond according to its
	// §            success or failure.
	return Proceed
}
