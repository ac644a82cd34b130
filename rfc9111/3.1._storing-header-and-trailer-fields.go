package rfc9111

import (
	"net/http"

	"github.com/always-cache/pagecache/rfc9110"
)

// §  3.  Storing Responses in Caches
// §
// §     A cache MUST NOT store a response to a request unless:
//
// ForbidsStorage returns whether a generated response forbids being stored,
// looking only at the parts that a page cache can know about: the final status
// code and the response directives. Requests are keyed by the page cache itself.
func ForbidsStorage(statusCode int, header http.Header) bool {
	cc := ParseCacheControl(header.Values("Cache-Control"))
	// §     *  the response status code is final (see Section 15 of [HTTP]);
	if statusCode < 200 || statusCode > 599 {
		return true
	}
	// §     *  if the response status code is 206 or 304, or the must-understand
	// §        cache directive (see Section 5.2.2.3) is present: the cache
	// §        understands the response status code;
	if statusCode == http.StatusPartialContent || statusCode == http.StatusNotModified {
		return true
	}
	// §     *  the no-store cache directive is not present in the response (see
	// §        Section 5.2.2.5);
	// §
	// §     *  if the cache is shared: the private response directive is either
	// §        not present or allows a shared cache to store a modified response;
	return cc.HasDirective("no-store") || cc.HasDirective("private")
}

// §  3.1.  Storing Header and Trailer Fields
// §
// §     Caches MUST include all received response header fields -- including
// §     unrecognized ones -- when storing a response; this assures that new
// §     HTTP header fields can be successfully deployed.  However, the
// §     following exceptions are made:
//
// StorableHeader returns a copy of the header without the fields that must not
// be stored. A nil header stays nil.
func StorableHeader(header http.Header) http.Header {
	if header == nil {
		return nil
	}
	h := header.Clone()
	// §     *  The Connection header field and fields whose names are listed in
	// §        it are required by Section 7.6.1 of [HTTP] to be removed before
	// §        forwarding the message.  This MAY be implemented by doing so
	// §        before storage.
	for _, field := range rfc9110.ListHeader(header, "Connection") {
		h.Del(field)
	}
	// §     *  Likewise, some fields' semantics require them to be removed before
	// §        forwarding the message, and this MAY be implemented by doing so
	// §        before storage; see Section 7.6.1 of [HTTP] for some examples.
	for _, field := range hopByHopFields {
		h.Del(field)
	}
	// §     *  Header fields that are specific to the proxy that a cache uses
	// §        when forwarding a request MUST NOT be stored, unless the cache
	// §        incorporates the identity of the proxy into the cache key.
	// §        Effectively, this is limited to Proxy-Authenticate (Section 11.7.1
	// §        of [HTTP]), Proxy-Authentication-Info (Section 11.7.3 of [HTTP]),
	// §        and Proxy-Authorization (Section 11.7.2 of [HTTP]).
	h.Del("Proxy-Authenticate")
	h.Del("Proxy-Authentication-Info")
	h.Del("Proxy-Authorization")
	return h
}

var hopByHopFields = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}
