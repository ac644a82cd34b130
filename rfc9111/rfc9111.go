// Package rfc9111 implements the response-side parts of HTTP Caching (RFC 9111)
// used when page snapshots are stored and when caching headers are emitted:
// Cache-Control parsing and composition, storable header fields, Expires and Pragma.
//
// Sections of the RFC are quoted with lines starting with `§`.
package rfc9111
