package rfc9111

// §  5.4.  Pragma
// §
// §     The "Pragma" request header field was defined for HTTP/1.0 caches, so
// §     that clients could specify a "no-cache" request (as Cache-Control was
// §     not defined until HTTP/1.1).
// §
// §     However, support for Cache-Control is now widespread.  As a result,
// §     this specification deprecates Pragma.
//
// PragmaNoCache is still sent next to "Cache-Control: no-cache" for HTTP/1.0
// clients when the session cache limiter asks for it.
const PragmaNoCache = "no-cache"
