package pagecache

import (
	"bytes"
	"encoding/gob"
	"net/http"
	"slices"
	"sort"

	"github.com/always-cache/pagecache/pkg/dynamic"
	"github.com/pkg/errors"
)

// SnapshotVersion is the format version of stored snapshots.
// Snapshots of any other version are ignored.
const SnapshotVersion = 2

// Snapshot is a stored page.
type Snapshot struct {
	Version    int
	Proto      string
	StatusCode int
	// Reason is the reason phrase of the status line. net/http always sends
	// the standard phrase, so it is kept for logging only.
	Reason string
	// Header never contains Set-Cookie, cookies are kept in Cookies.
	Header  http.Header
	Cookies map[string]*http.Cookie
	// Body may contain placeholder tokens.
	Body         []byte
	Placeholders []dynamic.Placeholder
	// Extra is the payload returned by the BeforeCache hook.
	Extra []byte
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	return buf.Bytes(), nil
}

// decodeSnapshot decodes a stored snapshot, failing for foreign versions.
func decodeSnapshot(b []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}
	if s.Version != SnapshotVersion {
		return nil, errors.Errorf("snapshot version %d, expected %d", s.Version, SnapshotVersion)
	}
	return &s, nil
}

// parseSetCookies returns the cookies set by the Set-Cookie fields of header.
// The last cookie of a name wins.
func parseSetCookies(header http.Header) map[string]*http.Cookie {
	cookies := make(map[string]*http.Cookie)
	for _, line := range header.Values("Set-Cookie") {
		if cookie, err := http.ParseSetCookie(line); err == nil {
			cookies[cookie.Name] = cookie
		}
	}
	return cookies
}

// mergeCookies adds the stored cookies to the Set-Cookie fields of header,
// skipping names already set there.
func mergeCookies(header http.Header, stored map[string]*http.Cookie) {
	if len(stored) == 0 {
		return
	}
	live := parseSetCookies(header)
	names := make([]string, 0, len(stored))
	for name := range stored {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := live[name]; ok {
			continue
		}
		if v := stored[name].String(); v != "" {
			header.Add("Set-Cookie", v)
		}
	}
}

// restoreHeader sets the stored header fields on header, replacing live
// values of the same names.
func restoreHeader(header, stored http.Header) {
	for name, values := range stored {
		header[name] = append([]string(nil), values...)
	}
}

// withoutInherited returns a copy of header without the fields that are
// unchanged from inherited, the live header when capturing started. Such
// fields are set again by the same middleware on every request. Set-Cookie
// lines are compared one by one.
func withoutInherited(header, inherited http.Header) http.Header {
	h := make(http.Header, len(header))
	for name, values := range header {
		before, ok := inherited[name]
		switch {
		case name == "Set-Cookie":
			var own []string
			for _, v := range values {
				if !slices.Contains(before, v) {
					own = append(own, v)
				}
			}
			if len(own) > 0 {
				h[name] = own
			}
		case ok && slices.Equal(values, before):
		default:
			h[name] = append([]string(nil), values...)
		}
	}
	return h
}
