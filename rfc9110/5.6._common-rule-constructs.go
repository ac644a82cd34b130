package rfc9110

import (
	"net/http"
	"strings"
	"time"
)

// §  5.6.1.  Lists (#rule ABNF Extension)
// §
// §     A #rule extension to the ABNF rules of [RFC5234] is used to improve
// §     readability in the definitions of some list-based field values.
// §
// §     A construct "#" is defined, similar to "*", for defining comma-
// §     delimited lists of elements.  The full form is "<n>#<m>element"
// §     indicating at least <n> and at most <m> elements, each separated by a
// §     single comma (",") and optional whitespace (OWS, defined in
// §     Section 5.6.3).
// §
// §     [...] a recipient MUST accept lists that satisfy the following syntax:
// §
// §       #element => [ element ] *( OWS "," OWS [ element ] )
// §
// §     Empty elements do not contribute to the count of elements present.
func ListHeader(header http.Header, field string) []string {
	return SplitList(header.Values(field))
}

// SplitList splits the field values of a list-based field into its elements.
func SplitList(values []string) []string {
	list := make([]string, 0)
	for _, hdr := range values {
		for _, item := range strings.Split(hdr, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}

// §  5.6.7.  Date/Time Formats
// §
// §     Prior to 1995, there were three different formats commonly used by
// §     servers to communicate timestamps.  For compatibility with old
// §     implementations, all three are defined here.  The preferred format is
// §     a fixed-length and single-zone subset of the date and time
// §     specification used by the Internet Message Format [RFC5322].
// §
// §       HTTP-date    = IMF-fixdate / obs-date
// §
// §     An example of the preferred format is
// §
// §       Sun, 06 Nov 1994 08:49:37 GMT    ; IMF-fixdate
// §
// §     Examples of the two obsolete formats are
// §
// §       Sunday, 06-Nov-94 08:49:37 GMT   ; obsolete RFC 850 format
// §       Sun Nov  6 08:49:37 1994         ; ANSI C's asctime() format
// §
// §     A recipient that parses a timestamp value in an HTTP field MUST
// §     accept all three HTTP-date formats.  When a sender generates a field
// §     that contains one or more timestamps defined as HTTP-date, the sender
// §     MUST generate those timestamps in the IMF-fixdate format.
func ParseHTTPDate(dateStr string) (time.Time, error) {
	if date, err := imfDate(dateStr); err == nil {
		return date, err
	} else {
		// try to parse as obsolete date
		if date, err := obsDate(dateStr); err == nil {
			return date, err
		}
		// return original error if unsuccessful
		return date, err
	}
}

// FormatHTTPDate formats the time as an IMF-fixdate.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(imfDateLayout)
}

// §     Preferred format:
// §
// §       IMF-fixdate  = day-name "," SP date1 SP time-of-day SP GMT
// §       ; fixed length/zone/capitalization subset of the format
// §       ; see Section 3.3 of [RFC5322]
// §
// §       GMT          = %s"GMT"
const imfDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

func imfDate(dateStr string) (time.Time, error) {
	return time.Parse(imfDateLayout, normalizeDateStr(dateStr))
}

// §     Obsolete formats:
// §
// §       obs-date     = rfc850-date / asctime-date
// §
// §       rfc850-date  = day-name-l "," SP date2 SP time-of-day SP GMT
// §       date2        = day "-" month "-" 2DIGIT
// §                    ; e.g., 02-Jun-82
// §
// §       asctime-date = day-name SP date3 SP time-of-day SP year
// §       date3        = month SP ( 2DIGIT / ( SP 1DIGIT ))
// §                    ; e.g., Jun  2
const rfc850DateLayout = "Monday, 02-Jan-06 15:04:05 GMT"

func obsDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	if date, err := time.Parse(rfc850DateLayout, str); err == nil {
		return date, err
	}
	return time.Parse(time.ANSIC, str)
}

// §     HTTP-date is case sensitive.  Note that Section 4.2 of [CACHING]
// §     relaxes this for cache recipients.
func normalizeDateStr(dateStr string) string {
	return strings.ToUpper(strings.TrimSpace(dateStr))
}
