package rfc9111

import (
	"math"
	"strconv"
	"time"
)

// Dates are defined in RFC 9110 and implemented in the rfc9110 package.

// §  1.2.2. Delta Seconds
// §
// §  The delta-seconds rule specifies a non-negative integer, representing time
// §  in seconds.
// §
// §      delta-seconds  = 1*DIGIT
// §
// §  [...] If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent, or if any of its subsequent calculations overflows,
// §  the cache MUST consider the value to be 2147483648 (2^31) or the greatest
// §  positive integer it can conveniently represent.
const maxDeltaSeconds = 2147483648

func deltaSeconds(secondsStr string) time.Duration {
	seconds, err := strconv.ParseUint(secondsStr, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return maxDeltaSeconds * time.Second
		}
		return 0
	}
	if seconds > maxDeltaSeconds {
		seconds = maxDeltaSeconds
	}
	return time.Second * time.Duration(seconds)
}

// ToDeltaSeconds formats a duration as delta-seconds, rounding to the nearest
// second. Negative durations are formatted as 0.
func ToDeltaSeconds(duration time.Duration) string {
	seconds := math.Round(duration.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	if seconds > maxDeltaSeconds {
		seconds = maxDeltaSeconds
	}
	return strconv.FormatInt(int64(seconds), 10)
}
