package rfc9110

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func request(method string, header ...string) *http.Request {
	r := httptest.NewRequest(method, "/", nil)
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Add(header[i], header[i+1])
	}
	return r
}

func TestValidateNothingToValidate(t *testing.T) {
	r := request("GET", "If-None-Match", "*", "If-Modified-Since", FormatHTTPDate(time.Now()))
	if Validate(r, Validators{}) {
		t.Fatal("Validation without validators should fail")
	}
}

func TestValidateEpoch(t *testing.T) {
	r := request("GET", "If-Modified-Since", FormatHTTPDate(time.Unix(0, 0)))
	if !Validate(r, Validators{LastModified: time.Unix(0, 0)}) {
		t.Fatal("Epoch should not be modified since epoch")
	}
	if Validate(r, Validators{LastModified: time.Unix(1, 0)}) {
		t.Fatal("One second after epoch should be modified")
	}
}

func TestValidateETag(t *testing.T) {
	r := request("GET", "If-None-Match", `"abc"`)
	if !Validate(r, Validators{ETag: NewETag("abc", false)}) {
		t.Fatal("Matching etag should be fresh")
	}
}

func TestValidateIgnoresModifiedSinceWithNoneMatch(t *testing.T) {
	lastModified := time.Unix(5000, 0)
	v := Validators{LastModified: lastModified, ETag: NewETag("foo", false)}
	for _, ims := range []string{
		FormatHTTPDate(lastModified.Add(-time.Hour)),
		FormatHTTPDate(lastModified),
		FormatHTTPDate(lastModified.Add(time.Hour)),
		"invalid",
	} {
		match := request("GET", "If-None-Match", `"foo"`, "If-Modified-Since", ims)
		if !Validate(match, v) {
			t.Fatalf("Matching etag should be fresh regardless of If-Modified-Since %s", ims)
		}
		mismatch := request("GET", "If-None-Match", `"bar"`, "If-Modified-Since", ims)
		if Validate(mismatch, v) {
			t.Fatalf("Non-matching etag should be stale regardless of If-Modified-Since %s", ims)
		}
	}
}

func TestEvaluate(t *testing.T) {
	lastModified := time.Unix(5000, 0)
	v := Validators{LastModified: lastModified, ETag: NewETag("foo", false)}
	tests := []struct {
		name    string
		req     *http.Request
		outcome Outcome
	}{
		{"no conditionals", request("GET"), Proceed},
		{"none match GET", request("GET", "If-None-Match", `"foo"`), NotModified},
		{"none match HEAD", request("HEAD", "If-None-Match", `W/"foo"`), NotModified},
		{"none match PUT", request("PUT", "If-None-Match", "*"), PreconditionFailed},
		{"none match miss", request("GET", "If-None-Match", `"bar"`), Proceed},
		{"modified since", request("GET", "If-Modified-Since", FormatHTTPDate(lastModified)), NotModified},
		{"modified since POST", request("POST", "If-Modified-Since", FormatHTTPDate(lastModified)), Proceed},
		{"match fails", request("PUT", "If-Match", `"bar"`), PreconditionFailed},
		{"match passes", request("PUT", "If-Match", `"foo"`), Proceed},
		{"match before none match", request("GET", "If-Match", `"bar"`, "If-None-Match", `"foo"`), PreconditionFailed},
		{"unmodified since fails", request("DELETE", "If-Unmodified-Since", FormatHTTPDate(lastModified.Add(-time.Second))), PreconditionFailed},
		{"unmodified since ignored with match", request("DELETE", "If-Match", "*", "If-Unmodified-Since", FormatHTTPDate(lastModified.Add(-time.Second))), Proceed},
	}
	for _, test := range tests {
		if outcome := Evaluate(test.req, v); outcome != test.outcome {
			t.Fatalf("%s: outcome is %s, expected %s", test.name, outcome, test.outcome)
		}
	}
}

func TestOutcomeStatusCode(t *testing.T) {
	if NotModified.StatusCode() != http.StatusNotModified || PreconditionFailed.StatusCode() != http.StatusPreconditionFailed || Proceed.StatusCode() != 0 {
		t.Fatal("Unexpected status codes")
	}
}
