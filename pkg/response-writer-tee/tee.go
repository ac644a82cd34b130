// Package tee provides a response writer that captures a response instead of sending it.
package tee

import (
	"bytes"
	"net/http"
)

// ResponseSaver is a wrapper around http.ResponseWriter that saves the response to a buffer.
// Nothing is written to the underlying http.ResponseWriter until Send is called.
// It does not expose the underlying writer, so flushes from the wrapped
// handler stop here.
type ResponseSaver struct {
	rw           http.ResponseWriter
	b            *bytes.Buffer
	inherited    http.Header
	header       http.Header
	sentHeader   http.Header
	status       int
	wroteHeaders bool
}

// NewResponseSaver returns a new ResponseSaver buffering the response for w.
// The live headers of w are used as a starting point, so headers set earlier
// in the middleware chain are part of the captured response.
func NewResponseSaver(w http.ResponseWriter) *ResponseSaver {
	return &ResponseSaver{
		rw:        w,
		b:         &bytes.Buffer{},
		inherited: w.Header().Clone(),
		header:    w.Header().Clone(),
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	if t.wroteHeaders {
		return
	}
	// remember that we wrote the headers
	t.wroteHeaders = true
	// set the status code so we can return it later
	t.status = statusCode
	// later changes to the header map are not part of the response
	t.sentHeader = t.header.Clone()
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	return t.b.Write(b)
}

// Flush implements http.Flusher. The response stays buffered until Send.
func (t *ResponseSaver) Flush() {}

// Body returns the captured body.
func (t *ResponseSaver) Body() []byte {
	return t.b.Bytes()
}

// StatusCode returns the status code of the response, 200 if none was written.
func (t *ResponseSaver) StatusCode() int {
	if !t.wroteHeaders {
		return http.StatusOK
	}
	return t.status
}

// SentHeader returns the headers as they were when the status was written.
func (t *ResponseSaver) SentHeader() http.Header {
	if !t.wroteHeaders {
		return t.header
	}
	return t.sentHeader
}

// InheritedHeader returns the live headers as they were when capturing started.
func (t *ResponseSaver) InheritedHeader() http.Header {
	return t.inherited
}

// Reset discards everything captured so far.
func (t *ResponseSaver) Reset() {
	t.b.Reset()
	t.inherited = t.rw.Header().Clone()
	t.header = t.rw.Header().Clone()
	t.sentHeader = nil
	t.status = 0
	t.wroteHeaders = false
}

// Send writes the captured status and headers, followed by body, to the
// underlying writer. The body is passed separately so that it can be
// rewritten after capture.
func (t *ResponseSaver) Send(body []byte) error {
	dst := t.rw.Header()
	for k := range dst {
		delete(dst, k)
	}
	copyHeader(dst, t.SentHeader())
	t.rw.WriteHeader(t.StatusCode())
	_, err := t.rw.Write(body)
	return err
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
