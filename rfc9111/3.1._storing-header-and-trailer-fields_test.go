package rfc9111

import (
	"net/http"
	"testing"
)

func TestStorableHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "text/html")
	header.Set("Connection", "close, X-Hop")
	header.Set("X-Hop", "1")
	header.Set("Keep-Alive", "timeout=5")
	header.Set("Proxy-Authenticate", "Basic")
	h := StorableHeader(header)
	if h.Get("Content-Type") != "text/html" {
		t.Fatalf("Content type is %s", h.Get("Content-Type"))
	}
	for _, field := range []string{"Connection", "X-Hop", "Keep-Alive", "Proxy-Authenticate"} {
		if h.Get(field) != "" {
			t.Fatalf("Field %s should not be stored", field)
		}
	}
	if header.Get("X-Hop") != "1" {
		t.Fatal("Original header should be left untouched")
	}
	if StorableHeader(nil) != nil {
		t.Fatal("Nil header should stay nil")
	}
}

func TestForbidsStorage(t *testing.T) {
	header := http.Header{}
	if ForbidsStorage(200, header) {
		t.Fatal("Plain 200 should be storable")
	}
	if !ForbidsStorage(206, header) {
		t.Fatal("Partial content should not be storable")
	}
	header.Set("Cache-Control", "No-Store")
	if !ForbidsStorage(200, header) {
		t.Fatal("No-store should not be storable")
	}
	header.Set("Cache-Control", `private="Set-Cookie"`)
	if !ForbidsStorage(200, header) {
		t.Fatal("Private should not be storable in a shared cache")
	}
}
