package rfc9111

import (
	"testing"
	"time"
)

func TestMaxAge(t *testing.T) {
	cc := ParseCacheControl([]string{"max-age=60"})
	val, ok := cc.Get("max-age")
	if !ok {
		t.Fatal("Could not get directive")
	}
	if val != "60" {
		t.Fatalf("Value is %s", val)
	}
	if d, ok := cc.MaxAge(); !ok || d != time.Minute {
		t.Fatalf("Max age is %v", d)
	}
}

func TestReal(t *testing.T) {
	cc := ParseCacheControl([]string{"public,max-age=0", "S-MaxAge=600"})
	if val, ok := cc.Get("public"); !ok || val != "" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
	if val, ok := cc.Get("max-age"); !ok || val != "0" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
	if val, ok := cc.Get("s-maxage"); !ok || val != "600" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
}

func TestQuotedList(t *testing.T) {
	cc := ParseCacheControl([]string{`private="Set-Cookie, X-Foo", max-age=5`})
	fields := cc.ListValues("private")
	if len(fields) != 2 || fields[0] != "Set-Cookie" || fields[1] != "X-Foo" {
		t.Fatalf("Private fields are %v", fields)
	}
	if !cc.HasDirective("max-age") {
		t.Fatal("Directive after quoted list is missing")
	}
}

func TestComposeEmpty(t *testing.T) {
	if s := (CacheControlDirectives{}).String(); s != "" {
		t.Fatalf("Empty directives composed to %q", s)
	}
}

func TestCompose(t *testing.T) {
	d := CacheControlDirectives{Public: true, MaxAge: 3600 * time.Second, MustRevalidate: true}
	if s := d.String(); s != "public, max-age=3600, must-revalidate" {
		t.Fatalf("Composed %q", s)
	}
	d = CacheControlDirectives{Private: true, Public: true, MaxAgeSet: true}
	if s := d.String(); s != "private, max-age=0" {
		t.Fatalf("Composed %q", s)
	}
}

func TestDirectivesRoundTrip(t *testing.T) {
	header := "private, no-cache, max-age=0, must-revalidate"
	if s := ParseCacheControl([]string{header}).Directives().String(); s != header {
		t.Fatalf("Composed %q", s)
	}
}
