package rfc9211

import (
	"testing"
	"time"
)

func TestHit(t *testing.T) {
	cs := New("PageCache")
	cs.Hit()
	if s := cs.String(); s != "PageCache; hit" {
		t.Fatalf("Cache status is %s", s)
	}
}

func TestForwardStored(t *testing.T) {
	cs := New("PageCache")
	cs.Forward(FwdUriMiss)
	cs.Stored()
	cs.TTL(90 * time.Second)
	if s := cs.String(); s != "PageCache; fwd=uri-miss; stored; ttl=90" {
		t.Fatalf("Cache status is %s", s)
	}
}

func TestDetail(t *testing.T) {
	cs := New("PageCache")
	cs.Forward(FwdBypass)
	cs.Detail("vetoed")
	if s := cs.String(); s != `PageCache; fwd=bypass; detail="vetoed"` {
		t.Fatalf("Cache status is %s", s)
	}
}
