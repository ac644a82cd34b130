package rfc9111

import (
	"testing"
	"time"
)

func TestToDeltaSeconds(t *testing.T) {
	fiveSeconds := 5 * time.Second
	if s := ToDeltaSeconds(fiveSeconds); s != "5" {
		t.Fatalf("Delta seconds is %s", s)
	}
	if s := ToDeltaSeconds(-time.Minute); s != "0" {
		t.Fatalf("Negative delta seconds is %s", s)
	}
}

func TestDeltaSecondsOverflow(t *testing.T) {
	if d := deltaSeconds("99999999999999999999999"); d != maxDeltaSeconds*time.Second {
		t.Fatalf("Overflowing delta seconds is %v", d)
	}
	if d := deltaSeconds("-5"); d != 0 {
		t.Fatalf("Invalid delta seconds is %v", d)
	}
}
