package pagecache

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFragmentRendersOnce(t *testing.T) {
	frag, err := NewFragment(FragmentConfig{Cache: newTestCache(t)})
	if err != nil {
		t.Fatal(err)
	}
	var count int
	render := func(w io.Writer, r *http.Request) error {
		count++
		_, err := io.WriteString(w, "<nav>menu</nav>")
		return err
	}

	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		if err := frag.Render(&buf, httptest.NewRequest("GET", "/", nil), "menu", render); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "<nav>menu</nav>" {
			t.Fatalf("Fragment is %q", buf.String())
		}
	}
	if count != 1 {
		t.Fatalf("Fragment rendered %d times", count)
	}
}

func TestFragmentErrorIsNotStored(t *testing.T) {
	frag, err := NewFragment(FragmentConfig{Cache: newTestCache(t)})
	if err != nil {
		t.Fatal(err)
	}
	errRender := errors.New("template failed")

	var buf bytes.Buffer
	err = frag.Render(&buf, httptest.NewRequest("GET", "/", nil), "menu", func(w io.Writer, r *http.Request) error {
		io.WriteString(w, "half")
		return errRender
	})
	if !errors.Is(err, errRender) {
		t.Fatalf("Error is %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("Failed fragment wrote %q", buf.String())
	}

	err = frag.Render(&buf, httptest.NewRequest("GET", "/", nil), "menu", func(w io.Writer, r *http.Request) error {
		_, err := io.WriteString(w, "whole")
		return err
	})
	if err != nil || buf.String() != "whole" {
		t.Fatalf("Fragment is %q, error %v", buf.String(), err)
	}
}

func TestFragmentDynamicContent(t *testing.T) {
	frag, err := NewFragment(FragmentConfig{Cache: newTestCache(t), Dynamic: counterRegistry()})
	if err != nil {
		t.Fatal(err)
	}
	for _, expect := range []string{"[1]", "[2]"} {
		var buf bytes.Buffer
		err := frag.Render(&buf, httptest.NewRequest("GET", "/", nil), "clock", func(w io.Writer, r *http.Request) error {
			_, err := io.WriteString(w, "["+Dynamic(r, "counter")+"]")
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		if buf.String() != expect {
			t.Fatalf("Fragment is %q, expected %q", buf.String(), expect)
		}
	}
}

func TestNewFragmentRequiresCache(t *testing.T) {
	var configErr *ConfigError
	if _, err := NewFragment(FragmentConfig{}); !errors.As(err, &configErr) {
		t.Fatalf("Error is %v", err)
	}
}
