package pagecache

import (
	"net/http"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type collectionKind int

const (
	collectDefault collectionKind = iota
	collectNone
	collectAll
	collectList
)

// Collection selects which headers or cookies of a generated page are stored
// with it: none of them, all of them, or only the listed names.
// The zero value stands for the default of the collection it configures.
type Collection struct {
	kind  collectionKind
	names []string
}

var (
	CollectNone = Collection{kind: collectNone}
	CollectAll  = Collection{kind: collectAll}
)

// CollectOnly returns a collection of the listed names.
func CollectOnly(names ...string) Collection {
	return Collection{kind: collectList, names: names}
}

func (c Collection) orDefault(def Collection) Collection {
	if c.kind == collectDefault {
		return def
	}
	return c
}

// filterHeader returns the stored part of header. Names match case-insensitively.
func (c Collection) filterHeader(header http.Header) http.Header {
	switch c.kind {
	case collectAll:
		return header.Clone()
	case collectList:
		filtered := make(http.Header)
		for _, name := range c.names {
			if values := header.Values(name); len(values) > 0 {
				filtered[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
			}
		}
		return filtered
	}
	return nil
}

// filterCookies returns the stored part of cookies. Names match exactly.
func (c Collection) filterCookies(cookies map[string]*http.Cookie) map[string]*http.Cookie {
	switch c.kind {
	case collectAll:
		return cookies
	case collectList:
		filtered := make(map[string]*http.Cookie)
		for _, name := range c.names {
			if cookie, ok := cookies[name]; ok {
				filtered[name] = cookie
			}
		}
		return filtered
	}
	return nil
}

// UnmarshalYAML accepts a boolean or a list of names.
func (c *Collection) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var all bool
		if err := value.Decode(&all); err != nil {
			return errors.Wrapf(err, "line %d: collection must be a boolean or a list", value.Line)
		}
		if all {
			*c = CollectAll
		} else {
			*c = CollectNone
		}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*c = CollectOnly(names...)
		return nil
	}
	return errors.Errorf("line %d: collection must be a boolean or a list", value.Line)
}
