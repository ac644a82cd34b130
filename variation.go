package pagecache

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// VariationKind is the source of a variation value.
type VariationKind string

const (
	VaryQuery  VariationKind = "query"
	VaryHeader VariationKind = "header"
	VaryCookie VariationKind = "cookie"
	// VaryParam reads a chi URL parameter.
	VaryParam VariationKind = "param"
	// VaryRoute is the chi route pattern.
	VaryRoute  VariationKind = "route"
	VaryMethod VariationKind = "method"
	VaryHost   VariationKind = "host"
	VaryStatic VariationKind = "static"
)

// Variation is a dimension of the cache key, e.g. the language of a page.
// Values are added to the key in the configured order.
type Variation struct {
	Kind VariationKind
	Name string
}

var ErrUnknownVariation = errors.New("unknown variation")

// ParseVariation parses "kind:name", or "kind" for kinds without a name.
func ParseVariation(s string) (Variation, error) {
	kind, name, _ := strings.Cut(strings.TrimSpace(s), ":")
	v := Variation{Kind: VariationKind(kind), Name: name}
	switch v.Kind {
	case VaryQuery, VaryHeader, VaryCookie, VaryParam, VaryStatic:
		if name == "" {
			return Variation{}, errors.Wrapf(ErrUnknownVariation, "%q requires a name", s)
		}
	case VaryRoute, VaryMethod, VaryHost:
		if name != "" {
			return Variation{}, errors.Wrapf(ErrUnknownVariation, "%q takes no name", s)
		}
	default:
		return Variation{}, errors.Wrapf(ErrUnknownVariation, "%q", s)
	}
	return v, nil
}

// MustParseVariations parses variations and panics on error.
func MustParseVariations(specs ...string) []Variation {
	variations := make([]Variation, 0, len(specs))
	for _, s := range specs {
		v, err := ParseVariation(s)
		if err != nil {
			panic(err)
		}
		variations = append(variations, v)
	}
	return variations
}

func (v Variation) String() string {
	if v.Name == "" {
		return string(v.Kind)
	}
	return string(v.Kind) + ":" + v.Name
}

// Value returns the value of the variation for the request.
func (v Variation) Value(r *http.Request) string {
	switch v.Kind {
	case VaryQuery:
		return r.URL.Query().Get(v.Name)
	case VaryHeader:
		return r.Header.Get(v.Name)
	case VaryCookie:
		if cookie, err := r.Cookie(v.Name); err == nil {
			return cookie.Value
		}
	case VaryParam:
		return chi.URLParam(r, v.Name)
	case VaryRoute:
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			return rctx.RoutePattern()
		}
	case VaryMethod:
		return r.Method
	case VaryHost:
		return r.Host
	case VaryStatic:
		return v.Name
	}
	return ""
}

func (v *Variation) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseVariation(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*v = parsed
	return nil
}
