// Package dynamic implements placeholders for regions of a cached page that are
// rendered again on every request.
//
// A handler calls Stack.Add to reserve a region. While a page capture is in
// progress the call returns a unique token that is embedded in the captured
// body; the outermost capture replaces the tokens with freshly rendered content
// before the page is sent. Captures nest: every active capture records every
// placeholder, so a snapshot of an outer capture can render the placeholders of
// the regions inside it.
package dynamic

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Func renders dynamic content from its cached arguments.
type Func func(ctx context.Context, args []string) (string, error)

// Placeholder is a region of a body that is rendered on every serve.
type Placeholder struct {
	// Token is the marker embedded in the body.
	Token string
	// Name is the registered function rendering the region.
	Name string
	// Args are passed to the function on every render.
	Args []string
}

// Registry maps names to rendering functions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds or replaces the function for name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Lookup returns the function registered for name.
func (r *Registry) Lookup(name string) (Func, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Scope collects the placeholders added while a capture is active.
type Scope struct {
	placeholders []Placeholder
	seen         map[string]bool
}

func (s *Scope) add(p Placeholder) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[p.Token] {
		return
	}
	s.seen[p.Token] = true
	s.placeholders = append(s.placeholders, p)
}

// Placeholders returns the collected placeholders in the order they were added.
func (s *Scope) Placeholders() []Placeholder {
	if s == nil {
		return nil
	}
	return s.placeholders
}

// Stack is the per-request stack of active captures.
// It is not safe for concurrent use.
type Stack struct {
	registry *Registry
	scopes   []*Scope
	counter  int
	nonce    string
	logger   *zerolog.Logger
}

// NewStack returns an empty stack rendering with the registry.
// A nil logger means the global logger.
func NewStack(registry *Registry, logger *zerolog.Logger) *Stack {
	if logger == nil {
		logger = &log.Logger
	}
	id := uuid.New()
	return &Stack{
		registry: registry,
		nonce:    hex.EncodeToString(id[:]),
		logger:   logger,
	}
}

// Push starts a new capture scope.
func (s *Stack) Push() {
	s.scopes = append(s.scopes, &Scope{})
}

// Pop ends the innermost capture scope and returns it, or nil if none is active.
func (s *Stack) Pop() *Scope {
	if len(s.scopes) == 0 {
		return nil
	}
	scope := s.scopes[len(s.scopes)-1]
	s.scopes[len(s.scopes)-1] = nil
	s.scopes = s.scopes[:len(s.scopes)-1]
	return scope
}

// Depth returns the number of active captures.
func (s *Stack) Depth() int {
	return len(s.scopes)
}

// Add reserves a dynamic region rendered by the named function.
// Without an active capture the content is rendered right away.
func (s *Stack) Add(ctx context.Context, name string, args ...string) string {
	p := Placeholder{Name: name, Args: args}
	if len(s.scopes) == 0 {
		return s.render(ctx, p)
	}
	s.counter++
	p.Token = "<![CDATA[PAGECACHE-DYNAMIC-" + strconv.Itoa(s.counter) + "-" + s.nonce + "]]>"
	s.addAll([]Placeholder{p})
	return p.Token
}

// Update prepares captured content for sending. Only the outermost capture,
// i.e. when no scope is active any more, replaces the tokens with rendered
// content; inner captures leave the tokens for it. Placeholders restored from
// a snapshot are handed to all active scopes, so that enclosing captures
// record them as well.
func (s *Stack) Update(ctx context.Context, content []byte, placeholders []Placeholder, restored bool) []byte {
	if len(placeholders) == 0 {
		return content
	}
	if restored {
		s.addAll(placeholders)
	}
	if len(s.scopes) > 0 {
		return content
	}
	pairs := make([]string, 0, 2*len(placeholders))
	for _, p := range placeholders {
		pairs = append(pairs, p.Token, s.render(ctx, p))
	}
	return []byte(strings.NewReplacer(pairs...).Replace(string(content)))
}

func (s *Stack) addAll(placeholders []Placeholder) {
	for _, scope := range s.scopes {
		for _, p := range placeholders {
			scope.add(p)
		}
	}
}

// render evaluates a placeholder. Failures render as empty content.
func (s *Stack) render(ctx context.Context, p Placeholder) string {
	fn, ok := s.registry.Lookup(p.Name)
	if !ok {
		s.logger.Warn().Str("name", p.Name).Msg("Unknown dynamic content")
		return ""
	}
	content, err := fn(ctx, p.Args)
	if err != nil {
		s.logger.Error().Err(err).Str("name", p.Name).Msg("Could not render dynamic content")
		return ""
	}
	s.logger.Trace().Str("name", p.Name).Strs("args", p.Args).Msg("Rendered dynamic content")
	return content
}

type contextKey struct{}

// WithStack returns a context carrying the stack.
func WithStack(ctx context.Context, s *Stack) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the stack of the context, or nil.
func FromContext(ctx context.Context) *Stack {
	s, _ := ctx.Value(contextKey{}).(*Stack)
	return s
}
