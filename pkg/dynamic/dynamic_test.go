package dynamic

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() (*Registry, *int) {
	calls := 0
	r := NewRegistry()
	r.Register("greet", func(ctx context.Context, args []string) (string, error) {
		calls++
		return "hello " + strings.Join(args, " "), nil
	})
	r.Register("fail", func(ctx context.Context, args []string) (string, error) {
		return "", errors.New("boom")
	})
	return r, &calls
}

func TestAddWithoutCapture(t *testing.T) {
	assert := assert.New(t)
	r, _ := newRegistry()
	s := NewStack(r, nil)
	assert.Equal("hello world", s.Add(context.Background(), "greet", "world"))
}

func TestAddRegistersWithAllScopes(t *testing.T) {
	assert := assert.New(t)
	r, _ := newRegistry()
	s := NewStack(r, nil)
	s.Push()
	s.Push()
	token := s.Add(context.Background(), "greet", "x")
	assert.Contains(token, "PAGECACHE-DYNAMIC-1-")
	inner := s.Pop()
	outer := s.Pop()
	require.Len(t, inner.Placeholders(), 1)
	require.Len(t, outer.Placeholders(), 1)
	assert.Equal(token, outer.Placeholders()[0].Token)
	assert.Nil(s.Pop())
}

func TestTokensUnique(t *testing.T) {
	r, _ := newRegistry()
	s := NewStack(r, nil)
	s.Push()
	a := s.Add(context.Background(), "greet")
	b := s.Add(context.Background(), "greet")
	assert.NotEqual(t, a, b)

	other := NewStack(r, nil)
	other.Push()
	assert.NotEqual(t, a, other.Add(context.Background(), "greet"))
}

func TestUpdateOnlyOutermost(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r, _ := newRegistry()
	s := NewStack(r, nil)
	s.Push()
	s.Push()
	token := s.Add(ctx, "greet", "inner")
	body := []byte("<p>" + token + "</p>")

	inner := s.Pop()
	assert.Equal(string(body), string(s.Update(ctx, body, inner.Placeholders(), false)))

	outer := s.Pop()
	assert.Equal("<p>hello inner</p>", string(s.Update(ctx, body, outer.Placeholders(), false)))
}

func TestUpdateIdempotent(t *testing.T) {
	ctx := context.Background()
	r, calls := newRegistry()
	s := NewStack(r, nil)
	s.Push()
	token := s.Add(ctx, "greet", "a")
	scope := s.Pop()
	once := s.Update(ctx, []byte(token+token), scope.Placeholders(), false)
	twice := s.Update(ctx, once, scope.Placeholders(), false)
	assert.Equal(t, "hello ahello a", string(twice))
	assert.NotContains(t, string(twice), "PAGECACHE-DYNAMIC")
	assert.Equal(t, 2, *calls)
}

func TestUpdateRestoredReRegisters(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r, _ := newRegistry()
	restored := []Placeholder{{Token: "<![CDATA[PAGECACHE-DYNAMIC-1-old]]>", Name: "greet", Args: []string{"again"}}}
	s := NewStack(r, nil)
	s.Push()
	body := []byte("a" + restored[0].Token)
	assert.Equal(string(body), string(s.Update(ctx, body, restored, true)))
	outer := s.Pop()
	assert.Equal(restored, outer.Placeholders())
	assert.Equal("ahello again", string(s.Update(ctx, body, outer.Placeholders(), false)))
}

func TestRenderFailures(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry()
	s := NewStack(r, nil)
	assert.Equal(t, "", s.Add(ctx, "fail"))
	assert.Equal(t, "", s.Add(ctx, "missing"))
	assert.Equal(t, "", NewStack(nil, nil).Add(ctx, "greet"))
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	s := NewStack(NewRegistry(), nil)
	assert.Same(t, s, FromContext(WithStack(context.Background(), s)))
}
