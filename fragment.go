package pagecache

import (
	"bytes"
	"encoding/gob"
	"io"
	"net/http"
	"time"

	"github.com/always-cache/pagecache/cache"
	cachekey "github.com/always-cache/pagecache/pkg/cache-key"
	"github.com/always-cache/pagecache/pkg/dynamic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const DefaultFragmentNamespace = "pagecache.Fragment"

type FragmentConfig struct {
	Cache      *cache.Cache
	Duration   time.Duration
	Dependency *cache.DependencySpec
	// Namespace of the keys, DefaultFragmentNamespace if empty.
	Namespace string
	Dynamic   *dynamic.Registry
	Logger    *zerolog.Logger
}

// Fragment caches regions of a page. Dynamic regions inside a fragment stay
// dynamic, also when the fragment is part of a cached page.
type Fragment struct {
	cache      *cache.Cache
	duration   time.Duration
	dependency cache.Dependency
	namespace  string
	registry   *dynamic.Registry
	log        *zerolog.Logger
}

type fragmentEntry struct {
	Body         []byte
	Placeholders []dynamic.Placeholder
}

func NewFragment(config FragmentConfig) (*Fragment, error) {
	if config.Cache == nil {
		return nil, &ConfigError{Field: "cache", Err: errors.New("cache is required")}
	}
	f := &Fragment{
		cache:     config.Cache,
		duration:  config.Duration,
		namespace: config.Namespace,
		registry:  config.Dynamic,
		log:       loggerOrGlobal(config.Logger),
	}
	if f.namespace == "" {
		f.namespace = DefaultFragmentNamespace
	}
	if config.Dependency != nil {
		dep, err := config.Cache.Resolver().Resolve(*config.Dependency)
		if err != nil {
			return nil, &ConfigError{Field: "dependency", Err: err}
		}
		f.dependency = dep
	}
	return f, nil
}

// Render writes the fragment identified by id to w. On a miss, render
// generates it and the output is stored. render receives a request that
// carries the dynamic stack. Errors of render are returned and nothing is
// stored or written.
func (f *Fragment) Render(w io.Writer, r *http.Request, id string, render func(w io.Writer, r *http.Request) error) error {
	ctx := r.Context()
	stack := dynamic.FromContext(ctx)
	if stack == nil {
		stack = dynamic.NewStack(f.registry, f.log)
		ctx = dynamic.WithStack(ctx, stack)
		r = r.WithContext(ctx)
	}
	key := cachekey.New(f.namespace, id)
	logger := f.log.With().Str("key", key.Readable()).Logger()

	if b, ok := f.cache.Get(ctx, key.String()); ok {
		var entry fragmentEntry
		err := gob.NewDecoder(bytes.NewReader(b)).Decode(&entry)
		if err == nil {
			logger.Trace().Msg("Fragment cache hit")
			_, err = w.Write(stack.Update(ctx, entry.Body, entry.Placeholders, true))
			return err
		}
		logger.Debug().Err(err).Msg("Ignoring stored fragment")
	}

	var buf bytes.Buffer
	stack.Push()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				stack.Pop()
				panic(rec)
			}
		}()
		return render(&buf, r)
	}()
	scope := stack.Pop()
	if err != nil {
		return errors.Wrapf(err, "render fragment %s", id)
	}

	entry := fragmentEntry{Body: buf.Bytes(), Placeholders: scope.Placeholders()}
	var enc bytes.Buffer
	if err := gob.NewEncoder(&enc).Encode(entry); err != nil {
		logger.Error().Err(err).Msg("Could not encode fragment")
	} else {
		f.cache.Set(ctx, key.String(), enc.Bytes(), f.duration, f.dependency)
	}

	_, err = w.Write(stack.Update(ctx, entry.Body, entry.Placeholders, false))
	return err
}
