package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/always-cache/pagecache/pkg/cache-key"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrUnknownDependency = errors.New("unknown dependency")

// Dependency kinds.
const (
	DependencyFile  = "file"
	DependencySQL   = "sql"
	DependencyTag   = "tag"
	DependencyChain = "chain"
)

// DependencySpec describes a dependency so that it can be recorded next to a
// stored value and rebuilt when the value is read back.
type DependencySpec struct {
	Kind string `yaml:"kind"`
	// Path of the file for file dependencies.
	Path string `yaml:"path,omitempty"`
	// DB names the database and Query the statement for sql dependencies.
	DB    string `yaml:"db,omitempty"`
	Query string `yaml:"query,omitempty"`
	// Tags for tag dependencies.
	Tags []string `yaml:"tags,omitempty"`
	// Deps are the children of a chain. With All set, the chain has changed
	// only when every child has changed, otherwise when any child has.
	Deps []DependencySpec `yaml:"deps,omitempty"`
	All  bool             `yaml:"all,omitempty"`
}

// Dependency computes a fingerprint of the state a stored value depends on.
// The value is stale once the fingerprint differs from the recorded one.
type Dependency interface {
	Spec() DependencySpec
	Evaluate(ctx context.Context) (string, error)
}

// changeDetector is implemented by dependencies that compare fingerprints
// themselves.
type changeDetector interface {
	IsChanged(ctx context.Context, recorded string) bool
}

// IsChanged reports whether the dependency no longer matches the recorded
// fingerprint. Failing to evaluate counts as a change.
func IsChanged(ctx context.Context, dep Dependency, recorded string) bool {
	if d, ok := dep.(changeDetector); ok {
		return d.IsChanged(ctx, recorded)
	}
	current, err := dep.Evaluate(ctx)
	return err != nil || current != recorded
}

// Resolver builds dependencies from their specs.
type Resolver struct {
	provider Provider
	dbs      map[string]*sql.DB
}

// NewResolver returns a resolver keeping tag versions in the provider and
// running sql dependencies on the named databases.
func NewResolver(provider Provider, dbs map[string]*sql.DB) *Resolver {
	return &Resolver{provider: provider, dbs: dbs}
}

// Resolve returns the dependency described by spec. Errors wrap ErrUnknownDependency.
func (r *Resolver) Resolve(spec DependencySpec) (Dependency, error) {
	switch spec.Kind {
	case DependencyFile:
		if spec.Path == "" {
			return nil, errors.Wrap(ErrUnknownDependency, "file dependency without path")
		}
		return FileDependency{Path: spec.Path}, nil
	case DependencySQL:
		db, ok := r.dbs[spec.DB]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownDependency, "sql dependency on unknown database %q", spec.DB)
		}
		if spec.Query == "" {
			return nil, errors.Wrap(ErrUnknownDependency, "sql dependency without query")
		}
		return SQLDependency{db: db, name: spec.DB, Query: spec.Query}, nil
	case DependencyTag:
		if len(spec.Tags) == 0 {
			return nil, errors.Wrap(ErrUnknownDependency, "tag dependency without tags")
		}
		if r.provider == nil {
			return nil, errors.Wrap(ErrUnknownDependency, "tag dependency without provider")
		}
		return TagDependency{provider: r.provider, Tags: spec.Tags}, nil
	case DependencyChain:
		if len(spec.Deps) == 0 {
			return nil, errors.Wrap(ErrUnknownDependency, "empty chain dependency")
		}
		chain := ChainDependency{All: spec.All}
		for _, child := range spec.Deps {
			dep, err := r.Resolve(child)
			if err != nil {
				return nil, err
			}
			chain.Deps = append(chain.Deps, dep)
		}
		return chain, nil
	}
	return nil, errors.Wrapf(ErrUnknownDependency, "kind %q", spec.Kind)
}

// FileDependency changes when the modification time or size of a file changes.
// A missing file is a valid state.
type FileDependency struct {
	Path string
}

func (f FileDependency) Spec() DependencySpec {
	return DependencySpec{Kind: DependencyFile, Path: f.Path}
}

func (f FileDependency) Evaluate(ctx context.Context) (string, error) {
	info, err := os.Stat(f.Path)
	if os.IsNotExist(err) {
		return "absent", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "file dependency %s", f.Path)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10), nil
}

// SQLDependency changes when the first row returned by a query changes.
type SQLDependency struct {
	db    *sql.DB
	name  string
	Query string
}

func (s SQLDependency) Spec() DependencySpec {
	return DependencySpec{Kind: DependencySQL, DB: s.name, Query: s.Query}
}

func (s SQLDependency) Evaluate(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, s.Query)
	if err != nil {
		return "", errors.Wrapf(err, "sql dependency %q", s.Query)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	row := make([]sql.NullString, len(columns))
	if rows.Next() {
		dest := make([]any, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", errors.Wrapf(err, "sql dependency %q", s.Query)
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	fingerprint, err := json.Marshal(row)
	return string(fingerprint), err
}

// TagDependency changes when any of its tags is invalidated.
// Tag versions are kept in the provider and never expire.
type TagDependency struct {
	provider Provider
	Tags     []string
}

func tagKey(tag string) string {
	return cachekey.New("pagecache.Tag", tag).String()
}

func (t TagDependency) Spec() DependencySpec {
	return DependencySpec{Kind: DependencyTag, Tags: t.Tags}
}

func (t TagDependency) Evaluate(ctx context.Context) (string, error) {
	versions := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		version, ok, err := t.provider.Get(ctx, tagKey(tag))
		if err != nil {
			return "", errors.Wrapf(err, "reading version of tag %s", tag)
		}
		if !ok {
			if version, err = touchTag(ctx, t.provider, tag); err != nil {
				return "", err
			}
		}
		versions = append(versions, string(version))
	}
	fingerprint, err := json.Marshal(versions)
	return string(fingerprint), err
}

func touchTag(ctx context.Context, provider Provider, tag string) ([]byte, error) {
	version := []byte(strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + uuid.NewString())
	if err := provider.Put(ctx, tagKey(tag), time.Time{}, version); err != nil {
		return nil, errors.Wrapf(err, "writing version of tag %s", tag)
	}
	return version, nil
}

// ChainDependency combines several dependencies.
type ChainDependency struct {
	Deps []Dependency
	All  bool
}

func (c ChainDependency) Spec() DependencySpec {
	spec := DependencySpec{Kind: DependencyChain, All: c.All}
	for _, dep := range c.Deps {
		spec.Deps = append(spec.Deps, dep.Spec())
	}
	return spec
}

// Evaluate returns the fingerprints of the children as a JSON array.
func (c ChainDependency) Evaluate(ctx context.Context) (string, error) {
	fingerprints := make([]string, 0, len(c.Deps))
	for _, dep := range c.Deps {
		fingerprint, err := dep.Evaluate(ctx)
		if err != nil {
			return "", err
		}
		fingerprints = append(fingerprints, fingerprint)
	}
	b, err := json.Marshal(fingerprints)
	return string(b), err
}

func (c ChainDependency) IsChanged(ctx context.Context, recorded string) bool {
	var fingerprints []string
	if err := json.Unmarshal([]byte(recorded), &fingerprints); err != nil || len(fingerprints) != len(c.Deps) {
		return true
	}
	for i, dep := range c.Deps {
		changed := IsChanged(ctx, dep, fingerprints[i])
		if changed && !c.All {
			return true
		}
		if !changed && c.All {
			return false
		}
	}
	return c.All
}
