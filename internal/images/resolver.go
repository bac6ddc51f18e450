// Package images resolves request paths to stored images, walking a fixed
// fallback chain when the requested key is missing.
package images

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/imagegate/internal/storage"
)

// Status is the outcome of a single lookup
type Status int

const (
	NotFound Status = iota
	Found
	StoreError
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case StoreError:
		return "store_error"
	default:
		return "not_found"
	}
}

// Step names the fallback attempt that produced a result
type Step string

const (
	StepExact         Step = "exact"
	StepYearStripped  Step = "year_stripped"
	StepNamedDefault  Step = "named_default"
	StepGlobalDefault Step = "global_default"
	StepNone          Step = "none"
)

// Attempt records one store read made while resolving
type Attempt struct {
	Step   Step
	Key    string
	Status Status
	Err    error
}

// Result is the outcome of a resolution. Body is set only when Status is
// Found and must be closed by the caller.
type Result struct {
	Status      Status
	Step        Step
	Key         string
	ContentType string
	Size        int64
	Body        io.ReadCloser
	Err         error
	Attempts    []Attempt
}

// Options configures where default images live
type Options struct {
	DefaultDir    string
	GlobalDefault string
	DefaultExt    string
}

// DefaultOptions yields def/<name>.webp and def/default.webp
func DefaultOptions() Options {
	return Options{
		DefaultDir:    "def",
		GlobalDefault: "default",
		DefaultExt:    ".webp",
	}
}

// Resolver looks images up in a blob store
type Resolver struct {
	store storage.BlobStorage
	opts  Options
}

// NewResolver creates a resolver over store
func NewResolver(store storage.BlobStorage, opts Options) *Resolver {
	return &Resolver{store: store, opts: opts}
}

// ResolveDirect reads key as-is. A missing key yields NotFound; any other
// store failure yields StoreError with Err set.
func (r *Resolver) ResolveDirect(ctx context.Context, key string) Result {
	return r.lookup(ctx, StepExact, key)
}

// ResolveWithDefault tries, in order and stopping at the first hit: the exact
// key, the key with its first year segment removed, the named default and the
// global default. Store errors advance the chain like misses do.
func (r *Resolver) ResolveWithDefault(ctx context.Context, key, defaultName string) Result {
	attempts := make([]Attempt, 0, 4)

	try := func(step Step, k string) (Result, bool) {
		res := r.lookup(ctx, step, k)
		attempts = append(attempts, Attempt{Step: step, Key: k, Status: res.Status, Err: res.Err})
		res.Attempts = attempts
		return res, res.Status == Found
	}

	if res, ok := try(StepExact, key); ok {
		return res
	}

	if stripped, ok := StripYear(key); ok && stripped != "" {
		if res, ok := try(StepYearStripped, stripped); ok {
			return res
		}
	}

	if res, ok := try(StepNamedDefault, r.DefaultKey(defaultName)); ok {
		return res
	}

	if res, ok := try(StepGlobalDefault, r.GlobalDefaultKey()); ok {
		return res
	}

	log.Ctx(ctx).Debug().
		Str("key", key).
		Str("default", defaultName).
		Int("attempts", len(attempts)).
		Msg("fallback chain exhausted")

	return Result{Status: NotFound, Step: StepNone, Key: key, Attempts: attempts}
}

// DefaultKey returns the storage key of a named default image
func (r *Resolver) DefaultKey(name string) string {
	return r.opts.DefaultDir + "/" + name + r.opts.DefaultExt
}

// GlobalDefaultKey returns the key of the last-resort image
func (r *Resolver) GlobalDefaultKey() string {
	return r.DefaultKey(r.opts.GlobalDefault)
}

func (r *Resolver) lookup(ctx context.Context, step Step, key string) Result {
	obj, err := r.store.Retrieve(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			log.Ctx(ctx).Debug().Str("key", key).Str("step", string(step)).Msg("image miss")
			return Result{Status: NotFound, Step: step, Key: key}
		}
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Str("step", string(step)).Msg("image store read failed")
		return Result{Status: StoreError, Step: step, Key: key, Err: err}
	}

	return Result{
		Status:      Found,
		Step:        step,
		Key:         key,
		ContentType: ContentTypeOrDefault(key),
		Size:        obj.Size,
		Body:        obj.Body,
	}
}

// yearSegment matches "/DDDD" followed by "/" or the end of the key
var yearSegment = regexp.MustCompile(`/[0-9]{4}(/|$)`)

// StripYear removes the first four-digit path segment from key, collapsing
// the surrounding slashes into one. The key is matched as if rooted, so a
// leading segment ("2023/a.jpg") counts. ok is false when nothing matched.
func StripYear(key string) (string, bool) {
	rooted := "/" + key
	loc := yearSegment.FindStringIndex(rooted)
	if loc == nil {
		return key, false
	}
	stripped := rooted[:loc[0]] + "/" + rooted[loc[1]:]
	return strings.TrimPrefix(stripped, "/"), true
}
