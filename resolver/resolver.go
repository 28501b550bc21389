package resolver

import (
	"fmt"

	"github.com/tsawler/folio/core"
)

// Source is the object store a Resolver reads from. Unknown or free
// objects resolve to core.Null{}, not an error.
type Source interface {
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// Resolver follows indirect references on behalf of a Source.
type Resolver struct {
	src      Source
	maxDepth int
}

// Option configures the resolver
type Option func(*Resolver)

// WithMaxDepth sets the maximum nesting depth for deep resolution and the
// longest reference chain followed by Resolve (default: 100).
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// New creates a resolver over src.
func New(src Source, opts ...Option) *Resolver {
	r := &Resolver{src: src, maxDepth: 100}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns obj with any leading chain of references followed. The
// contents of arrays and dictionaries are left untouched.
func (r *Resolver) Resolve(obj core.Object) (core.Object, error) {
	for i := 0; ; i++ {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			if obj == nil {
				return core.Null{}, nil
			}
			return obj, nil
		}
		if i >= r.maxDepth {
			return nil, fmt.Errorf("reference chain from %s exceeds %d links", ref, r.maxDepth)
		}
		next, err := r.src.ResolveReference(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reference %s: %w", ref, err)
		}
		obj = next
	}
}

type refKey struct{ num, gen int }

// ResolveDeep returns a copy of obj in which every reference has been
// replaced by the object it points to. A reference back to an object that is
// already being expanded on the current path is kept as a reference, so
// /Parent links and other cycles terminate.
func (r *Resolver) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.deep(obj, make(map[refKey]bool), 0)
}

func (r *Resolver) deep(obj core.Object, path map[refKey]bool, depth int) (core.Object, error) {
	if depth >= r.maxDepth {
		return nil, fmt.Errorf("maximum recursion depth (%d) exceeded", r.maxDepth)
	}

	switch v := obj.(type) {
	case core.IndirectRef:
		key := refKey{v.Number, v.Generation}
		if path[key] {
			return v, nil
		}
		resolved, err := r.src.ResolveReference(v)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reference %s: %w", v, err)
		}
		path[key] = true
		defer delete(path, key)
		return r.deep(resolved, path, depth+1)

	case core.Dict:
		out := make(core.Dict, len(v))
		for key, value := range v {
			resolved, err := r.deep(value, path, depth+1)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dict key %s: %w", key, err)
			}
			out[key] = resolved
		}
		return out, nil

	case core.Array:
		out := make(core.Array, len(v))
		for i, elem := range v {
			resolved, err := r.deep(elem, path, depth+1)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve array element %d: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil

	case *core.Stream:
		dict, err := r.deep(v.Dict, path, depth+1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stream dict: %w", err)
		}
		return &core.Stream{Dict: dict.(core.Dict), Data: v.Data}, nil

	case nil:
		return core.Null{}, nil
	}
	return obj, nil
}

// Dict resolves obj and returns it as a dictionary. A stream yields its
// dictionary. ok is false for any other type, including null.
func (r *Resolver) Dict(obj core.Object) (core.Dict, bool, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, false, err
	}
	switch v := resolved.(type) {
	case core.Dict:
		return v, true, nil
	case *core.Stream:
		return v.Dict, true, nil
	}
	return nil, false, nil
}

// Array resolves obj and returns it as an array.
func (r *Resolver) Array(obj core.Object) (core.Array, bool, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, false, err
	}
	a, ok := resolved.(core.Array)
	return a, ok, nil
}

// Number resolves obj and returns its numeric value.
func (r *Resolver) Number(obj core.Object) (float64, bool, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return 0, false, err
	}
	f, ok := core.Number(resolved)
	return f, ok, nil
}
