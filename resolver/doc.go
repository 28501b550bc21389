// Package resolver follows PDF indirect references.
//
// A [Resolver] wraps any [Source] that can look up a single reference,
// usually a *reader.Reader:
//
//	r := resolver.New(doc)
//	obj, err := r.Resolve(ref)       // follow a reference chain
//	full, err := r.ResolveDeep(dict) // copy with nested references expanded
//
// Deep resolution stops at references that point back into the object
// currently being expanded, so /Parent links in the page tree come back as
// references instead of failing.
package resolver
