package core

// DeepCopy returns a copy of obj that shares no arrays, dictionaries or
// stream buffers with the original. References are copied as values and
// are not followed.
func DeepCopy(obj Object) Object {
	switch v := obj.(type) {
	case Array:
		c := make(Array, len(v))
		for i, elem := range v {
			c[i] = DeepCopy(elem)
		}
		return c
	case Dict:
		c := make(Dict, len(v))
		for k, val := range v {
			c[k] = DeepCopy(val)
		}
		return c
	case *Stream:
		return &Stream{
			Dict: DeepCopy(v.Dict).(Dict),
			Data: append([]byte(nil), v.Data...),
		}
	}
	return obj
}

// MapRefs returns a copy of obj in which every IndirectRef has been
// replaced by fn(ref). Containers are copied; streams keep their data
// buffer.
func MapRefs(obj Object, fn func(IndirectRef) Object) Object {
	switch v := obj.(type) {
	case IndirectRef:
		return fn(v)
	case Array:
		c := make(Array, len(v))
		for i, elem := range v {
			c[i] = MapRefs(elem, fn)
		}
		return c
	case Dict:
		c := make(Dict, len(v))
		for k, val := range v {
			c[k] = MapRefs(val, fn)
		}
		return c
	case *Stream:
		return &Stream{Dict: MapRefs(v.Dict, fn).(Dict), Data: v.Data}
	}
	return obj
}

// WalkRefs calls fn for every IndirectRef contained in obj, without
// following them.
func WalkRefs(obj Object, fn func(IndirectRef)) {
	switch v := obj.(type) {
	case IndirectRef:
		fn(v)
	case Array:
		for _, elem := range v {
			WalkRefs(elem, fn)
		}
	case Dict:
		for _, key := range v.Keys() {
			WalkRefs(v[key], fn)
		}
	case *Stream:
		WalkRefs(v.Dict, fn)
	}
}
