package persist

// KnownTypes is the set of record type names that are treated as atomic
// scalars and never expanded into includes.
type KnownTypes map[string]struct{}

// DefaultKnownTypes returns the temporal record types
func DefaultKnownTypes() KnownTypes {
	return NewKnownTypes(TypeCivil, TypeDate, TypeTimeOfDay)
}

func NewKnownTypes(names ...string) KnownTypes {
	k := make(KnownTypes, len(names))
	for _, n := range names {
		if n != "" {
			k[n] = struct{}{}
		}
	}
	return k
}

func (k KnownTypes) Has(name string) bool {
	if name == "" {
		return false
	}
	_, ok := k[name]
	return ok
}

// Matches reports whether any name along t's reference chain is known.
// Anonymous types never match.
func (k KnownTypes) Matches(t *Type) bool {
	for depth := 0; t != nil && depth <= maxRefDepth; depth++ {
		if k.Has(t.Name) {
			return true
		}
		if t.Kind != KindRef {
			return false
		}
		t = t.Target
	}
	return false
}

// Names returns the known type names in no particular order
func (k KnownTypes) Names() []string {
	out := make([]string, 0, len(k))
	for n := range k {
		out = append(out, n)
	}
	return out
}
