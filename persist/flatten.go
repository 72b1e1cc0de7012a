package persist

// Plan lists the columns and relations a query must read. Includes and
// IncludeSchemas are parallel.
type Plan struct {
	LeafFields     []string
	Includes       []string
	IncludeSchemas []*RecordSchema
}

// IncludeSchema returns the schema of a named include
func (p Plan) IncludeSchema(name string) (*RecordSchema, bool) {
	for i, inc := range p.Includes {
		if inc == name {
			return p.IncludeSchemas[i], true
		}
	}
	return nil, false
}

// Flattener turns record schemas into query plans
type Flattener struct {
	Known KnownTypes
}

func NewFlattener(known KnownTypes) Flattener {
	if known == nil {
		known = DefaultKnownTypes()
	}
	return Flattener{Known: known}
}

// relation is the resolved shape of a field that must be included
type relation struct {
	schema *RecordSchema
	array  bool
}

// classify resolves a field's type and reports whether it is a relation.
func (f Flattener) classify(fd FieldDescriptor) (relation, bool, error) {
	t, err := resolve(fd.Type, fd.Name)
	if err != nil {
		return relation{}, false, err
	}
	// Known names are checked on the declared type as well so a reference
	// named Date is caught before it is followed.
	declared := fd.Type
	array := false
	if t.Kind == KindArray {
		array = true
		declared = t.Elem
		if t, err = resolve(t.Elem, fd.Name); err != nil {
			return relation{}, false, err
		}
	}
	if t.Kind != KindRecord || f.Known.Matches(declared) || f.Known.Has(t.Name) {
		return relation{}, false, nil
	}
	if t.Record == nil {
		return relation{}, false, MalformedSchemaError(fd.Name, "record type has no schema")
	}
	return relation{schema: t.Record, array: array}, true, nil
}

// Flatten computes the leaf field paths and includes for a schema.
// Relations are expanded exactly one level.
func (f Flattener) Flatten(s *RecordSchema) (Plan, error) {
	if err := s.Validate(); err != nil {
		return Plan{}, err
	}
	plan := Plan{
		LeafFields:     make([]string, 0, len(s.Fields)),
		Includes:       []string{},
		IncludeSchemas: []*RecordSchema{},
	}
	for _, fd := range s.Fields {
		rel, ok, err := f.classify(fd)
		if err != nil {
			return Plan{}, err
		}
		if !ok {
			plan.LeafFields = append(plan.LeafFields, fd.Name)
			continue
		}
		plan.Includes = append(plan.Includes, fd.Name)
		prefix := IncludePrefix(fd.Name, rel.array)
		for _, inner := range rel.schema.Fields {
			plan.LeafFields = append(plan.LeafFields, prefix+inner.Name)
		}
		plan.IncludeSchemas = append(plan.IncludeSchemas, rel.schema)
	}
	return plan, nil
}

// IncludePrefix returns the leaf path prefix of an include's sub-fields
func IncludePrefix(include string, array bool) string {
	if array {
		return include + "[]."
	}
	return include + "."
}
