package persist

import (
	"fmt"
	"regexp"
)

// FieldFlags carries per-field attributes that survive row projection
type FieldFlags uint8

const (
	FlagKey FieldFlags = 1 << iota
	FlagOptional
	FlagReadonly
)

func (f FieldFlags) Has(flag FieldFlags) bool {
	return f&flag != 0
}

// FieldDescriptor defines a single field of a record
type FieldDescriptor struct {
	Name  string
	Type  *Type
	Flags FieldFlags
}

// IsArray reports whether the field's resolved type is an array.
// Unresolvable types report false.
func (f FieldDescriptor) IsArray() bool {
	t, err := resolve(f.Type, f.Name)
	return err == nil && t.Kind == KindArray
}

// RecordSchema is an ordered set of fields describing a record shape
type RecordSchema struct {
	Name   string
	Fields []FieldDescriptor
}

// NewRecordSchema builds a schema from fields in declaration order
func NewRecordSchema(name string, fields ...FieldDescriptor) *RecordSchema {
	return &RecordSchema{Name: name, Fields: fields}
}

var validFieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks field names are usable as leaf path segments
func (s *RecordSchema) Validate() error {
	if s == nil {
		return MalformedSchemaError("", "nil record schema")
	}
	if len(s.Fields) == 0 {
		return MalformedSchemaError("", fmt.Sprintf("record %q must have at least one field", s.Name))
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if !validFieldNameRe.MatchString(f.Name) {
			return MalformedSchemaError(f.Name, "invalid field name (must match ^[A-Za-z_][A-Za-z0-9_]*$)")
		}
		if seen[f.Name] {
			return MalformedSchemaError(f.Name, "duplicate field")
		}
		seen[f.Name] = true
		if f.Type == nil {
			return MalformedSchemaError(f.Name, "field has no type")
		}
	}
	return nil
}

// Field retrieves a field descriptor by name
func (s *RecordSchema) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func (s *RecordSchema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// FieldNames returns the field names in declaration order
func (s *RecordSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// KeyFields returns the names of fields flagged as keys
func (s *RecordSchema) KeyFields() []string {
	var keys []string
	for _, f := range s.Fields {
		if f.Flags.Has(FlagKey) {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// resolve follows references until it reaches a concrete type
func resolve(t *Type, field string) (*Type, error) {
	for depth := 0; ; depth++ {
		if t == nil {
			return nil, MalformedSchemaError(field, "unresolved type")
		}
		if t.Kind != KindRef {
			return t, nil
		}
		if depth >= maxRefDepth {
			return nil, MalformedSchemaError(field, fmt.Sprintf("type reference cycle at %q", t.Name))
		}
		if t.Target == nil {
			return nil, MalformedSchemaError(field, fmt.Sprintf("dangling type reference %q", t.Name))
		}
		t = t.Target
	}
}
