package persist

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var builtinScalars = map[string]bool{
	"string":  true,
	"int":     true,
	"float":   true,
	"decimal": true,
	"boolean": true,
	"byte":    true,
	"bytes":   true,
	"json":    true,
	"any":     true,
}

type catalogDoc struct {
	Types []typeDoc `yaml:"types"`
}

type typeDoc struct {
	Name   string     `yaml:"name"`
	Fields []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Key      bool   `yaml:"key,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
	Readonly bool   `yaml:"readonly,omitempty"`
}

// Catalog holds named record schemas loaded from a schema document
type Catalog struct {
	schemas map[string]*RecordSchema
	order   []string
}

// ParseCatalog reads record schemas from a YAML (or JSON) document.
// Field types are written as "int", "Address" or "Pet[]". Undeclared names in
// known become opaque records; any other undeclared name is kept as a
// dangling reference and rejected when a schema using it is flattened.
func ParseCatalog(data []byte, known KnownTypes) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, Wrap(ErrMalformedSchema, "invalid schema document", err)
	}

	c := &Catalog{schemas: make(map[string]*RecordSchema, len(doc.Types))}
	named := make(map[string]*Type, len(doc.Types))
	for _, td := range doc.Types {
		if td.Name == "" {
			return nil, MalformedSchemaError("", "type without name")
		}
		if _, dup := c.schemas[td.Name]; dup {
			return nil, MalformedSchemaError("", fmt.Sprintf("duplicate type %q", td.Name))
		}
		s := &RecordSchema{Name: td.Name}
		c.schemas[td.Name] = s
		c.order = append(c.order, td.Name)
		named[td.Name] = RecordOf(s)
	}

	for _, td := range doc.Types {
		s := c.schemas[td.Name]
		for _, fdoc := range td.Fields {
			t, err := parseTypeExpr(fdoc.Type, named, known)
			if err != nil {
				return nil, MalformedSchemaError(fdoc.Name, err.Error())
			}
			var flags FieldFlags
			if fdoc.Key {
				flags |= FlagKey
			}
			if fdoc.Optional {
				flags |= FlagOptional
			}
			if fdoc.Readonly {
				flags |= FlagReadonly
			}
			s.Fields = append(s.Fields, FieldDescriptor{Name: fdoc.Name, Type: t, Flags: flags})
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadCatalog reads a schema document from disk
func LoadCatalog(path string, known KnownTypes) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Wrap(ErrMalformedSchema, "read schema document", err)
	}
	return ParseCatalog(b, known)
}

func parseTypeExpr(expr string, named map[string]*Type, known KnownTypes) (*Type, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty type")
	}
	if base, ok := strings.CutSuffix(expr, "[]"); ok {
		elem, err := parseTypeExpr(base, named, known)
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	}
	if builtinScalars[expr] {
		return Scalar(expr), nil
	}
	if t, ok := named[expr]; ok {
		return Ref(expr, t), nil
	}
	if known.Has(expr) {
		opaque := RecordOf(&RecordSchema{Name: expr})
		named[expr] = opaque
		return Ref(expr, opaque), nil
	}
	return Ref(expr, nil), nil
}

// Schema returns the named record schema
func (c *Catalog) Schema(name string) (*RecordSchema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

// Names returns the declared type names in document order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
