package persist

import "reflect"

// Materialize rebuilds a nested record from one flat row. Include sub-fields
// are regrouped by the include's schema; every other target field is copied
// from the same-named row entry when present. A row entry under an include's
// own name takes precedence: nil marks the relation absent, a nested value
// is projected onto the include schema.
func Materialize(row Row, target *RecordSchema, plan Plan) Record {
	rec := make(Record, len(target.Fields))
	for _, fd := range target.Fields {
		incSchema, isInclude := plan.IncludeSchema(fd.Name)
		if !isInclude {
			if v, ok := row[fd.Name]; ok {
				rec[fd.Name] = v
			}
			continue
		}
		if nested, ok := row[fd.Name]; ok {
			switch {
			case nested == nil && fd.IsArray():
				rec[fd.Name] = []Record{}
				continue
			case nested == nil:
				rec[fd.Name] = nil
				continue
			case isNested(nested):
				rec[fd.Name] = normalizeNested(nested, incSchema)
				continue
			}
		}
		if fd.IsArray() {
			rec[fd.Name] = gatherMany(row, fd.Name, incSchema)
		} else {
			rec[fd.Name] = gatherOne(row, fd.Name, incSchema)
		}
	}
	return rec
}

// gatherOne returns nil when no sub-field carries a value. Clients that can
// tell an absent relation apart should put it under the include name instead.
func gatherOne(row Row, include string, schema *RecordSchema) any {
	prefix := IncludePrefix(include, false)
	sub := make(Record, len(schema.Fields))
	empty := true
	for _, f := range schema.Fields {
		v, ok := row[prefix+f.Name]
		if !ok {
			continue
		}
		sub[f.Name] = v
		if v != nil {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return sub
}

// gatherMany zips the per-field column slices of an include. Element i holds
// index i of every slice; a NULL value never removes an element.
func gatherMany(row Row, include string, schema *RecordSchema) []Record {
	prefix := IncludePrefix(include, true)
	columns := make(map[string][]any, len(schema.Fields))
	n := 0
	for _, f := range schema.Fields {
		vals := toSlice(row[prefix+f.Name])
		columns[f.Name] = vals
		if len(vals) > n {
			n = len(vals)
		}
	}

	out := make([]Record, n)
	for i := range out {
		elem := make(Record, len(schema.Fields))
		for _, f := range schema.Fields {
			if vals := columns[f.Name]; i < len(vals) {
				elem[f.Name] = vals[i]
			}
		}
		out[i] = elem
	}
	return out
}

func isNested(v any) bool {
	switch v.(type) {
	case Record, map[string]any, []Record, []map[string]any, []any:
		return true
	}
	return false
}

// normalizeNested projects an already nested value onto the include schema
func normalizeNested(v any, schema *RecordSchema) any {
	switch n := v.(type) {
	case Record:
		return project(n, schema)
	case map[string]any:
		return project(n, schema)
	case []Record:
		out := make([]Record, len(n))
		for i, r := range n {
			out[i] = project(r, schema)
		}
		return out
	case []map[string]any:
		out := make([]Record, len(n))
		for i, r := range n {
			out[i] = project(r, schema)
		}
		return out
	case []any:
		out := make([]Record, 0, len(n))
		for _, e := range ConvertToArray(n) {
			switch r := e.(type) {
			case Record:
				out = append(out, project(r, schema))
			case map[string]any:
				out = append(out, project(r, schema))
			}
		}
		return out
	}
	return v
}

func project(m map[string]any, schema *RecordSchema) Record {
	out := make(Record, len(schema.Fields))
	for _, f := range schema.Fields {
		if v, ok := m[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// ConvertToArray copies values up to, not including, the first nil element
func ConvertToArray(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v == nil {
			break
		}
		out = append(out, v)
	}
	return out
}
