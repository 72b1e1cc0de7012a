package persist

// ProjectRowSchema describes a physical row: every relation field is
// replaced by a string placeholder carrying the same name and flags.
func (f Flattener) ProjectRowSchema(s *RecordSchema) (*RecordSchema, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := &RecordSchema{
		Name:   s.Name + rowSchemaSuffix,
		Fields: make([]FieldDescriptor, 0, len(s.Fields)),
	}
	for _, fd := range s.Fields {
		_, isRelation, err := f.classify(fd)
		if err != nil {
			return nil, err
		}
		if isRelation {
			out.Fields = append(out.Fields, FieldDescriptor{
				Name:  fd.Name,
				Type:  Scalar(PlaceholderType),
				Flags: fd.Flags,
			})
			continue
		}
		out.Fields = append(out.Fields, fd)
	}
	return out, nil
}
