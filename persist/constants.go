package persist

const (
	DefaultWorkers = 64

	// Names of the temporal record types that are stored as atomic values.
	TypeCivil     = "Civil"
	TypeDate      = "Date"
	TypeTimeOfDay = "TimeOfDay"

	// Scalar type carried by the physical row in place of a relation.
	PlaceholderType = "string"

	rowSchemaSuffix = "$row"
	maxRefDepth     = 32
)
