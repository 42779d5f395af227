package metadata

// Relation kinds. A "one" relation follows a scalar foreign key on the source
// record; a "many" relation follows a foreign key that may be a bare id or a
// list of ids; a "reverse" relation collects records in another table whose
// reference field points back at the source record.
const (
	RelationOne     = "one"
	RelationMany    = "many"
	RelationReverse = "reverse"
)

type Relation struct {
	Kind  string `json:"kind"`
	Table string `json:"table"`
	// ForeignKey is the field on the source record (one/many kinds).
	ForeignKey string `json:"foreign_key,omitempty"`
	// ReferenceKey is the field on the related record (reverse kind).
	ReferenceKey string `json:"reference_key,omitempty"`
}

func (r Relation) IsReverse() bool {
	return r.Kind == RelationReverse
}
