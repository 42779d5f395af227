package metadata

// Entity describes one resource table served under /api/:entity.
type Entity struct {
	Name      string              `json:"name"`
	Table     string              `json:"table"`
	ScreenKey string              `json:"screen_key,omitempty"`
	ReadOnly  bool                `json:"read_only,omitempty"`
	Fields    []Field             `json:"fields"`
	Relations map[string]Relation `json:"relations,omitempty"`
	// Restrictions block deletes while other tables still reference a record.
	Restrictions []Restriction `json:"restrictions,omitempty"`
}

type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // string, int, int_set, permission_pairs
	Required bool   `json:"required,omitempty"`
}

// Restriction names a referencing table/field and the message returned when
// a delete would orphan those references.
type Restriction struct {
	Table   string `json:"table"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns all field names.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}
