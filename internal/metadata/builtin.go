package metadata

// Builtin returns the entity definitions for the console's five tables.
// Screens and permissions are read-only reference data; the other three are
// full CRUD resources with restrict-on-delete references between them.
func Builtin() []*Entity {
	return []*Entity{
		{
			Name:      "users",
			Table:     "users",
			ScreenKey: "users",
			Fields: []Field{
				{Name: "name", Type: "string", Required: true},
				{Name: "email", Type: "string", Required: true},
				{Name: "password", Type: "string"},
				{Name: "position_id", Type: "int"},
			},
			Relations: map[string]Relation{
				"position": {Kind: RelationOne, Table: "positions", ForeignKey: "position_id"},
			},
		},
		{
			Name:      "positions",
			Table:     "positions",
			ScreenKey: "positions",
			Fields: []Field{
				{Name: "name", Type: "string", Required: true},
				{Name: "departments", Type: "int_set"},
				{Name: "permissions", Type: "permission_pairs"},
			},
			Relations: map[string]Relation{
				"department": {Kind: RelationMany, Table: "departments", ForeignKey: "departments"},
				"users":      {Kind: RelationReverse, Table: "users", ReferenceKey: "position_id"},
			},
			Restrictions: []Restriction{
				{Table: "users", Field: "position_id", Message: "cannot delete a position with linked users"},
			},
		},
		{
			Name:      "departments",
			Table:     "departments",
			ScreenKey: "departments",
			Fields: []Field{
				{Name: "name", Type: "string", Required: true},
			},
			Relations: map[string]Relation{
				"positions": {Kind: RelationReverse, Table: "positions", ReferenceKey: "departments"},
			},
			Restrictions: []Restriction{
				{Table: "positions", Field: "departments", Message: "cannot delete a department with linked positions"},
			},
		},
		{
			Name:     "screens",
			Table:    "screens",
			ReadOnly: true,
			Fields: []Field{
				{Name: "key", Type: "string", Required: true},
				{Name: "name", Type: "string", Required: true},
			},
		},
		{
			Name:     "permissions",
			Table:    "permissions",
			ReadOnly: true,
			Fields: []Field{
				{Name: "key", Type: "string", Required: true},
				{Name: "name", Type: "string", Required: true},
			},
		},
	}
}
