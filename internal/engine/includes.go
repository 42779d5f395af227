package engine

import (
	"admin-console/internal/metadata"
	"admin-console/internal/store"
)

// LoadIncludes enriches records with related data for each requested include.
// Unknown include names are ignored. Each related table is read once.
func LoadIncludes(s *store.Store, entity *metadata.Entity, records []store.Record, includes []string) error {
	if len(records) == 0 || len(includes) == 0 {
		return nil
	}

	cache := map[string][]store.Record{}
	readTable := func(table string) ([]store.Record, error) {
		if data, ok := cache[table]; ok {
			return data, nil
		}
		data, err := s.Read(table)
		if err != nil {
			return nil, err
		}
		cache[table] = data
		return data, nil
	}

	for _, name := range includes {
		rel, ok := entity.Relations[name]
		if !ok {
			continue
		}
		related, err := readTable(rel.Table)
		if err != nil {
			return err
		}
		for _, rec := range records {
			attachRelation(rec, name, rel, related)
		}
	}
	return nil
}

func attachRelation(rec store.Record, name string, rel metadata.Relation, related []store.Record) {
	switch rel.Kind {
	case metadata.RelationOne:
		fk := rec[rel.ForeignKey]
		rec[name] = nil
		if store.IsNumber(fk) {
			id := store.ToInt(fk)
			for _, r := range related {
				if store.ToInt(r["id"]) == id {
					rec[name] = r
					break
				}
			}
		}
	case metadata.RelationMany:
		ids := idSet(rec[rel.ForeignKey])
		matched := []store.Record{}
		for _, r := range related {
			if ids[store.ToInt(r["id"])] {
				matched = append(matched, r)
			}
		}
		rec[name] = matched
	case metadata.RelationReverse:
		id := store.ToInt(rec["id"])
		matched := []store.Record{}
		for _, r := range related {
			if refersTo(r[rel.ReferenceKey], id) {
				matched = append(matched, r)
			}
		}
		rec[name] = matched
	}
}

// idSet expands a bare id or a list of ids into a lookup set.
func idSet(v any) map[int]bool {
	set := map[int]bool{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if store.IsNumber(item) {
				set[store.ToInt(item)] = true
			}
		}
	default:
		if store.IsNumber(v) {
			set[store.ToInt(v)] = true
		}
	}
	return set
}

func refersTo(v any, id int) bool {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if store.IsNumber(item) && store.ToInt(item) == id {
				return true
			}
		}
		return false
	default:
		return store.IsNumber(v) && store.ToInt(v) == id
	}
}
