package models

// ModelsToAutoMigrate returns the models that make up the record store schema.
func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&RecordIdentifier{},
		&PersistentIdentifier{},
		&Record{},
	}
}
