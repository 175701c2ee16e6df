package entities

// SchemaVersion is bumped whenever any partition changes shape. A database
// carrying a different version is dropped and recreated on open.
const SchemaVersion = "3"

const SchemaMetaVersionKey = "schema_version"

type SchemaMeta struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"size:64"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}

// Partitions lists the models that make up the local store, in creation
// order.
func Partitions() []any {
	return []any{
		&Book{},
		&Blob{},
		&Progress{},
		&Session{},
		&Setting{},
	}
}
