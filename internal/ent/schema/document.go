package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Document holds the schema definition for stored documents: schemaless JSON
// payloads addressed by collection and document id.
type Document struct{ ent.Schema }

// Fields of the Document.
func (Document) Fields() []ent.Field {
	return []ent.Field{
		field.String("collection").NotEmpty(),
		// External document id; unique within its collection.
		field.String("doc_id").NotEmpty(),
		// JSON payload; compatible with Postgres (JSONB) and SQLite (TEXT/BLOB).
		field.JSON("data", map[string]any{}).
			Optional(),
		field.Time("created_at").Default(time.Now).Immutable().SchemaType(map[string]string{
			dialect.Postgres: "TIMESTAMPTZ",
			dialect.SQLite:   "DATETIME",
		}),
		field.Time("updated_at").Default(time.Now).SchemaType(map[string]string{
			dialect.Postgres: "TIMESTAMPTZ",
			dialect.SQLite:   "DATETIME",
		}),
	}
}

// Indexes of the Document.
func (Document) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("collection", "doc_id").Unique(),
		index.Fields("collection"),
	}
}
