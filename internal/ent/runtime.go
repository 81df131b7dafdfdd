// Code generated by ent, DO NOT EDIT.

package ent

import (
	"time"

	"github.com/apihub/hub/internal/ent/document"
	"github.com/apihub/hub/internal/ent/schema"
)

// The init function reads all schema descriptors with runtime code
// (default values, validators, hooks and policies) and stitches it
// to their package variables.
func init() {
	documentFields := schema.Document{}.Fields()
	_ = documentFields
	// documentDescCollection is the schema descriptor for collection field.
	documentDescCollection := documentFields[0].Descriptor()
	// document.CollectionValidator is a validator for the "collection" field. It is called by the builders before save.
	document.CollectionValidator = documentDescCollection.Validators[0].(func(string) error)
	// documentDescDocID is the schema descriptor for doc_id field.
	documentDescDocID := documentFields[1].Descriptor()
	// document.DocIDValidator is a validator for the "doc_id" field. It is called by the builders before save.
	document.DocIDValidator = documentDescDocID.Validators[0].(func(string) error)
	// documentDescCreatedAt is the schema descriptor for created_at field.
	documentDescCreatedAt := documentFields[3].Descriptor()
	// document.DefaultCreatedAt holds the default value on creation for the created_at field.
	document.DefaultCreatedAt = documentDescCreatedAt.Default.(func() time.Time)
	// documentDescUpdatedAt is the schema descriptor for updated_at field.
	documentDescUpdatedAt := documentFields[4].Descriptor()
	// document.DefaultUpdatedAt holds the default value on creation for the updated_at field.
	document.DefaultUpdatedAt = documentDescUpdatedAt.Default.(func() time.Time)
}
