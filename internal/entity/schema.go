package entity

type PropertyKind string

const (
	PropertyKindTitle    PropertyKind = "title"
	PropertyKindRichText PropertyKind = "rich_text"
	PropertyKindEmail    PropertyKind = "email"
	PropertyKindSelect   PropertyKind = "select"
	PropertyKindStatus   PropertyKind = "status"
	PropertyKindOther    PropertyKind = "other"
)

// Property is one declared field of the store's schema.
type Property struct {
	Name string
	Kind PropertyKind
}

// Schema is the store's declared field layout at the time it was fetched.
type Schema struct {
	Properties []Property
}

type StatusKind string

const (
	StatusKindSelect   StatusKind = "select"
	StatusKindFreeText StatusKind = "free_text"
	StatusKindAbsent   StatusKind = "absent"
)

// Field points a logical lead field at a store property. The zero value
// means the store has no counterpart for it.
type Field struct {
	Name string
	Kind PropertyKind
}

func (f Field) Present() bool {
	return f.Name != ""
}

// SchemaMapping maps the logical lead fields onto store properties.
// It is never mutated once built.
type SchemaMapping struct {
	Title      Field
	Email      Field
	Note       Field
	Source     Field
	Status     Field
	StatusKind StatusKind
}

// FieldValue is one property to write when creating a record.
type FieldValue struct {
	Field Field
	Value string
}

// Values returns the properties to send for lead, in a fixed order. Fields
// absent from the mapping and empty optional values are left out.
func (m *SchemaMapping) Values(lead LeadSubmission) []FieldValue {
	var values []FieldValue
	add := func(f Field, v string) {
		if f.Present() && v != "" {
			values = append(values, FieldValue{Field: f, Value: v})
		}
	}

	add(m.Title, lead.DisplayName())
	add(m.Email, lead.Email)
	add(m.Note, lead.Note)
	add(m.Source, lead.Source)
	if m.StatusKind != StatusKindAbsent {
		add(m.Status, string(LeadStatusNew))
	}
	return values
}
