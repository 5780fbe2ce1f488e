// Package model holds the data shapes shared across the geocoding
// orchestrator: input rows, field mappings, query variants, and results.
// Job records live in package jobrecord.
package model

import "strings"

// Row is an opaque mapping from input column name to string value. The
// caller's tabular source (CSV/TXT, out of scope here) supplies rows;
// the orchestrator never assumes a fixed schema.
type Row map[string]string

// Get returns the trimmed value for a column, or "" if absent.
func (r Row) Get(column string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r[column])
}

// SemanticField names the seven recognized semantic address fields a
// FieldMapping can bind to caller-specific column names.
type SemanticField string

const (
	FieldName         SemanticField = "name"
	FieldStreet       SemanticField = "street"
	FieldPostalCode   SemanticField = "postal_code"
	FieldCity         SemanticField = "city"
	FieldGovernorate  SemanticField = "governorate"
	FieldCountry      SemanticField = "country"
	FieldComplement   SemanticField = "complement"
	FieldFullAddress  SemanticField = "full_address"
)

// FieldMapping binds the seven recognized semantic names to the caller's
// own column names. A zero-value field means "not present in this input."
type FieldMapping struct {
	Name        string
	Street      string
	PostalCode  string
	City        string
	Governorate string
	Country     string
	Complement  string
	FullAddress string
}

// Address is the row's semantic fields resolved through a FieldMapping —
// the only view the Address Rewriter is allowed to read.
type Address struct {
	Name        string
	Street      string
	PostalCode  string
	City        string
	Governorate string
	Country     string
	Complement  string
	FullAddress string
}

// Resolve reads row through mapping, producing the semantic Address view.
// Columns the mapping leaves unset resolve to "".
func Resolve(row Row, mapping FieldMapping) Address {
	return Address{
		Name:        lookup(row, mapping.Name),
		Street:      lookup(row, mapping.Street),
		PostalCode:  lookup(row, mapping.PostalCode),
		City:        lookup(row, mapping.City),
		Governorate: lookup(row, mapping.Governorate),
		Country:     lookup(row, mapping.Country),
		Complement:  lookup(row, mapping.Complement),
		FullAddress: lookup(row, mapping.FullAddress),
	}
}

func lookup(row Row, column string) string {
	if column == "" {
		return ""
	}
	return row.Get(column)
}
