// Package ingestion defines the documentation record model, the record store
// that owns ingested records, and the errors raised when a payload violates
// the record contract.
package ingestion

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Category tags what kind of documentation entry a record is. The set is
// open: generators emit new categories and they are kept verbatim.
type Category string

const (
	CategoryPage         Category = "page"
	CategorySection      Category = "section"
	CategoryType         Category = "type"
	CategoryAbstractType Category = "abstract type"
	CategoryMethod       Category = "method"
	CategoryFunction     Category = "function"
	CategoryMacro        Category = "macro"
	CategoryModule       Category = "module"
	CategoryConstant     Category = "constant"
)

var knownCategories = map[Category]struct{}{
	CategoryPage: {}, CategorySection: {}, CategoryType: {},
	CategoryAbstractType: {}, CategoryMethod: {}, CategoryFunction: {},
	CategoryMacro: {}, CategoryModule: {}, CategoryConstant: {},
}

// Known reports whether c is one of the categories generators are known to
// emit.
func (c Category) Known() bool {
	_, ok := knownCategories[c]
	return ok
}

// Field identifies which indexed field of a record a term came from.
type Field uint8

const (
	FieldTitle Field = iota
	FieldText
)

// Fields lists the indexed fields in ranking priority order.
var Fields = [...]Field{FieldTitle, FieldText}

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldText:
		return "text"
	default:
		return "unknown"
	}
}

func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Field) UnmarshalText(b []byte) error {
	switch string(b) {
	case "title":
		*f = FieldTitle
	case "text":
		*f = FieldText
	default:
		return fmt.Errorf("unknown field %q", b)
	}
	return nil
}

// RecordID addresses a record inside a Store. IDs follow ingestion order.
type RecordID int

// DocumentationRecord is one entry of a documentation search payload.
type DocumentationRecord struct {
	Location string   `json:"location"`
	Page     string   `json:"page"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// FieldValue returns the raw text of the given field.
func (r DocumentationRecord) FieldValue(f Field) string {
	if f == FieldTitle {
		return r.Title
	}
	return r.Text
}

// MalformedRecordError reports a record that violates the payload contract.
// Index is the position of the record in the payload.
type MalformedRecordError struct {
	Index    int
	Location string
	Field    string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d (location %q): field %q %s", e.Index, e.Location, e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return apperrors.ErrMalformedRecord
}
