// Package validator enforces the documentation record contract at the
// ingestion boundary. Violations are reported as
// *ingestion.MalformedRecordError so callers can abort the whole build.
package validator

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

// Required payload fields, in the order generators write them.
var requiredFields = []string{"location", "page", "title", "text", "category"}

// ValidateRecord checks the invariants of an already-typed record. index is
// the record's position in its payload and is only used for reporting.
func ValidateRecord(index int, rec ingestion.DocumentationRecord) error {
	malformed := func(field, reason string) error {
		return &ingestion.MalformedRecordError{
			Index:    index,
			Location: rec.Location,
			Field:    field,
			Reason:   reason,
		}
	}
	if rec.Category == "" {
		return malformed("category", "must not be empty")
	}
	// Generators anchor the root of a page at "", so only page records may
	// omit a location.
	if rec.Location == "" && rec.Category != ingestion.CategoryPage {
		return malformed("location", "must not be empty")
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"location", rec.Location},
		{"page", rec.Page},
		{"title", rec.Title},
		{"text", rec.Text},
		{"category", string(rec.Category)},
	} {
		if !utf8.ValidString(f.value) {
			return malformed(f.name, "is not valid UTF-8")
		}
	}
	return nil
}

// ValidateRecords stops at the first malformed record.
func ValidateRecords(records []ingestion.DocumentationRecord) error {
	for i, rec := range records {
		if err := ValidateRecord(i, rec); err != nil {
			return err
		}
	}
	return nil
}

// DecodeRecord converts one raw payload object into a record. Unknown fields
// are ignored; missing fields and non-string values are rejected.
func DecodeRecord(index int, raw map[string]json.RawMessage) (ingestion.DocumentationRecord, error) {
	values := make(map[string]string, len(requiredFields))
	location := ""
	if v, ok := raw["location"]; ok {
		_ = json.Unmarshal(v, &location)
	}
	for _, name := range requiredFields {
		v, ok := raw[name]
		if !ok {
			return ingestion.DocumentationRecord{}, &ingestion.MalformedRecordError{
				Index: index, Location: location, Field: name, Reason: "is missing",
			}
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ingestion.DocumentationRecord{}, &ingestion.MalformedRecordError{
				Index:    index,
				Location: location,
				Field:    name,
				Reason:   fmt.Sprintf("must be a string, got %s", describeJSON(v)),
			}
		}
		values[name] = s
	}
	rec := ingestion.DocumentationRecord{
		Location: values["location"],
		Page:     values["page"],
		Title:    values["title"],
		Text:     values["text"],
		Category: ingestion.Category(values["category"]),
	}
	if err := ValidateRecord(index, rec); err != nil {
		return ingestion.DocumentationRecord{}, err
	}
	return rec, nil
}

func describeJSON(v json.RawMessage) string {
	for _, c := range v {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case 'n':
			return "null"
		case 't', 'f':
			return "boolean"
		case '{':
			return "object"
		case '[':
			return "array"
		case '"':
			return "string"
		default:
			return "number"
		}
	}
	return "nothing"
}
