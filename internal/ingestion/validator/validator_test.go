package validator

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func rawRecord(t *testing.T, doc string) map[string]json.RawMessage {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return raw
}

func TestDecodeRecordIgnoresUnknownFields(t *testing.T) {
	raw := rawRecord(t, `{"location":"#a","page":"Home","title":"Compton","text":"scattering process","category":"type","extra":42}`)
	rec, err := DecodeRecord(0, raw)
	if err != nil {
		t.Fatalf("DecodeRecord() error = %v", err)
	}
	want := ingestion.DocumentationRecord{
		Location: "#a", Page: "Home", Title: "Compton", Text: "scattering process", Category: ingestion.CategoryType,
	}
	if rec != want {
		t.Errorf("DecodeRecord() = %+v, want %+v", rec, want)
	}
}

func TestDecodeRecordRejects(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
		wantWords string
	}{
		{"missing title", `{"location":"#a","page":"p","text":"","category":"type"}`, "title", "missing"},
		{"numeric text", `{"location":"#a","page":"p","title":"t","text":7,"category":"type"}`, "text", "number"},
		{"null page", `{"location":"#a","page":null,"title":"t","text":"","category":"type"}`, "page", "null"},
		{"empty category", `{"location":"#a","page":"p","title":"t","text":"","category":""}`, "category", "empty"},
		{"empty location", `{"location":"","page":"p","title":"t","text":"","category":"function"}`, "location", "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord(3, rawRecord(t, tt.doc))
			var mre *ingestion.MalformedRecordError
			if !errors.As(err, &mre) {
				t.Fatalf("error = %v, want MalformedRecordError", err)
			}
			if mre.Index != 3 || mre.Field != tt.wantField {
				t.Errorf("error = %+v, want index 3 field %q", mre, tt.wantField)
			}
			if !strings.Contains(mre.Error(), tt.wantWords) {
				t.Errorf("error %q does not mention %q", mre.Error(), tt.wantWords)
			}
			if !errors.Is(err, apperrors.ErrMalformedRecord) {
				t.Error("error does not unwrap to ErrMalformedRecord")
			}
		})
	}
}

func TestValidateRecordAllowsRootPage(t *testing.T) {
	rec := ingestion.DocumentationRecord{Location: "", Page: "Home", Title: "Home", Category: ingestion.CategoryPage}
	if err := ValidateRecord(0, rec); err != nil {
		t.Errorf("ValidateRecord() error = %v", err)
	}
}

func TestValidateRecordRejectsInvalidUTF8(t *testing.T) {
	rec := ingestion.DocumentationRecord{Location: "#x", Text: "bad \xff byte", Category: ingestion.CategoryType}
	err := ValidateRecord(1, rec)
	var mre *ingestion.MalformedRecordError
	if !errors.As(err, &mre) || mre.Field != "text" {
		t.Errorf("ValidateRecord() = %v, want malformed text", err)
	}
}
