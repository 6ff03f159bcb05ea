// Package payload decodes documentation search payloads into validated
// records. It understands the bare JSON array, the {"docs": [...]} object and
// the JavaScript assignment documentation generators write to disk.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Decode reads a whole payload from r. The first malformed record aborts
// decoding; no partial record list is returned.
func Decode(r io.Reader) ([]ingestion.DocumentationRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte) ([]ingestion.DocumentationRecord, error) {
	body, err := stripAssignment(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	var top json.RawMessage
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("%w: parsing payload: %v", apperrors.ErrMalformedRecord, err)
	}
	items, err := recordArray(top)
	if err != nil {
		return nil, err
	}
	records := make([]ingestion.DocumentationRecord, 0, len(items))
	for i, item := range items {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(item, &raw); err != nil || raw == nil {
			return nil, &ingestion.MalformedRecordError{Index: i, Reason: "is not an object"}
		}
		rec, err := validator.DecodeRecord(i, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// stripAssignment drops a leading `var name =` so the remainder is plain JSON.
func stripAssignment(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", apperrors.ErrMalformedRecord)
	}
	if data[0] == '[' || data[0] == '{' {
		return data, nil
	}
	eq := bytes.IndexByte(data, '=')
	if eq < 0 {
		return nil, fmt.Errorf("%w: payload is neither JSON nor a JavaScript assignment", apperrors.ErrMalformedRecord)
	}
	return bytes.TrimSpace(data[eq+1:]), nil
}

func recordArray(top json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(top)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: parsing payload object: %v", apperrors.ErrMalformedRecord, err)
		}
		docs, ok := wrapper["docs"]
		if !ok {
			return nil, fmt.Errorf("%w: payload object has no \"docs\" array", apperrors.ErrMalformedRecord)
		}
		trimmed = bytes.TrimSpace(docs)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: records are not an array: %v", apperrors.ErrMalformedRecord, err)
	}
	return items, nil
}
