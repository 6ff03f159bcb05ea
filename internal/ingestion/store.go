package ingestion

import "iter"

// Store owns the canonical list of ingested records. Derived structures refer
// to records by RecordID and never copy their text.
type Store struct {
	records    []DocumentationRecord
	byLocation map[string][]RecordID
	duplicates int
}

// NewStore copies records into a new Store. Records identical in every field
// collapse into the first occurrence; records that merely share a location
// stay distinct.
func NewStore(records []DocumentationRecord) *Store {
	s := &Store{
		records:    make([]DocumentationRecord, 0, len(records)),
		byLocation: make(map[string][]RecordID),
	}
	seen := make(map[DocumentationRecord]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec]; dup {
			s.duplicates++
			continue
		}
		seen[rec] = struct{}{}
		id := RecordID(len(s.records))
		s.records = append(s.records, rec)
		s.byLocation[rec.Location] = append(s.byLocation[rec.Location], id)
	}
	return s
}

func (s *Store) Len() int {
	return len(s.records)
}

// Duplicates returns how many input records were collapsed.
func (s *Store) Duplicates() int {
	return s.duplicates
}

// Get returns the record with the given ID.
func (s *Store) Get(id RecordID) (DocumentationRecord, bool) {
	if id < 0 || int(id) >= len(s.records) {
		return DocumentationRecord{}, false
	}
	return s.records[id], true
}

// All iterates over the records in ingestion order.
func (s *Store) All() iter.Seq2[RecordID, DocumentationRecord] {
	return func(yield func(RecordID, DocumentationRecord) bool) {
		for i, rec := range s.records {
			if !yield(RecordID(i), rec) {
				return
			}
		}
	}
}

// ByLocation returns the IDs of every record anchored at loc.
func (s *Store) ByLocation(loc string) []RecordID {
	ids := s.byLocation[loc]
	out := make([]RecordID, len(ids))
	copy(out, ids)
	return out
}
