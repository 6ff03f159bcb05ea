package index

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

// Posting records how often a term occurs in one field of one record.
type Posting struct {
	RecordID  ingestion.RecordID `json:"record_id"`
	Field     ingestion.Field    `json:"field"`
	Frequency int                `json:"frequency"`
}

// PostingList is ordered by RecordID, then title before text.
type PostingList []Posting

// TermEntry pairs an indexed term with its postings.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// MatchMode selects how a query term is compared with indexed terms.
type MatchMode int

const (
	// MatchPrefix matches every indexed term the query term is a prefix of.
	// An exact match is the zero-length-suffix case.
	MatchPrefix MatchMode = iota
	MatchExact
	MatchSubstring
)

func (m MatchMode) String() string {
	switch m {
	case MatchPrefix:
		return "prefix"
	case MatchExact:
		return "exact"
	case MatchSubstring:
		return "substring"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// ParseMatchMode accepts "prefix", "exact" and "substring". The empty string
// selects MatchPrefix.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prefix":
		return MatchPrefix, nil
	case "exact":
		return MatchExact, nil
	case "substring":
		return MatchSubstring, nil
	default:
		return MatchPrefix, fmt.Errorf("unknown match mode %q", s)
	}
}
