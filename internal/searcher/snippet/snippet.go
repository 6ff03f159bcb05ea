// Package snippet cuts a short excerpt around the first query-term
// occurrence in a field and records where the terms appear in it.
package snippet

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

const (
	DefaultRadius   = 40
	DefaultFallback = 80
)

// Formatter cuts Radius runes on each side of the first match, or the first
// Fallback runes when nothing matches. Zero values select the defaults.
type Formatter struct {
	Radius   int
	Fallback int
}

// Span is a half-open byte range of Snippet.Text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Snippet struct {
	Text       string `json:"text"`
	Highlights []Span `json:"highlights,omitempty"`
	// Leading and Trailing report that the field continues before or after
	// the excerpt.
	Leading  bool `json:"leading,omitempty"`
	Trailing bool `json:"trailing,omitempty"`
	Matched  bool `json:"matched"`
}

// folded is the case- and diacritic-folded form of a field together with,
// for each folded rune, the index of the original rune it came from.
type folded struct {
	runes  []rune
	origin []int
}

func fold(src []rune) folded {
	f := folded{
		runes:  make([]rune, 0, len(src)),
		origin: make([]int, 0, len(src)),
	}
	for i, r := range src {
		n := len(f.runes)
		f.runes = tokenizer.AppendFolded(f.runes, r)
		for range len(f.runes) - n {
			f.origin = append(f.origin, i)
		}
	}
	return f
}

// match is a range of original runes [start, end).
type match struct {
	start, end int
}

// Format never fails. Matching is case- and diacritic-insensitive, so an
// indexed term found by prefix expansion is highlighted where its query
// prefix occurs.
func (f Formatter) Format(text string, terms []string) Snippet {
	radius, fallback := f.Radius, f.Fallback
	if radius <= 0 {
		radius = DefaultRadius
	}
	if fallback <= 0 {
		fallback = DefaultFallback
	}
	if text == "" {
		return Snippet{}
	}

	src := []rune(text)
	ft := fold(src)
	needles := foldTerms(terms)

	first, ok := firstMatch(ft, needles, 0)
	if !ok {
		end := min(len(src), fallback)
		return Snippet{
			Text:     string(src[:end]),
			Trailing: end < len(src),
		}
	}

	start := max(0, first.start-radius)
	end := min(len(src), first.end+radius)
	s := Snippet{
		Text:     string(src[start:end]),
		Leading:  start > 0,
		Trailing: end < len(src),
		Matched:  true,
	}

	// Byte offset of each rune in the window, plus the end.
	offsets := make([]int, 0, end-start+1)
	pos := 0
	for _, r := range src[start:end] {
		offsets = append(offsets, pos)
		pos += utf8.RuneLen(r)
	}
	offsets = append(offsets, pos)

	for from := 0; ; {
		m, ok := firstMatch(ft, needles, from)
		if !ok || m.start >= end {
			break
		}
		if m.start >= start && m.end <= end {
			sp := Span{Start: offsets[m.start-start], End: offsets[m.end-start]}
			if n := len(s.Highlights); n > 0 && sp.Start <= s.Highlights[n-1].End {
				s.Highlights[n-1].End = max(s.Highlights[n-1].End, sp.End)
			} else {
				s.Highlights = append(s.Highlights, sp)
			}
		}
		from = m.foldedStart + 1
	}
	return s
}

// Highlight wraps every highlighted span in before and after, and marks a
// cut field with an ellipsis.
func (s Snippet) Highlight(before, after string) string {
	var b strings.Builder
	if s.Leading {
		b.WriteString("…")
	}
	last := 0
	for _, sp := range s.Highlights {
		b.WriteString(s.Text[last:sp.Start])
		b.WriteString(before)
		b.WriteString(s.Text[sp.Start:sp.End])
		b.WriteString(after)
		last = sp.End
	}
	b.WriteString(s.Text[last:])
	if s.Trailing {
		b.WriteString("…")
	}
	return b.String()
}

func foldTerms(terms []string) [][]rune {
	needles := make([][]rune, 0, len(terms))
	for _, t := range terms {
		var n []rune
		for _, r := range t {
			n = tokenizer.AppendFolded(n, r)
		}
		if len(n) > 0 {
			needles = append(needles, n)
		}
	}
	return needles
}

type foldedMatch struct {
	match
	foldedStart int
}

// firstMatch finds the leftmost occurrence of any needle at or after folded
// position from. The longest needle wins a tie.
func firstMatch(ft folded, needles [][]rune, from int) (foldedMatch, bool) {
	best, bestLen := -1, 0
	for _, n := range needles {
		i := indexRunes(ft.runes, n, from)
		if i < 0 {
			continue
		}
		if best < 0 || i < best || (i == best && len(n) > bestLen) {
			best, bestLen = i, len(n)
		}
	}
	if best < 0 {
		return foldedMatch{}, false
	}
	return foldedMatch{
		match: match{
			start: ft.origin[best],
			end:   ft.origin[best+bestLen-1] + 1,
		},
		foldedStart: best,
	}, true
}

func indexRunes(hay, needle []rune, from int) int {
	for i := from; i+len(needle) <= len(hay); i++ {
		j := 0
		for j < len(needle) && hay[i+j] == needle[j] {
			j++
		}
		if j == len(needle) {
			return i
		}
	}
	return -1
}
