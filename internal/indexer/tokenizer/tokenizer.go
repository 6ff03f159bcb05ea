// Package tokenizer turns raw documentation text into normalised search
// terms. It case-folds, strips diacritics, splits on non-alphanumeric
// boundaries, drops short tokens and stop-words, and can optionally apply a
// simple suffix-based stemmer.
package tokenizer

import (
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// DefaultMinLength is the shortest term, in runes, that survives tokenising.
const DefaultMinLength = 2

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// DefaultStopWords returns a copy of the built-in English stop-word list.
func DefaultStopWords() []string {
	return slices.Clone(defaultStopWords)
}

// Token represents a single normalised term and its position among the
// emitted tokens of the input.
type Token struct {
	Term     string
	Position int
}

// Options configures a Tokenizer. A nil StopWords selects the built-in list;
// an empty non-nil slice disables stop-word removal.
type Options struct {
	MinLength int
	StopWords []string
	// Stem reduces terms with the suffix rules in stem.go. Stemmed terms
	// no longer extend their unstemmed prefixes ("amplitudes" indexes as
	// "amplitud", which the query "amplitude" does not prefix), so prefix
	// matching loses coverage when it is on.
	Stem      bool
}

// Tokenizer is immutable and safe for concurrent use.
type Tokenizer struct {
	minLength int
	stopWords map[string]struct{}
	stem      bool
}

func New(opts Options) *Tokenizer {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	words := opts.StopWords
	if words == nil {
		words = defaultStopWords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = Fold(strings.TrimSpace(w)); w != "" {
			stop[w] = struct{}{}
		}
	}
	return &Tokenizer{
		minLength: opts.MinLength,
		stopWords: stop,
		stem:      opts.Stem,
	}
}

// FromConfig builds the tokenizer described by the service config. An empty
// stop-word list keeps the built-in one.
func FromConfig(c config.TokenizerConfig) *Tokenizer {
	opts := Options{MinLength: c.MinLength, Stem: c.Stem}
	if len(c.StopWords) > 0 {
		opts.StopWords = c.StopWords
	}
	return New(opts)
}

// Default returns a Tokenizer with the built-in settings.
func Default() *Tokenizer {
	return New(Options{})
}

// Tokens lazily yields the normalised tokens of text in input order.
func (t *Tokenizer) Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		word := make([]rune, 0, 32)
		folded := make([]rune, 0, 4)
		pos := 0
		emit := func() bool {
			if len(word) == 0 {
				return true
			}
			term, ok := t.finish(word)
			word = word[:0]
			if !ok {
				return true
			}
			if !yield(Token{Term: term, Position: pos}) {
				return false
			}
			pos++
			return true
		}
		for _, r := range text {
			folded = AppendFolded(folded[:0], r)
			for _, c := range folded {
				if unicode.IsLetter(c) || unicode.IsDigit(c) {
					word = append(word, c)
					continue
				}
				if !emit() {
					return
				}
			}
		}
		emit()
	}
}

// Terms collects every token term of text.
func (t *Tokenizer) Terms(text string) []string {
	terms := make([]string, 0, 8)
	for tok := range t.Tokens(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

// IsStopWord reports whether the folded form of word is filtered out.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[Fold(word)]
	return ok
}

// MinLength returns the shortest term length kept, in runes.
func (t *Tokenizer) MinLength() int {
	return t.minLength
}

// Stems reports whether the stemmer is enabled.
func (t *Tokenizer) Stems() bool {
	return t.stem
}

func (t *Tokenizer) finish(word []rune) (string, bool) {
	if len(word) < t.minLength {
		return "", false
	}
	term := string(word)
	if _, isStop := t.stopWords[term]; isStop {
		return "", false
	}
	if !t.stem {
		return term, true
	}
	term = stemToFixedPoint(term)
	if utf8.RuneCountInString(term) < t.minLength {
		return "", false
	}
	if _, isStop := t.stopWords[term]; isStop {
		return "", false
	}
	return term, true
}

// AppendFolded appends the case- and diacritic-folded form of r to dst.
// Combining marks fold to nothing.
func AppendFolded(dst []rune, r rune) []rune {
	if r < utf8.RuneSelf {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		return append(dst, r)
	}
	if unicode.Is(unicode.Mn, r) {
		return dst
	}
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	if norm.NFD.IsNormal(buf[:n]) {
		return append(dst, unicode.ToLower(r))
	}
	decomposed := norm.NFD.Bytes(buf[:n])
	for len(decomposed) > 0 {
		c, size := utf8.DecodeRune(decomposed)
		decomposed = decomposed[size:]
		if unicode.Is(unicode.Mn, c) {
			continue
		}
		dst = append(dst, unicode.ToLower(c))
	}
	return dst
}

// Fold returns s lower-cased with diacritics removed.
func Fold(s string) string {
	stripped, _, err := transform.String(newMarkStripper(), s)
	if err != nil {
		stripped = s
	}
	return strings.ToLower(stripped)
}

// newMarkStripper builds a fresh transformer; transformers keep state and
// must not be shared between goroutines.
func newMarkStripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
