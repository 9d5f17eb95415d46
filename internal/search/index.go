// Package search ranks short texts, such as reminder bodies, against a free
// text query. It is deterministic and read-only after construction, so an
// Index is safe for concurrent use.
//
// Tokens are folded before comparison: lower-cased and stripped of
// combining marks, so "cumpleaños" matches "CUMPLEANOS".
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Doc is one searchable text.
type Doc struct {
	ID   string
	Text string
}

// Result is a ranked document with its similarity score.
type Result struct {
	ID    string
	Text  string
	Score float64
}

// SpanishStopwords are dropped from queries and documents by WithStopwords.
var SpanishStopwords = []string{
	"a", "al", "con", "de", "del", "el", "en", "la", "las", "lo", "los",
	"me", "mi", "para", "por", "que", "se", "un", "una", "y",
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	minScore  float64
}

// WithStopwords ignores the given words (folded) on both sides.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = Fold(strings.TrimSpace(w)); w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMinScore drops results scoring below s.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s > 0 {
			c.minScore = s
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	Doc
	pos    int
	tokens map[string]struct{}
	runes  int
}

// Index is an immutable set of tokenized documents.
type Index struct {
	cfg  config
	docs []doc
}

// New tokenizes docs. Documents without any word are skipped.
func New(docs []Doc, opts ...Option) *Index {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	idx := &Index{cfg: cfg, docs: make([]doc, 0, len(docs))}
	for i, d := range docs {
		toks := tokenize(d.Text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		idx.docs = append(idx.docs, doc{Doc: d, pos: i, tokens: toks, runes: utf8.RuneCountInString(d.Text)})
	}
	return idx
}

// Len is the number of indexed documents.
func (i *Index) Len() int { return len(i.docs) }

// TopK returns up to k matches, best first. k <= 0 returns every match.
// Ties go to the shorter text, then to the earlier document.
func (i *Index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		*doc
		score float64
	}
	var buf []scored
	for n := range i.docs {
		d := &i.docs[n]
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		score := float64(over) / float64(len(qTokens)+len(d.tokens)-over)
		if score < i.cfg.minScore {
			continue
		}
		buf = append(buf, scored{doc: d, score: score})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].runes != buf[b].runes {
			return buf[a].runes < buf[b].runes
		}
		return buf[a].pos < buf[b].pos
	})

	if k <= 0 || k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := range out {
		out[n] = Result{ID: buf[n].ID, Text: buf[n].Text, Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Fold lower-cases s and removes combining marks.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(Fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
