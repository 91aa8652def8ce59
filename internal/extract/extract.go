// Package extract implements key-value extraction from free-text
// documentation. Documentation is scanned for bullet-style annotations of the
// form "- key: value", where the value runs until the next bullet or the end
// of the text.
package extract

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultPattern matches the key marker of a bullet line ("- key:"). The
// value of a pair is the text between the end of its marker and the start of
// the next one (or the end of the input).
//
// Go's regexp package (RE2) has no lookahead, so the boundary "value runs
// until the next bullet" cannot be expressed in the pattern itself. Patterns
// with a single capture group are therefore interpreted in this marker-and-
// boundary mode. Patterns with two capture groups (key, value) are applied
// directly instead, see New.
const DefaultPattern = `(?m)^[ \t]*-[ \t]*([^:\n]+):[ \t]*`

// Entities in a single ingestion run frequently share identical boilerplate
// documentation, so extraction results are memoized per input string.
const cacheSize = 512

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize collapses all whitespace runs (including newlines) into a single
// space and trims the result.
func Normalize(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// Extractor extracts key-value pairs from documentation strings.
// It is not safe for concurrent use.
type Extractor struct {
	re       *regexp.Regexp
	direct   bool // two capture groups: the pattern matches key and value itself
	markdown bool
	cache    *lru.Cache[string, map[string]string]
}

// New returns an Extractor for the given pattern. The empty pattern selects
// DefaultPattern. Patterns must have one capture group (key marker mode) or
// two capture groups (direct key/value mode); they are compiled with
// multi-line and dot-matches-newline semantics.
func New(pattern string) (*Extractor, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile("(?ms)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid key-value pattern: %v", err)
	}
	var direct bool
	switch re.NumSubexp() {
	case 1:
		direct = false
	case 2:
		direct = true
	default:
		return nil, fmt.Errorf("key-value pattern must have 1 or 2 capture groups, got %d", re.NumSubexp())
	}
	cache, err := lru.New[string, map[string]string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Extractor{re: re, direct: direct, cache: cache}, nil
}

// NewMarkdown returns an Extractor that parses documentation as markdown and
// extracts "key: value" pairs from list items, instead of applying a regexp.
func NewMarkdown() (*Extractor, error) {
	cache, err := lru.New[string, map[string]string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Extractor{markdown: true, cache: cache}, nil
}

// Pairs extracts all key-value pairs from doc. Keys and values are
// whitespace-normalized. If the same key occurs multiple times, the last
// occurrence wins. Empty or non-matching input yields an empty map.
//
// The returned map is owned by the caller; mutating it does not affect
// subsequent calls.
func (e *Extractor) Pairs(doc string) map[string]string {
	if doc == "" {
		return map[string]string{}
	}
	if cached, ok := e.cache.Get(doc); ok {
		return maps.Clone(cached)
	}
	var pairs map[string]string
	switch {
	case e.markdown:
		pairs = markdownPairs(doc)
	case e.direct:
		pairs = e.directPairs(doc)
	default:
		pairs = e.boundaryPairs(doc)
	}
	e.cache.Add(doc, maps.Clone(pairs))
	return pairs
}

// directPairs applies a two-group pattern, taking key and value from the
// capture groups of each match.
func (e *Extractor) directPairs(doc string) map[string]string {
	pairs := map[string]string{}
	for _, m := range e.re.FindAllStringSubmatch(doc, -1) {
		key := Normalize(m[1])
		value := Normalize(m[2])
		if key == "" || value == "" {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

// boundaryPairs applies a one-group key marker pattern. The value of each
// pair is the text between its marker and the next marker (or end of input).
func (e *Extractor) boundaryPairs(doc string) map[string]string {
	pairs := map[string]string{}
	matches := e.re.FindAllStringSubmatchIndex(doc, -1)
	for i, m := range matches {
		// m[2]:m[3] is the key capture group, m[1] the end of the full match.
		key := Normalize(doc[m[2]:m[3]])
		end := len(doc)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		value := Normalize(doc[m[1]:end])
		if key == "" || value == "" {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

// markdownPairs walks the markdown AST of doc and extracts "key: value"
// pairs from the text of list items. Nested list items are visited as items
// of their own.
func markdownPairs(doc string) map[string]string {
	pairs := map[string]string{}
	src := []byte(doc)
	root := goldmark.New().Parser().Parse(text.NewReader(src))
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		// The item's own text is its first text block; nested lists are
		// separate children and handled by their own visits.
		fc := n.FirstChild()
		if fc == nil || (fc.Kind() != ast.KindTextBlock && fc.Kind() != ast.KindParagraph) {
			return ast.WalkContinue, nil
		}
		k, v, found := strings.Cut(string(fc.Text(src)), ":")
		if !found {
			return ast.WalkContinue, nil
		}
		key := Normalize(k)
		value := Normalize(v)
		if key != "" && value != "" {
			pairs[key] = value
		}
		return ast.WalkContinue, nil
	})
	return pairs
}
