// Package taxonomy is the in-process, read-only classifier for
// content tags. It owns the canonical key table, bilingual display
// names, and the alias resolution used by the normalizer and the
// query layer. The table is immutable after construction.
package taxonomy

import (
	"strings"
)

// Uncategorized is the sentinel key used when no canonical tag
// matches an input.
const Uncategorized = "Uncategorized"

const uncategorizedDisplay = "未分类 / Uncategorized"

// sentinelInputs normalize straight to Uncategorized.
var sentinelInputs = map[string]struct{}{
	"":              {},
	"none":          {},
	"null":          {},
	"uncategorized": {},
	"unknown":       {},
	"其它":            {},
	"其他":            {},
	"未分类":           {},
}

// Options control table construction.
type Options struct {
	// AcceptLegacy resolves keys from the retired three-level scheme
	// as aliases of the flat table.
	AcceptLegacy bool
}

// Table resolves free text to canonical keys. Safe for concurrent use.
type Table struct {
	keys    []string
	tags    map[string]Tag
	folded  map[string]string
	aliases map[string]string
}

// New builds a Table from the canonical entries.
func New(opts Options) *Table {
	t := &Table{
		tags:    make(map[string]Tag, len(canonicalEntries)),
		folded:  make(map[string]string, len(canonicalEntries)),
		aliases: make(map[string]string, len(aliasEntries)+len(legacyAliases)),
	}
	for _, e := range canonicalEntries {
		t.keys = append(t.keys, e.Key)
		t.tags[e.Key] = e.Tag
		t.folded[foldKey(e.Key)] = e.Key
	}
	for raw, key := range aliasEntries {
		t.aliases[foldKey(raw)] = key
	}
	if opts.AcceptLegacy {
		for raw, key := range legacyAliases {
			t.aliases[foldKey(raw)] = key
		}
	}
	return t
}

// Default is the process-wide table with legacy aliases enabled.
var Default = New(Options{AcceptLegacy: true})

func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Normalize resolves free text to a canonical key. Resolution order:
// exact key, whitespace/underscore-folded key, alias table, then
// case-insensitive substring containment against the Chinese term,
// English term, or any search keyword. The substring pass scans every
// key and keeps the longest matched term, so "Mobile Manipulation"
// wins over the shorter "Manipulation" regardless of table order, and
// short keywords like "rl" only match on word boundaries. All misses
// and sentinel inputs return Uncategorized.
func (t *Table) Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	if _, ok := sentinelInputs[lower]; ok {
		return Uncategorized
	}
	if _, ok := t.tags[trimmed]; ok {
		return trimmed
	}
	folded := foldKey(trimmed)
	if key, ok := t.folded[folded]; ok {
		return key
	}
	if key, ok := t.aliases[folded]; ok {
		return key
	}
	best := Uncategorized
	bestLen := 0
	for _, key := range t.keys {
		tag := t.tags[key]
		if tag.Chinese != "" && len(tag.Chinese) > bestLen && strings.Contains(trimmed, tag.Chinese) {
			best, bestLen = key, len(tag.Chinese)
		}
		if en := strings.ToLower(tag.English); len(en) > bestLen && containsTerm(lower, en) {
			best, bestLen = key, len(en)
		}
		for _, kw := range tag.Keywords {
			if len(kw) > bestLen && containsTerm(lower, kw) {
				best, bestLen = key, len(kw)
			}
		}
	}
	return best
}

// shortTermLimit is the term length (bytes) at or below which a
// substring hit must fall on word boundaries. Without the guard the
// keyword "rl" would match inside "world".
const shortTermLimit = 3

func containsTerm(s, term string) bool {
	if len(term) > shortTermLimit {
		return strings.Contains(s, term)
	}
	for from := 0; ; {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		from = start + 1
	}
}

// isWordByte treats '/' as word-constituent so that key-shaped
// strings like "algorithm/learning/rl" never satisfy a short-keyword
// boundary; retired keys resolve through the alias table or not at
// all.
func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '/'
}

// Display renders a key as "<chinese> / <english>".
func (t *Table) Display(key string) string {
	tag, ok := t.tags[key]
	if !ok {
		return uncategorizedDisplay
	}
	return tag.Chinese + " / " + tag.English
}

// SearchKeywords returns the declared keyword list for a key; the
// result may be empty and must not be mutated.
func (t *Table) SearchKeywords(key string) []string {
	return t.tags[key].Keywords
}

// Contains reports whether key is a canonical table entry or the
// sentinel.
func (t *Table) Contains(key string) bool {
	if key == Uncategorized {
		return true
	}
	_, ok := t.tags[key]
	return ok
}

// Meta bundles the canonical ordering and display material consumed
// by the dashboard.
type Meta struct {
	Keys          []string          `json:"keys"`
	Display       map[string]string `json:"display"`
	Tags          map[string]Tag    `json:"tags"`
	Categories    []string          `json:"categories"`
	CategoryNames map[string]string `json:"category_names"`
	Uncategorized string            `json:"uncategorized"`
}

// Meta returns the table metadata. Key order follows insertion order.
func (t *Table) Meta() Meta {
	display := make(map[string]string, len(t.keys))
	tags := make(map[string]Tag, len(t.keys))
	for _, key := range t.keys {
		display[key] = t.Display(key)
		tags[key] = t.tags[key]
	}
	return Meta{
		Keys:          append([]string(nil), t.keys...),
		Display:       display,
		Tags:          tags,
		Categories:    append([]string(nil), categoryOrder...),
		CategoryNames: categoryNames,
		Uncategorized: Uncategorized,
	}
}

// Tree groups keys by category prefix, categories in display order.
func (t *Table) Tree() map[string][]string {
	out := make(map[string][]string, len(categoryOrder))
	for _, key := range t.keys {
		cat, _, ok := strings.Cut(key, "/")
		if !ok {
			continue
		}
		out[cat] = append(out[cat], key)
	}
	return out
}
