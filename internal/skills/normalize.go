// Package skills normalizes free-form skill strings and measures how well a
// candidate's skills cover an internship's requirements.
package skills

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"interninsight/match-service/internal/logging"
)

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// SynonymTable maps a lowercased alias to its canonical skill name.
// A table is immutable once built and safe for concurrent reads.
type SynonymTable struct {
	m map[string]string
}

// NewSynonymTable builds a table from alias → canonical pairs. Keys and
// values are trimmed and lowercased; empty pairs are dropped.
func NewSynonymTable(pairs map[string]string) SynonymTable {
	m := make(map[string]string, len(pairs))
	for alias, canonical := range pairs {
		a := strings.ToLower(strings.TrimSpace(alias))
		c := strings.ToLower(strings.TrimSpace(canonical))
		if a == "" || c == "" {
			continue
		}
		m[a] = c
	}
	return SynonymTable{m: m}
}

// DefaultSynonyms returns the built-in alias table.
func DefaultSynonyms() SynonymTable {
	t, err := ParseSynonymsYAML(defaultSynonymsYAML)
	if err != nil {
		panic(fmt.Sprintf("skills: embedded synonyms.yaml: %v", err))
	}
	return t
}

// ParseSynonymsYAML reads a table laid out as canonical → [aliases].
func ParseSynonymsYAML(data []byte) (SynonymTable, error) {
	var doc map[string][]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return SynonymTable{}, fmt.Errorf("parse synonyms: %w", err)
	}
	pairs := make(map[string]string)
	for canonical, aliases := range doc {
		for _, a := range aliases {
			pairs[a] = canonical
		}
	}
	return NewSynonymTable(pairs), nil
}

// Merge returns a new table with other's entries layered over t's.
func (t SynonymTable) Merge(other SynonymTable) SynonymTable {
	m := make(map[string]string, len(t.m)+len(other.m))
	for k, v := range t.m {
		m[k] = v
	}
	for k, v := range other.m {
		m[k] = v
	}
	return SynonymTable{m: m}
}

// Len returns the number of aliases in the table.
func (t SynonymTable) Len() int { return len(t.m) }

// Lookup returns the canonical name for alias, or alias itself.
func (t SynonymTable) Lookup(alias string) string {
	if c, ok := t.m[alias]; ok {
		return c
	}
	return alias
}

// Normalizer canonicalizes skill strings through a SynonymTable.
type Normalizer struct {
	table SynonymTable
	log   *logging.Logger
}

// NewNormalizer returns a Normalizer over table. A nil logger discards
// diagnostics.
func NewNormalizer(table SynonymTable, log *logging.Logger) *Normalizer {
	if log == nil {
		log = logging.Nop()
	}
	return &Normalizer{table: table, log: log}
}

// Normalize lowercases and trims s, then maps it through the synonym table.
func (n *Normalizer) Normalize(s string) string {
	return n.table.Lookup(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeList flattens arbitrarily nested string lists, normalizes each
// string, and de-duplicates while keeping first-seen order. Non-string
// elements are skipped with a debug diagnostic.
func (n *Normalizer) NormalizeList(raw any) []string {
	flat, skipped := Flatten(raw)
	for _, v := range skipped {
		n.log.Debug("skipping non-string skill", "value", fmt.Sprintf("%v", v), "type", fmt.Sprintf("%T", v))
	}
	seen := make(map[string]bool, len(flat))
	out := make([]string, 0, len(flat))
	for _, s := range flat {
		norm := n.Normalize(s)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}

// Flatten collects every string inside arbitrarily nested lists, as decoded
// from JSON. Anything that is neither a string nor a list is returned in
// skipped.
func Flatten(raw any) (flat []string, skipped []any) {
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case nil:
		case string:
			flat = append(flat, x)
		case []string:
			flat = append(flat, x...)
		case []any:
			for _, item := range x {
				walk(item)
			}
		default:
			skipped = append(skipped, x)
		}
	}
	walk(raw)
	return flat, skipped
}
