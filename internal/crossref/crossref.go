package crossref

import "regexp"

// Pattern extracts ticket references from free text. When the expression
// has a capture group the first group is the reference, otherwise the whole
// match is.
type Pattern struct {
	re *regexp.Regexp
}

// MustCompile builds a Pattern, panicking on an invalid expression.
func MustCompile(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

// All extracts every reference in text.
// Returns a deduplicated list preserving the order of first occurrence.
func (p Pattern) All(text string) []string {
	matches := p.re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range matches {
		ref := m[0]
		if len(m) > 1 {
			ref = m[1]
		}
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		result = append(result, ref)
	}
	return result
}

// First returns the first reference in text.
func (p Pattern) First(text string) (string, bool) {
	refs := p.All(text)
	if len(refs) == 0 {
		return "", false
	}
	return refs[0], true
}

// FirstOf returns the first reference found in any of the texts, tried in
// order.
func (p Pattern) FirstOf(texts ...string) (string, bool) {
	for _, text := range texts {
		if ref, ok := p.First(text); ok {
			return ref, true
		}
	}
	return "", false
}
