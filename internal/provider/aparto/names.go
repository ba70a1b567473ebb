package aparto

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"student-rooms/internal/models"
)

// fuzzyThreshold is the Jaro-Winkler similarity above which two property
// names are considered the same.
const fuzzyThreshold = 0.92

var (
	nonAlnum       = regexp.MustCompile(`[^a-z0-9\s]`)
	nameBeforeYear = regexp.MustCompile(`^(.+?)\s*-\s*\d{2}/\d{2}`)
)

func normalizeName(name string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(name), ""))
}

// propertyNameFromTerm extracts the property part of a StarRez term name,
// e.g. "Binary Hub" from "Binary Hub - 26/27 - 41 Weeks".
func propertyNameFromTerm(term string) string {
	if before, _, ok := strings.Cut(term, " - "); ok {
		return strings.TrimSpace(before)
	}
	if m := nameBeforeYear.FindStringSubmatch(term); m != nil {
		return strings.TrimSpace(m[1])
	}
	if len(term) >= 7 && strings.EqualFold(term[:7], "aparto ") {
		rest := term[7:]
		if before, _, ok := strings.Cut(rest, "-"); ok {
			return strings.TrimSpace(before)
		}
		return strings.TrimSpace(rest)
	}
	return term
}

// propertyIndex resolves StarRez term names to properties discovered on the
// main site. Terms use full names, abbreviations ("PA", "CdM") or
// misspellings.
type propertyIndex struct {
	props   []models.PropertyRef
	norms   []string
	aliases map[string]int
}

func newPropertyIndex(props []models.PropertyRef) *propertyIndex {
	idx := &propertyIndex{
		props:   props,
		norms:   make([]string, len(props)),
		aliases: make(map[string]int),
	}
	for i, p := range props {
		norm := normalizeName(p.Name)
		idx.norms[i] = norm
		idx.addAlias(norm, i)

		words := strings.Fields(p.Name)
		if len(words) >= 2 {
			var initials strings.Builder
			for _, w := range words {
				first := []rune(w)[0]
				if unicode.IsUpper(first) || len(w) > 2 {
					initials.WriteRune(unicode.ToLower(first))
				}
			}
			if initials.Len() >= 2 {
				idx.addAlias(initials.String(), i)
			}
		}
		if len(words) > 0 {
			idx.addAlias(strings.ToLower(words[0]), i)
		}
	}
	return idx
}

// addAlias keeps the first property registered under an alias.
func (x *propertyIndex) addAlias(alias string, i int) {
	if alias == "" {
		return
	}
	if _, ok := x.aliases[alias]; !ok {
		x.aliases[alias] = i
	}
}

// Lookup returns the property a term belongs to.
func (x *propertyIndex) Lookup(termName string) (models.PropertyRef, bool) {
	i := x.match(termName)
	if i < 0 {
		return models.PropertyRef{}, false
	}
	return x.props[i], true
}

// IsTarget reports whether termName belongs to one of the indexed properties.
func (x *propertyIndex) IsTarget(termName string) bool {
	return x.match(termName) >= 0
}

func (x *propertyIndex) match(termName string) int {
	norm := normalizeName(propertyNameFromTerm(termName))
	if norm == "" {
		return -1
	}

	for i, known := range x.norms {
		if known == "" {
			continue
		}
		if strings.Contains(norm, known) || strings.Contains(known, norm) {
			return i
		}
	}

	if i, ok := x.aliases[norm]; ok {
		return i
	}
	termStart := termName
	if before, _, ok := strings.Cut(termName, "-"); ok {
		termStart = before
	}
	termStart = normalizeName(termStart)
	if i, ok := x.aliases[termStart]; ok {
		return i
	}
	best, bestAlias := -1, ""
	for alias, i := range x.aliases {
		if !strings.HasPrefix(norm, alias+" ") {
			continue
		}
		if len(alias) > len(bestAlias) || (len(alias) == len(bestAlias) && i < best) {
			best, bestAlias = i, alias
		}
	}
	if best >= 0 {
		return best
	}

	bestScore := 0.0
	for i, known := range x.norms {
		if known == "" {
			continue
		}
		if score := matchr.JaroWinkler(norm, known, false); score >= fuzzyThreshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
