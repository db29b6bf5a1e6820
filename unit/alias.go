package unit

import "strings"

// Aliases maps upper-cased keys to canonical unit names. Ambiguous keys are absent.
type Aliases map[string]string

// BuildAliases derives the alias table from the catalog. Every multi-word
// name keys itself. Each word of a multi-word name, and each single-word
// name, becomes a key only when exactly one canonical name contains that
// word; shared words are dropped rather than ranked. Words listed in ignored
// (case-insensitive) never become keys on their own.
func BuildAliases(cat Catalog, ignored []string) Aliases {
	skip := make(map[string]bool, len(ignored))
	for _, w := range ignored {
		skip[strings.ToUpper(strings.TrimSpace(w))] = true
	}

	owners := make(map[string]map[string]bool)
	for name := range cat {
		for _, w := range strings.Fields(strings.ToUpper(name)) {
			if owners[w] == nil {
				owners[w] = make(map[string]bool)
			}
			owners[w][name] = true
		}
	}

	aliases := make(Aliases, len(cat))
	for name := range cat {
		words := strings.Fields(strings.ToUpper(name))
		if len(words) > 1 {
			aliases[strings.Join(words, " ")] = name
		}
	}
	for word, names := range owners {
		if len(names) != 1 {
			continue
		}
		var owner string
		for n := range names {
			owner = n
		}
		// An ignored word still resolves when it is the owner's whole name.
		if skip[word] && strings.Join(strings.Fields(strings.ToUpper(owner)), " ") != word {
			continue
		}
		if _, taken := aliases[word]; !taken {
			aliases[word] = owner
		}
	}
	return aliases
}

// Lookup resolves an already upper-cased key.
func (a Aliases) Lookup(key string) (string, bool) {
	name, ok := a[key]
	return name, ok
}
