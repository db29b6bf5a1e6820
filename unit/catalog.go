// Package unit holds the static unit catalog and the alias table used to
// resolve free-text unit names to canonical ones.
package unit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MinCatalogSize is the smallest catalog accepted at startup.
const MinCatalogSize = 100

// ErrCatalogTooSmall is returned when a catalog has fewer than MinCatalogSize units.
var ErrCatalogTooSmall = errors.New("unit catalog too small")

// Record is one catalog entry.
type Record struct {
	Name   string
	Supply int
}

// Catalog maps canonical unit names to their records.
type Catalog map[string]Record

// Get returns the record for a canonical name.
func (c Catalog) Get(name string) (Record, bool) {
	r, ok := c[name]
	return r, ok
}

// Names returns the canonical names in lexical order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadCatalog reads a JSON object of name to supply from path.
func LoadCatalog(path string) (Catalog, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("read unit catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes a JSON catalog such as {"Drone": 1, "Tarsier": 2}.
func ParseCatalog(b []byte) (Catalog, error) {
	var raw map[string]int
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode unit catalog: %w", err)
	}
	cat := make(Catalog, len(raw))
	for name, supply := range raw {
		if name == "" {
			return nil, errors.New("unit catalog has an empty name")
		}
		if supply < 1 {
			return nil, fmt.Errorf("unit %q has non-positive supply %d", name, supply)
		}
		cat[name] = Record{Name: name, Supply: supply}
	}
	if len(cat) < MinCatalogSize {
		return nil, fmt.Errorf("%w: %d units, need %d", ErrCatalogTooSmall, len(cat), MinCatalogSize)
	}
	return cat, nil
}

var sourceEntry = regexp.MustCompile(`\['([\w ]+)',(\d+)]`)

// ParseSource extracts ['Name',supply] tuples from a unit-list source file
// and returns the resulting JSON catalog. Later tuples overwrite earlier ones.
func ParseSource(src []byte) ([]byte, error) {
	units := make(map[string]int)
	for _, m := range sourceEntry.FindAllSubmatch(src, -1) {
		n, err := strconv.Atoi(string(m[2]))
		if err != nil {
			return nil, fmt.Errorf("unit %q supply: %w", m[1], err)
		}
		units[string(m[1])] = n
	}
	if len(units) < MinCatalogSize {
		return nil, fmt.Errorf("%w: found %d units", ErrCatalogTooSmall, len(units))
	}
	return json.Marshal(units)
}

// NamePlaceholder is substituted with the path-escaped unit name in link and image templates.
const NamePlaceholder = "%NAME%"

// ExpandTemplate replaces NamePlaceholder in tmpl with the escaped name.
func ExpandTemplate(tmpl, name string) string {
	return strings.ReplaceAll(tmpl, NamePlaceholder, url.PathEscape(name))
}
