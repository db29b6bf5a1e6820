package unit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func catalogOf(supply map[string]int) Catalog {
	cat := make(Catalog, len(supply))
	for n, s := range supply {
		cat[n] = Record{Name: n, Supply: s}
	}
	return cat
}

func TestBuildAliasesDropsSharedWords(t *testing.T) {
	a := BuildAliases(catalogOf(map[string]int{"Basilica": 4, "Basilica Guard": 3}), nil)

	if name, ok := a.Lookup("BASILICA"); ok {
		t.Errorf("BASILICA resolved to %q, want no mapping", name)
	}
	if name, ok := a.Lookup("GUARD"); !ok || name != "Basilica Guard" {
		t.Errorf("GUARD = %q, %v", name, ok)
	}
	if name, ok := a.Lookup("BASILICA GUARD"); !ok || name != "Basilica Guard" {
		t.Errorf("BASILICA GUARD = %q, %v", name, ok)
	}
}

func TestBuildAliasesNormalizesNameSpacing(t *testing.T) {
	a := BuildAliases(catalogOf(map[string]int{"Gauss  Cannon": 2, "Drone": 1}), nil)

	if name, ok := a.Lookup("GAUSS CANNON"); !ok || name != "Gauss  Cannon" {
		t.Errorf("GAUSS CANNON = %q, %v", name, ok)
	}
	if _, ok := a.Lookup("GAUSS  CANNON"); ok {
		t.Error("un-normalized key present")
	}
}

func TestBuildAliases(t *testing.T) {
	cat := catalogOf(map[string]int{
		"Drone":          1,
		"Gauss Cannon":   2,
		"Tarsier":        2,
		"Thorium Dynamo": 3,
		"Doomed Drone":   1,
		"Shadowfang":     3,
	})
	a := BuildAliases(cat, []string{"dynamo"})

	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"TARSIER", "Tarsier", true},
		{"GAUSS", "Gauss Cannon", true},
		{"CANNON", "Gauss Cannon", true},
		{"GAUSS CANNON", "Gauss Cannon", true},
		{"DOOMED DRONE", "Doomed Drone", true},
		{"DOOMED", "Doomed Drone", true},
		{"DRONE", "", false},
		{"THORIUM", "Thorium Dynamo", true},
		{"DYNAMO", "", false},
		{"THORIUM DYNAMO", "Thorium Dynamo", true},
		{"Tarsier", "", false},
		{"WALL", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := a.Lookup(tt.key)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBuildAliasesIgnoredSingleName(t *testing.T) {
	a := BuildAliases(catalogOf(map[string]int{"Wall": 1, "Tarsier": 2}), []string{"WALL"})
	if got, ok := a.Lookup("WALL"); !ok || got != "Wall" {
		t.Errorf("ignored word dropped a canonical name: %q, %v", got, ok)
	}
}

func bigCatalog(n int) map[string]int {
	m := make(map[string]int, n)
	for i := 0; i < n; i++ {
		m[fmt.Sprintf("Unit %d", i)] = i%5 + 1
	}
	return m
}

func TestParseCatalog(t *testing.T) {
	b, err := json.Marshal(bigCatalog(MinCatalogSize))
	if err != nil {
		t.Fatal(err)
	}
	cat, err := ParseCatalog(b)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if r, ok := cat.Get("Unit 7"); !ok || r.Supply != 3 || r.Name != "Unit 7" {
		t.Errorf("Get(Unit 7) = %+v, %v", r, ok)
	}
	if names := cat.Names(); len(names) != MinCatalogSize || names[0] != "Unit 0" {
		t.Errorf("Names() = %d entries starting %q", len(names), names[0])
	}
}

func TestParseCatalogErrors(t *testing.T) {
	small, _ := json.Marshal(bigCatalog(MinCatalogSize - 1))
	if _, err := ParseCatalog(small); !errors.Is(err, ErrCatalogTooSmall) {
		t.Errorf("small catalog err = %v, want ErrCatalogTooSmall", err)
	}
	bad := bigCatalog(MinCatalogSize)
	bad["Broken"] = 0
	b, _ := json.Marshal(bad)
	if _, err := ParseCatalog(b); err == nil {
		t.Error("zero supply accepted")
	}
	if _, err := ParseCatalog([]byte(`[1,2]`)); err == nil {
		t.Error("non-object accepted")
	}
}

func TestLoadCatalog(t *testing.T) {
	b, _ := json.Marshal(bigCatalog(120))
	path := filepath.Join(t.TempDir(), "units.json")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(cat) != 120 {
		t.Errorf("len = %d", len(cat))
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestParseSource(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("var units = [")
	for i := 0; i < MinCatalogSize; i++ {
		fmt.Fprintf(&sb, "['Unit %d',%d], ", i, i%4+1)
	}
	sb.WriteString("['Gauss Cannon',2]];")

	out, err := ParseSource([]byte(sb.String()))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != MinCatalogSize+1 || got["Gauss Cannon"] != 2 || got["Unit 5"] != 2 {
		t.Errorf("unexpected catalog: %d entries", len(got))
	}

	if _, err := ParseSource([]byte("['Drone',1]")); !errors.Is(err, ErrCatalogTooSmall) {
		t.Errorf("short source err = %v", err)
	}
}

func TestExpandTemplate(t *testing.T) {
	got := ExpandTemplate("https://wiki.example/%NAME%.png", "Gauss Cannon")
	if want := "https://wiki.example/Gauss%20Cannon.png"; got != want {
		t.Errorf("ExpandTemplate = %q, want %q", got, want)
	}
}
