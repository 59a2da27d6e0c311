package compat_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Abhishekkr206/WebBaseline/baseline"
	"github.com/Abhishekkr206/WebBaseline/compat"
)

const snapshot = `{
  "features": {
    "grid": {
      "name": "Grid",
      "status": {
        "baseline": "high",
        "baseline_low_date": "2017-10-17",
        "support": {"chrome": "57", "firefox": "52"}
      },
      "compat_features": ["css.properties.grid", "css.properties.display.grid"]
    },
    "subgrid": {
      "name": "Subgrid",
      "status": {"baseline": "low", "baseline_low_date": "2023-09-15"},
      "compat_features": ["css.properties.grid-template-columns.subgrid"]
    },
    "masonry": {
      "name": "Masonry",
      "status": {"baseline": false},
      "compat_features": ["css.properties.display.masonry", "css.properties.display.grid"]
    },
    "odd": {
      "name": "No status at all",
      "compat_features": ["css.properties.odd-one"]
    }
  }
}`

func TestLoad(t *testing.T) {
	ds, err := compat.Load([]byte(snapshot), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := ds.Len(), 4; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}

	cases := []struct {
		name string
		key  string
		tier baseline.Tier
		miss bool
	}{
		{"high entry", "css.properties.grid", baseline.TierWidely, false},
		{"low entry", "css.properties.grid-template-columns.subgrid", baseline.TierNewly, false},
		{"false entry", "css.properties.display.masonry", baseline.TierLimited, false},
		{"missing status entry", "css.properties.odd-one", baseline.TierLimited, false},
		{"unknown key", "css.properties.nonexistent", baseline.TierLimited, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			st := ds.Resolve(c.key)
			if c.miss {
				if st != nil {
					t.Fatalf("Resolve(%q) = %+v, want nil", c.key, st)
				}
				return
			}
			if st == nil {
				t.Fatalf("Resolve(%q) = nil, want status", c.key)
			}
			if got, want := baseline.Classify(st), c.tier; got != want {
				t.Errorf("Classify(Resolve(%q)) = %s, want %s", c.key, got, want)
			}
		})
	}
}

func TestLoadFirstClaimWins(t *testing.T) {
	ds, err := compat.Load([]byte(snapshot), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Both grid and masonry list css.properties.display.grid; grid comes
	// first in the document and must own the key.
	f, ok := ds.Lookup("css.properties.display.grid")
	if !ok {
		t.Fatal("Lookup(css.properties.display.grid) missed")
	}
	if got, want := f.ID, "grid"; got != want {
		t.Errorf("key owned by %q, want %q", got, want)
	}
}

func TestLookupByID(t *testing.T) {
	ds, err := compat.Load([]byte(snapshot), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f, ok := ds.Lookup("subgrid")
	if !ok {
		t.Fatal("Lookup(subgrid) missed")
	}
	if got, want := f.Name, "Subgrid"; got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
	if _, ok := ds.Lookup("no-such-feature"); ok {
		t.Error("Lookup accepted unknown feature id")
	}
}

func TestLoadSupport(t *testing.T) {
	ds, err := compat.Load([]byte(snapshot), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := ds.Resolve("css.properties.grid")
	if st == nil {
		t.Fatal("Resolve(css.properties.grid) = nil")
	}
	if got, want := st.BaselineLowDate, "2017-10-17"; got != want {
		t.Errorf("BaselineLowDate = %q, want %q", got, want)
	}
	b, ok := st.Support["chrome"]
	if !ok || !b.Supported {
		t.Fatalf("chrome support = %+v, want supported", b)
	}
	if got, want := b.Version, "57"; got != want {
		t.Errorf("chrome version = %q, want %q", got, want)
	}
	if _, ok := st.Support["safari"]; ok {
		t.Error("safari support present, want absent")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"invalid json", `{"features": `},
		{"no features object", `{"model": {}}`},
		{"features not an object", `{"features": [1, 2]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := compat.Load([]byte(c.data), zap.NewNop()); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(snapshot), 0o600); err != nil {
		t.Fatal(err)
	}
	ds, err := compat.LoadFile(path, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got, want := ds.Source(), path; got != want {
		t.Errorf("Source() = %q, want %q", got, want)
	}
	if _, err := compat.LoadFile(filepath.Join(t.TempDir(), "missing.json"), zap.NewNop()); err == nil {
		t.Error("LoadFile succeeded on missing file, want error")
	}
}

func TestEmbedded(t *testing.T) {
	ds, err := compat.Embedded(zap.NewNop())
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	if ds.Len() == 0 {
		t.Fatal("embedded dataset is empty")
	}
	for _, key := range []string{
		"css.properties.display",
		"css.properties.display.grid",
		"html.elements.dialog",
	} {
		if ds.Resolve(key) == nil {
			t.Errorf("Resolve(%q) = nil, want status", key)
		}
	}
}

func TestNilDataset(t *testing.T) {
	var ds *compat.Dataset
	if ds.Resolve("css.properties.display") != nil {
		t.Error("nil dataset resolved a key")
	}
	if got := ds.Len(); got != 0 {
		t.Errorf("nil dataset Len() = %d, want 0", got)
	}
	if _, ok := ds.Lookup("grid"); ok {
		t.Error("nil dataset Lookup succeeded")
	}
}
