// Package compat loads web-features snapshots and answers feature-key
// lookups against them. The snapshot is inverted once at load time into a
// flat browser-compat-data key index, so resolution afterwards is a plain
// map access: no errors, no side effects, safe from any goroutine.
package compat

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

//go:embed data/web-features.json
var embeddedSnapshot []byte

// Feature is one entry of the web-features snapshot together with its
// resolved Baseline status.
type Feature struct {
	ID     string
	Name   string
	Status *baseline.SupportStatus
	Keys   []string
}

// Dataset is an immutable feature-key index built from a web-features
// snapshot. The zero value resolves nothing.
type Dataset struct {
	log    *zap.Logger
	index  map[string]*Feature
	byID   map[string]*Feature
	source string
}

// Load parses a web-features snapshot and builds the key index. The
// document shape is the published one: a top-level "features" object whose
// entries carry "name", "status" and "compat_features". Individual features
// with missing or odd fields are indexed best-effort; only a document
// without the "features" object is rejected.
func Load(data []byte, log *zap.Logger) (*Dataset, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dataset{
		log:    log.Named("compat"),
		index:  make(map[string]*Feature),
		byID:   make(map[string]*Feature),
		source: "inline",
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse dataset: not valid json")
	}
	features := gjson.GetBytes(data, "features")
	if !features.IsObject() {
		return nil, fmt.Errorf("failed to parse dataset: no features object found")
	}

	features.ForEach(func(id, entry gjson.Result) bool {
		f := &Feature{
			ID:     id.String(),
			Name:   entry.Get("name").String(),
			Status: parseStatus(entry.Get("status")),
		}
		d.byID[f.ID] = f
		entry.Get("compat_features").ForEach(func(_, key gjson.Result) bool {
			k := key.String()
			if k == "" {
				return true
			}
			if prev, ok := d.index[k]; ok {
				// First feature claiming a key wins, document order is stable.
				d.log.Debug("Duplicate feature key mapping",
					zap.String("key", k), zap.String("kept", prev.ID), zap.String("ignored", f.ID))
				return true
			}
			f.Keys = append(f.Keys, k)
			d.index[k] = f
			return true
		})
		return true
	})

	d.log.Debug("Dataset indexed", zap.Int("features", len(d.byID)), zap.Int("keys", len(d.index)))
	return d, nil
}

// LoadFile reads a snapshot from disk. Use it to point the tool at a newer
// web-features release than the embedded one.
func LoadFile(path string, log *zap.Logger) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	d, err := Load(data, log)
	if err != nil {
		return nil, err
	}
	d.source = path
	return d, nil
}

// Embedded builds the dataset from the snapshot compiled into the binary.
func Embedded(log *zap.Logger) (*Dataset, error) {
	d, err := Load(embeddedSnapshot, log)
	if err != nil {
		return nil, fmt.Errorf("embedded dataset is broken: %w", err)
	}
	d.source = "embedded"
	return d, nil
}

// Resolve returns the support status recorded for a dotted feature key, or
// nil when the dataset has no such key. It never fails: absence is an
// answer, not an error.
func (d *Dataset) Resolve(key string) *baseline.SupportStatus {
	if d == nil {
		return nil
	}
	if f, ok := d.index[key]; ok {
		return f.Status
	}
	return nil
}

// Lookup finds the feature owning a dotted key, falling back to feature ids
// so "grid" works as well as "css.properties.grid".
func (d *Dataset) Lookup(key string) (*Feature, bool) {
	if d == nil {
		return nil, false
	}
	if f, ok := d.index[key]; ok {
		return f, true
	}
	if f, ok := d.byID[key]; ok {
		return f, true
	}
	return nil, false
}

// Len reports how many feature keys are indexed.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.index)
}

// Source describes where the snapshot came from (embedded or a file path).
func (d *Dataset) Source() string {
	if d == nil {
		return ""
	}
	return d.source
}

// parseStatus normalizes the status union: "baseline" is either the string
// "high"/"low" or the boolean false, and unknown shapes must classify as
// limited instead of failing the load.
func parseStatus(status gjson.Result) *baseline.SupportStatus {
	st := &baseline.SupportStatus{}
	b := status.Get("baseline")
	switch b.Type {
	case gjson.String:
		st.Baseline = baseline.Level(b.String())
	case gjson.False:
		st.Baseline = baseline.LevelFalse
	}
	st.BaselineLowDate = status.Get("baseline_low_date").String()
	support := status.Get("support")
	if support.IsObject() {
		st.Support = make(map[string]baseline.BrowserSupport)
		support.ForEach(func(browser, version gjson.Result) bool {
			st.Support[browser.String()] = baseline.BrowserSupport{Supported: true, Version: version.String()}
			return true
		})
	}
	return st
}
