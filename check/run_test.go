package check

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap/zaptest"

	"github.com/Abhishekkr206/WebBaseline/baseline"
	"github.com/Abhishekkr206/WebBaseline/compat"
	"github.com/Abhishekkr206/WebBaseline/config"
	"github.com/Abhishekkr206/WebBaseline/history"
	"github.com/Abhishekkr206/WebBaseline/report"
	"github.com/Abhishekkr206/WebBaseline/scan"
	"github.com/Abhishekkr206/WebBaseline/state"
)

func newTestRunner(t *testing.T) *runner {
	t.Helper()

	log := zaptest.NewLogger(t)
	ds, err := compat.Embedded(log)
	if err != nil {
		t.Fatalf("loading embedded dataset: %v", err)
	}

	cfg := &config.Config{}
	cfg.Scan.Include = []string{".css", ".scss", ".less", ".sass", ".html", ".htm", ".xhtml", ".vue"}
	cfg.Scan.Exclude = []string{"node_modules", ".git"}
	cfg.Scan.Workers = 2
	cfg.Scan.EmbeddedCSS = true
	cfg.Output.Format = report.FormatJSON
	cfg.History.Keep = 5

	return &runner{
		env: &state.LocalEnv{Cfg: cfg, Log: log},
		cfg: cfg,
		ds:  ds,
		sc:  scan.NewScanner(ds, log),
		log: log,
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeBundle(t *testing.T, path string, entries [][2]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(e[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func findingKeys(rpt *report.Report) map[string]bool {
	keys := make(map[string]bool)
	for _, f := range rpt.Findings {
		keys[f.Key] = true
	}
	return keys
}

func TestRunOnce_Directory(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	write(t, filepath.Join(dir, "styles.css"),
		".a { gap: 1rem; backdrop-filter: blur(2px); }")
	write(t, filepath.Join(dir, "pages", "index.html"),
		"<html><body><dialog></dialog><style>.b { anchor-name: --x; }</style></body></html>")
	write(t, filepath.Join(dir, "node_modules", "vendor.css"),
		".x { gap: 1rem; }")
	write(t, filepath.Join(dir, "notes.txt"), "gap: 1rem;")

	rpt, err := r.runOnce(context.Background(), dir)
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}

	if got, want := rpt.Files, 2; got != want {
		t.Errorf("Files = %d, want %d", got, want)
	}
	if got, want := rpt.Skipped, 0; got != want {
		t.Errorf("Skipped = %d, want %d", got, want)
	}

	keys := findingKeys(rpt)
	for _, want := range []string{
		"css.properties.gap",
		"css.properties.backdrop-filter",
		"html.elements.dialog",
		"css.properties.anchor-name",
	} {
		if !keys[want] {
			t.Errorf("finding for %s is missing", want)
		}
	}

	for _, f := range rpt.Findings {
		if strings.Contains(f.File, "node_modules") {
			t.Errorf("excluded directory was scanned: %s", f.File)
		}
	}

	if got := rpt.Count(baseline.TierLimited); got == 0 {
		t.Error("expected at least one limited finding")
	}
	if got := rpt.Count(baseline.TierNewly); got == 0 {
		t.Error("expected at least one newly available finding")
	}
	if got := rpt.Count(baseline.TierWidely); got == 0 {
		t.Error("expected at least one widely available finding")
	}
}

func TestRunOnce_SingleFile(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "app.css")
	write(t, path, ".a { gap: 1rem; }")

	rpt, err := r.runOnce(context.Background(), path)
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}
	if got, want := rpt.Files, 1; got != want {
		t.Fatalf("Files = %d, want %d", got, want)
	}
	if len(rpt.Findings) == 0 {
		t.Fatal("expected findings")
	}
	if got, want := rpt.Findings[0].File, "app.css"; got != want {
		t.Errorf("finding file = %s, want %s", got, want)
	}
}

func TestRunOnce_Bundle(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	bundle := filepath.Join(dir, "site.zip")
	writeBundle(t, bundle, [][2]string{
		{"css/app.css", ".a { gap: 1rem; }"},
		{"readme.txt", "not scanned"},
	})

	rpt, err := r.runOnce(context.Background(), bundle)
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}
	if got, want := rpt.Files, 1; got != want {
		t.Fatalf("Files = %d, want %d", got, want)
	}
	if len(rpt.Findings) == 0 {
		t.Fatal("expected findings")
	}
	if got, want := rpt.Findings[0].File, "site.zip/css/app.css"; got != want {
		t.Errorf("finding file = %s, want %s", got, want)
	}
}

func TestRunOnce_BundleInnerPath(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	bundle := filepath.Join(dir, "site.zip")
	writeBundle(t, bundle, [][2]string{
		{"css/app.css", ".a { gap: 1rem; }"},
		{"other/skip.css", ".b { gap: 2rem; }"},
	})

	rpt, err := r.runOnce(context.Background(), filepath.Join(bundle, "css"))
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}
	if got, want := rpt.Files, 1; got != want {
		t.Fatalf("Files = %d, want %d", got, want)
	}
	if len(rpt.Findings) == 0 {
		t.Fatal("expected findings")
	}
	if got, want := rpt.Findings[0].File, "site.zip/css/app.css"; got != want {
		t.Errorf("finding file = %s, want %s", got, want)
	}
}

func TestRunOnce_MissingSource(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.runOnce(context.Background(), filepath.Join(t.TempDir(), "gone"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if !strings.Contains(err.Error(), "was not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunOnce_UnscannableFile(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "notes.txt")
	write(t, path, "gap: 1rem;")

	_, err := r.runOnce(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for unscannable source")
	}
}

func TestRunOnce_XHTMLFile(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "page.xhtml")
	write(t, path, "<html><body><search><dialog></dialog></search></body></html>")

	rpt, err := r.runOnce(context.Background(), path)
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}
	keys := findingKeys(rpt)
	if !keys["html.elements.search"] || !keys["html.elements.dialog"] {
		t.Errorf("xhtml markup was not scanned, got %v", keys)
	}
}

func TestRunOnce_OversizedSkipped(t *testing.T) {
	r := newTestRunner(t)
	r.cfg.Scan.MaxFileSize = 24
	dir := t.TempDir()

	write(t, filepath.Join(dir, "a.css"), ".a { gap: 1rem; }")
	write(t, filepath.Join(dir, "big.css"), ".big { backdrop-filter: blur(2px); }")

	rpt, err := r.runOnce(context.Background(), dir)
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}
	if got, want := rpt.Files, 1; got != want {
		t.Errorf("Files = %d, want %d", got, want)
	}
	if got, want := rpt.Skipped, 1; got != want {
		t.Errorf("Skipped = %d, want %d", got, want)
	}

	keys := findingKeys(rpt)
	if !keys["css.properties.gap"] {
		t.Error("small file was not scanned")
	}
	if keys["css.properties.backdrop-filter"] {
		t.Error("oversized file was scanned")
	}
}

func TestRunOnce_BinarySkipped(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	if err := os.WriteFile(filepath.Join(dir, "image.css"), png, 0644); err != nil {
		t.Fatal(err)
	}

	rpt, err := r.runOnce(context.Background(), dir)
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}
	if got, want := rpt.Files, 0; got != want {
		t.Errorf("Files = %d, want %d", got, want)
	}
	if got, want := rpt.Skipped, 1; got != want {
		t.Errorf("Skipped = %d, want %d", got, want)
	}
}

func TestRunOnce_EmbeddedCSSOff(t *testing.T) {
	r := newTestRunner(t)
	r.cfg.Scan.EmbeddedCSS = false
	dir := t.TempDir()

	write(t, filepath.Join(dir, "index.html"),
		"<html><body><dialog></dialog><style>.b { anchor-name: --x; }</style></body></html>")

	rpt, err := r.runOnce(context.Background(), dir)
	if err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}

	keys := findingKeys(rpt)
	if !keys["html.elements.dialog"] {
		t.Error("markup scan must not depend on embedded css setting")
	}
	if keys["css.properties.anchor-name"] {
		t.Error("style block was scanned with embedded css off")
	}
}

func TestRunOnce_Canceled(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.css"), ".a { gap: 1rem; }")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.runOnce(ctx, dir); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestDeliver_ToFile(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	write(t, filepath.Join(dir, "a.css"), ".a { gap: 1rem; }")
	rpt, err := r.runOnce(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "out", "report.json")
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		t.Fatal(err)
	}
	r.cfg.Output.Destination = dest

	if err := r.deliver(rpt); err != nil {
		t.Fatalf("deliver() error: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if _, ok := decoded["findings"]; !ok {
		t.Error("report has no findings field")
	}
}

func TestRecord_History(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	r.cfg.History.Enable = true
	r.cfg.History.Path = filepath.Join(dir, "runs.db")

	write(t, filepath.Join(dir, "src", "a.css"), ".a { anchor-name: --x; }")
	rpt, err := r.runOnce(context.Background(), filepath.Join(dir, "src"))
	if err != nil {
		t.Fatal(err)
	}
	r.record(rpt, filepath.Join(dir, "src"))

	store, err := history.Open(r.cfg.History.Path, nil)
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	defer store.Close()

	runs, err := store.List(10)
	if err != nil {
		t.Fatalf("listing history: %v", err)
	}
	if got, want := len(runs), 1; got != want {
		t.Fatalf("recorded runs = %d, want %d", got, want)
	}
	if got, want := runs[0].Files, 1; got != want {
		t.Errorf("recorded files = %d, want %d", got, want)
	}
	if got, want := runs[0].Worst, baseline.TierLimited; got != want {
		t.Errorf("recorded worst = %v, want %v", got, want)
	}
}

func TestOutcome(t *testing.T) {
	r := newTestRunner(t)

	rpt := report.New("test")
	rpt.Add(
		report.Finding{File: "a.css", Key: "css.properties.anchor-name", Tier: baseline.TierLimited},
		report.Finding{File: "a.css", Key: "css.properties.backdrop-filter", Tier: baseline.TierNewly},
		report.Finding{File: "a.css", Key: "css.properties.gap", Tier: baseline.TierWidely},
	)

	tests := []struct {
		mode    config.FailMode
		wantErr bool
	}{
		{mode: config.FailNever, wantErr: false},
		{mode: config.FailLimited, wantErr: true},
		{mode: config.FailNewly, wantErr: true},
		{mode: config.FailAny, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			r.cfg.Output.FailOn = tt.mode
			if err := r.outcome(rpt); (err != nil) != tt.wantErr {
				t.Errorf("outcome() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("clean report never fails", func(t *testing.T) {
		r.cfg.Output.FailOn = config.FailAny
		if err := r.outcome(report.New("test")); err != nil {
			t.Errorf("outcome() error = %v, want nil", err)
		}
	})
}

func TestRelevant(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scan.Include = []string{".css", ".html"}

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{name: "css write", ev: fsnotify.Event{Name: "a.css", Op: fsnotify.Write}, want: true},
		{name: "html create", ev: fsnotify.Event{Name: "b.html", Op: fsnotify.Create}, want: true},
		{name: "bundle write", ev: fsnotify.Event{Name: "site.zip", Op: fsnotify.Write}, want: true},
		{name: "unrelated extension", ev: fsnotify.Event{Name: "c.txt", Op: fsnotify.Write}, want: false},
		{name: "directory event", ev: fsnotify.Event{Name: "newdir", Op: fsnotify.Create}, want: true},
		{name: "chmod only", ev: fsnotify.Event{Name: "a.css", Op: fsnotify.Chmod}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(cfg, tt.ev); got != tt.want {
				t.Errorf("relevant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddTree(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	write(t, filepath.Join(dir, "a.css"), ".a {}")
	write(t, filepath.Join(dir, "sub", "b.css"), ".b {}")
	write(t, filepath.Join(dir, "node_modules", "c.css"), ".c {}")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.Skipf("watcher not available: %v", err)
	}
	defer w.Close()

	if err := addTree(w, r, dir); err != nil {
		t.Fatalf("addTree() error: %v", err)
	}

	watched := w.WatchList()
	has := func(p string) bool {
		for _, w := range watched {
			if w == p {
				return true
			}
		}
		return false
	}
	if !has(dir) {
		t.Error("root directory is not watched")
	}
	if !has(filepath.Join(dir, "sub")) {
		t.Error("subdirectory is not watched")
	}
	if has(filepath.Join(dir, "node_modules")) {
		t.Error("excluded directory is watched")
	}
}
