package archive_test

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	fixzip "github.com/hidez8891/zip"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/Abhishekkr206/WebBaseline/archive"
)

// writeBundle creates a zip at path from ordered name/content pairs.
func writeBundle(t *testing.T, path string, entries [][2]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create bundle: %v", err)
	}
	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e[0])
		if err != nil {
			t.Fatalf("create entry %s: %v", e[0], err)
		}
		if _, err := fw.Write([]byte(e[1])); err != nil {
			t.Fatalf("write entry %s: %v", e[0], err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close bundle: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func collect(t *testing.T, bundle, prefix string) []string {
	t.Helper()
	var visited []string
	err := archive.Walk(bundle, prefix, func(b string, f *zip.File) error {
		if b != bundle {
			t.Errorf("bundle = %s, want %s", b, bundle)
		}
		visited = append(visited, f.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk(%q) error: %v", prefix, err)
	}
	return visited
}

func TestWalk(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "site.zip")
	writeBundle(t, bundle, [][2]string{
		{"site/index.html", "<main></main>"},
		{"site/css/app.css", "gap: 2px;"},
		{"site/js/app.js", "export {}"},
		{"README.md", "docs"},
	})

	tests := []struct {
		prefix string
		want   int
	}{
		{"site/", 3},
		{"site/css/", 1},
		{"", 4},
		{"assets/", 0},
	}
	for _, tt := range tests {
		if got := collect(t, bundle, tt.prefix); len(got) != tt.want {
			t.Errorf("Walk(%q) visited %v, want %d entries", tt.prefix, got, tt.want)
		}
	}

	// Archive order is preserved.
	got := collect(t, bundle, "site/")
	want := []string{"site/index.html", "site/css/app.css", "site/js/app.js"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestWalkStopsOnError(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "site.zip")
	writeBundle(t, bundle, [][2]string{
		{"a.css", "x"},
		{"b.css", "y"},
		{"c.css", "z"},
	})

	stop := errors.New("stop walking")
	visited := 0
	err := archive.Walk(bundle, "", func(string, *zip.File) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("Walk() error = %v, want %v", err, stop)
	}
	if visited != 2 {
		t.Errorf("visited %d entries, want 2", visited)
	}
}

func TestWalkSkipsDirectories(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "site.zip")
	f, err := os.Create(bundle)
	if err != nil {
		t.Fatalf("create bundle: %v", err)
	}
	w := zip.NewWriter(f)
	dir := &zip.FileHeader{Name: "css/"}
	dir.SetMode(os.ModeDir | 0755)
	if _, err := w.CreateHeader(dir); err != nil {
		t.Fatalf("create dir entry: %v", err)
	}
	fw, err := w.Create("css/app.css")
	if err != nil {
		t.Fatalf("create file entry: %v", err)
	}
	fw.Write([]byte("gap: 2px;"))
	w.Close()
	f.Close()

	got := collect(t, bundle, "css/")
	if len(got) != 1 || got[0] != "css/app.css" {
		t.Errorf("visited %v, want just css/app.css", got)
	}
}

func TestWalkRejectsUnsafeEntries(t *testing.T) {
	for _, name := range []string{"../escape.css", "/etc/passwd.css", "nested/../../b.css"} {
		bundle := filepath.Join(t.TempDir(), "evil.zip")
		writeBundle(t, bundle, [][2]string{{name, "x"}})
		err := archive.Walk(bundle, "", func(string, *zip.File) error { return nil })
		if err == nil {
			t.Errorf("Walk accepted unsafe entry %q", name)
		}
	}
}

func TestWalkBadBundle(t *testing.T) {
	if err := archive.Walk(filepath.Join(t.TempDir(), "missing.zip"), "", nil); err == nil {
		t.Error("expected error for missing bundle")
	}

	bad := filepath.Join(t.TempDir(), "bad.zip")
	if err := os.WriteFile(bad, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := archive.Walk(bad, "", nil); err == nil {
		t.Error("expected error for non-zip file")
	}
}

func TestDecodedName(t *testing.T) {
	enc, err := ianaindex.IANA.Encoding("windows-1251")
	if err != nil {
		t.Fatalf("encoding lookup: %v", err)
	}

	// "стили.css" in windows-1251 bytes.
	raw := "\xf1\xf2\xe8\xeb\xe8.css"

	bundle := filepath.Join(t.TempDir(), "legacy.zip")
	f, err := os.Create(bundle)
	if err != nil {
		t.Fatalf("create bundle: %v", err)
	}
	w := zip.NewWriter(f)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: raw, NonUTF8: true, Method: zip.Deflate})
	if err != nil {
		t.Fatalf("create legacy entry: %v", err)
	}
	fw.Write([]byte("body{}"))
	fw, err = w.Create("plain.css")
	if err != nil {
		t.Fatalf("create plain entry: %v", err)
	}
	fw.Write([]byte("body{}"))
	w.Close()
	f.Close()

	r, err := zip.OpenReader(bundle)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer r.Close()

	if got, want := archive.DecodedName(r.File[0], enc), "стили.css"; got != want {
		t.Errorf("DecodedName() = %q, want %q", got, want)
	}
	if got, want := archive.DecodedName(r.File[0], nil), raw; got != want {
		t.Errorf("DecodedName(nil enc) = %q, want %q", got, want)
	}
	if got, want := archive.DecodedName(r.File[1], enc), "plain.css"; got != want {
		t.Errorf("DecodedName(utf8 entry) = %q, want %q", got, want)
	}
}

func TestRepack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.zip")
	dst := filepath.Join(dir, "dst.zip")
	writeBundle(t, src, [][2]string{
		{"index.html", "<dialog></dialog>"},
		{"app.css", "gap: 2px;"},
	})

	if err := archive.Repack(src, dst); err != nil {
		t.Fatalf("Repack() error: %v", err)
	}

	r, err := zip.OpenReader(dst)
	if err != nil {
		t.Fatalf("open repacked bundle: %v", err)
	}
	defer r.Close()

	if got, want := len(r.File), 2; got != want {
		t.Fatalf("repacked bundle has %d entries, want %d", got, want)
	}
	want := map[string]string{
		"index.html": "<dialog></dialog>",
		"app.css":    "gap: 2px;",
	}
	for _, f := range r.File {
		if f.Flags&fixzip.FlagDataDescriptor != 0 {
			t.Errorf("entry %s still has the data descriptor flag", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		if got := string(data); got != want[f.Name] {
			t.Errorf("entry %s = %q, want %q", f.Name, got, want[f.Name])
		}
	}
}
