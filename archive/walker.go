// Package archive reads site bundles packed as zip files.
package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"strings"

	fixzip "github.com/hidez8891/zip"
	"golang.org/x/text/encoding"
)

// WalkFunc is the type of the function called by Walk for each matched
// entry. The bundle argument is the path passed to Walk, file is the
// zip.File for the entry. If an error is returned, the walk stops.
type WalkFunc func(bundle string, file *zip.File) error

// Walk visits every regular file in the bundle whose name starts with
// prefix, in archive order, calling walkFn for each. Entries that could
// escape an extraction directory (absolute paths or ".." components) fail
// the walk outright: a bundle carrying them is not trusted input.
func Walk(bundle, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(bundle)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("bundle entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := walkFn(bundle, f); err != nil {
			return err
		}
	}
	return nil
}

// DecodedName returns the entry name converted from enc to UTF-8. The zip
// format never specified a name encoding, so bundles built by older tools
// need the caller to say which code page to assume. Names already marked
// UTF-8 in the header, a nil enc, and conversion failures all come back
// unchanged.
func DecodedName(f *zip.File, enc encoding.Encoding) string {
	name := f.FileHeader.Name
	if enc == nil || !f.FileHeader.NonUTF8 {
		return name
	}
	if decoded, err := enc.NewDecoder().String(name); err == nil {
		return decoded
	}
	return name
}

// Repack rewrites the bundle at src into dst, clearing the data descriptor
// flag on every entry. Streaming zip writers leave those flags set and some
// unzip implementations choke on them. Entries are copied raw, without
// recompression.
func Repack(src, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create bundle (%s): %w", dst, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("unable to read bundle (%s): %w", src, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write bundle entry (%s): %w", file.Name, err)
		}
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
