package output

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Result reports which artifacts a Write changed.
type Result struct {
	Added     []string
	Modified  []string
	Unchanged []string
}

// Changed reports whether any file was added or modified.
func (r *Result) Changed() bool {
	return len(r.Added)+len(r.Modified) > 0
}

// Writer places compiled artifacts under Dir. Files whose content already
// matches are left untouched so that mtimes only move on real changes.
type Writer struct {
	Dir string
	// DryRun classifies files without touching the filesystem.
	DryRun bool
}

// Write stores every file (keyed by a slash-separated path relative to Dir).
// All paths are validated before anything is written.
func (w *Writer) Write(files map[string][]byte) (*Result, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		if err := validName(name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	slices.Sort(names)

	result := &Result{}
	for _, name := range names {
		dst := filepath.Join(w.Dir, filepath.FromSlash(name))
		state, err := compare(dst, files[name])
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", name, err)
		}
		switch state {
		case unchanged:
			result.Unchanged = append(result.Unchanged, name)
			continue
		case missing:
			result.Added = append(result.Added, name)
		case differs:
			result.Modified = append(result.Modified, name)
		}
		if w.DryRun {
			continue
		}
		if err := writeAtomic(dst, files[name]); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return result, nil
}

func validName(name string) error {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid output path %q", name)
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(name)))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("output path %q escapes the output directory", name)
	}
	return nil
}

type fileState int

const (
	missing fileState = iota
	differs
	unchanged
)

// compare checks dst against content, size first and then by SHA-256.
// Symlinks are refused so a write never follows a link out of the tree.
func compare(dst string, content []byte) (fileState, error) {
	info, err := os.Lstat(dst)
	if os.IsNotExist(err) {
		return missing, nil
	}
	if err != nil {
		return missing, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return missing, fmt.Errorf("%s is a symlink", dst)
	}
	if info.IsDir() {
		return missing, fmt.Errorf("%s is a directory", dst)
	}
	if info.Size() != int64(len(content)) {
		return differs, nil
	}
	existing, err := sha256File(dst)
	if err != nil {
		return missing, err
	}
	want := sha256.Sum256(content)
	if !bytes.Equal(existing, want[:]) {
		return differs, nil
	}
	return unchanged, nil
}

func sha256File(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place.
func writeAtomic(dst string, content []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating parent dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
