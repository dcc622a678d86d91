package output

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestWrite_ClassifiesFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "same.xml"), "same")
	writeTestFile(t, filepath.Join(dir, "old.xml"), "old")

	w := &Writer{Dir: dir}
	result, err := w.Write(map[string][]byte{
		"same.xml":          []byte("same"),
		"old.xml":           []byte("new!"),
		"nested/new.bundle": []byte("fresh"),
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if len(result.Added) != 1 || result.Added[0] != "nested/new.bundle" {
		t.Errorf("added = %v", result.Added)
	}
	if len(result.Modified) != 1 || result.Modified[0] != "old.xml" {
		t.Errorf("modified = %v", result.Modified)
	}
	if len(result.Unchanged) != 1 || result.Unchanged[0] != "same.xml" {
		t.Errorf("unchanged = %v", result.Unchanged)
	}
	if !result.Changed() {
		t.Error("result should report a change")
	}
	if got := readTestFile(t, filepath.Join(dir, "old.xml")); got != "new!" {
		t.Errorf("old.xml = %q", got)
	}
	if got := readTestFile(t, filepath.Join(dir, "nested", "new.bundle")); got != "fresh" {
		t.Errorf("new.bundle = %q", got)
	}
}

func TestWrite_SecondRunIsUnchanged(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{"a.bundle": []byte("<l7:Bundle/>")}
	w := &Writer{Dir: dir}

	if _, err := w.Write(files); err != nil {
		t.Fatal(err)
	}
	result, err := w.Write(files)
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Errorf("second write should not change anything: %+v", result)
	}
}

func TestWrite_DryRunLeavesDiskAlone(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, DryRun: true}

	result, err := w.Write(map[string][]byte{"a.bundle": []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Added) != 1 {
		t.Errorf("added = %v", result.Added)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.bundle")); !os.IsNotExist(err) {
		t.Error("dry run should not create files")
	}
}

func TestWrite_RejectsEscapingPaths(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	for _, name := range []string{"", "/etc/passwd", "../up.xml", "a/../../up.xml"} {
		if _, err := w.Write(map[string][]byte{name: []byte("x")}); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}

func TestWrite_RefusesSymlinkTarget(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.xml")
	writeTestFile(t, real, "content")
	if err := os.Symlink(real, filepath.Join(dir, "link.xml")); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}

	w := &Writer{Dir: dir}
	if _, err := w.Write(map[string][]byte{"link.xml": []byte("content")}); err == nil {
		t.Error("expected error writing through a symlink")
	}
	if got := readTestFile(t, real); got != "content" {
		t.Errorf("symlink target modified: %q", got)
	}
}
