package resolver

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTrackDir(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func readTrack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestPromoteReplacesPreviousDownload(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "Lullaby_04E5F6.partial")
	destination := filepath.Join(root, "Lullaby_04E5F6")
	writeTrackDir(t, destination, map[string]string{"001.mp3": "old"})
	writeTrackDir(t, staging, map[string]string{"001.mp3": "new"})

	if err := promote(staging, destination); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got := readTrack(t, filepath.Join(destination, "001.mp3")); got != "new" {
		t.Fatalf("destination track = %q, want new", got)
	}
	for _, gone := range []string{staging, destination + ".replaced"} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be gone, stat err=%v", gone, err)
		}
	}
}

func TestPromoteKeepsPreviousDownloadWhenSwapFails(t *testing.T) {
	root := t.TempDir()
	destination := filepath.Join(root, "Lullaby_04E5F6")
	writeTrackDir(t, destination, map[string]string{"001.mp3": "old"})

	err := promote(filepath.Join(root, "missing.partial"), destination)
	if err == nil {
		t.Fatal("expected promote of missing staging directory to fail")
	}
	if got := readTrack(t, filepath.Join(destination, "001.mp3")); got != "old" {
		t.Fatalf("destination track = %q, want old", got)
	}
	if _, err := os.Stat(destination + ".replaced"); !os.IsNotExist(err) {
		t.Fatalf("expected no leftover aside directory, stat err=%v", err)
	}
}

func TestPromoteClearsStaleAsideDirectory(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "Lullaby_04E5F6.partial")
	destination := filepath.Join(root, "Lullaby_04E5F6")
	writeTrackDir(t, destination+".replaced", map[string]string{"001.mp3": "stale"})
	writeTrackDir(t, staging, map[string]string{"001.mp3": "new"})

	if err := promote(staging, destination); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got := readTrack(t, filepath.Join(destination, "001.mp3")); got != "new" {
		t.Fatalf("destination track = %q, want new", got)
	}
	if _, err := os.Stat(destination + ".replaced"); !os.IsNotExist(err) {
		t.Fatalf("expected stale aside directory removed, stat err=%v", err)
	}
}
