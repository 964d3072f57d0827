package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystemWriteFileAtomic(t *testing.T) {
	fs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "out.xml")

	if err := fs.WriteFileAtomic(path, []byte("first"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := fs.WriteFileAtomic(path, []byte("second"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("contents = %q, want %q", data, "second")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestOSFileSystemWriteFileAtomicBadDir(t *testing.T) {
	fs := OSFileSystem{}
	err := fs.WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "out.xml"), []byte("x"), 0644)
	if err == nil {
		t.Fatal("expected error writing into missing directory")
	}
}

func TestMemoryFileSystemWriteError(t *testing.T) {
	fs := NewMemoryFileSystem()
	if err := fs.WriteFileAtomic("results.xml", []byte("ok"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	boom := errors.New("disk full")
	fs.SetWriteError(boom)
	if err := fs.WriteFileAtomic("results.xml", []byte("new"), 0644); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want injected error", err)
	}

	// A failed write must leave the previous snapshot intact.
	data, err := fs.ReadFile("results.xml")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ok" {
		t.Errorf("contents = %q after failed write, want %q", data, "ok")
	}

	fs.SetWriteError(nil)
	if err := fs.WriteFileAtomic("results.xml", []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic after clearing error: %v", err)
	}
}

func TestMemoryFileSystemExists(t *testing.T) {
	fs := NewMemoryFileSystem()
	if fs.Exists("a.xml") {
		t.Error("Exists true before write")
	}
	if err := fs.WriteFileAtomic("a.xml", nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !fs.Exists("a.xml") {
		t.Error("Exists false after write")
	}
	if _, err := fs.ReadFile("b.xml"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile missing = %v, want ErrNotExist", err)
	}
}
