package fileio

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_Real_OpenReal_Creates_File_When_Missing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.dat")

	f, err := OpenReal(path)
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}
	defer f.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file was not created: %v", err)
	}

	length, err := f.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}

	if got, want := length, int64(0); got != want {
		t.Fatalf("length=%d, want=%d", got, want)
	}
}

func Test_Real_WriteAt_Then_ReadAt_Roundtrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.dat")

	f, err := OpenReal(path)
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}
	defer f.Close()

	want := []byte("hello ring buffer")
	if _, err := f.WriteAt(want, 16); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got := make([]byte, len(want))
	if _, err := f.ReadAt(got, 16); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}

	if string(got) != string(want) {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func Test_Real_Truncate_Grows_File_With_Zero_Bytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.dat")

	f, err := OpenReal(path)
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}
	defer f.Close()

	if err := f.Truncate(4096); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	length, err := f.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}

	if got, want := length, int64(4096); got != want {
		t.Fatalf("length=%d, want=%d", got, want)
	}

	buf := make([]byte, 8)
	if _, err := f.ReadAt(buf, 4000); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}

	for i, b := range buf {
		if b != 0 {
			t.Fatalf("buf[%d]=%d, want 0", i, b)
		}
	}
}

func Test_Real_Reopen_Preserves_Contents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.dat")

	f, err := OpenReal(path)
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}

	if _, err := f.WriteAt([]byte("persisted"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f2, err := OpenReal(path)
	if err != nil {
		t.Fatalf("OpenReal (reopen): %v", err)
	}
	defer f2.Close()

	buf := make([]byte, len("persisted"))
	if _, err := f2.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}

	if string(buf) != "persisted" {
		t.Fatalf("got=%q, want=%q", buf, "persisted")
	}
}
