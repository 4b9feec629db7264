package fileio

import (
	"errors"
	"path/filepath"
	"testing"
)

func Test_Fault_Passes_Through_When_Not_Armed(t *testing.T) {
	dir := t.TempDir()

	real, err := OpenReal(filepath.Join(dir, "q.dat"))
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}
	defer real.Close()

	f := Wrap(real)

	if _, err := f.WriteAt([]byte("abc"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := f.Truncate(4096); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
}

func Test_Fault_SetFailWrites_Forces_WriteAt_And_Truncate_To_Fail(t *testing.T) {
	dir := t.TempDir()

	real, err := OpenReal(filepath.Join(dir, "q.dat"))
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}
	defer real.Close()

	f := Wrap(real)
	f.SetFailWrites(true)

	if _, err := f.WriteAt([]byte("abc"), 0); err == nil {
		t.Fatalf("WriteAt: want error, got nil")
	} else if !IsInjected(err) {
		t.Fatalf("WriteAt err=%v, want injected", err)
	}

	if err := f.Truncate(4096); err == nil {
		t.Fatalf("Truncate: want error, got nil")
	} else if !IsInjected(err) {
		t.Fatalf("Truncate err=%v, want injected", err)
	}

	// Sync is a separate toggle; it must still succeed.
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: want nil, got %v", err)
	}

	f.SetFailWrites(false)

	if _, err := f.WriteAt([]byte("abc"), 0); err != nil {
		t.Fatalf("WriteAt after clear: %v", err)
	}
}

func Test_Fault_SetFailSync_Forces_Sync_To_Fail_Until_Cleared(t *testing.T) {
	dir := t.TempDir()

	real, err := OpenReal(filepath.Join(dir, "q.dat"))
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}
	defer real.Close()

	f := Wrap(real)
	f.SetFailSync(true)

	for range 3 {
		if err := f.Sync(); err == nil {
			t.Fatalf("Sync: want error, got nil")
		}
	}

	f.SetFailSync(false)

	if err := f.Sync(); err != nil {
		t.Fatalf("Sync after clear: %v", err)
	}
}

func Test_Fault_ReadAt_Never_Fails_Injected(t *testing.T) {
	dir := t.TempDir()

	real, err := OpenReal(filepath.Join(dir, "q.dat"))
	if err != nil {
		t.Fatalf("OpenReal: %v", err)
	}
	defer real.Close()

	if err := real.Truncate(16); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	f := Wrap(real)
	f.SetFailAll(true)

	buf := make([]byte, 16)
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: want nil, got %v", err)
	}
}

func Test_IsInjected_Returns_False_For_Plain_Errors(t *testing.T) {
	if IsInjected(nil) {
		t.Fatalf("IsInjected(nil) = true, want false")
	}

	if IsInjected(errors.New("boring")) {
		t.Fatalf("IsInjected(plain) = true, want false")
	}
}
