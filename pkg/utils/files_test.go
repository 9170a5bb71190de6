package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Plain Name":          "Plain Name",
		`A/B\C:D`:             "A_B_C_D",
		`What? "Really" <ok>`: "What_ _Really_ _ok_",
		"  padded  ":          "padded",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}

	long := strings.Repeat("x", 300)
	if got := SanitizeFilename(long); len(got) != 255 {
		t.Errorf("Expected 255 char cap, got %d", len(got))
	}
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := AtomicWrite(path, false, func(f *os.File) error {
		_, err := f.Write([]byte("hello"))
		return err
	})
	if err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read result: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("Unexpected content %q", body)
	}

	// Without overwrite an existing file is refused and left intact.
	err = AtomicWrite(path, false, func(f *os.File) error {
		_, err := f.Write([]byte("clobbered"))
		return err
	})
	if err == nil {
		t.Fatal("Expected error when target exists")
	}
	body, _ = os.ReadFile(path)
	if string(body) != "hello" {
		t.Errorf("Refused write must not touch the file, got %q", body)
	}

	// With overwrite the file is replaced.
	err = AtomicWrite(path, true, func(f *os.File) error {
		_, err := f.Write([]byte("replaced"))
		return err
	})
	if err != nil {
		t.Fatalf("Overwriting AtomicWrite failed: %v", err)
	}
	body, _ = os.ReadFile(path)
	if string(body) != "replaced" {
		t.Errorf("Expected replaced content, got %q", body)
	}
}

func TestAtomicWriteFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := AtomicWrite(path, false, func(f *os.File) error {
		return errors.New("encoder blew up")
	})
	if err == nil {
		t.Fatal("Expected write callback error to surface")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Failed write must leave nothing at the final path")
	}
	// No temp files linger either.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected empty dir, found %d entries", len(entries))
	}
}
