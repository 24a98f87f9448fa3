package history

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestOpen_MissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nope", FileName))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty history, got %d", s.Len())
	}
}

func TestAdd_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mcp-repl", FileName)
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"tool list", "tool fs.read /etc/hosts", "length"} {
		if err := s.Add(line); err != nil {
			t.Fatalf("Add(%q) returned error: %v", line, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("history file perm = %o, want 600", perm)
	}
	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o750 {
		t.Errorf("history dir perm = %o, want 750", perm)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"tool list", "tool fs.read /etc/hosts", "length"}
	if got := reloaded.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries = %q, want %q", got, want)
	}
}

func TestAdd_SkipsBlankAndConsecutiveDuplicates(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"a", "", "   ", "a", "b", "a", "a"} {
		if err := s.Add(line); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := s.Entries(), []string{"a", "b", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Entries = %q, want %q", got, want)
	}
}

func TestAdd_DropsOldestBeyondLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := OpenWithLimit(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := range 25 {
		if err := s.Add(strings.Repeat("x", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 10 {
		t.Fatalf("Len = %d, want 10", s.Len())
	}
	if first := s.Entries()[0]; first != strings.Repeat("x", 16) {
		t.Errorf("oldest entry = %q", first)
	}

	reloaded, err := OpenWithLimit(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(reloaded.Entries(), s.Entries()) {
		t.Errorf("reloaded = %q, want %q", reloaded.Entries(), s.Entries())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines > 11 {
		t.Errorf("file has %d lines, expected compaction to at most 11", lines)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/home/tester", ".mcp-repl", FileName); path != want {
		t.Errorf("DefaultPath = %q, want %q", path, want)
	}
}
