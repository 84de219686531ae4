package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConcatListEscapesQuotes(t *testing.T) {
	t.Parallel()
	list := string(ConcatList([]string{"/tmp/a.mp4", "/tmp/it's.mp4"}))
	want := "file '/tmp/a.mp4'\nfile '/tmp/it'\\''s.mp4'\n"
	if list != want {
		t.Fatalf("list = %q, want %q", list, want)
	}
}

func TestTextJoinerConcatenatesInOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	paths := make([]string, 0, 3)
	for i, content := range []string{"first", "second", "third"} {
		path := filepath.Join(dir, strings.Repeat("s", i+1)+".txt")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	out := filepath.Join(dir, "final.txt")
	if err := NewTextJoiner().Join(context.Background(), paths, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "=== segment 1 ===\nfirst") || !strings.Contains(text, "=== segment 3 ===\nthird") {
		t.Fatalf("output = %q", text)
	}
	if strings.Index(text, "second") < strings.Index(text, "first") {
		t.Fatal("segments out of order")
	}
}

func TestTextJoinerRejectsEmptyInput(t *testing.T) {
	t.Parallel()
	err := NewTextJoiner().Join(context.Background(), nil, filepath.Join(t.TempDir(), "out.txt"))
	if err == nil {
		t.Fatal("empty segment list should error")
	}
}
