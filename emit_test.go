package studio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirEmitter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := DirEmitter{Dir: dir}

	if err := e.Emit([]byte("first"), RecordingFilename); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := e.Emit([]byte("second"), RecordingFilename); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, RecordingFilename))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("file = %q, want the latest recording", got)
	}
}

func TestDirEmitter_StaysInDir(t *testing.T) {
	dir := t.TempDir()
	if err := (DirEmitter{Dir: dir}).Emit([]byte("x"), "../escape.webm"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.webm")); err != nil {
		t.Errorf("file not written inside dir: %v", err)
	}
}

func TestMemoryEmitter(t *testing.T) {
	var e MemoryEmitter
	e.Emit([]byte("a"), "one")
	e.Emit([]byte("b"), "two")

	files := e.Files()
	if len(files) != 2 || files[0].Name != "one" || string(files[1].Data) != "b" {
		t.Errorf("files = %+v", files)
	}
}
