package studio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileEmitter hands a finished recording to the user.
type FileEmitter interface {
	Emit(data []byte, filename string) error
}

// EmitterFunc adapts a function to FileEmitter.
type EmitterFunc func(data []byte, filename string) error

func (f EmitterFunc) Emit(data []byte, filename string) error {
	return f(data, filename)
}

// DirEmitter writes files into a directory, creating it if needed.
type DirEmitter struct {
	Dir string
}

// Emit writes data to Dir/filename, replacing any previous file.
func (e DirEmitter) Emit(data []byte, filename string) error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(e.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// EmittedFile is one file recorded by MemoryEmitter.
type EmittedFile struct {
	Name string
	Data []byte
}

// MemoryEmitter keeps emitted files in memory.
type MemoryEmitter struct {
	mu    sync.Mutex
	files []EmittedFile
}

func (e *MemoryEmitter) Emit(data []byte, filename string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files = append(e.files, EmittedFile{Name: filename, Data: data})
	return nil
}

// Files returns every file emitted so far.
func (e *MemoryEmitter) Files() []EmittedFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EmittedFile, len(e.files))
	copy(out, e.files)
	return out
}
