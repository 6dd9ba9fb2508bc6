package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to stderr, guarded by a mutex since
// multiple goroutines (writer, sessions, transport) log concurrently.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput returns a ConsoleOutput writing to os.Stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stderr} }

func (c *ConsoleOutput) writer() io.Writer {
	if c.w == nil {
		return os.Stderr
	}
	return c.w
}

func (c *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.writer().Write(formatted)
	return err
}

func (c *ConsoleOutput) Close() error { return nil }

// FileOutput appends formatted entries to a file on disk.
type FileOutput struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileOutput opens (creating if needed) the file at path for appending.
func NewFileOutput(path string) (*FileOutput, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{f: f}, nil
}

func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.f.Write(formatted)
	return err
}

func (o *FileOutput) Close() error { return o.f.Close() }

// NullOutput discards every entry. Useful in tests that only assert on
// return values, not log content.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }
