package upload

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/nexuscloud/drivesync/internal/common"
)

// Source is a raw file handle accepted by the queue. Bytes is called once
// per attempt, from the worker goroutine, never from Enqueue.
type Source interface {
	Name() string
	MimeType() string
	Size() int64
	Bytes() ([]byte, error)
}

// FileSource reads a file from the local filesystem.
type FileSource struct {
	path string
	size int64
}

// NewFileSource stats path so the record can carry a size before the bytes
// are ever read.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrValidation, path)
	}
	return &FileSource{path: path, size: info.Size()}, nil
}

func (f *FileSource) Name() string { return filepath.Base(f.path) }

func (f *FileSource) Size() int64 { return f.size }

func (f *FileSource) MimeType() string {
	if t := mime.TypeByExtension(filepath.Ext(f.path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (f *FileSource) Bytes() ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return b, nil
}

// BytesSource wraps an in-memory payload; used by tests and by replay of
// small staged files.
type BytesSource struct {
	FileName string
	Mime     string
	Data     []byte
}

func (s *BytesSource) Name() string     { return s.FileName }
func (s *BytesSource) MimeType() string { return s.Mime }
func (s *BytesSource) Size() int64      { return int64(len(s.Data)) }

func (s *BytesSource) Bytes() ([]byte, error) { return s.Data, nil }
