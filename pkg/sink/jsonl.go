package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Sternrassler/slack-export/pkg/paginate"
)

// JSONLines writes one JSON object per line. Every record is flushed as it
// is written, so the file is valid line-delimited JSON at any instant; the
// encoding needs no header or footer.
type JSONLines struct {
	path string

	file  *os.File
	buf   *bufio.Writer
	count int
}

// NewJSONLines creates a line-delimited JSON sink writing to path.
func NewJSONLines(path string) *JSONLines {
	return &JSONLines{path: path}
}

// Open creates the (initially empty) file and syncs it, so even a
// zero-record run leaves an inspectable file.
func (s *JSONLines) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	s.file = f
	s.buf = bufio.NewWriter(f)

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	syncsTotal.WithLabelValues("jsonl").Inc()
	return nil
}

// Write appends one record as a JSON line and flushes it.
func (s *JSONLines) Write(rec paginate.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", s.count+1, err)
	}

	if _, err := s.buf.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record %d: %w", s.count+1, err)
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush record %d: %w", s.count+1, err)
	}

	s.count++
	recordsWrittenTotal.WithLabelValues("jsonl").Inc()

	if s.count%syncEvery == 0 {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", s.path, err)
		}
		syncsTotal.WithLabelValues("jsonl").Inc()
	}
	return nil
}

// Close performs the final flush and sync.
func (s *JSONLines) Close() error {
	if s.file == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return s.file.Close()
}

// Count returns how many records have been written.
func (s *JSONLines) Count() int { return s.count }
