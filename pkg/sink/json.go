package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/slack-export/pkg/paginate"
)

// JSONArray writes records as a single JSON document with a records array.
// The closing syntax is deferred to Close, so the file is not parseable
// mid-stream; a partially flushed nested structure would not be valid JSON
// either way, so no mid-structure syncs are attempted beyond the preamble.
type JSONArray struct {
	path string
	meta []Metadata

	file  *os.File
	buf   *bufio.Writer
	count int
}

// NewJSONArray creates a JSON-document sink writing to path.
func NewJSONArray(path string, meta ...Metadata) *JSONArray {
	return &JSONArray{path: path, meta: meta}
}

// Open creates the file and writes the synced document preamble, leaving the
// records array open.
func (s *JSONArray) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	s.file = f
	s.buf = bufio.NewWriter(f)

	fmt.Fprint(s.buf, "{\n")
	fmt.Fprintf(s.buf, "  \"export_date\": %s,\n", jsonString(time.Now().Format(time.RFC3339)))
	for _, m := range s.meta {
		fmt.Fprintf(s.buf, "  %s: %s,\n", jsonString(m.Key), jsonString(m.Value))
	}
	fmt.Fprint(s.buf, "  \"records\": [")

	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	syncsTotal.WithLabelValues("json").Inc()
	return nil
}

// Write appends one record to the open array.
func (s *JSONArray) Write(rec paginate.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", s.count+1, err)
	}

	if s.count > 0 {
		s.buf.WriteString(",")
	}
	s.buf.WriteString("\n    ")
	if _, err := s.buf.Write(data); err != nil {
		return fmt.Errorf("write record %d: %w", s.count+1, err)
	}

	s.count++
	recordsWrittenTotal.WithLabelValues("json").Inc()
	return nil
}

// Close writes the array terminator and trailing fields, then syncs.
func (s *JSONArray) Close() error {
	if s.file == nil {
		return nil
	}

	fmt.Fprint(s.buf, "\n  ],\n")
	fmt.Fprintf(s.buf, "  \"total_records\": %d\n", s.count)
	fmt.Fprint(s.buf, "}\n")

	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	syncsTotal.WithLabelValues("json").Inc()
	return s.file.Close()
}

// Count returns how many records have been written.
func (s *JSONArray) Count() int { return s.count }

func jsonString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
