package sink

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/slack-export/pkg/paginate"
)

// Markdown writes records as sections of a Markdown document. The header is
// synced on open and every record is flushed as it is written, so an
// interrupted export leaves a valid, readable file.
type Markdown struct {
	path  string
	title string
	meta  []Metadata

	file  *os.File
	buf   *bufio.Writer
	count int
}

// NewMarkdown creates a Markdown sink writing to path.
func NewMarkdown(path, title string, meta ...Metadata) *Markdown {
	return &Markdown{path: path, title: title, meta: meta}
}

// Open creates the file and writes the synced document header.
func (s *Markdown) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	s.file = f
	s.buf = bufio.NewWriter(f)

	fmt.Fprintf(s.buf, "# %s\n\n", s.title)
	for _, m := range s.meta {
		fmt.Fprintf(s.buf, "**%s:** %s\n", m.Key, m.Value)
	}
	fmt.Fprintf(s.buf, "**Export started:** %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprint(s.buf, "---\n\n")

	return s.sync()
}

// Write renders one record as a Markdown section and flushes it. The record
// must implement MarkdownRenderer.
func (s *Markdown) Write(rec paginate.Record) error {
	r, ok := rec.(MarkdownRenderer)
	if !ok {
		return fmt.Errorf("record %T cannot render itself as markdown", rec)
	}

	s.count++
	if _, err := s.buf.WriteString(r.MarkdownSection(s.count)); err != nil {
		return fmt.Errorf("write record %d: %w", s.count, err)
	}

	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush record %d: %w", s.count, err)
	}
	recordsWrittenTotal.WithLabelValues("markdown").Inc()

	if s.count%syncEvery == 0 {
		return s.sync()
	}
	return nil
}

// Close writes the footer with the final count and syncs the file.
func (s *Markdown) Close() error {
	if s.file == nil {
		return nil
	}

	fmt.Fprint(s.buf, "\n---\n\n")
	fmt.Fprintf(s.buf, "**Export completed:** %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(s.buf, "**Total records:** %d\n", s.count)

	if err := s.sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// Count returns how many records have been written.
func (s *Markdown) Count() int { return s.count }

func (s *Markdown) sync() error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	syncsTotal.WithLabelValues("markdown").Inc()
	return nil
}
