// Package sink persists fetched records incrementally, so partial progress
// is visible on disk if the process is interrupted and the full result set
// never has to be held in memory.
//
// Three encodings are provided. Markdown and line-delimited JSON are flushed
// after every record: a crash leaves a valid header and every written record
// intact. The JSON-array encoding defers its closing syntax to Close and is
// therefore not parseable mid-stream; that asymmetry is inherent to the
// format, not an implementation gap.
package sink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/slack-export/pkg/paginate"
)

var (
	recordsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slack_sink_records_written_total",
		Help: "Total records written by sink encoding",
	}, []string{"encoding"})

	syncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slack_sink_syncs_total",
		Help: "Total explicit fsyncs by sink encoding",
	}, []string{"encoding"})
)

// syncEvery bounds the data at risk on crash: an OS-level flush+sync is
// forced after this many records even for encodings that don't require a
// per-record sync.
const syncEvery = 10

// Sink is an output destination written incrementally. Open writes the
// encoding's preamble and forces it to stable storage, so even a zero-record
// run leaves a valid, inspectable file. Write errors always propagate:
// export correctness depends on every record reaching disk.
type Sink interface {
	Open() error
	Write(rec paginate.Record) error
	Close() error
}

// MarkdownRenderer is implemented by records that can render themselves as a
// Markdown document section. n is the 1-based position within the export.
type MarkdownRenderer interface {
	MarkdownSection(n int) string
}

// Metadata is one ordered key/value pair for a sink's header.
type Metadata struct {
	Key   string
	Value string
}

// Collector is an in-memory Sink for tests and for callers that post-process
// records before persisting them.
type Collector struct {
	Records []paginate.Record
	Opened  bool
	Closed  bool
}

// NewCollector creates an empty in-memory sink.
func NewCollector() *Collector { return &Collector{} }

// Open marks the collector opened.
func (c *Collector) Open() error {
	c.Opened = true
	return nil
}

// Write appends the record.
func (c *Collector) Write(rec paginate.Record) error {
	c.Records = append(c.Records, rec)
	return nil
}

// Close marks the collector closed.
func (c *Collector) Close() error {
	c.Closed = true
	return nil
}
