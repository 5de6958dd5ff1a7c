package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	TS      string `json:"ts"`
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

func (m fakeMessage) IdentityKey() string { return m.TS + "|" + m.Channel }

func (m fakeMessage) MarkdownSection(n int) string {
	return fmt.Sprintf("## Message %d\n\n%s\n\n---\n\n", n, m.Text)
}

type bareRecord struct{}

func (bareRecord) IdentityKey() string { return "bare" }

func msg(i int) fakeMessage {
	return fakeMessage{TS: fmt.Sprintf("1700000%03d.000100", i), Channel: "C123", Text: fmt.Sprintf("hello %d", i)}
}

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func TestMarkdown_HeaderDurableOnOpen(t *testing.T) {
	path := tempPath(t, "out.md")
	s := NewMarkdown(path, "Slack Search Results", Metadata{Key: "Query", Value: "from:@alice"})
	require.NoError(t, s.Open())

	// Before any record and before Close the file must already be a valid,
	// inspectable document.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Slack Search Results")
	assert.Contains(t, string(data), "**Query:** from:@alice")

	require.NoError(t, s.Close())
}

// After writing K records and crashing before Close, the file contains the
// header and exactly K rendered records.
func TestMarkdown_CrashLeavesWrittenRecordsIntact(t *testing.T) {
	path := tempPath(t, "crash.md")
	s := NewMarkdown(path, "DM History")
	require.NoError(t, s.Open())

	const k = 7
	for i := 1; i <= k; i++ {
		require.NoError(t, s.Write(msg(i)))
	}
	// Simulated crash: no Close.

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# DM History")
	assert.Equal(t, k, strings.Count(content, "## Message "))
	assert.NotContains(t, content, "Export completed", "footer must only appear after Close")
}

func TestMarkdown_CloseWritesFooter(t *testing.T) {
	path := tempPath(t, "done.md")
	s := NewMarkdown(path, "Saved Messages")
	require.NoError(t, s.Open())
	require.NoError(t, s.Write(msg(1)))
	require.NoError(t, s.Write(msg(2)))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "**Total records:** 2")
	assert.Contains(t, string(data), "Export completed")
	assert.Equal(t, 2, s.Count())
}

func TestMarkdown_RejectsNonRenderableRecord(t *testing.T) {
	path := tempPath(t, "bad.md")
	s := NewMarkdown(path, "X")
	require.NoError(t, s.Open())
	defer s.Close()

	err := s.Write(bareRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markdown")
}

// After writing K records and crashing before Close, the file contains
// exactly K valid JSON lines.
func TestJSONLines_CrashLeavesValidLines(t *testing.T) {
	path := tempPath(t, "crash.jsonl")
	s := NewJSONLines(path)
	require.NoError(t, s.Open())

	const k = 13
	for i := 1; i <= k; i++ {
		require.NoError(t, s.Write(msg(i)))
	}
	// Simulated crash: no Close.

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var decoded fakeMessage
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded), "line %d must be valid JSON", lines+1)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, k, lines)
}

func TestJSONLines_ZeroRecordRunLeavesFile(t *testing.T) {
	path := tempPath(t, "empty.jsonl")
	s := NewJSONLines(path)
	require.NoError(t, s.Open())
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestJSONArray_CompleteDocument(t *testing.T) {
	path := tempPath(t, "out.json")
	s := NewJSONArray(path, Metadata{Key: "search_query", Value: "is:saved"})
	require.NoError(t, s.Open())
	require.NoError(t, s.Write(msg(1)))
	require.NoError(t, s.Write(msg(2)))
	require.NoError(t, s.Write(msg(3)))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		ExportDate   string        `json:"export_date"`
		SearchQuery  string        `json:"search_query"`
		Records      []fakeMessage `json:"records"`
		TotalRecords int           `json:"total_records"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "is:saved", doc.SearchQuery)
	assert.Len(t, doc.Records, 3)
	assert.Equal(t, 3, doc.TotalRecords)
}

func TestJSONArray_ZeroRecordDocumentIsValid(t *testing.T) {
	path := tempPath(t, "empty.json")
	s := NewJSONArray(path)
	require.NoError(t, s.Open())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Records []json.RawMessage `json:"records"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Empty(t, doc.Records)
}

// The JSON-array encoding is exempt from mid-stream validity: the closing
// syntax is deferred to Close, so a crash mid-export leaves a syntactically
// incomplete document. Line-delimited and Markdown encodings carry the
// durability guarantee instead.
func TestJSONArray_MidStreamIsNotParseable(t *testing.T) {
	path := tempPath(t, "mid.json")
	s := NewJSONArray(path)
	require.NoError(t, s.Open())
	require.NoError(t, s.Write(msg(1)))
	// Simulated crash: no Close. Only the preamble is guaranteed on disk.

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	assert.Error(t, json.Unmarshal(data, &doc), "document must not parse before Close")
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	require.NoError(t, c.Open())
	require.NoError(t, c.Write(msg(1)))
	require.NoError(t, c.Write(msg(2)))
	require.NoError(t, c.Close())

	assert.True(t, c.Opened)
	assert.True(t, c.Closed)
	assert.Len(t, c.Records, 2)
}
