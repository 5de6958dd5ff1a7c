package slack

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/slack-export/pkg/paginate"
)

// Kind tags the export operation a message came from.
type Kind string

const (
	KindSearch  Kind = "search"
	KindSaved   Kind = "saved"
	KindStarred Kind = "starred"
	KindHistory Kind = "history"
)

// Message is the shared projection every export operation reduces its wire
// records to. The raw payload is retained verbatim so nothing the API
// returned is lost; the projected fields exist for deduplication, sorting
// and rendering. ChannelName and UserName stay empty until enrichment.
type Message struct {
	Kind        Kind
	TS          string
	ChannelID   string
	ChannelName string
	UserID      string
	UserName    string
	Text        string
	Permalink   string
	Raw         json.RawMessage
}

// IdentityKey uniquely identifies a message across overlapping fetch
// windows. The timestamp alone is not unique across channels.
func (m *Message) IdentityKey() string {
	return m.TS + "|" + m.ChannelID
}

// Time converts the Slack "seconds.fraction" timestamp. The zero time is
// returned for malformed timestamps.
func (m *Message) Time() time.Time {
	secs, err := strconv.ParseFloat(m.TS, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(int64(secs), int64((secs-float64(int64(secs)))*1e9)).UTC()
}

// DisplayChannel is the enriched channel name when known, the raw ID
// otherwise.
func (m *Message) DisplayChannel() string {
	if m.ChannelName != "" {
		return m.ChannelName
	}
	return m.ChannelID
}

// DisplayUser is the enriched user name when known, the raw ID otherwise.
func (m *Message) DisplayUser() string {
	if m.UserName != "" {
		return m.UserName
	}
	return m.UserID
}

// MarkdownSection renders the message as one numbered section of a markdown
// export document.
func (m *Message) MarkdownSection(n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Message %d\n\n", n)
	if t := m.Time(); !t.IsZero() {
		fmt.Fprintf(&b, "**Date:** %s\n", t.Format("2006-01-02 15:04:05 UTC"))
	}
	if m.ChannelID != "" || m.ChannelName != "" {
		fmt.Fprintf(&b, "**Channel:** %s\n", m.DisplayChannel())
	}
	if m.UserID != "" || m.UserName != "" {
		fmt.Fprintf(&b, "**From:** %s\n", m.DisplayUser())
	}
	if m.Permalink != "" {
		fmt.Fprintf(&b, "**Link:** %s\n", m.Permalink)
	}
	b.WriteString("\n")
	if m.Text != "" {
		b.WriteString(m.Text)
		b.WriteString("\n")
	} else {
		b.WriteString("*(no text)*\n")
	}
	m.renderExtras(&b)
	b.WriteString("\n---\n\n")
	return b.String()
}

func (m *Message) renderExtras(b *strings.Builder) {
	var extras messageExtras
	if err := json.Unmarshal(m.Raw, &extras); err != nil {
		return
	}
	if len(extras.Attachments) > 0 {
		b.WriteString("\n**Attachments:**\n")
		for _, a := range extras.Attachments {
			title := a.Title
			if title == "" {
				title = a.Fallback
			}
			if a.TitleLink != "" {
				fmt.Fprintf(b, "- [%s](%s)\n", title, a.TitleLink)
			} else {
				fmt.Fprintf(b, "- %s\n", title)
			}
		}
	}
	if len(extras.Files) > 0 {
		b.WriteString("\n**Files:**\n")
		for _, f := range extras.Files {
			link := f.URLPrivate
			if link == "" {
				link = f.Permalink
			}
			fmt.Fprintf(b, "- [%s](%s)\n", f.Name, link)
		}
	}
	if len(extras.Reactions) > 0 {
		b.WriteString("\n**Reactions:** ")
		parts := make([]string, 0, len(extras.Reactions))
		for _, r := range extras.Reactions {
			parts = append(parts, fmt.Sprintf(":%s: %d", r.Name, r.Count))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
}

// exportedMessage is the JSON export shape: the projected and enriched
// fields up front, the untouched wire payload under "raw".
type exportedMessage struct {
	Kind        Kind            `json:"kind"`
	TS          string          `json:"ts"`
	Date        string          `json:"date,omitempty"`
	ChannelID   string          `json:"channel_id,omitempty"`
	ChannelName string          `json:"channel_name,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	UserName    string          `json:"user_name,omitempty"`
	Text        string          `json:"text"`
	Permalink   string          `json:"permalink,omitempty"`
	Raw         json.RawMessage `json:"raw"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	out := exportedMessage{
		Kind:        m.Kind,
		TS:          m.TS,
		ChannelID:   m.ChannelID,
		ChannelName: m.ChannelName,
		UserID:      m.UserID,
		UserName:    m.UserName,
		Text:        m.Text,
		Permalink:   m.Permalink,
		Raw:         m.Raw,
	}
	if t := m.Time(); !t.IsZero() {
		out.Date = t.Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// fromSearchMatch projects one search.messages match.
func fromSearchMatch(kind Kind, raw json.RawMessage) (*Message, error) {
	var match searchMatch
	if err := json.Unmarshal(raw, &match); err != nil {
		return nil, fmt.Errorf("decoding search match: %w", err)
	}
	return &Message{
		Kind:        kind,
		TS:          match.TS,
		ChannelID:   match.Channel.ID,
		ChannelName: match.Channel.Name,
		UserID:      match.User,
		UserName:    match.Username,
		Text:        match.Text,
		Permalink:   match.Permalink,
		Raw:         raw,
	}, nil
}

// fromStarredItem projects one stars.list item. Non-message stars yield
// (nil, nil) and are skipped.
func fromStarredItem(raw json.RawMessage) (*Message, error) {
	var item starredItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decoding starred item: %w", err)
	}
	if item.Type != "message" {
		return nil, nil
	}
	var msg historyMessage
	if err := json.Unmarshal(item.Message, &msg); err != nil {
		return nil, fmt.Errorf("decoding starred message: %w", err)
	}
	return &Message{
		Kind:      KindStarred,
		TS:        msg.TS,
		ChannelID: item.Channel,
		UserID:    msg.User,
		Text:      msg.Text,
		Permalink: msg.Permalink,
		Raw:       item.Message,
	}, nil
}

// fromHistoryMessage projects one conversations.history message. The
// channel is not part of the wire record and is supplied by the caller.
func fromHistoryMessage(channelID string, raw json.RawMessage) (*Message, error) {
	var msg historyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decoding history message: %w", err)
	}
	return &Message{
		Kind:      KindHistory,
		TS:        msg.TS,
		ChannelID: channelID,
		UserID:    msg.User,
		Text:      msg.Text,
		Raw:       raw,
	}, nil
}

// SortByTime orders records chronologically, newest first when desc is set.
// Records that are not Messages keep their relative position at the end.
func SortByTime(records []paginate.Record, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		mi, iok := records[i].(*Message)
		mj, jok := records[j].(*Message)
		if !iok || !jok {
			return iok
		}
		if desc {
			return mi.Time().After(mj.Time())
		}
		return mi.Time().Before(mj.Time())
	})
}
