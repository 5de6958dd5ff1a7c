// Package slack binds the Slack Web API endpoints this tool exports from
// to the generic pagination core. Each operation adapts one endpoint's
// wire shape to a page source and projects its records to Message.
package slack

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/slack-export/pkg/client"
	"github.com/Sternrassler/slack-export/pkg/logging"
	"github.com/Sternrassler/slack-export/pkg/paginate"
)

// DefaultPageSize is the per-request batch size for search-style endpoints.
// Slack caps search.messages at 100 matches per page.
const DefaultPageSize = 100

// HistoryPageSize is the per-request batch size for conversations.history,
// which accepts larger pages than search.
const HistoryPageSize = 200

// Service exposes the export operations on top of a rate-governed API
// client. All operations share one NameCache so enrichment lookups are
// paid once per run.
type Service struct {
	api    *client.Client
	names  *NameCache
	logger zerolog.Logger
}

func NewService(api *client.Client) *Service {
	return &Service{
		api:    api,
		names:  NewNameCache(),
		logger: logging.NewLogger("slack"),
	}
}

// SearchMessages walks the numbered pages of search.messages for the given
// query and returns every match up to opts.Cap, newest first as Slack
// returns them.
func (s *Service) SearchMessages(ctx context.Context, query string, opts paginate.Options) (*paginate.Result, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	s.logger.Info().Str("query", query).Msg("Searching messages")
	return paginate.FetchAllPages(ctx, s.searchPage(KindSearch, query), opts)
}

// SearchMessagesChunked splits the query's time range into monthly windows
// and searches each one, merging and deduplicating the results. This is
// the path around Slack's 100-page search ceiling for broad queries.
func (s *Service) SearchMessagesChunked(ctx context.Context, query string, opts paginate.ChunkedOptions) ([]paginate.Record, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	s.logger.Info().Str("query", query).Msg("Searching messages in monthly chunks")
	fetch := func(ctx context.Context, window paginate.TimeWindow, wopts paginate.Options) (*paginate.Result, error) {
		return paginate.FetchAllPages(ctx, s.searchPage(KindSearch, windowedQuery(query, window)), wopts)
	}
	return paginate.FetchChunked(ctx, fetch, opts)
}

// SavedMessages returns the messages in the token owner's "Later" list.
// Slack exposes them through search with the is:saved modifier.
func (s *Service) SavedMessages(ctx context.Context, opts paginate.Options) (*paginate.Result, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	s.logger.Info().Msg("Fetching saved messages")
	return paginate.FetchAllPages(ctx, s.searchPage(KindSaved, "is:saved"), opts)
}

// StarredMessages walks stars.list with cursor pagination and returns the
// starred messages. File and channel stars are skipped.
func (s *Service) StarredMessages(ctx context.Context, opts paginate.Options) (*paginate.Result, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	s.logger.Info().Msg("Fetching starred messages")
	fetch := func(ctx context.Context, req paginate.PageRequest) (*paginate.PageResult, error) {
		params := url.Values{"limit": {strconv.Itoa(req.Limit)}}
		if req.Cursor != "" {
			params.Set("cursor", req.Cursor)
		}
		var resp starsResponse
		if err := s.api.GetJSON(ctx, "stars.list", params, &resp); err != nil {
			return nil, err
		}
		records := make([]paginate.Record, 0, len(resp.Items))
		for _, raw := range resp.Items {
			msg, err := fromStarredItem(raw)
			if err != nil {
				return nil, err
			}
			if msg != nil {
				records = append(records, msg)
			}
		}
		return &paginate.PageResult{
			Records:    records,
			NextCursor: resp.ResponseMetadata.NextCursor,
			HasMore:    resp.ResponseMetadata.NextCursor != "",
		}, nil
	}
	return paginate.FetchAllCursor(ctx, fetch, opts)
}

// HistoryOptions bounds a channel history export.
type HistoryOptions struct {
	// Oldest, when set, limits the export to messages at or after this
	// Slack timestamp (seconds.fraction).
	Oldest string
	// Cap limits the total number of messages; zero means unbounded.
	Cap int
}

// StreamHistory walks conversations.history for one channel oldest-bound
// and writes each message to the sink as it arrives, so a failure mid-way
// leaves every message fetched so far on disk. It returns the number of
// messages written and whether the cap cut the export short.
func (s *Service) StreamHistory(ctx context.Context, channelID string, opts HistoryOptions, out paginate.Sink) (int, bool, error) {
	s.logger.Info().Str("channel", channelID).Msg("Exporting channel history")
	fetch := func(ctx context.Context, req paginate.PageRequest) (*paginate.PageResult, error) {
		params := url.Values{
			"channel": {channelID},
			"limit":   {strconv.Itoa(req.Limit)},
		}
		if opts.Oldest != "" {
			params.Set("oldest", opts.Oldest)
		}
		if req.Cursor != "" {
			params.Set("cursor", req.Cursor)
		}
		var resp historyResponse
		if err := s.api.GetJSONBulk(ctx, "conversations.history", params, &resp); err != nil {
			return nil, err
		}
		records := make([]paginate.Record, 0, len(resp.Messages))
		for _, raw := range resp.Messages {
			msg, err := fromHistoryMessage(channelID, raw)
			if err != nil {
				return nil, err
			}
			records = append(records, msg)
		}
		return &paginate.PageResult{
			Records:    records,
			NextCursor: resp.ResponseMetadata.NextCursor,
			HasMore:    resp.HasMore,
		}, nil
	}
	return paginate.StreamCursor(ctx, fetch, paginate.Options{PageSize: HistoryPageSize, Cap: opts.Cap}, out)
}

// ListConversations returns every conversation the token can see, all
// types included.
func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	s.logger.Info().Msg("Listing conversations")
	var all []Conversation
	cursor := ""
	for {
		params := url.Values{
			"limit": {"200"},
			"types": {"public_channel,private_channel,mpim,im"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp listResponse
		if err := s.api.GetJSON(ctx, "conversations.list", params, &resp); err != nil {
			return all, err
		}
		all = append(all, resp.Channels...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

// Enrich resolves user and channel IDs to names on every Message in the
// batch. Fields already populated by the wire record are left alone.
func (s *Service) Enrich(ctx context.Context, records []paginate.Record) {
	for _, rec := range records {
		msg, ok := rec.(*Message)
		if !ok {
			continue
		}
		if msg.UserName == "" && msg.UserID != "" {
			msg.UserName = s.names.UserName(ctx, s, msg.UserID)
		}
		if msg.ChannelName == "" && msg.ChannelID != "" {
			msg.ChannelName = s.names.ChannelName(ctx, s, msg.ChannelID)
		}
	}
}

// searchPage adapts search.messages to a numbered page source.
func (s *Service) searchPage(kind Kind, query string) paginate.PageFunc {
	return func(ctx context.Context, req paginate.PageRequest) (*paginate.PageResult, error) {
		params := url.Values{
			"query": {query},
			"count": {strconv.Itoa(req.Limit)},
			"page":  {strconv.Itoa(req.Page)},
		}
		var resp searchResponse
		if err := s.api.GetJSON(ctx, "search.messages", params, &resp); err != nil {
			return nil, err
		}
		records := make([]paginate.Record, 0, len(resp.Messages.Matches))
		for _, raw := range resp.Messages.Matches {
			msg, err := fromSearchMatch(kind, raw)
			if err != nil {
				return nil, err
			}
			records = append(records, msg)
		}
		return &paginate.PageResult{
			Records: records,
			Page:    resp.Messages.Paging.Page,
			Pages:   resp.Messages.Paging.Pages,
			Total:   resp.Messages.Total,
		}, nil
	}
}

// windowedQuery narrows a search query to one time window using Slack's
// after:/before: modifiers. Both bounds are exclusive in Slack's search,
// so the window edges are widened by a day on each side.
func windowedQuery(query string, w paginate.TimeWindow) string {
	after := w.Start.AddDate(0, 0, -1).Format("2006-01-02")
	before := w.End.AddDate(0, 0, 1).Format("2006-01-02")
	return fmt.Sprintf("%s after:%s before:%s", query, after, before)
}
