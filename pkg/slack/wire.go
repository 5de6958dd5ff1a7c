package slack

import "encoding/json"

// Wire shapes of the Slack Web API responses this tool consumes. Only the
// fields the pagination core and the record projection need are declared;
// everything else rides along in raw payloads.

// responseMetadata carries the cursor continuation token.
type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

// paging is the numbered-page metadata of search-style endpoints.
type paging struct {
	Count int `json:"count"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// searchResponse is the shape of search.messages.
type searchResponse struct {
	Query    string `json:"query"`
	Messages struct {
		Total   int               `json:"total"`
		Paging  paging            `json:"paging"`
		Matches []json.RawMessage `json:"matches"`
	} `json:"messages"`
}

// searchMatch is one search.messages result.
type searchMatch struct {
	TS        string `json:"ts"`
	Text      string `json:"text"`
	User      string `json:"user"`
	Username  string `json:"username"`
	Permalink string `json:"permalink"`
	Channel   struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channel"`
}

// starsResponse is the shape of stars.list.
type starsResponse struct {
	Items            []json.RawMessage `json:"items"`
	ResponseMetadata responseMetadata  `json:"response_metadata"`
	Paging           paging            `json:"paging"`
}

// starredItem is one stars.list entry; only type=="message" items are
// exported, file and channel stars are skipped.
type starredItem struct {
	Type       string          `json:"type"`
	Channel    string          `json:"channel"`
	DateCreate int64           `json:"date_create"`
	Message    json.RawMessage `json:"message"`
}

// historyResponse is the shape of conversations.history.
type historyResponse struct {
	Messages         []json.RawMessage `json:"messages"`
	HasMore          bool              `json:"has_more"`
	ResponseMetadata responseMetadata  `json:"response_metadata"`
}

// historyMessage is one conversations.history message.
type historyMessage struct {
	TS        string `json:"ts"`
	Text      string `json:"text"`
	User      string `json:"user"`
	ThreadTS  string `json:"thread_ts"`
	Permalink string `json:"permalink"`
}

// listResponse is the shape of conversations.list.
type listResponse struct {
	Channels         []Conversation   `json:"channels"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

// Conversation is one conversations.list entry.
type Conversation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	User      string `json:"user"`
	Created   int64  `json:"created"`
	IsIM      bool   `json:"is_im"`
	IsMPIM    bool   `json:"is_mpim"`
	IsPrivate bool   `json:"is_private"`
}

// Type describes the conversation for display.
func (c Conversation) Type() string {
	switch {
	case c.IsIM:
		return "dm"
	case c.IsMPIM:
		return "group-dm"
	case c.IsPrivate:
		return "private-channel"
	default:
		return "channel"
	}
}

// userInfoResponse is the shape of users.info.
type userInfoResponse struct {
	User struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		RealName string `json:"real_name"`
		Profile  struct {
			DisplayName string `json:"display_name"`
		} `json:"profile"`
	} `json:"user"`
}

// channelInfoResponse is the shape of conversations.info.
type channelInfoResponse struct {
	Channel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channel"`
}

// messageExtras are the optional rich-content fields carried by any message
// variant, decoded only for rendering.
type messageExtras struct {
	Attachments []struct {
		Title     string `json:"title"`
		TitleLink string `json:"title_link"`
		Fallback  string `json:"fallback"`
	} `json:"attachments"`
	Files []struct {
		Name       string `json:"name"`
		Filetype   string `json:"filetype"`
		URLPrivate string `json:"url_private"`
		Permalink  string `json:"permalink"`
	} `json:"files"`
	Reactions []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"reactions"`
}
