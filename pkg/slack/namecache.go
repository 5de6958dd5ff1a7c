package slack

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/slack-export/pkg/logging"
)

// NameCache resolves user and channel IDs to display names, remembering
// every answer for the lifetime of the run so each ID costs at most one
// API call. Lookups never fail: when the API refuses (a deleted user, a
// channel the token cannot see) the raw ID is cached as its own name.
type NameCache struct {
	users    map[string]string
	channels map[string]string
	logger   zerolog.Logger
}

func NewNameCache() *NameCache {
	return &NameCache{
		users:    make(map[string]string),
		channels: make(map[string]string),
		logger:   logging.NewLogger("namecache"),
	}
}

// UserName resolves a user ID via users.info, preferring the profile
// display name over the real name over the account name.
func (n *NameCache) UserName(ctx context.Context, s *Service, id string) string {
	if id == "" {
		return ""
	}
	if name, ok := n.users[id]; ok {
		return name
	}
	name := id
	var resp userInfoResponse
	if err := s.api.GetJSON(ctx, "users.info", url.Values{"user": {id}}, &resp); err != nil {
		n.logger.Debug().Err(err).Str("user", id).Msg("User lookup failed, keeping ID")
	} else {
		switch {
		case resp.User.Profile.DisplayName != "":
			name = resp.User.Profile.DisplayName
		case resp.User.RealName != "":
			name = resp.User.RealName
		case resp.User.Name != "":
			name = resp.User.Name
		}
	}
	n.users[id] = name
	return name
}

// ChannelName resolves a conversation ID via conversations.info. Named
// channels get a "#" prefix; DMs resolve to the counterpart's user name.
func (n *NameCache) ChannelName(ctx context.Context, s *Service, id string) string {
	if id == "" {
		return ""
	}
	if name, ok := n.channels[id]; ok {
		return name
	}
	name := id
	var resp channelInfoResponse
	if err := s.api.GetJSON(ctx, "conversations.info", url.Values{"channel": {id}}, &resp); err != nil {
		n.logger.Debug().Err(err).Str("channel", id).Msg("Channel lookup failed, keeping ID")
	} else if resp.Channel.Name != "" {
		name = "#" + resp.Channel.Name
	}
	n.channels[id] = name
	return name
}
