// Package slack fetches channel history and channel listings from the Slack Web API
package slack

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hikitugu/handover/internal/sources"
	slackapi "github.com/slack-go/slack"
)

const pageSize = 200

// Client handles communication with the Slack Web API
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient creates a new Slack client. An empty apiURL uses the public
// Slack API; tests point it at a fake server.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if apiURL != "" && !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{apiURL: apiURL, httpClient: httpClient}
}

// api builds a Web API client bound to one user's token
func (c *Client) api(accessToken string) *slackapi.Client {
	opts := []slackapi.Option{slackapi.OptionHTTPClient(c.httpClient)}
	if c.apiURL != "" {
		opts = append(opts, slackapi.OptionAPIURL(c.apiURL))
	}
	return slackapi.New(accessToken, opts...)
}

// Messages returns the channel's top-level messages posted in [from, to),
// oldest first, each with its thread replies attached.
func (c *Client) Messages(ctx context.Context, accessToken, channelID string, from, to time.Time) ([]sources.Message, error) {
	api := c.api(accessToken)

	var raw []slackapi.Message
	params := &slackapi.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    formatTS(from),
		Latest:    formatTS(to),
		Limit:     pageSize,
	}
	for {
		resp, err := api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("conversations.history failed for channel %s: %w", channelID, err)
		}
		raw = append(raw, resp.Messages...)
		if resp.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}

	out := make([]sources.Message, 0, len(raw))
	for _, m := range raw {
		msg := convertMessage(channelID, m)
		if m.ReplyCount > 0 && m.ThreadTimestamp == m.Timestamp {
			replies, err := c.replies(ctx, api, channelID, m.Timestamp)
			if err != nil {
				return nil, err
			}
			msg.ThreadReplies = replies
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PostedAt.Before(out[j].PostedAt)
	})
	return out, nil
}

// replies fetches a thread without its parent message.
func (c *Client) replies(ctx context.Context, api *slackapi.Client, channelID, threadTS string) ([]sources.Message, error) {
	params := &slackapi.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     pageSize,
	}

	var out []sources.Message
	for {
		msgs, hasMore, next, err := api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("conversations.replies failed for thread %s: %w", threadTS, err)
		}
		for _, m := range msgs {
			if m.Timestamp == threadTS {
				continue
			}
			out = append(out, convertMessage(channelID, m))
		}
		if !hasMore || next == "" {
			return out, nil
		}
		params.Cursor = next
	}
}

// Channels lists public and private channels the token can see, excluding archived ones.
func (c *Client) Channels(ctx context.Context, accessToken string) ([]sources.Channel, error) {
	api := c.api(accessToken)
	params := &slackapi.GetConversationsParameters{
		Types:           []string{"public_channel", "private_channel"},
		ExcludeArchived: true,
		Limit:           pageSize,
	}

	var out []sources.Channel
	for {
		channels, next, err := api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("conversations.list failed: %w", err)
		}
		for _, ch := range channels {
			out = append(out, sources.Channel{
				ID:         ch.ID,
				Name:       ch.Name,
				IsPrivate:  ch.IsPrivate,
				NumMembers: ch.NumMembers,
			})
		}
		if next == "" {
			return out, nil
		}
		params.Cursor = next
	}
}

func convertMessage(channelID string, m slackapi.Message) sources.Message {
	user := m.User
	if user == "" {
		user = m.BotID
	}
	return sources.Message{
		ChannelID: channelID,
		TS:        m.Timestamp,
		User:      user,
		Text:      m.Text,
		PostedAt:  parseTS(m.Timestamp),
	}
}

// formatTS renders t as a Slack timestamp ("seconds.micros").
func formatTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// parseTS converts a Slack timestamp to UTC time; malformed input yields the zero time.
func parseTS(ts string) time.Time {
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if fracPart != "" {
		if len(fracPart) > 6 {
			fracPart = fracPart[:6]
		}
		fracPart += strings.Repeat("0", 6-len(fracPart))
		micros, _ = strconv.ParseInt(fracPart, 10, 64)
	}
	return time.Unix(sec, micros*1000).UTC()
}
