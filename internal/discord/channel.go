package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/trace"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rusq/dlog"

	"github.com/rusq/wipemydiscord/internal/purge"
)

// Discord JSON error codes.
const (
	codeUnknownChannel     = 10003
	codeUnknownMessage     = 10008
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// Channel is any message-bearing Discord channel: guild text channel,
// thread, DM or group DM.  It implements purge.Destination.
type Channel struct {
	c  *Client
	ch *discordgo.Channel
	id snowflake.ID
}

func (c *Client) newChannel(ch *discordgo.Channel) (*Channel, error) {
	id, err := snowflake.Parse(ch.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid channel ID %q: %w", ch.ID, err)
	}
	return &Channel{c: c, ch: ch, id: id}, nil
}

func (ch *Channel) ID() snowflake.ID {
	return ch.id
}

// Title returns the human readable name of the channel.
func (ch *Channel) Title() string {
	return channelTitle(ch.ch)
}

// Kind returns the destination kind of the channel.
func (ch *Channel) Kind() purge.Kind {
	switch ch.ch.Type {
	case discordgo.ChannelTypeDM:
		return purge.KindDM
	case discordgo.ChannelTypeGroupDM:
		return purge.KindGroup
	default:
		return purge.KindChannel
	}
}

func (ch *Channel) ListPage(ctx context.Context, before snowflake.ID, limit int) ([]purge.Message, error) {
	if err := ch.c.wait(ctx); err != nil {
		return nil, err
	}
	var beforeID string
	if before != 0 {
		beforeID = before.String()
	}
	msgs, err := ch.c.s.ChannelMessages(ch.ch.ID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		trace.Logf(ctx, "api", "history error: %s", err)
		return nil, classify(err)
	}
	page := make([]purge.Message, 0, len(msgs))
	for _, m := range msgs {
		pm, err := toMessage(m)
		if err != nil {
			dlog.Debugf("skipping message: %s", err)
			continue
		}
		page = append(page, pm)
	}
	return page, nil
}

func (ch *Channel) Delete(ctx context.Context, id snowflake.ID) error {
	if err := ch.c.wait(ctx); err != nil {
		return err
	}
	if err := ch.c.s.ChannelMessageDelete(ch.ch.ID, id.String(), discordgo.WithContext(ctx)); err != nil {
		trace.Logf(ctx, "api", "delete error: %s", err)
		return classify(err)
	}
	return nil
}

func toMessage(m *discordgo.Message) (purge.Message, error) {
	id, err := snowflake.Parse(m.ID)
	if err != nil {
		return purge.Message{}, fmt.Errorf("invalid message ID %q: %w", m.ID, err)
	}
	var author snowflake.ID
	if m.Author != nil {
		// system messages may come without the author, these are not ours
		// anyway.
		author, _ = snowflake.Parse(m.Author.ID)
	}
	return purge.Message{ID: id, AuthorID: author}, nil
}

// classify wraps the API error into one of the purge error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", purge.ErrPermissionDenied, err)
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) {
		var code, status int
		if rerr.Message != nil {
			code = rerr.Message.Code
		}
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		switch {
		case code == codeMissingAccess || code == codeMissingPermissions,
			status == http.StatusUnauthorized || status == http.StatusForbidden:
			return fmt.Errorf("%w: %w", purge.ErrPermissionDenied, err)
		case code == codeUnknownChannel,
			status == http.StatusNotFound && code != codeUnknownMessage:
			return fmt.Errorf("%w: %w", purge.ErrUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %w", purge.ErrTransient, err)
}

func channelTitle(ch *discordgo.Channel) string {
	if ch.Name != "" {
		if ch.GuildID != "" {
			return "#" + ch.Name
		}
		return ch.Name
	}
	if len(ch.Recipients) > 0 {
		names := make([]string, 0, len(ch.Recipients))
		for _, u := range ch.Recipients {
			names = append(names, userName(u))
		}
		return strings.Join(names, ", ")
	}
	return ch.ID
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
