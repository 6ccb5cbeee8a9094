package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/trace"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/rusq/wipemydiscord/internal/purge"
)

var (
	errNotGroup = errors.New("not a group chat")
	errNotDM    = errors.New("not a direct message channel or a user")
)

// Entity is a conversation the account participates in.
type Entity interface {
	ID() snowflake.ID
	Title() string
	Kind() purge.Kind
}

// Resolve opens the destination of the given kind.  For KindDM, id may be
// either the DM channel ID or the ID of the user on the other end.  Any
// failure is returned as *purge.UnavailableError.
func (c *Client) Resolve(ctx context.Context, kind purge.Kind, id snowflake.ID) (purge.Destination, error) {
	ctx, task := trace.NewTask(ctx, "Resolve")
	defer task.End()

	ch, err := c.resolve(ctx, kind, id)
	if err != nil {
		trace.Logf(ctx, "resolve", "%s %s: %s", kind, id, err)
		return nil, &purge.UnavailableError{Kind: kind, ID: id, Err: err}
	}
	return ch, nil
}

func (c *Client) resolve(ctx context.Context, kind purge.Kind, id snowflake.ID) (*Channel, error) {
	switch kind {
	case purge.KindChannel:
		return c.channel(ctx, id)
	case purge.KindGroup:
		ch, err := c.channel(ctx, id)
		if err != nil {
			return nil, err
		}
		if ch.ch.Type != discordgo.ChannelTypeGroupDM {
			return nil, errNotGroup
		}
		return ch, nil
	case purge.KindDM:
		ch, err := c.channel(ctx, id)
		if err == nil && ch.ch.Type == discordgo.ChannelTypeDM {
			return ch, nil
		}
		// not a channel, maybe it's a user.
		dm, err := c.openDM(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errNotDM, err)
		}
		return dm, nil
	default:
		return nil, fmt.Errorf("unsupported destination kind: %s", kind)
	}
}

// channel returns the channel from cache, or fetches it from the API.
func (c *Client) channel(ctx context.Context, id snowflake.ID) (*Channel, error) {
	if cached, err := c.cache.Get(id); err == nil {
		trace.Log(ctx, "cache", "hit")
		return cached.(*Channel), nil
	}
	trace.Log(ctx, "cache", "miss")

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	dch, err := c.s.Channel(id.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return c.remember(dch)
}

func (c *Client) openDM(ctx context.Context, userID snowflake.ID) (*Channel, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	dch, err := c.s.UserChannelCreate(userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return c.remember(dch)
}

func (c *Client) remember(dch *discordgo.Channel) (*Channel, error) {
	ch, err := c.newChannel(dch)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ch.id, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Destinations returns the direct messages and group chats of the account,
// sorted by title.  Server channels are not listed, they have to be
// addressed by ID.
func (c *Client) Destinations(ctx context.Context) ([]Entity, error) {
	ctx, task := trace.NewTask(ctx, "Destinations")
	defer task.End()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.s.RequestWithBucketID("GET", discordgo.EndpointUserChannels("@me"), nil, discordgo.EndpointUserChannels(""), discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	var dchs []*discordgo.Channel
	if err := json.Unmarshal(body, &dchs); err != nil {
		return nil, fmt.Errorf("channels: %w", err)
	}
	ee := make([]Entity, 0, len(dchs))
	for _, dch := range dchs {
		if dch.Type != discordgo.ChannelTypeDM && dch.Type != discordgo.ChannelTypeGroupDM {
			continue
		}
		ch, err := c.remember(dch)
		if err != nil {
			return nil, err
		}
		ee = append(ee, ch)
	}
	sort.Slice(ee, func(i, j int) bool {
		return ee[i].Title() < ee[j].Title()
	})
	return ee, nil
}
