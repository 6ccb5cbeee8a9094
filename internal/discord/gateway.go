package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rusq/dlog"
)

// Incoming is a message posted by the account itself.
type Incoming struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	AuthorID  snowflake.ID
	Content   string
}

// Listen connects to the gateway and calls fn for every new message the
// account posts, until ctx is cancelled.  fn is called in its own goroutine.
func (c *Client) Listen(ctx context.Context, fn func(context.Context, Incoming)) error {
	if !c.started {
		return ErrNotStarted
	}
	c.s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	remove := c.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		in, ok := c.incoming(m.Message)
		if !ok {
			return
		}
		fn(ctx, in)
	})
	defer remove()

	if err := c.s.Open(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	defer func() {
		if err := c.s.Close(); err != nil {
			dlog.Printf("gateway close error: %s", err)
		}
	}()
	dlog.Debug("gateway connected")

	<-ctx.Done()
	return nil
}

// incoming converts the message, returning false if it's not posted by
// the account.
func (c *Client) incoming(m *discordgo.Message) (Incoming, bool) {
	if m == nil || m.Author == nil {
		return Incoming{}, false
	}
	msg, err := toMessage(m)
	if err != nil || msg.AuthorID != c.self {
		return Incoming{}, false
	}
	chID, err := snowflake.Parse(m.ChannelID)
	if err != nil {
		return Incoming{}, false
	}
	return Incoming{
		ChannelID: chID,
		MessageID: msg.ID,
		AuthorID:  msg.AuthorID,
		Content:   m.Content,
	}, true
}

// Send posts a message to the channel and returns its ID.
func (c *Client) Send(ctx context.Context, channelID snowflake.ID, text string) (snowflake.ID, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	m, err := c.s.ChannelMessageSend(channelID.String(), text, discordgo.WithContext(ctx))
	if err != nil {
		return 0, classify(err)
	}
	return snowflake.Parse(m.ID)
}

// Edit replaces the text of the message.
func (c *Client) Edit(ctx context.Context, channelID, messageID snowflake.ID, text string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.s.ChannelMessageEdit(channelID.String(), messageID.String(), text, discordgo.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

// DeleteMessage deletes a single message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.s.ChannelMessageDelete(channelID.String(), messageID.String(), discordgo.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}
