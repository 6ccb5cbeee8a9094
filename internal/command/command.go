// Package command implements the text command front end:
//
//	.dpm <amount|all>
//
// posted by the account in any channel deletes the account messages in that
// channel.
package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/bluele/gcache"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rusq/dlog"

	"github.com/rusq/wipemydiscord/internal/discord"
	"github.com/rusq/wipemydiscord/internal/purge"
)

const (
	Name          = "deletepersonalmessages"
	Alias         = "dpm"
	DefaultPrefix = "."

	statusPrefix = "Message Cleaner: "

	// statusMemory is how many status messages are kept out of the purges.
	statusMemory = 1024
)

// Usage returns the usage line for the prefix.
func Usage(prefix string) string {
	return prefix + Alias + " <amount|all>"
}

// Parse returns the argument of the command and true, if content is the
// purge command.
func Parse(prefix, content string) (string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", false
	}
	rest := content[len(prefix):]
	name, arg := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, arg = rest[:i], strings.TrimSpace(rest[i:])
	}
	switch strings.ToLower(name) {
	case Name, Alias:
		return arg, true
	}
	return "", false
}

// Messenger posts and edits the status message.
type Messenger interface {
	Send(ctx context.Context, channelID snowflake.ID, text string) (snowflake.ID, error)
	Edit(ctx context.Context, channelID, messageID snowflake.ID, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
}

type Handler struct {
	prefix string
	eng    *purge.Engine
	res    purge.Resolver
	msg    Messenger

	// mu makes posting a status message and remembering its ID atomic for
	// the runs listing the same channel.
	mu       sync.Mutex
	statuses gcache.Cache // status message IDs posted by the handler
}

func NewHandler(eng *purge.Engine, res purge.Resolver, msg Messenger, prefix string) *Handler {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Handler{
		prefix:   prefix,
		eng:      eng,
		res:      res,
		msg:      msg,
		statuses: gcache.New(statusMemory).LRU().Build(),
	}
}

// Handle runs the purge if the message is the command posted by the account.
// Messages that are not commands are ignored.
func (h *Handler) Handle(ctx context.Context, in discord.Incoming) error {
	if in.AuthorID != h.eng.Self() {
		return nil
	}
	arg, ok := Parse(h.prefix, in.Content)
	if !ok {
		return nil
	}
	target := purge.ParseTarget(arg)
	dlog.Printf("command in %s: target %s", in.ChannelID, target)

	if err := h.msg.DeleteMessage(ctx, in.ChannelID, in.MessageID); err != nil {
		// the engine will pick it up.
		dlog.Debugf("failed to delete the command message: %s", err)
	}

	dst, err := h.res.Resolve(ctx, purge.KindChannel, in.ChannelID)
	if err != nil {
		return err
	}

	statusID, err := h.postStatus(ctx, in.ChannelID)
	if err != nil {
		dlog.Printf("failed to post the status message: %s", err)
		statusID = 0
	}
	edit := func(text string) {
		if statusID == 0 {
			return
		}
		if err := h.msg.Edit(ctx, in.ChannelID, statusID, statusPrefix+text); err != nil {
			dlog.Debugf("status update failed: %s", err)
		}
	}

	n := purge.NewNotifier(edit, 1)
	res := h.eng.Run(ctx, keeping{Destination: dst, h: h}, target, n)
	n.Close()

	edit(fmt.Sprintf("deleted %d messages.", res.Deleted))
	dlog.Printf("command in %s: %s", in.ChannelID, res)
	return nil
}

// postStatus posts the initial status message and remembers it, so that no
// run, including the ones already going in the channel, deletes it.
func (h *Handler) postStatus(ctx context.Context, channelID snowflake.ID) (snowflake.ID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, err := h.msg.Send(ctx, channelID, statusPrefix+"starting…")
	if err != nil {
		return 0, err
	}
	if err := h.statuses.Set(id, struct{}{}); err != nil {
		dlog.Debugf("failed to remember the status message %s: %s", id, err)
	}
	return id, nil
}

// keeping hides the status messages of the handler from the engine.
type keeping struct {
	purge.Destination
	h *Handler
}

func (k keeping) ListPage(ctx context.Context, before snowflake.ID, limit int) ([]purge.Message, error) {
	page, err := k.Destination.ListPage(ctx, before, limit)
	if err != nil {
		return nil, err
	}
	k.h.mu.Lock()
	defer k.h.mu.Unlock()
	out := page[:0]
	for _, m := range page {
		if !k.h.statuses.Has(m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}
