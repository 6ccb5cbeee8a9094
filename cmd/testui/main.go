// Command testui emulates the work of the Text UI for making screenshots
package main

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rusq/dlog"

	"github.com/rusq/wipemydiscord/internal/discord"
	"github.com/rusq/wipemydiscord/internal/purge"
	"github.com/rusq/wipemydiscord/internal/settings"
	"github.com/rusq/wipemydiscord/internal/tui"
)

const (
	self            snowflake.ID = 1
	fakeDelay                    = 2 * time.Millisecond
	maxFakeMessages              = 3000
)

func main() {
	dir, err := os.MkdirTemp("", "testui")
	if err != nil {
		dlog.Fatal(err)
	}
	defer os.RemoveAll(dir)

	fd := newFakeDiscord(fakechats)
	eng := purge.New(self, purge.WithDelays(fakeDelay, fakeDelay, fakeDelay))
	st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}

	ctx := context.Background()
	dests, _ := fd.Destinations(ctx)
	app := tui.New(ctx, fd, eng, st)
	if err := app.Run(ctx, dests); err != nil {
		dlog.Fatal(err)
	}
}

var fakechats = []string{
	"Get to the Chopper",
	"Kelly Green",
	"Invest with us, quickly!",
	"NFT: pay $$$ get JPG",
	"Biohacking: your butt",
	"Crypto mining: y u no mine",
	"Everything you need to know about everything you need to know about",
	"Dumbass: Breaking News",
	"Slackdump",
}

type FakeChat struct {
	id    snowflake.ID
	title string
	kind  purge.Kind
	msgs  []purge.Message // newest first
}

func (f *FakeChat) ID() snowflake.ID { return f.id }
func (f *FakeChat) Title() string { return f.title }
func (f *FakeChat) Kind() purge.Kind { return f.kind }

func (f *FakeChat) ListPage(ctx context.Context, before snowflake.ID, limit int) ([]purge.Message, error) {
	time.Sleep(fakeDelay)
	var page []purge.Message
	for _, m := range f.msgs {
		if before != 0 && m.ID >= before {
			continue
		}
		page = append(page, m)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *FakeChat) Delete(ctx context.Context, id snowflake.ID) error {
	if rand.Intn(50) == 0 {
		return purge.ErrTransient
	}
	return nil
}

type FakeDiscord struct {
	chats map[snowflake.ID]*FakeChat
}

func newFakeDiscord(titles []string) *FakeDiscord {
	fd := &FakeDiscord{chats: make(map[snowflake.ID]*FakeChat, len(titles))}
	for _, title := range titles {
		id := snowflake.New(time.Now().Add(-time.Duration(rand.Intn(1e6)) * time.Second))
		fd.chats[id] = &FakeChat{
			id:    id,
			title: title,
			kind:  randKind(),
			msgs:  randHistory(),
		}
	}
	return fd
}

func randKind() purge.Kind {
	if rand.Int()%4 == 0 {
		return purge.KindGroup
	}
	return purge.KindDM
}

func randHistory() []purge.Message {
	n := rand.Intn(maxFakeMessages)
	msgs := make([]purge.Message, n)
	for i := range msgs {
		author := snowflake.ID(2)
		if rand.Intn(3) == 0 {
			author = self
		}
		msgs[i] = purge.Message{ID: snowflake.ID(1e6 + n - i), AuthorID: author}
	}
	return msgs
}

func (fd *FakeDiscord) Destinations(ctx context.Context) ([]discord.Entity, error) {
	var ret = make([]discord.Entity, 0, len(fd.chats))
	for _, c := range fd.chats {
		ret = append(ret, c)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Title() < ret[j].Title()
	})
	return ret, nil
}

func (fd *FakeDiscord) Resolve(ctx context.Context, kind purge.Kind, id snowflake.ID) (purge.Destination, error) {
	c, ok := fd.chats[id]
	if !ok {
		return nil, &purge.UnavailableError{Kind: kind, ID: id, Err: purge.ErrUnavailable}
	}
	return c, nil
}
