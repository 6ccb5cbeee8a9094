package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusq/wipemydiscord/internal/discord"
	"github.com/rusq/wipemydiscord/internal/purge"
	"github.com/rusq/wipemydiscord/internal/settings"
)

const self snowflake.ID = 42

type fakeDest struct {
	id    snowflake.ID
	title string
	kind  purge.Kind

	mu      sync.Mutex
	msgs    []purge.Message // newest first
	deleted []snowflake.ID
	block   chan struct{} // if set, ListPage waits for it
}

func (d *fakeDest) ID() snowflake.ID { return d.id }
func (d *fakeDest) Title() string { return d.title }
func (d *fakeDest) Kind() purge.Kind { return d.kind }

func (d *fakeDest) ListPage(ctx context.Context, before snowflake.ID, limit int) ([]purge.Message, error) {
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var page []purge.Message
	for _, m := range d.msgs {
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

func (d *fakeDest) Delete(_ context.Context, id snowflake.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, id)
	return nil
}

func (d *fakeDest) deletedIDs() []snowflake.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]snowflake.ID(nil), d.deleted...)
}

// history returns n messages, every third one authored by self.
func history(n int) []purge.Message {
	msgs := make([]purge.Message, n)
	for i := range msgs {
		author := snowflake.ID(1)
		if i%3 == 0 {
			author = self
		}
		msgs[i] = purge.Message{ID: snowflake.ID(5000 - i), AuthorID: author}
	}
	return msgs
}

type fakeDiscord struct {
	dests map[snowflake.ID]*fakeDest
}

func (f *fakeDiscord) Destinations(context.Context) ([]discord.Entity, error) {
	var ret []discord.Entity
	for _, d := range f.dests {
		ret = append(ret, d)
	}
	return ret, nil
}

func (f *fakeDiscord) Resolve(_ context.Context, kind purge.Kind, id snowflake.ID) (purge.Destination, error) {
	if d, ok := f.dests[id]; ok {
		return d, nil
	}
	return nil, &purge.UnavailableError{Kind: kind, ID: id, Err: errors.New("404 Not Found")}
}

// loop stands in for the tview event loop.
type loop chan func()

func (l loop) queue(f func()) {
	l <- f
}

// until runs the queued functions until cond is true.
func (l loop) until(t *testing.T, cond func() bool) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for !cond() {
		select {
		case f := <-l:
			f()
		case <-timeout:
			t.Fatal("timed out")
		}
	}
}

func newTestApp(t *testing.T, dc *fakeDiscord) (*App, loop) {
	t.Helper()
	st := &settings.Store{Path: filepath.Join(t.TempDir(), "settings.dat")}
	eng := purge.New(self, purge.WithDelays(0, 0, 0))
	app := New(context.Background(), dc, eng, st)
	l := make(loop)
	app.queue = l.queue
	return app, l
}

func (app *App) logText() string {
	return app.view.tvLog.GetText(true)
}

func (app *App) statusText() string {
	return app.view.tvStatus.GetText(true)
}

func TestApp_purge(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 100, title: "#general", kind: purge.KindChannel, msgs: history(9)}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{100: dst}})

	app.setInput(lblChannel, "100")
	app.setInput(lblAmount, "2")
	app.handlePurge(ctx, purge.KindChannel)
	assert.Equal(t, stResolving, app.fsm.Current())

	l.until(t, func() bool { return app.fsm.Is(stConfirming) })
	app.handleConfirm(ctx, btnYes)
	assert.Equal(t, stPurging, app.fsm.Current())

	l.until(t, func() bool { return app.fsm.Is(stIdle) })
	assert.Equal(t, []snowflake.ID{5000, 4997}, dst.deletedIDs())
	assert.Equal(t, "Done • Deleted 2 of 4 scanned", app.statusText())
	assert.Equal(t, 1, strings.Count(app.logText(), "deleted 2 of 4 scanned (target reached)"))

	s, err := app.st.Load()
	require.NoError(t, err)
	assert.Equal(t, settings.Text("100"), s.ChannelID)
	assert.Equal(t, settings.Text("2"), s.Limit)
}

func TestApp_purgeAll(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 7, title: "alice", kind: purge.KindDM, msgs: history(9)}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{7: dst}})

	app.setInput(lblDM, "7")
	app.view.fmPurge.GetFormItemByLabel(lblAll).(*tview.Checkbox).SetChecked(true)
	app.handlePurge(ctx, purge.KindDM)
	l.until(t, func() bool { return app.fsm.Is(stConfirming) })
	app.handleConfirm(ctx, btnYes)
	l.until(t, func() bool { return app.fsm.Is(stIdle) })

	assert.Equal(t, []snowflake.ID{5000, 4997, 4994}, dst.deletedIDs())
	s, err := app.st.Load()
	require.NoError(t, err)
	assert.True(t, s.DeleteAll)
	assert.Equal(t, settings.Text("7"), s.DMID)
}

func TestApp_confirmDeclined(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 100, msgs: history(3)}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{100: dst}})

	app.setInput(lblGroup, "100")
	app.handlePurge(ctx, purge.KindGroup)
	l.until(t, func() bool { return app.fsm.Is(stConfirming) })
	app.handleConfirm(ctx, btnNo)

	assert.Equal(t, stIdle, app.fsm.Current())
	assert.Empty(t, dst.deletedIDs())
	assert.Contains(t, app.logText(), "Operation cancelled")
}

func TestApp_nothingToDelete(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 100, msgs: []purge.Message{{ID: 10, AuthorID: 1}}}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{100: dst}})

	app.setInput(lblChannel, "100")
	app.handlePurge(ctx, purge.KindChannel)
	l.until(t, func() bool { return app.fsm.Is(stConfirming) })
	app.handleConfirm(ctx, btnYes)
	l.until(t, func() bool { return app.fsm.Is(stNothing) })

	app.cancel(ctx)
	assert.Equal(t, stIdle, app.fsm.Current())
}

func TestApp_unavailable(t *testing.T) {
	ctx := context.Background()
	app, l := newTestApp(t, &fakeDiscord{})

	app.setInput(lblChannel, "555")
	app.handlePurge(ctx, purge.KindChannel)
	l.until(t, func() bool { return app.fsm.Is(stIdle) })
	assert.Contains(t, app.logText(), "could not locate server channel 555")
	assert.NotContains(t, app.logText(), "Operation cancelled")
	assert.Equal(t, "Could not locate server channel 555.", app.statusText())
}

func TestApp_busy(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		state string
		want  string
	}{
		{stResolving, "Still looking up the previous destination, please wait."},
		{stConfirming, "Answer the confirmation first."},
		{stPurging, "A purge is already running."},
		{stSearching, "Finish the search first."},
		{stNothing, "Close the message box first."},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			app, _ := newTestApp(t, &fakeDiscord{})
			app.setInput(lblChannel, "100")
			app.fsm.SetState(tt.state)

			app.handlePurge(ctx, purge.KindChannel)
			assert.Equal(t, tt.want, app.statusText())
			assert.Equal(t, tt.state, app.fsm.Current())
		})
	}
}

func Test_resolveFailure(t *testing.T) {
	unavailable := &purge.UnavailableError{Kind: purge.KindGroup, ID: 9, Err: errors.New("404 Not Found")}
	assert.Equal(t, "Could not locate group chat 9.", resolveFailure(purge.KindGroup, 9, unavailable))
	assert.Equal(t, "Failed to open direct message 9: boom", resolveFailure(purge.KindDM, 9, errors.New("boom")))
}

func TestApp_invalidInput(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &fakeDiscord{})

	app.handlePurge(ctx, purge.KindDM)
	assert.Equal(t, stIdle, app.fsm.Current())
	assert.Equal(t, "Enter a valid direct message ID.", app.statusText())
}

func TestApp_invalidAmount(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 100, msgs: history(3)}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{100: dst}})

	app.setInput(lblChannel, "100")
	app.setInput(lblAmount, "lots")
	app.handlePurge(ctx, purge.KindChannel)
	l.until(t, func() bool { return app.fsm.Is(stConfirming) })

	assert.Contains(t, app.logText(), `Amount "lots": numbers only, using 100`)
	target, err := metadata[purge.Target](app.fsm, metaTarget)
	require.NoError(t, err)
	assert.Equal(t, purge.Bounded(purge.DefaultLimit), target)
	app.cancel(ctx)
}

func TestApp_oneRunAtATime(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 100, msgs: history(3), block: make(chan struct{})}
	other := &fakeDest{id: 200, msgs: history(3)}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{100: dst, 200: other}})

	app.setInput(lblChannel, "100")
	app.setInput(lblGroup, "200")
	app.handlePurge(ctx, purge.KindChannel)
	l.until(t, func() bool { return app.fsm.Is(stConfirming) })
	app.handleConfirm(ctx, btnYes)
	require.Equal(t, stPurging, app.fsm.Current())

	app.handlePurge(ctx, purge.KindGroup)
	assert.Equal(t, "A purge is already running.", app.statusText())
	assert.Equal(t, stPurging, app.fsm.Current())

	close(dst.block)
	l.until(t, func() bool { return app.fsm.Is(stIdle) })
	assert.Len(t, dst.deletedIDs(), 1)
	assert.Empty(t, other.deletedIDs())
}

func TestApp_stop(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 100, msgs: history(3), block: make(chan struct{})}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{100: dst}})

	app.setInput(lblChannel, "100")
	app.handlePurge(ctx, purge.KindChannel)
	l.until(t, func() bool { return app.fsm.Is(stConfirming) })
	app.handleConfirm(ctx, btnYes)

	app.stopPurge()
	l.until(t, func() bool { return app.fsm.Is(stIdle) })
	assert.Empty(t, dst.deletedIDs())
	assert.Contains(t, app.logText(), "(cancelled)")
}

func TestApp_settingsRestored(t *testing.T) {
	dir := t.TempDir()
	st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}
	require.NoError(t, st.Save(settings.Settings{ChannelID: "1", DMID: "2", GroupID: "3", Limit: "50", DeleteAll: true}))

	app := New(context.Background(), &fakeDiscord{}, purge.New(self), st)
	assert.Equal(t, "1", app.inputText(lblChannel))
	assert.Equal(t, "2", app.inputText(lblDM))
	assert.Equal(t, "3", app.inputText(lblGroup))
	assert.Equal(t, "50", app.inputText(lblAmount))
	assert.True(t, app.checked(lblAll))

	// typing saves
	app.setInput(lblGroup, "33")
	s, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, settings.Text("33"), s.GroupID)
}

func TestApp_findChat(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &fakeDiscord{})
	app.populateChatList(ctx, []discord.Entity{
		&fakeDest{id: 1, title: "alice", kind: purge.KindDM},
		&fakeDest{id: 2, title: "bob, carol", kind: purge.KindGroup},
	})

	require.True(t, app.event(ctx, evSearch))
	app.findChat(ctx, "carol")
	assert.Equal(t, stIdle, app.fsm.Current())
	assert.Equal(t, 1, app.view.lvChats.GetCurrentItem())

	require.True(t, app.event(ctx, evSearch))
	app.findChat(ctx, "dave")
	assert.Equal(t, stIdle, app.fsm.Current())
	assert.Contains(t, app.logText(), `search term not found: "dave"`)
}

func TestApp_handleChats(t *testing.T) {
	ctx := context.Background()
	dst := &fakeDest{id: 2, title: "bob, carol", kind: purge.KindGroup, msgs: history(3)}
	dests := []discord.Entity{
		&fakeDest{id: 1, title: "alice", kind: purge.KindDM},
		dst,
	}
	app, l := newTestApp(t, &fakeDiscord{dests: map[snowflake.ID]*fakeDest{2: dst}})
	app.populateChatList(ctx, dests)

	app.view.lvChats.SetCurrentItem(1)
	app.handleChats(ctx, dests)
	assert.Equal(t, "2", app.inputText(lblGroup))
	l.until(t, func() bool { return app.fsm.Is(stConfirming) })
	app.cancel(ctx)
}

func Test_initFSM(t *testing.T) {
	app, _ := newTestApp(t, &fakeDiscord{})
	tests := []struct {
		state  string
		can    []string
		cannot []string
	}{
		{stIdle, []string{evSelected, evSearch}, []string{evConfirmed, evFinished, evCancelled}},
		{stResolving, []string{evResolved, evCancelled}, []string{evSelected, evConfirmed}},
		{stConfirming, []string{evConfirmed, evCancelled}, []string{evSelected, evFinished}},
		{stPurging, []string{evFinished, evNothingToDo}, []string{evSelected, evCancelled, evSearch}},
		{stNothing, []string{evCancelled}, []string{evSelected}},
		{stSearching, []string{evLocate, evCancelled}, []string{evSelected}},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			app.fsm.SetState(tt.state)
			for _, ev := range tt.can {
				assert.True(t, app.fsm.Can(ev), ev)
			}
			for _, ev := range tt.cannot {
				assert.False(t, app.fsm.Can(ev), ev)
			}
		})
	}
}

func Test_visualise(t *testing.T) {
	app, _ := newTestApp(t, &fakeDiscord{})
	filename := filepath.Join(t.TempDir(), "fsm.dot")
	visualise(app.fsm, filename)
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), stPurging)
}
