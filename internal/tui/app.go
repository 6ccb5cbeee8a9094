// Package tui is the interactive control surface: the list of conversations,
// the purge form, the log and the status line.
package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/looplab/fsm"
	"github.com/rivo/tview"
	"github.com/rusq/dlog"
	"github.com/rusq/osenv/v2"

	"github.com/rusq/wipemydiscord/internal/discord"
	"github.com/rusq/wipemydiscord/internal/purge"
	"github.com/rusq/wipemydiscord/internal/settings"
	"github.com/rusq/wipemydiscord/internal/waipu"
)

const (
	btnYes = "Yes"
	btnNo  = "No"
	btnOK  = "OK"
)

type App struct {
	tva *tview.Application
	dc  waipu.Discorder
	eng *purge.Engine
	st  *settings.Store
	log *dlog.Logger
	fsm *fsm.FSM

	// queue runs f on the event loop, it is the only way for the background
	// goroutines to touch the widgets.
	queue func(f func())

	mu   sync.Mutex
	stop context.CancelFunc // stops the running purge

	pages *tview.Pages
	view  views
}

type views struct {
	main      *tview.Flex
	mbConfirm *tview.Modal
	mbNothing *tview.Modal
	fmSearch  *tview.Form
	fmPurge   *tview.Form

	lvChats  *tview.List
	tvLog    *tview.TextView
	tvStatus *tview.TextView
}

func New(ctx context.Context, dc waipu.Discorder, eng *purge.Engine, st *settings.Store) *App {
	app := &App{
		tva: tview.NewApplication(),
		dc:  dc,
		eng: eng,
		st:  st,

		pages: tview.NewPages(),
		view: views{
			main:      tview.NewFlex(),
			mbConfirm: tview.NewModal(),
			mbNothing: tview.NewModal(),
			fmSearch:  tview.NewForm(),
			fmPurge:   tview.NewForm(),

			lvChats:  tview.NewList(),
			tvLog:    tview.NewTextView(),
			tvStatus: tview.NewTextView(),
		},
	}
	app.queue = func(f func()) { app.tva.QueueUpdateDraw(f) }
	app.log = dlog.New(app.view.tvLog, "", dlog.Flags(), osenv.Value("DEBUG", "") != "")

	app.initForm(ctx)
	app.initMain(ctx)
	app.initFind(ctx)
	app.initConfirm(ctx)
	app.initNothing(ctx)

	app.tva.SetInputCapture(app.handleKeystrokes)

	app.fsm = initFSM(app)
	app.status("Idle")

	return app
}

// Run shows the UI until the user quits or ctx is cancelled.
func (app *App) Run(ctx context.Context, dests []discord.Entity) error {
	app.view.tvLog.SetChangedFunc(func() { app.tva.Draw() })
	app.populateChatList(ctx, dests)

	go func() {
		<-ctx.Done()
		app.stopPurge()
		app.tva.Stop()
	}()

	if err := app.tva.SetRoot(app.pages, true).EnableMouse(false).Run(); err != nil {
		return err
	}
	app.stopPurge()
	return nil
}

func (app *App) logf(format string, a ...any) {
	app.log.Printf(format, a...)
}

func (app *App) error(err error) {
	app.log.Printf("ERROR: %s", err)
}

// status replaces the text of the status line.
func (app *App) status(text string) {
	app.view.tvStatus.SetText(text)
}

func (app *App) handleKeystrokes(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlQ, tcell.KeyF10:
		app.stopPurge()
		app.tva.Stop()
	case tcell.KeyESC:
		if !app.fsm.Is(stPurging) {
			return event
		}
		app.status("Stopping…")
		app.stopPurge()
	default:
		return event
	}
	return nil
}

// stopPurge cancels the running purge, if any.
func (app *App) stopPurge() {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.stop != nil {
		app.stop()
		app.stop = nil
	}
}

// cancel sends a evCancelled event.
func (app *App) cancel(ctx context.Context) {
	app.event(ctx, evCancelled)
}

// fail sends a evCancelled event, leaving the reason on the status line.
func (app *App) fail(ctx context.Context, reason string) {
	app.event(ctx, evCancelled, reason)
}

// event sends an event to FSM, will return true, if there were no errors.
func (app *App) event(ctx context.Context, event string, args ...any) bool {
	if err := app.fsm.Event(ctx, event, args...); err != nil {
		app.error(err)
		return false
	}
	return true
}

func (app *App) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(app.view.tvLog, format, a...)
}

// modal wraps a primitive in a modal box.
func modal(p tview.Primitive, width int, height int) tview.Primitive {
	return tview.NewGrid().
		SetColumns(0, width, 0).
		SetRows(0, height, 0).
		AddItem(p, 1, 1, 1, 1, 0, 0, true)
}
