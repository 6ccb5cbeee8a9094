package tui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/rusq/wipemydiscord/internal/purge"
)

func (app *App) initConfirm(ctx context.Context) {
	app.pages.AddPage(stConfirming, app.view.mbConfirm, false, false)
	app.view.mbConfirm.
		AddButtons([]string{btnYes, btnNo}).
		SetDoneFunc(func(_ int, buttonLabel string) {
			app.handleConfirm(ctx, buttonLabel)
		}).
		SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			if event.Key() == tcell.KeyESC {
				app.cancel(ctx)
				return nil
			}
			return event
		})
}

func (app *App) handleConfirm(ctx context.Context, buttonLabel string) {
	switch buttonLabel {
	case btnYes:
		if !app.event(ctx, evConfirmed) {
			return
		}
		if err := app.startPurge(ctx); err != nil {
			app.error(err)
			app.event(ctx, evFinished)
		}
	case btnNo:
		app.cancel(ctx)
	}
}

// startPurge starts the purge of the destination stored in the FSM metadata
// in the background.  The run can be stopped with stopPurge.
func (app *App) startPurge(ctx context.Context) error {
	dst, err := metadata[purge.Destination](app.fsm, metaDest)
	if err != nil {
		return fmt.Errorf("destination missing: %s", err)
	}
	target, err := metadata[purge.Target](app.fsm, metaTarget)
	if err != nil {
		return fmt.Errorf("target missing: %s", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	app.mu.Lock()
	app.stop = cancel
	app.mu.Unlock()

	app.logf("Purging %s, target: %s, press [Esc] to stop", purge.Describe(dst), target)
	go app.runPurge(ctx, runCtx, dst, target)
	return nil
}

// runPurge runs the engine.  Progress goes to the status line, the summary
// goes to the log, once per run.
func (app *App) runPurge(ctx, runCtx context.Context, dst purge.Destination, target purge.Target) {
	n := purge.NewNotifier(func(text string) {
		app.queue(func() { app.status(text) })
	}, 0)
	res := app.eng.Run(runCtx, dst, target, n)
	n.Close()

	app.queue(func() {
		app.stopPurge()
		app.logf("%s: %s", purge.Describe(dst), res)
		if res.Deleted == 0 && res.Reason == purge.ReasonExhausted {
			app.event(ctx, evNothingToDo)
			return
		}
		app.event(ctx, evFinished)
	})
}
