package tui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rusq/wipemydiscord/internal/discord"
)

const infoText = "[Ctrl+Q]/[F10] quit, [Tab] form, [Esc] back or stop the purge, [Ctrl+F] or [/] search"

func (app *App) initMain(context.Context) {
	app.view.lvChats.
		SetHighlightFullLine(true).
		SetSelectedBackgroundColor(tcell.Color190).
		SetSelectedTextColor(tcell.ColorBlack).
		SetMainTextColor(tcell.Color190).
		ShowSecondaryText(true).
		SetBorder(true).
		SetInputCapture(app.chatInputCapture).
		SetTitle("[ Conversations ]")

	app.view.tvLog.
		SetWordWrap(true).
		SetScrollable(true).
		SetBorder(true).
		SetTitle("[ Information ]")

	app.view.tvStatus.
		SetDynamicColors(false).
		SetWrap(false).
		SetTextColor(tcell.Color190)

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(app.view.fmPurge, 15, 0, false).
		AddItem(app.view.tvLog, 0, 1, false)

	workspace := tview.NewFlex().
		AddItem(app.view.lvChats, 0, 30, true).
		AddItem(right, 0, 70, false)

	// The bottom rows are the status line and the help message
	info := tview.NewTextView().
		SetDynamicColors(false).
		SetWrap(false).
		SetTextAlign(tview.AlignCenter).
		SetTextColor(tcell.ColorRed).
		SetText(infoText)

	app.view.main.
		SetDirection(tview.FlexRow).
		AddItem(workspace, 0, 1, true).
		AddItem(app.view.tvStatus, 1, 1, false).
		AddItem(info, 1, 1, false)

	app.pages.AddPage(stIdle, app.view.main, true, true)
}

func (app *App) populateChatList(ctx context.Context, dests []discord.Entity) {
	for _, d := range dests {
		app.view.lvChats.AddItem(
			d.Title(),
			fmt.Sprintf("  %s (%s)", d.Kind(), d.ID()),
			0,
			func() { app.handleChats(ctx, dests) },
		)
	}
	app.printf("%d conversations loaded, server channels are purged by ID.\n", len(dests))
}

// handleChats puts the ID of the selected conversation into the form and
// starts the purge.
func (app *App) handleChats(ctx context.Context, dests []discord.Entity) {
	idx := app.view.lvChats.GetCurrentItem()
	if idx < 0 || idx >= len(dests) {
		return
	}
	selected := dests[idx]
	kind := selected.Kind()
	if !app.fsm.Is(stIdle) {
		app.status(busyText(app.fsm.Current()))
		return
	}
	app.setInput(idLabel(kind), selected.ID().String())
	app.handlePurge(ctx, kind)
}

func (app *App) chatInputCapture(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyTab:
		app.tva.SetFocus(app.view.fmPurge)
		return nil
	case tcell.KeyCtrlF:
		if !app.event(context.Background(), evSearch) {
			return event
		}
	case tcell.KeyRune:
		switch event.Rune() {
		case '/':
			if !app.event(context.Background(), evSearch) {
				return event
			}
			return nil
		}
	}
	return event
}
