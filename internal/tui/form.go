package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rusq/wipemydiscord/internal/purge"
	"github.com/rusq/wipemydiscord/internal/settings"
)

const (
	lblAmount  = "Amount"
	lblAll     = "Delete ALL"
	lblChannel = "Channel ID"
	lblDM      = "DM ID"
	lblGroup   = "Group ID"

	btnChannel = "Purge channel"
	btnDM      = "Purge DM"
	btnGroup   = "Purge group"

	idWidth = 22
)

// initForm builds the purge form, filling it with the saved settings.
func (app *App) initForm(ctx context.Context) {
	s, err := app.st.Load()
	if err != nil {
		app.logf("Failed to load settings, using defaults: %s", err)
	}

	app.view.fmPurge.
		AddInputField(lblAmount, s.Limit.String(), 8, nil, func(text string) {
			app.save(func(s *settings.Settings) { s.Limit = settings.Text(text) })
		}).
		AddCheckbox(lblAll, s.DeleteAll, func(checked bool) {
			app.save(func(s *settings.Settings) { s.DeleteAll = checked })
		}).
		AddInputField(lblChannel, s.ChannelID.String(), idWidth, acceptID, func(text string) {
			app.save(func(s *settings.Settings) { s.ChannelID = settings.Text(text) })
		}).
		AddInputField(lblDM, s.DMID.String(), idWidth, acceptID, func(text string) {
			app.save(func(s *settings.Settings) { s.DMID = settings.Text(text) })
		}).
		AddInputField(lblGroup, s.GroupID.String(), idWidth, acceptID, func(text string) {
			app.save(func(s *settings.Settings) { s.GroupID = settings.Text(text) })
		}).
		AddButton(btnChannel, func() { app.handlePurge(ctx, purge.KindChannel) }).
		AddButton(btnDM, func() { app.handlePurge(ctx, purge.KindDM) }).
		AddButton(btnGroup, func() { app.handlePurge(ctx, purge.KindGroup) }).
		SetCancelFunc(func() { app.tva.SetFocus(app.view.lvChats) }).
		SetFieldBackgroundColor(tcell.ColorDarkSlateGray).
		SetButtonBackgroundColor(tcell.Color190).
		SetButtonTextColor(tcell.ColorBlack).
		SetBorder(true).
		SetTitle("[ Purge ]")
}

// acceptID allows digits only.
func acceptID(_ string, ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func idLabel(kind purge.Kind) string {
	switch kind {
	case purge.KindDM:
		return lblDM
	case purge.KindGroup:
		return lblGroup
	default:
		return lblChannel
	}
}

func (app *App) inputText(label string) string {
	if f, ok := app.view.fmPurge.GetFormItemByLabel(label).(*tview.InputField); ok {
		return f.GetText()
	}
	return ""
}

func (app *App) setInput(label, text string) {
	if f, ok := app.view.fmPurge.GetFormItemByLabel(label).(*tview.InputField); ok {
		f.SetText(text)
	}
}

func (app *App) checked(label string) bool {
	if f, ok := app.view.fmPurge.GetFormItemByLabel(label).(*tview.Checkbox); ok {
		return f.IsChecked()
	}
	return false
}

func (app *App) save(fn func(s *settings.Settings)) {
	if err := app.st.Update(fn); err != nil {
		app.logf("Failed to save settings: %s", err)
	}
}

// handlePurge validates the form and starts resolving the destination of the
// given kind.  It is refused unless the UI is idle.
func (app *App) handlePurge(ctx context.Context, kind purge.Kind) {
	if !app.fsm.Is(stIdle) {
		app.status(busyText(app.fsm.Current()))
		return
	}

	raw := strings.TrimSpace(app.inputText(idLabel(kind)))
	id, err := snowflake.Parse(raw)
	if err != nil || id == 0 {
		app.status(fmt.Sprintf("Enter a valid %s ID.", kind))
		return
	}
	amount, all := app.inputText(lblAmount), app.checked(lblAll)
	target, err := purge.LimitField(amount, all)
	if err != nil {
		app.logf("Amount %q: %s, using %s", amount, err, target)
	}
	app.save(func(s *settings.Settings) {
		s.Limit = settings.Text(amount)
		s.DeleteAll = all
		switch kind {
		case purge.KindDM:
			s.DMID = settings.Text(raw)
		case purge.KindGroup:
			s.GroupID = settings.Text(raw)
		default:
			s.ChannelID = settings.Text(raw)
		}
	})

	if !app.event(ctx, evSelected) {
		return
	}
	app.status(fmt.Sprintf("Resolving %s %s…", kind, id))
	go app.resolve(ctx, kind, id, target)
}

func (app *App) resolve(ctx context.Context, kind purge.Kind, id snowflake.ID, target purge.Target) {
	dst, err := app.dc.Resolve(ctx, kind, id)
	app.queue(func() {
		if err != nil {
			app.error(err)
			app.fail(ctx, resolveFailure(kind, id, err))
			return
		}
		app.fsm.SetMetadata(metaDest, dst)
		app.fsm.SetMetadata(metaTarget, target)
		app.view.mbConfirm.SetText(confirmText(dst, target))
		if !app.event(ctx, evResolved) {
			app.cancel(ctx)
		}
	})
}

// busyText explains why a purge can't be started in the state.
func busyText(state string) string {
	switch state {
	case stPurging:
		return "A purge is already running."
	case stResolving:
		return "Still looking up the previous destination, please wait."
	case stConfirming:
		return "Answer the confirmation first."
	case stSearching:
		return "Finish the search first."
	case stNothing:
		return "Close the message box first."
	default:
		return "Busy, try again."
	}
}

// resolveFailure is the status line text for a destination that can't be
// opened.
func resolveFailure(kind purge.Kind, id snowflake.ID, err error) string {
	if errors.Is(err, purge.ErrUnavailable) {
		return fmt.Sprintf("Could not locate %s %s.", kind, id)
	}
	return fmt.Sprintf("Failed to open %s %s: %s", kind, id, err)
}

func confirmText(dst purge.Destination, target purge.Target) string {
	if n, bounded := target.Limit(); bounded {
		return fmt.Sprintf("Delete up to %d of your messages in %q?", n, purge.Describe(dst))
	}
	return fmt.Sprintf("Delete ALL of your messages in %q?", purge.Describe(dst))
}
