package tui

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/looplab/fsm"
)

type machine struct {
	app *App
	fsm *fsm.FSM
}

const (
	// events
	evSelected    = "selected"
	evResolved    = "resolved"
	evConfirmed   = "confirmed"
	evFinished    = "finished"
	evNothingToDo = "nothing_to_do"
	evCancelled   = "cancelled"
	evSearch      = "search"
	evLocate      = "locate"

	// states
	stIdle       = "idle"
	stResolving  = "resolving"
	stConfirming = "confirming"
	stPurging    = "purging"
	stSearching  = "searching"
	stNothing    = "nothing"

	// metadata
	metaDest   = "destination"
	metaTarget = "target"
)

// initFSM creates the state machine of the UI.  Only the idle state accepts
// a new purge, so the machine also guarantees that there is at most one purge
// running at any time.
func initFSM(app *App) *fsm.FSM {
	m := machine{app: app}
	sm := fsm.NewFSM(
		stIdle,
		fsm.Events{
			{Name: evSelected, Src: []string{stIdle}, Dst: stResolving},
			{Name: evResolved, Src: []string{stResolving}, Dst: stConfirming},
			{Name: evConfirmed, Src: []string{stConfirming}, Dst: stPurging},
			{Name: evFinished, Src: []string{stPurging}, Dst: stIdle},
			{Name: evNothingToDo, Src: []string{stPurging}, Dst: stNothing},
			// search
			{Name: evSearch, Src: []string{stIdle}, Dst: stSearching},
			{Name: evLocate, Src: []string{stSearching}, Dst: stIdle},
			// cancel
			{Name: evCancelled, Src: []string{stResolving, stConfirming, stNothing, stSearching}, Dst: stIdle},
		},
		fsm.Callbacks{
			m.enter("state"): func(_ context.Context, e *fsm.Event) {
				m.app.log.Debugf("*** transition: %q -> %q\n", e.Src, e.Dst)
				m.app.pages.ShowPage(e.Dst)
			},
			// states
			m.leave(stConfirming): m.hidePage,
			m.leave(stNothing):    m.hidePage,
			m.leave(stSearching):  m.hidePage,
			m.leave(stPurging):    m.leavePurging,
			// events
			m.after(evCancelled): m.afterCancelled,
		},
	)
	m.fsm = sm

	return m.fsm
}

func (*machine) leave(state string) string {
	return "leave_" + state
}

func (*machine) enter(state string) string {
	return "enter_" + state
}

func (*machine) after(event string) string {
	return "after_" + event
}

//
// States
//

func (m *machine) hidePage(_ context.Context, e *fsm.Event) {
	m.app.pages.HidePage(e.Src)
}

func (m *machine) leavePurging(context.Context, *fsm.Event) {
	m.cleanUp()
}

//
// Events
//

// afterCancelled takes an optional reason, which replaces the status line.
func (m *machine) afterCancelled(_ context.Context, e *fsm.Event) {
	m.cleanUp()
	if reason, ok := eventValue[string](e, 0); ok {
		m.app.status(reason)
		return
	}
	m.app.logf("Operation cancelled")
	m.app.status("Idle")
}

func (m *machine) cleanUp() {
	m.fsm.SetMetadata(metaDest, nil)
	m.fsm.SetMetadata(metaTarget, nil)
}

// eventValue allows to get an event value at idx.
func eventValue[T any](e *fsm.Event, idx int) (T, bool) {
	var ret T
	if len(e.Args)-1 < idx {
		return ret, false
	}
	ret, ok := e.Args[idx].(T)
	if !ok {
		return ret, false
	}
	return ret, true
}

func metadata[T any](fsm *fsm.FSM, key string) (T, error) {
	var ret T
	val, ok := fsm.Metadata(key)
	if !ok || val == nil {
		return ret, fmt.Errorf("value of type %T not present in metadata", ret)
	}
	ret, ok = val.(T)
	if !ok {
		return ret, fmt.Errorf("invalid type (metadata: %T, want %T)", val, ret)
	}
	return ret, nil
}

// visualise writes the graph of the state machine, for debugging.
func visualise(m *fsm.FSM, filename string) {
	if err := os.WriteFile(filename, []byte(fsm.Visualize(m)), 0666); err != nil {
		log.Panicf("error writing fsm: %s", err)
	}
}
