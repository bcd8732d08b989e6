package dashboard

import (
	"fmt"
	"strconv"

	"github.com/motodash/cluster/internal/dispatcher"
)

// User action commands.
const (
	CmdResetTrip         = "reset_trip"
	CmdToggleHighBeam    = "toggle_high_beam"
	CmdToggleDrivingMode = "toggle_driving_mode"
	CmdDismissWarning    = "dismiss_warning"
)

// RegisterActions binds the user actions to d. Actions are applied
// synchronously so the next frame already reflects them.
func (e *Engine) RegisterActions(d *dispatcher.Dispatcher) {
	d.Register(CmdResetTrip, func(dispatcher.Event) (any, error) {
		e.ResetTrip()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(CmdToggleHighBeam, func(dispatcher.Event) (any, error) {
		e.ToggleHighBeam()
		return e.Telemetry().HighBeamOn, nil
	}, dispatcher.Logged())

	d.Register(CmdToggleDrivingMode, func(dispatcher.Event) (any, error) {
		return e.ToggleDrivingMode().String(), nil
	}, dispatcher.Logged())

	d.Register(CmdDismissWarning, func(ev dispatcher.Event) (any, error) {
		if len(ev.Args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", CmdDismissWarning, len(ev.Args))
		}
		id, err := strconv.Atoi(ev.Args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid warning id %q: %w", ev.Args[0], err)
		}
		return e.DismissWarning(id), nil
	}, dispatcher.Logged())
}
