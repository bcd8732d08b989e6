package display

import (
	"strconv"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/warning"
)

// KeyQuit closes the window.
const KeyQuit = ebiten.KeyQ

// Bindings maps keys to dashboard commands. D is resolved against the
// active warnings when pressed.
var Bindings = map[ebiten.Key]string{
	ebiten.KeyH: dashboard.CmdToggleHighBeam,
	ebiten.KeyM: dashboard.CmdToggleDrivingMode,
	ebiten.KeyR: dashboard.CmdResetTrip,
	ebiten.KeyD: dashboard.CmdDismissWarning,
}

// bindingOrder fixes the order commands fire in when keys land on the
// same frame.
var bindingOrder = []ebiten.Key{ebiten.KeyH, ebiten.KeyM, ebiten.KeyR, ebiten.KeyD}

// Command is one dispatched action with its arguments.
type Command struct {
	Name string
	Args []string
}

// Commands turns the keys pressed this frame into commands. Dismiss targets
// the first active warning and is dropped when none is active.
func Commands(justPressed func(ebiten.Key) bool, active []warning.Warning) []Command {
	var out []Command
	for _, k := range bindingOrder {
		if !justPressed(k) {
			continue
		}
		name := Bindings[k]
		if name == dashboard.CmdDismissWarning {
			if len(active) == 0 {
				continue
			}
			out = append(out, Command{Name: name, Args: []string{strconv.Itoa(active[0].ID)}})
			continue
		}
		out = append(out, Command{Name: name})
	}
	return out
}
