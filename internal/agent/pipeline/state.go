package pipeline

// State is a step of one request. Done, Error and Busy are final.
type State string

const (
	StateIdle            State = "idle"
	StateAcquiring       State = "acquiring"
	StateBuildingPrompt  State = "building_prompt"
	StateCallingAPI      State = "calling_api"
	StateUpdatingHistory State = "updating_history"
	StateEmitting        State = "emitting"
	StateDone            State = "done"
	StateError           State = "error"
	StateBusy            State = "busy"
)

// Final reports whether no further transition follows s.
func (s State) Final() bool {
	switch s {
	case StateDone, StateError, StateBusy:
		return true
	}
	return false
}
