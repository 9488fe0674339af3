package quiz

type Phase string

const (
	PhaseWaiting  = Phase("waiting")
	PhaseStarting = Phase("starting")
	PhasePlaying  = Phase("playing")
	PhaseFinished = Phase("finished")
)

// Active reports whether a round controller is driving the room.
func (p Phase) Active() bool {
	return p == PhaseStarting || p == PhasePlaying
}
