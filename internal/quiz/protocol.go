package quiz

import (
	"fmt"
	"strconv"
	"strings"

	"mathrace/internal/players"
	"mathrace/internal/problems"
)

// Server to client frames.
const (
	MsgWaitingForHost = "INFO: Waiting for host to start the game."
	MsgStartGo        = "START: GO"
	MsgTimeUp         = "FINISH: Time's up!"
)

func ProblemMessage(p problems.Problem) string {
	return "PROBLEM: " + p.Prompt
}

// ProgressMessage renders the scoreboard in the given order.
func ProgressMessage(standings []players.Standing) string {
	parts := make([]string, 0, len(standings))
	for _, s := range standings {
		parts = append(parts, fmt.Sprintf("%s: %d", s.Name, s.Score))
	}
	return "PROGRESS: " + strings.Join(parts, ", ")
}

func CountdownMessage(n int) string {
	return fmt.Sprintf("COUNTDOWN: %d", n)
}

func TimerMessage(remaining int) string {
	return fmt.Sprintf("TIMER: %d", remaining)
}

type CommandKind int

const (
	CommandIgnored CommandKind = iota
	CommandStart
	CommandAnswer
)

type Command struct {
	Kind  CommandKind
	Value int
}

// ParseCommand reads one client text frame. Anything that is neither START
// nor an integer is ignored.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if text == "START" {
		return Command{Kind: CommandStart}
	}
	if v, err := strconv.Atoi(text); err == nil {
		return Command{Kind: CommandAnswer, Value: v}
	}
	return Command{Kind: CommandIgnored}
}
