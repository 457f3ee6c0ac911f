package game

// State of a game session.
type State int

const (
	AwaitingFullDescription State = iota
	Idle
	Thinking
	MoveSubmitted
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingFullDescription:
		return "awaiting_full_description"
	case Idle:
		return "idle"
	case Thinking:
		return "thinking"
	case MoveSubmitted:
		return "move_submitted"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Colour the bot plays.
type Colour int

const (
	ColourUnset Colour = iota
	White
	Black
)

func (c Colour) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "unset"
	}
}

// ToMove reports whether colour is to move after moveCount plies.
func (c Colour) ToMove(moveCount int) bool {
	switch c {
	case White:
		return moveCount%2 == 0
	case Black:
		return moveCount%2 == 1
	default:
		return false
	}
}
