package graph

import "fmt"

// Turn is the movement a signal controls.
type Turn int

const (
	TurnLeft Turn = iota
	TurnStraight
	TurnRight
)

func (t Turn) String() string {
	switch t {
	case TurnLeft:
		return "left"
	case TurnStraight:
		return "straight"
	case TurnRight:
		return "right"
	}
	return fmt.Sprintf("turn(%d)", int(t))
}

// Valid reports whether t is one of the three known turns.
func (t Turn) Valid() bool { return t >= TurnLeft && t <= TurnRight }

// Light is the colour shown by a signal.
type Light int

const (
	Red Light = iota
	Green
	Yellow
)

func (l Light) String() string {
	switch l {
	case Red:
		return "red"
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	}
	return fmt.Sprintf("light(%d)", int(l))
}

// Signal controls the movement from one inbound road to one outbound road.
type Signal struct {
	ID   int
	From int // inbound road
	To   int // outbound road
	Turn Turn

	State Light
}

func newSignal(id, from, to int, turn Turn) *Signal {
	s := &Signal{ID: id, From: from, To: to, Turn: turn, State: Red}
	if turn == TurnRight {
		s.State = Green
	}
	return s
}
