package actorutil

import (
	"strings"

	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates switches an actor between named states. Stacked states
// (awaiting a reply) sit on top of the base state until unbecome.
type ActorWithStates struct {
	Behavior actor.Behavior
	names    []string
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func (s *ActorWithStates) Become(state ActorState) {
	s.names = []string{state.Name()}
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) BecomeStacked(state ActorState) {
	s.names = append(s.names, state.Name())
	s.Behavior.BecomeStacked(state.Receive)
}

func (s *ActorWithStates) UnbecomeStacked() {
	if len(s.names) > 0 {
		s.names = s.names[:len(s.names)-1]
	}
	s.Behavior.UnbecomeStacked()
}

// StateName is the name of the active state, "" before the first Become.
func (s *ActorWithStates) StateName() string {
	if len(s.names) == 0 {
		return ""
	}
	return s.names[len(s.names)-1]
}

// StatePath joins the base state and every stacked state, e.g.
// "standbyTransition/awaitStandbyWake".
func (s *ActorWithStates) StatePath() string {
	return strings.Join(s.names, "/")
}
