package actorutil

import (
	"testing"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
)

type namedState struct {
	name string
}

func (s namedState) Name() string {
	return s.name
}

func (s namedState) Receive(actor.Context) {
}

func TestActorWithStatesTracksNames(t *testing.T) {
	assert := assert.New(t)
	s := &ActorWithStates{Behavior: actor.NewBehavior()}
	assert.Equal("", s.StateName())

	s.Become(namedState{name: "running"})
	s.BecomeStacked(namedState{name: "awaitTelemetry"})
	assert.Equal("awaitTelemetry", s.StateName())
	assert.Equal("running/awaitTelemetry", s.StatePath())

	s.UnbecomeStacked()
	assert.Equal("running", s.StateName())

	// become drops every stacked state
	s.BecomeStacked(namedState{name: "awaitCommand"})
	s.Become(namedState{name: "standbyTransition"})
	assert.Equal("standbyTransition", s.StatePath())
}
