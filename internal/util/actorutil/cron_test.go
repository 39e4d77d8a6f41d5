package actorutil

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cronFired struct{}

func TestCronTimerNextFireTime(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(err)

	as := actor.NewActorSystem()
	defer as.Shutdown()

	timer, err := NewCronTimer(as.Root, "0 */5 * * * *", loc)
	require.NoError(err)

	next, err := timer.NextFireTime(time.Date(2025, 3, 1, 10, 2, 30, 0, loc))
	require.NoError(err)
	assert.True(next.Equal(time.Date(2025, 3, 1, 10, 5, 0, 0, loc)), next.String())

	next, err = timer.NextFireTime(time.Date(2025, 3, 1, 10, 55, 0, 0, loc))
	require.NoError(err)
	assert.True(next.Equal(time.Date(2025, 3, 1, 11, 0, 0, 0, loc)), next.String())
}

func TestCronTimerInvalidExpression(t *testing.T) {

	as := actor.NewActorSystem()
	defer as.Shutdown()

	_, err := NewCronTimer(as.Root, "every five minutes", time.UTC)
	assert.Error(t, err)
}

func TestCronTimerFires(t *testing.T) {

	require := require.New(t)

	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	fired := make(chan struct{}, 1)
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if _, ok := ctx.Message().(cronFired); ok {
			fired <- struct{}{}
		}
	}))

	timer, err := NewCronTimer(as.Root, "* * * * * *", time.UTC)
	require.NoError(err)
	_, err = timer.Next(pid, cronFired{}, time.Now())
	require.NoError(err)

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("cron timer did not fire")
	}
	timer.Stop()
}
