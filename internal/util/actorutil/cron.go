package actorutil

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/quartz"
)

// CronTimer sends a message to an actor on every fire time of a cron
// expression (seconds field first, quartz syntax). Each firing schedules the
// next one, so the actor must call Next after handling the message.
type CronTimer struct {
	trigger *quartz.CronTrigger
	timer   *scheduler.TimerScheduler
	cancel  scheduler.CancelFunc
}

func NewCronTimer(ctx actor.SenderContext, expression string, loc *time.Location) (*CronTimer, error) {
	if loc == nil {
		loc = time.Local
	}
	trigger, err := quartz.NewCronTriggerWithLoc(expression, loc)
	if err != nil {
		return nil, err
	}
	return &CronTimer{
		trigger: trigger,
		timer:   scheduler.NewTimerScheduler(ctx),
	}, nil
}

// NextFireTime returns the first fire time strictly after t.
func (c *CronTimer) NextFireTime(t time.Time) (time.Time, error) {
	next, err := c.trigger.NextFireTime(t.UnixNano())
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, next), nil
}

// Next arms the timer for the next fire time after now and returns it.
func (c *CronTimer) Next(pid *actor.PID, msg any, now time.Time) (time.Time, error) {
	c.Stop()
	next, err := c.NextFireTime(now)
	if err != nil {
		return time.Time{}, err
	}
	c.cancel = c.timer.RequestOnce(next.Sub(now), pid, msg)
	return next, nil
}

func (c *CronTimer) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
