package actor

import (
	"testing"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/util"
	"github.com/berfenger/zenschedule/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(500 * time.Millisecond)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.Equal(t, domain.ACTOR_ID_MQTT, resp.Id)
	assert.True(t, resp.Healthy)

	es.Publish(domain.NewFloatSensorUpdate(domain.SENSOR_ID_SETPOINT, 245, 0))
	es.Publish(domain.NewBinarySensorUpdate(domain.SENSOR_ID_AT_MAX_SOC, true))
	es.Publish(domain.NewTextSensorUpdate(domain.SENSOR_ID_ACTIVITY, string(domain.ACTIVITY_ACTIVE)))

	es.Publish(domain.NewBridgeStateUpdate(true))

	pub := domain.PublishDiscoveryRequest{
		ActorRequestMixIn: domain.ActorRequestMixIn{ReplyToRef: &domain.ActorRef{}},
		Sensors:           domain.BridgeSensors(domain.BridgeDevice("zenschedule")),
	}
	result, err = context.RequestFuture(pid, pub, 2*time.Second).Result()
	assert.NoError(t, err)
	_, ok = result.(domain.PublishDiscoveryResponse)
	assert.True(t, ok)

	context.Stop(pid)

	time.Sleep(200 * time.Millisecond)

	as.Shutdown()
}
