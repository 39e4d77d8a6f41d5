package mqtt

import (
	"fmt"
	"testing"

	"github.com/berfenger/zenschedule/internal/config"
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	topic   string
	payload string
}

func (m testMessage) Duplicate() bool   { return false }
func (m testMessage) Qos() byte         { return 1 }
func (m testMessage) Retained() bool    { return false }
func (m testMessage) Topic() string     { return m.topic }
func (m testMessage) MessageID() uint16 { return 0 }
func (m testMessage) Payload() []byte   { return []byte(m.payload) }
func (m testMessage) Ack()              {}

var testClient = NewMQTTClient(nil, config.MQTTConfig{BaseTopic: "zenschedule"})

func TestParseMQTTCommand(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	cmd, err := testClient.ParseMQTTCommand(testMessage{topic: "zenschedule/switch/auto_mode/command", payload: "on"})
	require.NoError(err)
	assert.Equal(MQTT_COMMAND_SWITCH, cmd.Command)
	assert.Equal("auto_mode", cmd.EntityId)
	assert.Equal("on", cmd.Payload)

	cmd, err = testClient.ParseMQTTCommand(testMessage{topic: "zenschedule/number/power_override/set", payload: "-250"})
	require.NoError(err)
	assert.Equal(MQTT_COMMAND_NUMBER, cmd.Command)
	assert.Equal("power_override", cmd.EntityId)
	assert.Equal("-250", cmd.Payload)

	cmd, err = testClient.ParseMQTTCommand(testMessage{topic: "zenschedule/command", payload: " netzero+\n"})
	require.NoError(err)
	assert.Equal(MQTT_COMMAND_OPERATOR, cmd.Command)
	assert.Equal("", cmd.EntityId)
	assert.Equal("netzero+", cmd.Payload)
}

func TestParseMQTTCommandInvalid(t *testing.T) {

	assert := assert.New(t)

	_, err := testClient.ParseMQTTCommand(testMessage{topic: "zenschedule/number/power_override/set", payload: "lots"})
	assert.Error(err, "non numeric payload")
	assert.NotErrorIs(err, ErrNotACommand)

	for _, topic := range []string{
		"zenschedule/sensor/setpoint/state",
		"zenschedule/switch/auto_mode/state",
		"zenschedule/number/power_override/command",
		"zenschedule/switch/auto-mode/command",
		"zenschedule/switch//command",
		"zenschedule/bridge/state",
		"zenschedule",
		"zenschedulex/command",
		"other/switch/auto_mode/command",
	} {
		_, err := testClient.ParseMQTTCommand(testMessage{topic: topic, payload: "on"})
		assert.ErrorIs(err, ErrNotACommand, topic)
	}
}

func TestParseMQTTCommandNestedBaseTopic(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	client := NewMQTTClient(nil, config.MQTTConfig{BaseTopic: "home/energy.battery"})

	cmd, err := client.ParseMQTTCommand(testMessage{topic: "home/energy.battery/switch/auto_mode/command", payload: "off"})
	require.NoError(err)
	assert.Equal("auto_mode", cmd.EntityId)

	_, err = client.ParseMQTTCommand(testMessage{topic: "home/energyXbattery/switch/auto_mode/command", payload: "off"})
	assert.ErrorIs(err, ErrNotACommand, "base topic is matched literally")
}

func TestCommandFilters(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(map[string]byte{
		"zenschedule/command":          1,
		"zenschedule/switch/+/command": 1,
		"zenschedule/number/+/set":     1,
	}, testClient.commandFilters())
}

func TestHADiscoveryTopicPrefix(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("homeassistant/sensor/node/setpoint/config", testClient.HADiscoveryTopic("sensor", "node", "setpoint"))

	client := NewMQTTClient(nil, config.MQTTConfig{BaseTopic: "zenschedule", HADiscoveryTopic: "ha"})
	assert.Equal("ha/number/node/power_override/config", client.HADiscoveryTopic(HA_COMPONENT_NUMBER, "node", "power_override"))
}

func TestHADiscoveryMessages(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	client := NewMQTTClient(nil, config.MQTTConfig{BaseTopic: "zenschedule", HADiscoveryTopic: "ha"})

	bridge := domain.BridgeDevice("zenschedule")
	dev := domain.BatteryDevice("TEST0000000001")
	sensors := append(domain.BridgeSensors(bridge), domain.AutomationSensors(dev)...)

	msgs := HADiscoveryMessages(client, domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Switches:     domain.AutomationSwitches(dev),
		InputNumbers: domain.AutomationInputNumbers(dev, 800, 1200),
	})
	require.Len(msgs, len(sensors)+2)

	byTopic := make(map[string]HADiscoveryConfig, len(msgs))
	for _, msg := range msgs {
		byTopic[msg.Topic] = msg.Config
		assert.Equal("zenschedule", msg.Config.Origin.Name, msg.Topic)
		assert.Equal(HA_PLATFORM, msg.Config.Platform, msg.Topic)
	}

	connection, ok := byTopic[fmt.Sprintf("ha/binary_sensor/%s/bridge/config", bridge.Id)]
	require.True(ok, "bridge sensor under the configured prefix")
	assert.Equal("zenschedule/bridge/state", connection.StateTopic)
	assert.Empty(connection.AvTopic, "connectivity is always available")
	assert.Equal(MQTT_PAYLOAD_ONLINE, connection.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, connection.PayloadOff)

	setpoint, ok := byTopic[fmt.Sprintf("ha/sensor/%s/setpoint/config", dev.Id)]
	require.True(ok)
	assert.Equal("zenschedule/sensor/setpoint/state", setpoint.StateTopic)
	assert.Equal("zenschedule/bridge/state", setpoint.AvTopic)
	assert.Equal(domain.DEVICE_CLASS_POWER, setpoint.DeviceClass)
	assert.Equal(domain.STATE_CLASS_MEASUREMENT, setpoint.StateClass)
	assert.Equal("W", setpoint.UnitOfMeasurement)
	require.NotNil(setpoint.Precision)
	assert.Equal(0, *setpoint.Precision)
	assert.Equal("Zendure", setpoint.Device.Manufacturer, "first battery sensor carries the full device")

	energy, ok := byTopic[fmt.Sprintf("ha/sensor/%s/feed_energy_day/config", dev.Id)]
	require.True(ok)
	assert.Equal(domain.DEVICE_CLASS_ENERGY, energy.DeviceClass)
	assert.Equal(domain.STATE_CLASS_TOTAL_INCREASING, energy.StateClass)
	assert.Equal("Wh", energy.UnitOfMeasurement)
	require.NotNil(energy.Precision)
	assert.Equal(1, *energy.Precision)

	activity, ok := byTopic[fmt.Sprintf("ha/sensor/%s/activity/config", dev.Id)]
	require.True(ok)
	assert.Equal(domain.DEVICE_CLASS_ENUM, activity.DeviceClass)
	assert.Contains(activity.Options, string(domain.ACTIVITY_STANDBY_TRANSITION))

	atMax, ok := byTopic[fmt.Sprintf("ha/binary_sensor/%s/at_max_soc/config", dev.Id)]
	require.True(ok)
	assert.Equal("zenschedule/binary_sensor/at_max_soc/state", atMax.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, atMax.PayloadOn)

	number, ok := byTopic[fmt.Sprintf("ha/number/%s/power_override/config", dev.Id)]
	require.True(ok)
	assert.Equal("zenschedule/number/power_override/set", number.CommandTopic)
	assert.Equal("zenschedule/number/power_override/state", number.StateTopic)
	assert.Equal("W", number.UnitOfMeasurement)
	require.NotNil(number.Min)
	require.NotNil(number.Max)
	assert.Equal(-800.0, *number.Min)
	assert.Equal(1200.0, *number.Max)

	sw, ok := byTopic[fmt.Sprintf("ha/switch/%s/auto_mode/config", dev.Id)]
	require.True(ok)
	assert.Equal("zenschedule/switch/auto_mode/command", sw.CommandTopic)
	assert.Equal("zenschedule/switch/auto_mode/state", sw.StateTopic)
}
