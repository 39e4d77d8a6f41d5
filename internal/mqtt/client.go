package mqtt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/zenschedule/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	MQTT_COMMAND_SWITCH   = "switch"
	MQTT_COMMAND_NUMBER   = "number"
	MQTT_COMMAND_OPERATOR = "operator"

	DEFAULT_HA_DISCOVERY_PREFIX = "homeassistant"
)

var ErrNotACommand = errors.New("not a command topic")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)).
		SetClientID("zenschedule_" + uuid.NewString()[:8]).
		SetCleanSession(true).
		SetBinaryWill(bridgeStateTopic(cfg.MQTT.BaseTopic), []byte(MQTT_PAYLOAD_OFFLINE), 0, true)
	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.SetOnConnectHandler(onConnectHandler)
	}
	if onConnectionLostHandler != nil {
		opts.SetConnectionLostHandler(onConnectionLostHandler)
	}
	return NewMQTTClient(mqtt.NewClient(opts), cfg.MQTT)
}

// NewMQTTClient wraps an existing paho client, mainly for tests.
func NewMQTTClient(client mqtt.Client, cfg config.MQTTConfig) *MQTTClient {
	return &MQTTClient{
		client: client,
		cfg:    cfg,
	}
}

// MQTTClient knows the topic layout of the bridge:
//
//	<base>/bridge/state
//	<base>/<component>/<entity>/state
//	<base>/switch/<entity>/command, <base>/number/<entity>/set
//	<base>/command (free text operator commands)
type MQTTClient struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

type ParsedMQTTCommand struct {
	EntityId string
	Command  string
	Payload  string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) entityTopic(component, entityId, leaf string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.baseTopic(), component, entityId, leaf)
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return c.entityTopic("sensor", sensorId, "state")
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return c.entityTopic("binary_sensor", sensorId, "state")
}

func (c *MQTTClient) SwitchStateTopic(switchId string) string {
	return c.entityTopic(MQTT_COMMAND_SWITCH, switchId, "state")
}

func (c *MQTTClient) SwitchCommandTopic(switchId string) string {
	return c.entityTopic(MQTT_COMMAND_SWITCH, switchId, "command")
}

func (c *MQTTClient) InputNumberStateTopic(id string) string {
	return c.entityTopic(MQTT_COMMAND_NUMBER, id, "state")
}

func (c *MQTTClient) InputNumberCommandTopic(id string) string {
	return c.entityTopic(MQTT_COMMAND_NUMBER, id, "set")
}

// OperatorCommandTopic accepts free text operator commands such as "p 300".
func (c *MQTTClient) OperatorCommandTopic() string {
	return fmt.Sprintf("%s/command", c.baseTopic())
}

// HADiscoveryTopic is the retained config topic of one entity under the
// configured discovery prefix.
func (c *MQTTClient) HADiscoveryTopic(component, nodeId, objectId string) string {
	prefix := c.cfg.HADiscoveryTopic
	if prefix == "" {
		prefix = DEFAULT_HA_DISCOVERY_PREFIX
	}
	return haDiscoveryTopic(prefix, component, nodeId, objectId)
}

// commandFilters are the only topics the bridge listens on. State topics are
// never subscribed, so our own publishes do not come back.
func (c *MQTTClient) commandFilters() map[string]byte {
	return map[string]byte{
		c.OperatorCommandTopic():       1,
		c.SwitchCommandTopic("+"):      1,
		c.InputNumberCommandTopic("+"): 1,
	}
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	rest, ok := strings.CutPrefix(msg.Topic(), c.baseTopic()+"/")
	if !ok {
		return nil, ErrNotACommand
	}
	payload := strings.TrimSpace(string(msg.Payload()))
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] == "command":
		return &ParsedMQTTCommand{Command: MQTT_COMMAND_OPERATOR, Payload: payload}, nil
	case len(parts) != 3 || !validEntityId(parts[1]):
		return nil, ErrNotACommand
	case parts[0] == MQTT_COMMAND_SWITCH && parts[2] == "command":
		return &ParsedMQTTCommand{EntityId: parts[1], Command: MQTT_COMMAND_SWITCH, Payload: payload}, nil
	case parts[0] == MQTT_COMMAND_NUMBER && parts[2] == "set":
		if _, err := strconv.ParseFloat(payload, 64); err != nil {
			return nil, fmt.Errorf("number %s: %w", parts[1], err)
		}
		return &ParsedMQTTCommand{EntityId: parts[1], Command: MQTT_COMMAND_NUMBER, Payload: payload}, nil
	}
	return nil, ErrNotACommand
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Publish(topic, qos, retain, payload), "publish", timeout, continuation)
}

func (c *MQTTClient) SubscribeToCommandTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.SubscribeMultiple(c.commandFilters(), handler), "subscribe", timeout, continuation)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Connect(), "connect", timeout, continuation)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

// awaitToken waits off the caller's goroutine, actors must not block on paho.
func awaitToken(token mqtt.Token, op string, timeout time.Duration, continuation func(error)) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("MQTT %s timed out", op))
			return
		}
		continuation(token.Error())
	}()
}

func validEntityId(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
