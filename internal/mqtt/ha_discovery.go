package mqtt

import (
	"fmt"

	"github.com/berfenger/zenschedule/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	HA_COMPONENT_SWITCH = "switch"
	HA_COMPONENT_NUMBER = "number"
	HA_PLATFORM         = "mqtt"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	Origin            HADiscoveryOrigin `json:"origin"`
	StateTopic        string            `json:"state_topic"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	Precision         *int              `json:"suggested_display_precision,omitempty"`
	Options           []string          `json:"options,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	Min               *float64          `json:"min,omitempty"`
	Max               *float64          `json:"max,omitempty"`
	Step              float64           `json:"step,omitempty"`
	Mode              string            `json:"mode,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

type HADiscoveryOrigin struct {
	Name    string `json:"name"`
	Version string `json:"sw_version,omitempty"`
}

// HADiscoveryMessage is one retained config payload and its topic.
type HADiscoveryMessage struct {
	Topic  string
	Config HADiscoveryConfig
}

// HADiscoveryMessages maps every entity of a discovery request to its config
// message. Entities of the battery are only available while the bridge is
// online; the bridge connectivity sensor itself is always available.
func HADiscoveryMessages(client *MQTTClient, req domain.PublishDiscoveryRequest) []HADiscoveryMessage {
	msgs := make([]HADiscoveryMessage, 0, len(req.Sensors)+len(req.Switches)+len(req.InputNumbers))
	for _, sensor := range req.Sensors {
		msgs = append(msgs, HADiscoveryMessage{
			Topic:  client.HADiscoveryTopic(sensor.SensorType, sensor.Device.Id, sensor.Id),
			Config: sensorConfig(client, sensor),
		})
	}
	for _, sw := range req.Switches {
		msgs = append(msgs, HADiscoveryMessage{
			Topic:  client.HADiscoveryTopic(HA_COMPONENT_SWITCH, sw.Device.Id, sw.Id),
			Config: switchConfig(client, sw),
		})
	}
	for _, number := range req.InputNumbers {
		msgs = append(msgs, HADiscoveryMessage{
			Topic:  client.HADiscoveryTopic(HA_COMPONENT_NUMBER, number.Device.Id, number.Id),
			Config: inputNumberConfig(client, number),
		})
	}
	return msgs
}

func sensorConfig(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	cfg := baseConfig(client, sensor.Device, sensor.Name, sensor.UniqueId, sensor.Icon)
	cfg.StateClass = sensor.StateClass
	cfg.DeviceClass = sensor.DeviceClass
	cfg.UnitOfMeasurement = sensor.UnitOfMeasurement
	cfg.Precision = sensor.Precision
	cfg.Options = sensor.Options
	cfg.EntityCategory = sensor.EntityCategory

	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		cfg.StateTopic = client.BridgeStateTopic()
		cfg.AvTopic = ""
		cfg.PayloadOn = MQTT_PAYLOAD_ONLINE
		cfg.PayloadOff = MQTT_PAYLOAD_OFFLINE
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		cfg.StateTopic = client.BinarySensorStateTopic(sensor.Id)
		cfg.PayloadOn = MQTT_PAYLOAD_ON
		cfg.PayloadOff = MQTT_PAYLOAD_OFF
	default:
		cfg.StateTopic = client.SensorStateTopic(sensor.Id)
	}
	return cfg
}

func switchConfig(client *MQTTClient, sw domain.GenericSwitch) HADiscoveryConfig {
	cfg := baseConfig(client, sw.Device, sw.Name, sw.UniqueId, sw.Icon)
	cfg.StateTopic = client.SwitchStateTopic(sw.Id)
	cfg.CommandTopic = client.SwitchCommandTopic(sw.Id)
	cfg.PayloadOn = MQTT_PAYLOAD_ON
	cfg.PayloadOff = MQTT_PAYLOAD_OFF
	return cfg
}

// inputNumberConfig always sends min and max, the power range is signed and
// HA defaults to 1..100 when they are missing.
func inputNumberConfig(client *MQTTClient, number domain.GenericInputNumber) HADiscoveryConfig {
	cfg := baseConfig(client, number.Device, number.Name, number.UniqueId, number.Icon)
	cfg.StateTopic = client.InputNumberStateTopic(number.Id)
	cfg.CommandTopic = client.InputNumberCommandTopic(number.Id)
	cfg.UnitOfMeasurement = number.UnitOfMeasurement
	cfg.DeviceClass = number.DeviceClass
	minValue, maxValue := number.Min, number.Max
	cfg.Min = &minValue
	cfg.Max = &maxValue
	cfg.Step = number.Step
	cfg.Mode = number.Mode
	return cfg
}

func baseConfig(client *MQTTClient, d domain.Device, name, uniqueId, icon string) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device: HADiscoveryDevice{
			Id:           []string{d.Id},
			Manufacturer: d.Manufacturer,
			Version:      d.Version,
			Model:        d.Model,
			Name:         d.Name,
			ViaDevice:    d.ViaDevice,
		},
		Origin: HADiscoveryOrigin{
			Name:    "zenschedule",
			Version: versioninfo.Short(),
		},
		AvTopic:  client.BridgeStateTopic(),
		Name:     name,
		UniqueId: uniqueId,
		Icon:     icon,
		Platform: HA_PLATFORM,
	}
}

func haDiscoveryTopic(prefix, component, nodeId, objectId string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, nodeId, objectId)
}
