// FilePath: internal/mqtt/bridge.go
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/models"
)

// Config holds MQTT bridge configuration
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // e.g. "pcd" -> pcd/pai/up, pcd/pai/down
	QoS         byte
}

// DeviceHandler processes a device payload for a role.
type DeviceHandler interface {
	HandleDeviceMessage(role models.Role, raw []byte) (models.Ack, error)
}

// Bridge feeds device payloads received over MQTT into the hub and
// publishes the ack or error frame back to the device.
type Bridge struct {
	cfg     Config
	handler DeviceHandler
	client  mqtt.Client
	publish func(topic string, payload []byte) error
}

func NewBridge(cfg Config, handler DeviceHandler) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "pcd"
	}
	b := &Bridge{cfg: cfg, handler: handler}
	b.publish = b.publishToBroker
	return b
}

// UpTopic returns the topic a device of role publishes to.
func (b *Bridge) UpTopic(role models.Role) string {
	return fmt.Sprintf("%s/%s/up", b.cfg.TopicPrefix, role)
}

// DownTopic returns the topic replies for role are published on.
func (b *Bridge) DownTopic(role models.Role) string {
	return fmt.Sprintf("%s/%s/down", b.cfg.TopicPrefix, role)
}

// Start connects to the broker. Subscriptions are renewed on every
// (re)connect.
func (b *Bridge) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetUsername(b.cfg.Username)
	opts.SetPassword(b.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		nuts.L.Infof("[MQTT] Connected to broker %s", b.cfg.Broker)
		if err := b.subscribe(c); err != nil {
			nuts.L.Errorf("[MQTT] %v", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		nuts.L.Warnf("[MQTT] Connection lost: %v", err)
	})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

func (b *Bridge) subscribe(c mqtt.Client) error {
	for _, role := range []models.Role{models.RolePai, models.RoleCamera} {
		topic := b.UpTopic(role)
		if token := c.Subscribe(topic, b.cfg.QoS, b.HandleMessage); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
		}
		nuts.L.Infof("[MQTT] Subscribed to %s", topic)
	}
	return nil
}

// HandleMessage is the subscription callback for device uplink topics.
func (b *Bridge) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	role, ok := b.roleFor(msg.Topic())
	if !ok {
		nuts.L.Warnf("[MQTT] Message on unexpected topic %s ignored", msg.Topic())
		return
	}

	var reply interface{}
	ack, err := b.handler.HandleDeviceMessage(role, msg.Payload())
	if err != nil {
		reply = hub.RejectionFrame(role, err)
	} else {
		reply = ack
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		nuts.L.Errorf("[MQTT] Failed to encode reply: %v", err)
		return
	}
	if err := b.publish(b.DownTopic(role), payload); err != nil {
		nuts.L.Warnf("[MQTT] Failed to publish reply for %s: %v", role, err)
	}
}

func (b *Bridge) roleFor(topic string) (models.Role, bool) {
	rest, ok := strings.CutPrefix(topic, b.cfg.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	role, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != "up" {
		return "", false
	}
	switch models.Role(role) {
	case models.RolePai, models.RoleCamera:
		return models.Role(role), true
	default:
		return "", false
	}
}

func (b *Bridge) publishToBroker(topic string, payload []byte) error {
	if b.client == nil {
		return fmt.Errorf("mqtt client not started")
	}
	token := b.client.Publish(topic, b.cfg.QoS, false, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Stop disconnects from the broker
func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
		nuts.L.Infof("[MQTT] Disconnected from broker")
	}
}
