package module

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
	mqttinfra "github.com/nerrad567/cuelogic-core/internal/infrastructure/mqtt"
)

// Built-in MQTT commands and their argument keys.
const (
	CommandPublish = "publish"

	ArgPayload = "payload"
	ArgRetain  = "retain"
)

// commandMessage is the JSON body of a published command.
type commandMessage struct {
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
	Values  []any          `json:"values,omitempty"`
	Source  string         `json:"source,omitempty"`
}

// MQTTDriver exchanges values and commands with an MQTT broker.
type MQTTDriver struct {
	client MQTTClient
	qos    byte
	logger Logger

	mu    sync.Mutex
	topic string
}

// NewMQTTDriver creates a driver publishing through deps.MQTT.
func NewMQTTDriver(deps Deps) Driver {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTDriver{client: deps.MQTT, qos: deps.QoS, logger: logger}
}

// Start subscribes to the module's state topics. Without a client the
// module only keeps its persisted values.
func (d *MQTTDriver) Start(_ context.Context, m *Module) error {
	if d.client == nil {
		d.logger.Warn("mqtt module has no broker connection", "module", m.ShortName())
		return nil
	}

	topic := mqttinfra.Topics{}.ModuleStates(m.ShortName())
	err := d.client.Subscribe(topic, d.qos, func(topic string, payload []byte) error {
		return d.handleState(m, topic, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %q: %w", topic, err)
	}

	d.mu.Lock()
	d.topic = topic
	d.mu.Unlock()
	d.logger.Debug("mqtt module started", "module", m.ShortName(), "topic", topic)
	return nil
}

func (d *MQTTDriver) handleState(m *Module, topic string, payload []byte) error {
	if m.IsRemoved() || !m.Enabled() {
		return nil
	}
	module, value, ok := mqttinfra.ParseModuleState(topic)
	if !ok || module != m.ShortName() {
		return fmt.Errorf("%w: unexpected state topic %q", ErrInvalidArgument, topic)
	}
	_, err := m.SetValue(value, DecodeValue(payload))
	return err
}

// Stop unsubscribes from the state topics.
func (d *MQTTDriver) Stop() error {
	d.mu.Lock()
	topic := d.topic
	d.topic = ""
	d.mu.Unlock()

	if topic == "" || d.client == nil {
		return nil
	}
	return d.client.Unsubscribe(topic)
}

// Commands implements Driver.
func (d *MQTTDriver) Commands() []consequence.Definition {
	return []consequence.Definition{{
		Command:     CommandPublish,
		Description: "publish a raw payload to any topic",
		Args: []consequence.ArgSpec{
			{Name: "Topic", Kind: container.KindString},
			{Name: "Payload", Kind: container.KindString},
			{Name: "Retain", Kind: container.KindBool},
		},
	}}
}

// Execute publishes cmd. The raw publish command sends its payload
// untouched; every other command is wrapped in a JSON envelope.
func (d *MQTTDriver) Execute(_ context.Context, m *Module, cmd consequence.Command) error {
	if d.client == nil {
		return ErrNoTransport
	}

	if cmd.Name == CommandPublish {
		topic, _ := cmd.Args[ArgTopic].(string)
		if topic == "" {
			return fmt.Errorf("%w: publish needs a topic", ErrInvalidArgument)
		}
		payload, _ := cmd.Args[ArgPayload].(string)
		retain, _ := cmd.Args[ArgRetain].(bool)
		return d.publish(topic, []byte(payload), retain)
	}

	topic := mqttinfra.Topics{}.ModuleCommand(m.ShortName(), container.ToShortName(cmd.Name))
	msg := commandMessage{ID: cmd.ID, Command: cmd.Name, Source: cmd.Source}

	args := maps.Clone(cmd.Args)
	if name, ok := args[ArgModel].(string); ok {
		model, found := m.Commands().ItemByName(name)
		if !found {
			return fmt.Errorf("%w: model %q", ErrUnknownCommand, name)
		}
		if t := model.Topic(); t != "" {
			topic = t
		}
		msg.Values = model.Values(args)
		delete(args, ArgModel)
	} else if _, ok := m.Definition(cmd.Name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	if t, ok := args[ArgTopic].(string); ok {
		if t != "" {
			topic = t
		}
		delete(args, ArgTopic)
	}
	if len(args) > 0 {
		msg.Args = args
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}
	return d.publish(topic, payload, false)
}

func (d *MQTTDriver) publish(topic string, payload []byte, retain bool) error {
	if err := d.client.Publish(topic, payload, d.qos, retain); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	d.logger.Debug("module command published", "topic", topic)
	return nil
}
