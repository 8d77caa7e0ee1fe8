package module

import (
	"fmt"
	"slices"
	"sync"

	mqttinfra "github.com/nerrad567/cuelogic-core/internal/infrastructure/mqtt"
)

// Built-in module types.
const (
	TypeMQTT    = "MQTT"
	TypeVirtual = "Virtual"
)

// MQTTClient is the part of the MQTT client a module needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqttinfra.MessageHandler) error
	Unsubscribe(topic string) error
}

// Deps are handed to every driver the factory creates.
type Deps struct {
	// MQTT may be nil; MQTT modules then keep their values but cannot send.
	MQTT   MQTTClient
	QoS    byte
	Logger Logger
}

// Definition registers one module type.
type Definition struct {
	MenuPath  string
	Type      string
	NewDriver func(Deps) Driver
}

// Group is the list of types under one menu path.
type Group struct {
	MenuPath string   `json:"menu_path"`
	Types    []string `json:"types"`
}

// Factory creates modules by type name.
type Factory struct {
	deps Deps

	mu   sync.RWMutex
	defs []Definition
}

// NewFactory creates a factory holding the built-in types.
func NewFactory(deps Deps) *Factory {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	f := &Factory{deps: deps}
	f.Register(Definition{MenuPath: "Generic", Type: TypeMQTT, NewDriver: NewMQTTDriver})
	f.Register(Definition{MenuPath: "Generic", Type: TypeVirtual, NewDriver: NewVirtualDriver})
	f.Register(Definition{MenuPath: "System", Type: TypeLauncher, NewDriver: NewLauncherDriver})
	return f
}

// Register adds def, replacing any definition of the same type.
func (f *Factory) Register(def Definition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := slices.IndexFunc(f.defs, func(d Definition) bool { return d.Type == def.Type }); i >= 0 {
		f.defs[i] = def
		return
	}
	f.defs = append(f.defs, def)
}

// Create builds a detached module of type typ.
func (f *Factory) Create(typ string) (*Module, error) {
	f.mu.RLock()
	i := slices.IndexFunc(f.defs, func(d Definition) bool { return d.Type == typ })
	var def Definition
	if i >= 0 {
		def = f.defs[i]
	}
	f.mu.RUnlock()

	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return New(def.Type, def.NewDriver(f.deps), f.deps.Logger), nil
}

// Types returns the registered types grouped by menu path, in
// registration order.
func (f *Factory) Types() []Group {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var groups []Group
	for _, d := range f.defs {
		i := slices.IndexFunc(groups, func(g Group) bool { return g.MenuPath == d.MenuPath })
		if i < 0 {
			groups = append(groups, Group{MenuPath: d.MenuPath})
			i = len(groups) - 1
		}
		groups[i].Types = append(groups[i].Types, d.Type)
	}
	return groups
}
