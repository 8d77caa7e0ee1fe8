package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/cuelogic-core/internal/module"
	"github.com/nerrad567/cuelogic-core/internal/project"
)

// WebSocket channels.
const (
	ChannelActionEnabled    = "action.enabled"
	ChannelActionRole       = "action.role"
	ChannelActionValidation = "action.validation"
	ChannelActionExecuted   = "action.executed"
	ChannelItemAdded        = "item.added"
	ChannelItemRemoved      = "item.removed"
)

// Channels lists every channel the engine broadcasts on.
func Channels() []string {
	return []string{
		ChannelActionEnabled,
		ChannelActionRole,
		ChannelActionValidation,
		ChannelActionExecuted,
		ChannelItemAdded,
		ChannelItemRemoved,
	}
}

// Manager names used in item events and gauges.
const (
	ManagerModules = "modules"
	ManagerActions = "actions"
)

// ActionPayload is the payload of the action.* channels.
type ActionPayload struct {
	Action   string  `json:"action"`
	Name     string  `json:"name"`
	Enabled  bool    `json:"enabled"`
	Role     string  `json:"role"`
	State    string  `json:"state"`
	Valid    bool    `json:"valid"`
	Progress float64 `json:"progress"`
}

// ItemPayload is the payload of the item.* channels.
type ItemPayload struct {
	Manager   string `json:"manager"`
	Address   string `json:"address"`
	ShortName string `json:"short_name"`
	NiceName  string `json:"nice_name"`
	Type      string `json:"type,omitempty"`
}

var eventChannels = map[action.EventType]string{
	action.EventEnabledChanged:    ChannelActionEnabled,
	action.EventRoleChanged:       ChannelActionRole,
	action.EventValidationChanged: ChannelActionValidation,
}

func (e *Engine) wire() {
	actions := e.project.Actions()
	modules := e.project.Modules()

	actions.OnEvent(e.handleActionEvent)
	actions.OnItemAdded(func(a *action.Action) {
		e.itemChanged(ChannelItemAdded, ManagerActions, actions.Len(), ItemPayload{
			Address:   a.Address(),
			ShortName: a.ShortName(),
			NiceName:  a.NiceName(),
		})
	})
	actions.OnItemRemoved(func(a *action.Action) {
		// Removed items are detached, so their address is rebuilt.
		addr := actions.Address() + "/" + a.ShortName()
		e.metrics.ForgetAction(addr)
		e.itemChanged(ChannelItemRemoved, ManagerActions, actions.Len(), ItemPayload{
			Address:   addr,
			ShortName: a.ShortName(),
			NiceName:  a.NiceName(),
		})
	})

	modules.OnItemAdded(func(m *module.Module) {
		e.watchValues(m)
		e.itemChanged(ChannelItemAdded, ManagerModules, modules.Len(), ItemPayload{
			Address:   m.Address(),
			ShortName: m.ShortName(),
			NiceName:  m.NiceName(),
			Type:      m.TypeName(),
		})
	})
	modules.OnItemRemoved(func(m *module.Module) {
		e.unwatchValues(m)
		e.itemChanged(ChannelItemRemoved, ManagerModules, modules.Len(), ItemPayload{
			Address:   modules.Address() + "/" + m.ShortName(),
			ShortName: m.ShortName(),
			NiceName:  m.NiceName(),
			Type:      m.TypeName(),
		})
	})
}

// RecordExecution implements action.Recorder.
func (e *Engine) RecordExecution(ctx context.Context, exec action.Execution) {
	rec := project.NewExecutionRecord(e.project.Name(), exec)

	if e.executions != nil {
		if err := e.executions.AppendExecution(ctx, rec); err != nil {
			e.logger.Warn("recording execution failed", "action", exec.Action, "error", err)
		}
	}
	e.influx.WriteExecution(influxdb.Execution{
		Action:    exec.Action,
		Valid:     exec.Valid,
		Trigger:   exec.Trigger,
		StartedAt: exec.StartedAt,
		Total:     exec.Consequences.Total,
		Failed:    exec.Consequences.Failed,
		Duration:  exec.Consequences.Duration,
	})
	e.metrics.ObserveExecution(exec.Action, exec.Valid,
		exec.Consequences.Total, exec.Consequences.Failed, exec.Consequences.Duration)
	e.broadcast(ChannelActionExecuted, rec)

	if exec.Consequences.Failed > 0 {
		e.logger.Warn("consequences failed",
			"action", exec.Action,
			"failed", exec.Consequences.Failed,
			"total", exec.Consequences.Total,
		)
	}
}

func (e *Engine) handleActionEvent(ev action.Event) {
	payload := ActionPayload{
		Action:   ev.Action.Address(),
		Name:     ev.Action.NiceName(),
		Enabled:  ev.Enabled,
		Role:     string(ev.Role),
		State:    ev.State.String(),
		Valid:    ev.Valid,
		Progress: ev.Progress,
	}

	if ev.Type == action.EventValidationChanged {
		e.influx.WriteValidation(payload.Action, payload.State, ev.Valid, ev.Progress)
	}
	if ch, ok := eventChannels[ev.Type]; ok {
		e.broadcast(ch, payload)
	}
	e.publishEvent(payload.Action, string(ev.Type), payload)
}

// publishEvent mirrors an action event on cuelogic/event/{action}/{event}.
func (e *Engine) publishEvent(addr, event string, payload any) {
	if e.mqtt == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.ActionEvent(addr, event)
	if err := e.mqtt.Publish(topic, data, e.qos, false); err != nil {
		e.logger.Debug("publishing action event failed", "topic", topic, "error", err)
	}
}

func (e *Engine) itemChanged(channel, manager string, count int, payload ItemPayload) {
	payload.Manager = manager
	e.metrics.SetItems(manager, count)
	e.broadcast(channel, payload)
}

func (e *Engine) broadcast(channel string, payload any) {
	if e.hub != nil {
		e.hub.Broadcast(channel, payload)
	}
}

// watchValues writes every value change of m to InfluxDB.
func (e *Engine) watchValues(m *module.Module) {
	if e.influx == nil {
		return
	}

	var (
		mu     sync.Mutex
		unsubs = make(map[*container.Parameter]func())
	)
	watch := func(p *container.Parameter) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := unsubs[p]; ok {
			return
		}
		unsubs[p] = p.OnChange(func(p *container.Parameter) {
			e.influx.WriteModuleValue(m.ShortName(), p.ShortName(), p.Value())
		})
	}

	stop := m.Values().OnStructureChange(func(ev container.StructureEvent) {
		switch ev.Kind {
		case container.ParameterAdded:
			watch(ev.Parameter)
		case container.ParameterRemoved:
			mu.Lock()
			if unsub, ok := unsubs[ev.Parameter]; ok {
				unsub()
				delete(unsubs, ev.Parameter)
			}
			mu.Unlock()
		}
	})
	for _, p := range m.Values().Parameters() {
		watch(p)
	}

	e.watchMu.Lock()
	e.watches[m] = func() {
		stop()
		mu.Lock()
		for _, unsub := range unsubs {
			unsub()
		}
		clear(unsubs)
		mu.Unlock()
	}
	e.watchMu.Unlock()
}

func (e *Engine) unwatchValues(m *module.Module) {
	e.watchMu.Lock()
	stop, ok := e.watches[m]
	delete(e.watches, m)
	e.watchMu.Unlock()
	if ok {
		stop()
	}
}
