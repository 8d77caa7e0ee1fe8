package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every Cue Logic topic.
const TopicPrefix = "cuelogic"

// Topics builds Cue Logic MQTT topics.
//
//	cuelogic/state/{module}/{value}      values published by external systems
//	cuelogic/command/{module}/{command}  commands sent by consequences
//	cuelogic/event/{action}/{event}      action events
//	cuelogic/system/status               core online/offline (retained)
type Topics struct{}

// ModuleState returns the state topic of one module value.
func (Topics) ModuleState(module, value string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, module, value)
}

// ModuleStates returns the wildcard matching every value of module.
func (Topics) ModuleStates(module string) string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, module)
}

// ModuleCommand returns the topic a module command is published to.
func (Topics) ModuleCommand(module, command string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, module, command)
}

// ActionEvent returns the topic for an action event.
func (Topics) ActionEvent(action, event string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, strings.Trim(action, "/"), event)
}

// SystemStatus returns the core status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseModuleState splits a state topic into module and value names.
func ParseModuleState(topic string) (module, value string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "state" || parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
