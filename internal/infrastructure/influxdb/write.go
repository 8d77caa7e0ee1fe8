package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementExecutions = "action_executions"
	MeasurementValidation = "action_validation"
	MeasurementValues     = "module_values"
)

// Execution is one fired consequence set, as written to InfluxDB.
type Execution struct {
	Action    string
	Valid     bool
	Trigger   string
	StartedAt time.Time
	Total     int
	Failed    int
	Duration  time.Duration
}

// WriteExecution records a fired consequence set.
func (c *Client) WriteExecution(e Execution) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(executionPoint(e))
}

// WriteValidation records a validation state change of an action.
// progress is the validation progress at the time of the change.
func (c *Client) WriteValidation(action, state string, valid bool, progress float64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(validationPoint(action, state, valid, progress, time.Now()))
}

// WriteModuleValue records a module value. Only numbers and bools are
// written; other values are ignored.
func (c *Client) WriteModuleValue(module, value string, v any) {
	if !c.IsConnected() {
		return
	}
	if p := moduleValuePoint(module, value, v, time.Now()); p != nil {
		c.writeAPI.WritePoint(p)
	}
}

// WritePoint writes a custom point stamped now.
//
//	client.WritePoint("engine_stats",
//	    map[string]string{"site": "site-001"},
//	    map[string]any{"actions": 12, "modules": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func executionPoint(e Execution) *write.Point {
	return write.NewPoint(
		MeasurementExecutions,
		map[string]string{
			"action":  e.Action,
			"result":  strconv.FormatBool(e.Valid),
			"trigger": e.Trigger,
		},
		map[string]any{
			"total":       e.Total,
			"failed":      e.Failed,
			"duration_ms": float64(e.Duration) / float64(time.Millisecond),
		},
		e.StartedAt,
	)
}

func validationPoint(action, state string, valid bool, progress float64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementValidation,
		map[string]string{
			"action": action,
			"state":  state,
		},
		map[string]any{
			"valid":    valid,
			"progress": progress,
		},
		at,
	)
}

func moduleValuePoint(module, value string, v any, at time.Time) *write.Point {
	var field any
	switch x := v.(type) {
	case bool, float64:
		field = x
	case int:
		field = float64(x)
	default:
		return nil
	}
	return write.NewPoint(
		MeasurementValues,
		map[string]string{
			"module": module,
			"value":  value,
		},
		map[string]any{"value": field},
		at,
	)
}
