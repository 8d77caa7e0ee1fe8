package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func pointTags(p *write.Point) map[string]string {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func pointFields(p *write.Point) map[string]any {
	fields := make(map[string]any)
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	return fields
}

func TestExecutionPoint(t *testing.T) {
	at := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	p := executionPoint(Execution{
		Action: "/actions/go", Valid: false, Trigger: "role",
		StartedAt: at, Total: 3, Failed: 1, Duration: 1500 * time.Microsecond,
	})

	if p.Name() != MeasurementExecutions || !p.Time().Equal(at) {
		t.Errorf("point = %s at %v", p.Name(), p.Time())
	}
	tags := pointTags(p)
	if tags["action"] != "/actions/go" || tags["result"] != "false" || tags["trigger"] != "role" {
		t.Errorf("tags = %v", tags)
	}
	fields := pointFields(p)
	if fields["duration_ms"] != 1.5 {
		t.Errorf("duration_ms = %v, want 1.5", fields["duration_ms"])
	}
	if len(fields) != 3 {
		t.Errorf("fields = %v", fields)
	}
}

func TestValidationPoint(t *testing.T) {
	p := validationPoint("/actions/go", "validating", true, 0.25, time.Now())

	if p.Name() != MeasurementValidation {
		t.Errorf("Name() = %q", p.Name())
	}
	if tags := pointTags(p); tags["state"] != "validating" {
		t.Errorf("tags = %v", tags)
	}
	fields := pointFields(p)
	if fields["valid"] != true || fields["progress"] != 0.25 {
		t.Errorf("fields = %v", fields)
	}
}

func TestModuleValuePoint(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"float", 0.5, 0.5},
		{"int", 3, float64(3)},
		{"bool", true, true},
		{"string", "intro", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := moduleValuePoint("desk", "fader1", tt.value, time.Now())
			if tt.want == nil {
				if p != nil {
					t.Errorf("point written for %T", tt.value)
				}
				return
			}
			if p == nil {
				t.Fatal("no point")
			}
			if got := pointFields(p)["value"]; got != tt.want {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
			if tags := pointTags(p); tags["module"] != "desk" || tags["value"] != "fader1" {
				t.Errorf("tags = %v", tags)
			}
		})
	}
}
