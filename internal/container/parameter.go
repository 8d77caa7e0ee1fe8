package container

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// Kind identifies the value type held by a Parameter.
type Kind string

const (
	KindBool    Kind = "bool"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindString  Kind = "string"
	KindEnum    Kind = "enum"
	KindTrigger Kind = "trigger"
)

// AllKinds returns every parameter kind.
func AllKinds() []Kind {
	return []Kind{KindBool, KindInt, KindFloat, KindString, KindEnum, KindTrigger}
}

// Parameter is a typed, observable value owned by a Container.
//
// Numeric parameters may carry a range; values outside it are clamped.
// Enum parameters only accept one of their options. Trigger parameters hold
// no value: Trigger() notifies listeners.
type Parameter struct {
	mu sync.RWMutex

	shortName   string
	niceName    string
	description string
	kind        Kind

	value        any
	defaultValue any
	min, max     *float64
	options      []string

	// persistent parameters are written by Export.
	persistent bool

	owner   *Container
	changed notify.List[*Parameter]
}

// NewParameter creates a detached parameter. Most callers use the
// Container.Add*Parameter helpers instead.
func NewParameter(kind Kind, niceName, description string, def any) *Parameter {
	p := &Parameter{
		shortName:   ToShortName(niceName),
		niceName:    niceName,
		description: description,
		kind:        kind,
		persistent:  kind != KindTrigger,
	}
	if kind != KindTrigger {
		v, err := coerce(kind, def, nil)
		if err != nil {
			v = zeroValue(kind)
		}
		p.value = v
		p.defaultValue = v
	}
	return p
}

// ShortName returns the parameter's key within its container.
func (p *Parameter) ShortName() string { return p.shortName }

// NiceName returns the display name.
func (p *Parameter) NiceName() string { return p.niceName }

// Description returns the help text.
func (p *Parameter) Description() string { return p.description }

// Kind returns the value type.
func (p *Parameter) Kind() Kind { return p.kind }

// Owner returns the container holding the parameter, or nil.
func (p *Parameter) Owner() *Container {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// Address returns the owner's address joined with the parameter short name.
func (p *Parameter) Address() string {
	owner := p.Owner()
	if owner == nil {
		return "/" + p.shortName
	}
	return strings.TrimSuffix(owner.Address(), "/") + "/" + p.shortName
}

// Options returns a copy of the enum options.
func (p *Parameter) Options() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.options)
}

// SetOptions sets the allowed values of an enum parameter.
func (p *Parameter) SetOptions(options []string) *Parameter {
	p.mu.Lock()
	p.options = slices.Clone(options)
	p.mu.Unlock()
	return p
}

// Range returns the numeric range and whether one is set.
func (p *Parameter) Range() (lo, hi float64, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.min == nil || p.max == nil {
		return 0, 0, false
	}
	return *p.min, *p.max, true
}

// Persistent reports whether Export includes the parameter.
func (p *Parameter) Persistent() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.persistent
}

// SetPersistent marks the parameter as saved (true) or transient (false).
func (p *Parameter) SetPersistent(v bool) *Parameter {
	p.mu.Lock()
	p.persistent = v && p.kind != KindTrigger
	p.mu.Unlock()
	return p
}

// SetRange sets the clamp range for numeric parameters.
func (p *Parameter) SetRange(lo, hi float64) *Parameter {
	p.mu.Lock()
	p.min, p.max = &lo, &hi
	p.mu.Unlock()
	return p
}

// Value returns the current value.
func (p *Parameter) Value() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Default returns the value the parameter was created with.
func (p *Parameter) Default() any {
	return p.defaultValue
}

// Bool returns the value as a bool. Numbers are true when non-zero.
func (p *Parameter) Bool() bool {
	v, _ := coerce(KindBool, p.Value(), nil) //nolint:errcheck // zero value on mismatch
	b, _ := v.(bool)
	return b
}

// Int returns the value as an int.
func (p *Parameter) Int() int {
	v, _ := coerce(KindInt, p.Value(), nil) //nolint:errcheck // zero value on mismatch
	i, _ := v.(int)
	return i
}

// Float returns the value as a float64.
func (p *Parameter) Float() float64 {
	v, _ := coerce(KindFloat, p.Value(), nil) //nolint:errcheck // zero value on mismatch
	f, _ := v.(float64)
	return f
}

// String returns the value formatted as a string.
func (p *Parameter) String() string {
	v := p.Value()
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Set coerces v to the parameter kind and stores it.
//
// Listeners are notified only when the stored value actually changes.
// Setting a parameter of a removed container panics.
func (p *Parameter) Set(v any) error {
	if owner := p.Owner(); owner != nil {
		owner.mustBeAlive()
	}
	if p.kind == KindTrigger {
		return fmt.Errorf("%w: %q is a trigger", ErrInvalidValue, p.shortName)
	}

	coerced, err := coerce(p.kind, v, p.Options())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, p.shortName, err)
	}
	coerced = p.clamp(coerced)

	p.mu.Lock()
	if reflect.DeepEqual(p.value, coerced) {
		p.mu.Unlock()
		return nil
	}
	p.value = coerced
	p.mu.Unlock()

	p.changed.Emit(p)
	return nil
}

// Reset restores the default value.
func (p *Parameter) Reset() {
	if p.kind == KindTrigger {
		return
	}
	_ = p.Set(p.defaultValue) //nolint:errcheck // default is already coerced
}

// Trigger notifies listeners without changing the value.
func (p *Parameter) Trigger() {
	if owner := p.Owner(); owner != nil {
		owner.mustBeAlive()
	}
	p.changed.Emit(p)
}

// OnChange registers fn to run after every value change (or trigger).
func (p *Parameter) OnChange(fn func(*Parameter)) func() {
	return p.changed.Add(fn)
}

func (p *Parameter) clamp(v any) any {
	p.mu.RLock()
	lo, hi := p.min, p.max
	p.mu.RUnlock()
	if lo == nil || hi == nil {
		return v
	}
	switch n := v.(type) {
	case int:
		return int(math.Max(*lo, math.Min(*hi, float64(n))))
	case float64:
		return math.Max(*lo, math.Min(*hi, n))
	}
	return v
}

// coerce converts v to the Go type used for kind.
// JSON and YAML decoders hand back float64, int and string in varying
// combinations, so every kind accepts the reasonable spellings.
func coerce(kind Kind, v any, options []string) (any, error) { //nolint:gocognit,gocyclo // one switch per kind
	switch kind {
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int:
			return b != 0, nil
		case int64:
			return b != 0, nil
		case float64:
			return b != 0, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return false, err
			}
			return parsed, nil
		case nil:
			return false, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return 0, fmt.Errorf("not a finite number")
			}
			return int(math.Round(n)), nil
		case bool:
			if n {
				return 1, nil
			}
			return 0, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return 0, err
			}
			return int(math.Round(f)), nil
		case nil:
			return 0, nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return 0.0, fmt.Errorf("not a finite number")
			}
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case bool:
			if n {
				return 1.0, nil
			}
			return 0.0, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return 0.0, err
			}
			return f, nil
		case nil:
			return 0.0, nil
		}
	case KindString:
		if v == nil {
			return "", nil
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("enum value must be a string, got %T", v)
		}
		if options != nil && !slices.Contains(options, s) {
			return nil, fmt.Errorf("%q is not one of %v", s, options)
		}
		return s, nil
	case KindTrigger:
		return nil, nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, kind)
}

func zeroValue(kind Kind) any {
	switch kind {
	case KindBool:
		return false
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindString, KindEnum:
		return ""
	}
	return nil
}

// KindOf infers a parameter kind from a decoded value.
func KindOf(v any) Kind {
	switch v.(type) {
	case bool:
		return KindBool
	case int, int64:
		return KindInt
	case float64, float32:
		return KindFloat
	}
	return KindString
}
