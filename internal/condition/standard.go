package condition

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/cuelogic-core/internal/container"
)

// Comparators accepted by standard conditions.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpLess         = "<"
	OpLessEqual    = "<="
)

// Comparators returns every comparator in display order.
func Comparators() []string {
	return []string{OpEqual, OpNotEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual}
}

// Standard compares the source value against a reference.
//
// The reference is stored as text and parsed against the source kind:
// "true"/"false" for bools (empty means true), numbers for ints and floats
// (empty means 0), plain text for strings and enums.
type Standard struct {
	*base

	comparator *container.Parameter
	reference  *container.Parameter
	inverted   *container.Parameter
}

// NewStandard creates an unbound standard condition.
func NewStandard(resolver Resolver, logger Logger) *Standard {
	c := &Standard{base: newBase("Condition", TypeStandard, resolver, logger)}
	c.comparator = c.AddEnumParameter("Comparator", "comparison applied to the source", Comparators(), OpEqual)
	c.reference = c.AddStringParameter("Reference", "value to compare against", "")
	c.inverted = c.AddBoolParameter("Inverted", "negate the result", false)
	c.watch(c.comparator, c.reference, c.inverted)
	return c
}

// Comparator returns the comparator parameter.
func (c *Standard) Comparator() *container.Parameter { return c.comparator }

// Reference returns the reference parameter.
func (c *Standard) Reference() *container.Parameter { return c.reference }

// Inverted returns the inversion parameter.
func (c *Standard) Inverted() *container.Parameter { return c.inverted }

// Evaluate implements Condition. An unbound condition is false.
func (c *Standard) Evaluate() bool {
	v, kind, ok := c.sourceValue()
	if !ok {
		return false
	}
	result := compare(v, kind, c.comparator.String(), c.reference.String())
	if c.inverted.Bool() {
		return !result
	}
	return result
}

func compare(v any, kind container.Kind, op, ref string) bool {
	ref = strings.TrimSpace(ref)
	switch kind {
	case container.KindBool:
		want := true
		if ref != "" {
			parsed, err := strconv.ParseBool(ref)
			if err != nil {
				return false
			}
			want = parsed
		}
		got, _ := v.(bool)
		return ordered(boolRank(got), boolRank(want), op)

	case container.KindInt, container.KindFloat:
		var want float64
		if ref != "" {
			parsed, err := strconv.ParseFloat(ref, 64)
			if err != nil {
				return false
			}
			want = parsed
		}
		var got float64
		switch n := v.(type) {
		case int:
			got = float64(n)
		case float64:
			got = n
		}
		return ordered(got, want, op)

	case container.KindString, container.KindEnum:
		return ordered(fmt.Sprint(v), ref, op)
	}
	return false
}

func ordered[T cmp.Ordered](a, b T, op string) bool {
	c := cmp.Compare(a, b)
	switch op {
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c != 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	}
	return false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
