package condition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nerrad567/cuelogic-core/internal/container"
)

// Expression evaluates an expr-lang program.
//
// The environment holds `value` (the bound source value, nil when unbound)
// and `values` (every parameter of the source's container, by short name).
// An empty expression is true. Programs that fail to compile or run, or
// that do not return a bool, evaluate to false.
type Expression struct {
	*base

	expression *container.Parameter

	progMu   sync.Mutex
	progKey  string
	program  *vm.Program
	progErr  error
	lastWarn string
}

// NewExpression creates an unbound expression condition.
func NewExpression(resolver Resolver, logger Logger) *Expression {
	c := &Expression{base: newBase("Expression", TypeExpression, resolver, logger)}
	c.follow = followOwner
	c.expression = c.AddStringParameter("Expression", "expr-lang program returning a bool", "")
	c.watch(c.expression)
	return c
}

// ExpressionParam returns the parameter holding the program source.
func (c *Expression) ExpressionParam() *container.Parameter { return c.expression }

// Evaluate implements Condition.
func (c *Expression) Evaluate() bool {
	src := strings.TrimSpace(c.expression.String())
	if src == "" {
		return true
	}

	env := c.env()
	program, err := c.compile(src, env)
	if err != nil {
		c.warnOnce("expression does not compile", src, err)
		return false
	}

	out, err := expr.Run(program, env)
	if err != nil {
		c.warnOnce("expression failed", src, err)
		return false
	}
	result, ok := out.(bool)
	if !ok {
		c.warnOnce("expression did not return a bool", src, fmt.Errorf("got %T", out))
		return false
	}
	return result
}

func (c *Expression) env() map[string]any {
	values := make(map[string]any)
	var value any
	if p := c.Bound(); p != nil {
		value = p.Value()
		if owner := p.Owner(); owner != nil {
			for _, sibling := range owner.Parameters() {
				if sibling.Kind() != container.KindTrigger {
					values[sibling.ShortName()] = sibling.Value()
				}
			}
		}
	}
	return map[string]any{"value": value, "values": values}
}

// followOwner subscribes notify to target and to every other non-trigger
// parameter of target's owner, including ones attached later, since all
// of them are visible as `values`.
func followOwner(target *container.Parameter, notify func()) func() {
	owner := target.Owner()
	if owner == nil {
		return target.OnChange(func(*container.Parameter) { notify() })
	}

	var mu sync.Mutex
	unsubs := make(map[*container.Parameter]func())
	watch := func(p *container.Parameter) {
		if p != target && p.Kind() == container.KindTrigger {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, ok := unsubs[p]; ok {
			return
		}
		unsubs[p] = p.OnChange(func(*container.Parameter) { notify() })
	}

	stop := owner.OnStructureChange(func(ev container.StructureEvent) {
		if ev.Source != owner {
			return
		}
		switch ev.Kind {
		case container.ParameterAdded:
			watch(ev.Parameter)
			notify()
		case container.ParameterRemoved:
			mu.Lock()
			if unsub, ok := unsubs[ev.Parameter]; ok {
				unsub()
				delete(unsubs, ev.Parameter)
			}
			mu.Unlock()
			notify()
		}
	})
	for _, p := range owner.Parameters() {
		watch(p)
	}

	return func() {
		stop()
		mu.Lock()
		for _, unsub := range unsubs {
			unsub()
		}
		clear(unsubs)
		mu.Unlock()
	}
}

// compile caches the program per source text and value type, since
// expr type-checks against the environment it was compiled with.
func (c *Expression) compile(src string, env map[string]any) (*vm.Program, error) {
	key := fmt.Sprintf("%T|%s", env["value"], src)

	c.progMu.Lock()
	defer c.progMu.Unlock()
	if key == c.progKey {
		return c.program, c.progErr
	}
	c.progKey = key
	c.program, c.progErr = expr.Compile(src, expr.Env(env), expr.AsBool())
	return c.program, c.progErr
}

func (c *Expression) warnOnce(msg, src string, err error) {
	c.progMu.Lock()
	repeated := c.lastWarn == src
	c.lastWarn = src
	c.progMu.Unlock()
	if repeated {
		return
	}
	c.logger.Warn(msg,
		"condition", c.Address(),
		"expression", src,
		"error", err,
	)
}
