package expr

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	starmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"

	"github.com/roach88/vellum/internal/ir"
)

// MaxSteps bounds the Starlark execution steps of one evaluation.
const MaxSteps = 100_000

var refPattern = regexp.MustCompile(`\$((?:[A-Za-z_][A-Za-z0-9_]*(?:\[[0-9]+\])*\.)*[A-Za-z_][A-Za-z0-9_]*)`)

// Expr is a compiled expression.
type Expr struct {
	src  string
	refs []string
	fn   *starlark.Function
}

// Parse compiles src. Each distinct reference becomes one parameter, in
// order of first appearance. Brackets after the last segment of a
// reference index the value ("$P[0]"); brackets before a dot are part of
// the path ("$s[2].value").
func Parse(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("empty expression")
	}

	var refs []string
	index := make(map[string]int)
	body := refPattern.ReplaceAllStringFunc(src, func(m string) string {
		ref := m[1:]
		i, ok := index[ref]
		if !ok {
			i = len(refs)
			index[ref] = i
			refs = append(refs, ref)
		}
		return fmt.Sprintf("ref%d", i)
	})
	if strings.Contains(body, "$") {
		return nil, fmt.Errorf("malformed reference in %q", src)
	}

	params := make([]string, len(refs))
	for i := range refs {
		params[i] = fmt.Sprintf("ref%d", i)
	}
	prog := fmt.Sprintf("def __expr(%s):\n    return (%s)\n", strings.Join(params, ", "), body)

	thread := newThread()
	globals, err := starlark.ExecFile(thread, "expr.star", prog, predeclared())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	fn, ok := globals["__expr"].(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("compile %q: no function produced", src)
	}
	return &Expr{src: src, refs: refs, fn: fn}, nil
}

// Source returns the expression text without the leading "=".
func (x *Expr) Source() string { return x.src }

// Refs returns the referenced paths, without "$", in parameter order.
func (x *Expr) Refs() []string { return append([]string(nil), x.refs...) }

// Eval evaluates the expression with one value per reference.
func (x *Expr) Eval(args []ir.IRValue) (ir.IRValue, error) {
	if len(args) != len(x.refs) {
		return nil, fmt.Errorf("expression %q takes %d values, got %d", x.src, len(x.refs), len(args))
	}
	sargs := make(starlark.Tuple, len(args))
	for i, a := range args {
		v, err := toStarlark(a)
		if err != nil {
			return nil, fmt.Errorf("$%s: %w", x.refs[i], err)
		}
		sargs[i] = v
	}
	out, err := starlark.Call(newThread(), x.fn, sargs, nil)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", x.src, err)
	}
	return fromStarlark(out)
}

// Invert finds a value for reference ref that makes the expression equal
// desired, starting from the current arguments, using the secant method.
func (x *Expr) Invert(args []ir.IRValue, ref int, desired float64) (float64, error) {
	if ref < 0 || ref >= len(x.refs) {
		return math.NaN(), fmt.Errorf("expression %q has no reference %d", x.src, ref)
	}
	x0, ok := ir.AsFloat(args[ref])
	if !ok || math.IsNaN(x0) {
		x0 = 0
	}

	work := append([]ir.IRValue(nil), args...)
	f := func(v float64) (float64, error) {
		work[ref] = ir.IRNumber(v)
		out, err := x.Eval(work)
		if err != nil {
			return math.NaN(), err
		}
		y, ok := ir.AsFloat(out)
		if !ok || math.IsNaN(y) {
			return math.NaN(), fmt.Errorf("expression %q is not numeric", x.src)
		}
		return y - desired, nil
	}

	x1 := x0 + math.Max(1, math.Abs(x0)*1e-3)
	f0, err := f(x0)
	if err != nil {
		return math.NaN(), err
	}
	if f0 == 0 {
		return x0, nil
	}
	f1, err := f(x1)
	if err != nil {
		return math.NaN(), err
	}
	for i := 0; i < 60; i++ {
		if math.Abs(f1) <= 1e-12*math.Max(1, math.Abs(desired)) {
			return x1, nil
		}
		if f1 == f0 {
			break
		}
		x2 := x1 - f1*(x1-x0)/(f1-f0)
		if math.IsNaN(x2) || math.IsInf(x2, 0) {
			break
		}
		x0, f0 = x1, f1
		x1 = x2
		if f1, err = f(x1); err != nil {
			return math.NaN(), err
		}
	}
	return math.NaN(), fmt.Errorf("expression %q cannot reach %v", x.src, desired)
}

func newThread() *starlark.Thread {
	thread := &starlark.Thread{
		Name:  "expr",
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetMaxExecutionSteps(MaxSteps)
	return thread
}

func predeclared() starlark.StringDict {
	env := starlark.StringDict{"math": starmath.Module}
	for _, name := range []string{"sqrt", "sin", "cos", "tan", "atan2", "pow", "floor", "ceil", "round", "exp", "log"} {
		if fn, ok := starmath.Module.Members[name]; ok {
			env[name] = fn
		}
	}
	env["pi"] = starlark.Float(math.Pi)
	return env
}

func toStarlark(v ir.IRValue) (starlark.Value, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return starlark.None, nil
	case ir.IRNumber:
		return starlark.Float(val), nil
	case ir.IRString:
		return starlark.String(val), nil
	case ir.IRBool:
		return starlark.Bool(val), nil
	case ir.IRArray:
		list := make([]starlark.Value, len(val))
		for i, elem := range val {
			sv, err := toStarlark(elem)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

func fromStarlark(v starlark.Value) (ir.IRValue, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return ir.IRNull{}, nil
	case starlark.Bool:
		return ir.IRBool(val), nil
	case starlark.Int:
		f, _ := starlark.AsFloat(val)
		return ir.IRNumber(f), nil
	case starlark.Float:
		return ir.IRNumber(val), nil
	case starlark.String:
		return ir.IRString(val), nil
	case starlark.Indexable:
		out := make(ir.IRArray, val.Len())
		for i := 0; i < val.Len(); i++ {
			elem, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
