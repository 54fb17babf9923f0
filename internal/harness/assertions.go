package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Ref(), formatValue(event.Args))
			if event.Error != "" {
				fmt.Fprintf(&buf, " (error: %s)", event.Error)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

func tolerance(t float64) float64 {
	if t == 0 {
		return testutil.DefaultTolerance
	}
	return t
}

// assertValue checks that a path resolves to the expected value.
func assertValue(eng *engine.Engine, path string, expect any, tol float64) error {
	want, err := ir.FromGo(expect)
	if err != nil {
		return fmt.Errorf("value %s: bad expectation: %w", path, err)
	}
	got, err := eng.Value(path)
	if err != nil {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %s", path, formatValue(want)),
			Actual:   err.Error(),
		}
	}
	if diff := testutil.ApproxDiff(want, got, tolerance(tol)); diff != "" {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %s", path, formatValue(want)),
			Actual:   fmt.Sprintf("%s = %s (%s)", path, formatValue(got), diff),
		}
	}
	return nil
}

// assertEssential checks an essential key. A nil expectation asserts the
// key is absent.
func assertEssential(essentials ir.IRObject, a Assertion) error {
	got, ok := essentials[a.Key]
	if a.Expect == nil {
		if ok {
			return &AssertionError{
				Type:     AssertEssential,
				Expected: fmt.Sprintf("no essential %s", a.Key),
				Actual:   fmt.Sprintf("%s = %s", a.Key, formatValue(got)),
			}
		}
		return nil
	}
	want, err := ir.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("essential %s: bad expectation: %w", a.Key, err)
	}
	if !ok {
		return &AssertionError{
			Type:     AssertEssential,
			Expected: fmt.Sprintf("%s = %s", a.Key, formatValue(want)),
			Actual:   fmt.Sprintf("no essential %s (have %s)", a.Key, strings.Join(essentials.SortedKeys(), ", ")),
		}
	}
	if diff := testutil.ApproxDiff(want, got, tolerance(a.Tolerance)); diff != "" {
		return &AssertionError{
			Type:     AssertEssential,
			Expected: fmt.Sprintf("%s = %s", a.Key, formatValue(want)),
			Actual:   fmt.Sprintf("%s = %s (%s)", a.Key, formatValue(got), diff),
		}
	}
	return nil
}

// assertDiagnostic checks that some diagnostic contains the given text.
func assertDiagnostic(diags []engine.Diagnostic, a Assertion) error {
	for _, d := range diags {
		if a.Level != "" && string(d.Level) != a.Level {
			continue
		}
		if strings.Contains(d.Message, a.Contains) {
			return nil
		}
	}
	var have []string
	for _, d := range diags {
		have = append(have, fmt.Sprintf("%s: %s", d.Level, d.Message))
	}
	expected := fmt.Sprintf("diagnostic containing %q", a.Contains)
	if a.Level != "" {
		expected = fmt.Sprintf("%s diagnostic containing %q", a.Level, a.Contains)
	}
	actual := "no diagnostics"
	if len(have) > 0 {
		actual = strings.Join(have, "; ")
	}
	return &AssertionError{Type: AssertDiagnostic, Expected: expected, Actual: actual}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected action
	positions := make(map[string]int)

	for i, event := range trace {
		for _, expectedAction := range assertion.Actions {
			if event.Ref() == expectedAction && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all actions found
	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Ref() == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

func assertVariant(info engine.VariantInfo, a Assertion) error {
	if !strings.EqualFold(info.Name, a.Name) {
		return &AssertionError{
			Type:     AssertVariant,
			Expected: fmt.Sprintf("variant %s", a.Name),
			Actual:   fmt.Sprintf("variant %s (index %d)", info.Name, info.Index),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and the
// engine the scenario ran in.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, eng *engine.Engine) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertValue:
			err = assertValue(eng, assertion.Path, assertion.Expect, assertion.Tolerance)
		case AssertEssential:
			err = assertEssential(result.Essentials, assertion)
		case AssertDiagnostic:
			err = assertDiagnostic(eng.Diagnostics(), assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertVariant:
			err = assertVariant(eng.Variant(), assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// formatValue renders a value as JSON for messages.
func formatValue(v ir.IRValue) string {
	if v == nil {
		return "null"
	}
	if obj, ok := v.(ir.IRObject); ok && obj == nil {
		return "{}"
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
