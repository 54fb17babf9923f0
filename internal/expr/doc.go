// Package expr evaluates expression attributes such as "=2*$a+1".
//
// References ($name, $name.variable, $s[2].value) become parameters of a
// Starlark function compiled once per expression. Evaluation is bounded by
// a step limit. Expressions of a single numeric reference can be inverted
// numerically, which lets a component write through an expression
// attribute to the variable it references.
package expr
