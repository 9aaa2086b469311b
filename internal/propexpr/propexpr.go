// Package propexpr implements the Property Expression Evaluator (C3):
// rewriting a __MATH__(NUMBER,PROPID,OP) payload into a concrete value by
// resolving PROPID against a component's own properties and applying OP to
// the literal NUMBER and that property's value. Grounded on
// PropertyMap.cpp's MATH evaluation (the original's _evaluateMATHinRequest
// path in ApplicationFactory_impl.cpp).
package propexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

const mathPrefix = "__MATH__"

// IsExpression reports whether a raw property value is a __MATH__ payload.
func IsExpression(raw string) bool {
	return strings.HasPrefix(raw, mathPrefix)
}

// Evaluate rewrites a __MATH__(NUMBER,PROPID,OP) payload against the
// supplied properties and returns the computed PropertyValue tagged with id.
//
// Grammar: __MATH__(<number literal>,<property id>,<operator>) where the
// first field is always a numeric literal, the second is always a property
// id resolved via ports.Find (two-level: top level, then inside structs),
// and OPERATOR (third field) is one of +, -, *, /.
func Evaluate(id, raw string, props []ports.PropertyValue) (ports.PropertyValue, error) {
	if !strings.HasPrefix(raw, mathPrefix+"(") || !strings.HasSuffix(raw, ")") {
		return ports.PropertyValue{}, &ports.PropertyExpressionError{Expression: raw, Reason: "missing enclosing parentheses"}
	}
	body := strings.TrimSuffix(strings.TrimPrefix(raw, mathPrefix+"("), ")")
	parts := strings.SplitN(body, ",", 3)
	if len(parts) != 3 {
		return ports.PropertyValue{}, &ports.PropertyExpressionError{Expression: raw, Reason: "expected exactly three comma-separated fields"}
	}

	a, err := literalOperand(strings.TrimSpace(parts[0]))
	if err != nil {
		return ports.PropertyValue{}, &ports.PropertyExpressionError{Expression: raw, Reason: err.Error()}
	}
	b, err := propertyOperand(strings.TrimSpace(parts[1]), props)
	if err != nil {
		return ports.PropertyValue{}, &ports.PropertyExpressionError{Expression: raw, Reason: err.Error()}
	}

	result, err := apply(a, strings.TrimSpace(parts[2]), b)
	if err != nil {
		return ports.PropertyValue{}, &ports.PropertyExpressionError{Expression: raw, Reason: err.Error()}
	}
	return ports.Simple(id, result), nil
}

// literalOperand parses the first __MATH__ field, which is always a numeric
// literal.
func literalOperand(token string) (float64, error) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a numeric literal, got %q", token)
	}
	return v, nil
}

// propertyOperand resolves the second __MATH__ field, which is always a
// property id, against the supplied properties.
func propertyOperand(token string, props []ports.PropertyValue) (float64, error) {
	pv, ok := ports.Find(props, token)
	if !ok {
		return 0, fmt.Errorf("unknown property %q referenced in expression", token)
	}
	return toFloat(pv.Simple)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("property value %q is not numeric", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("property value of type %T is not numeric", v)
	}
}

func apply(a float64, op string, b float64) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	default:
		return 0, fmt.Errorf("unsupported operator %q", op)
	}
}
