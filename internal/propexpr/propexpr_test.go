package propexpr

import (
	"testing"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

func TestIsExpression(t *testing.T) {
	if !IsExpression("__MATH__(1,X,+)") {
		t.Fatalf("expected __MATH__ payload to be recognized as an expression")
	}
	if IsExpression("plain-value") {
		t.Fatalf("did not expect a plain value to be recognized as an expression")
	}
}

func TestEvaluate(t *testing.T) {
	props := []ports.PropertyValue{ports.Simple("X", 5.0)}

	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"spec worked example: multiply", "__MATH__(2.0,X,*)", 10},
		{"add", "__MATH__(5,X,+)", 10},
		{"subtract", "__MATH__(100,X,-)", 95},
		{"divide", "__MATH__(10,X,/)", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate("derived", tt.raw, props)
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got.Simple.(float64) != tt.want {
				t.Fatalf("Evaluate(%q) = %v, want %v", tt.raw, got.Simple, tt.want)
			}
		})
	}
}

func TestEvaluate_UnknownProperty(t *testing.T) {
	_, err := Evaluate("derived", "__MATH__(1,missing_prop,+)", nil)
	if err == nil {
		t.Fatalf("expected an error for an unknown property reference")
	}
	var perr *ports.PropertyExpressionError
	if !isPropertyExpressionError(err, &perr) {
		t.Fatalf("expected a *ports.PropertyExpressionError, got %T", err)
	}
}

func TestEvaluate_MalformedPayload(t *testing.T) {
	if _, err := Evaluate("derived", "__MATH__(missing_paren", nil); err == nil {
		t.Fatalf("expected an error for a malformed payload")
	}
	if _, err := Evaluate("derived", "__MATH__(1,X)", nil); err == nil {
		t.Fatalf("expected an error for a payload missing a field")
	}
	if _, err := Evaluate("derived", "__MATH__(X,1,+)", nil); err == nil {
		t.Fatalf("expected an error when the first field is not a numeric literal")
	}
}

func isPropertyExpressionError(err error, target **ports.PropertyExpressionError) bool {
	e, ok := err.(*ports.PropertyExpressionError)
	if !ok {
		return false
	}
	*target = e
	return true
}
