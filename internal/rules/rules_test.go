package rules

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("ordered selection", func(t *testing.T) {
		sel, err := Parse([]string{"sequential-js:report-only", "unattached-policy:apply-and-report"})
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		want := []string{"sequential-js:report-only", "unattached-policy:apply-and-report"}
		if got := sel.Strings(); !reflect.DeepEqual(got, want) {
			t.Errorf("Strings = %v, want %v", got, want)
		}
		if v, ok := sel.Variant(UnattachedPolicy); !ok || v != ApplyAndReport {
			t.Errorf("Variant = %q, %v", v, ok)
		}
	})

	t.Run("repeated rule keeps position", func(t *testing.T) {
		sel, err := Parse([]string{
			"unattached-policy:report-only",
			"sequential-js:report-only",
			"unattached-policy:apply-and-report",
		})
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		want := []string{"unattached-policy:apply-and-report", "sequential-js:report-only"}
		if got := sel.Strings(); !reflect.DeepEqual(got, want) {
			t.Errorf("Strings = %v, want %v", got, want)
		}
	})

	errorCases := []struct {
		name string
		arg  string
		want string
	}{
		{"missing colon", "unattached-policy", "rule:variant"},
		{"unknown rule", "dead-code:report-only", "Available rules: sequential-js, unattached-policy"},
		{"unsupported variant", "sequential-js:apply-and-report", "Supported variants: report-only"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]string{tt.arg})
			var selErr *SelectionError
			if !errors.As(err, &selErr) {
				t.Fatalf("error = %v, want SelectionError", err)
			}
			if selErr.Arg != tt.arg {
				t.Errorf("Arg = %q", selErr.Arg)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestSelectionHas(t *testing.T) {
	sel := Selection{{Rule: SequentialJS, Variant: ReportOnly}}
	if !sel.Has(SequentialJS) {
		t.Error("Has(sequential-js) = false")
	}
	if sel.Has(UnattachedPolicy) {
		t.Error("Has(unattached-policy) = true")
	}
}
