// Package rules defines the analysis rules and parses rule:variant selections.
package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Rule names.
const (
	UnattachedPolicy = "unattached-policy"
	SequentialJS     = "sequential-js"
)

// Variant names.
const (
	ReportOnly     = "report-only"
	ApplyAndReport = "apply-and-report"
)

// Available maps each rule to its supported variants.
var Available = map[string][]string{
	UnattachedPolicy: {ReportOnly, ApplyAndReport},
	SequentialJS:     {ReportOnly},
}

// Descriptions are shown by the rules command.
var Descriptions = map[string]string{
	UnattachedPolicy: "Policies not invoked by any proxy or target endpoint step",
	SequentialJS:     "Runs of consecutive, condition-less JavaScript steps",
}

// Names returns the rule names, sorted.
func Names() []string {
	names := make([]string, 0, len(Available))
	for name := range Available {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectionError reports an invalid rule argument.
type SelectionError struct {
	// Arg is the offending argument.
	Arg string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	return e.Message
}

// Choice is one selected rule and its variant.
type Choice struct {
	Rule    string `json:"rule"`
	Variant string `json:"variant"`
}

// String returns the choice in rule:variant form.
func (c Choice) String() string {
	return c.Rule + ":" + c.Variant
}

// Selection is an ordered set of rule choices. Each rule appears at most once.
type Selection []Choice

// Parse parses rule:variant arguments. A rule given twice keeps its first
// position and takes the last variant.
func Parse(args []string) (Selection, error) {
	var sel Selection
	for _, arg := range args {
		rule, variant, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, &SelectionError{
				Arg:     arg,
				Message: fmt.Sprintf("invalid argument format: '%s'. Must be in 'rule:variant' format", arg),
			}
		}
		variants, known := Available[rule]
		if !known {
			return nil, &SelectionError{
				Arg:     arg,
				Message: fmt.Sprintf("unknown rule: '%s'. Available rules: %s", rule, strings.Join(Names(), ", ")),
			}
		}
		if !contains(variants, variant) {
			return nil, &SelectionError{
				Arg: arg,
				Message: fmt.Sprintf("unsupported variant '%s' for rule '%s'. Supported variants: %s",
					variant, rule, strings.Join(variants, ", ")),
			}
		}
		sel = sel.with(Choice{Rule: rule, Variant: variant})
	}
	return sel, nil
}

func (s Selection) with(c Choice) Selection {
	for i := range s {
		if s[i].Rule == c.Rule {
			s[i].Variant = c.Variant
			return s
		}
	}
	return append(s, c)
}

// Has reports whether the rule is selected.
func (s Selection) Has(rule string) bool {
	_, ok := s.Variant(rule)
	return ok
}

// Variant returns the selected variant of a rule.
func (s Selection) Variant(rule string) (string, bool) {
	for _, c := range s {
		if c.Rule == rule {
			return c.Variant, true
		}
	}
	return "", false
}

// Strings returns the choices in rule:variant form.
func (s Selection) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.String()
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
