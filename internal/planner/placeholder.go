package planner

import "strings"

// Placeholder marks a parameter whose value is the output of a step this
// one depends on. The executor substitutes it when the step runs.
const Placeholder = "[FROM_PREVIOUS_ACTION]"

// UsesPlaceholder reports whether any of s's params, at any depth, contains Placeholder.
func UsesPlaceholder(s Step) bool {
	return containsPlaceholder(s.Params)
}

func containsPlaceholder(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(t, Placeholder)
	case map[string]interface{}:
		for _, x := range t {
			if containsPlaceholder(x) {
				return true
			}
		}
	case []interface{}:
		for _, x := range t {
			if containsPlaceholder(x) {
				return true
			}
		}
	}
	return false
}
