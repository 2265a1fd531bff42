package process

import (
	"unicode"
	"unicode/utf8"
)

var runningLabels = map[string]string{
	"build":         "Building...",
	"run":           "Running...",
	"build-and-run": "Building & running...",
	"test":          "Testing...",
}

// StatusText renders a short status-line label for the given state and action.
func StatusText(state State, action string) string {
	switch state {
	case StateRunning:
		if label, ok := runningLabels[action]; ok {
			return label
		}
		if action == "" {
			return "Running..."
		}
		first, size := utf8.DecodeRuneInString(action)
		return string(unicode.ToUpper(first)) + action[size:] + "..."
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Idle"
	}
}
