package logging

import "strings"

// FormatSubject builds the category/operation subject shown in console output,
// e.g. "afro · ingest".
func FormatSubject(category, operation string) string {
	category = strings.TrimSpace(category)
	operation = strings.TrimSpace(operation)
	switch {
	case category != "" && operation != "":
		return category + " · " + operation
	case category != "":
		return category
	default:
		return operation
	}
}
