package logger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// messager is implemented by zerr errors, whose Message omits the wrapped chain.
type messager interface {
	Message() string
}

type metadataer interface {
	Metadata() map[string]any
}

// ErrorEntry is one link of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// collectErrorEntries walks err from the outermost wrapper inwards. The walk
// stops at the first error that does not report its own message, since its
// Error already covers everything below it. Joined errors are flattened.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	for err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				entries = append(entries, collectErrorEntries(e)...)
			}
			return entries
		}
		m, ok := err.(messager)
		if !ok {
			return append(entries, ErrorEntry{Message: err.Error()})
		}
		entry := ErrorEntry{Message: m.Message()}
		if md, ok := err.(metadataer); ok {
			entry.Metadata = md.Metadata()
		}
		entries = append(entries, entry)
		err = errors.Unwrap(err)
	}
	return entries
}

// formatErrorEntries renders entries as "Error: <first>" followed by a
// "Caused by:" list. Metadata follows its message as sorted key: value lines.
func formatErrorEntries(entries []ErrorEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var lines []string
	for i, e := range entries {
		head, indent := "Error: ", "       "
		if i > 0 {
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			head, indent = "    → ", "      "
		}
		msg := strings.Split(e.Message, "\n")
		lines = append(lines, head+msg[0])
		for _, l := range msg[1:] {
			lines = append(lines, indent+l)
		}
		for _, k := range slices.Sorted(maps.Keys(e.Metadata)) {
			lines = append(lines, fmt.Sprintf("%s%s: %v", indent, k, e.Metadata[k]))
		}
	}
	return strings.Join(lines, "\n")
}
