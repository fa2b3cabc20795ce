// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Item operations
	OpItemLoad     Op = "load item"
	OpProgressLoad Op = "load listening progress"

	// Session operations
	OpSessionOpen  Op = "open playback session"
	OpSessionSync  Op = "sync listening progress"
	OpSessionClose Op = "close playback session"

	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpPlaybackSeek  Op = "seek"
	OpTrackAdvance  Op = "advance to next file"
	OpStreamAttach  Op = "attach transcoded stream"
	OpRateChange    Op = "change playback speed"

	// Sleep timer
	OpSleepSet Op = "set sleep timer"

	// Initialization
	OpInitialize Op = "initialize application"
	OpConfigLoad Op = "load configuration"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
